package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jdcastro/treasury/internal/database"
	"github.com/jdcastro/treasury/internal/models"
	"github.com/shopspring/decimal"
)

// Repository-level sentinel errors. Services translate these into their
// own error taxonomy.
var (
	// ErrOverlap is returned when a configuration write would create two
	// active records with overlapping validity intervals for the same
	// kind and classification key.
	ErrOverlap = errors.New("overlapping active configuration")

	// ErrReferenced is returned when deleting a configuration record that
	// an existing assessment already references.
	ErrReferenced = errors.New("configuration record is referenced by an assessment")

	// ErrRecordNotFound is returned by Delete when the record does not
	// exist.
	ErrRecordNotFound = errors.New("configuration record not found")
)

// ConfigurationRepository defines data access for the versioned
// configuration tables.
type ConfigurationRepository interface {
	// Create inserts a new configuration record. The overlap check and
	// the insert run in one transaction so a concurrent write cannot
	// admit two overlapping active records. Returns ErrOverlap on
	// conflict.
	Create(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error)

	// Update rewrites an existing record, excluding the record's own id
	// from the overlap check. Returns ErrOverlap on conflict.
	Update(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error)

	// FindActive returns every active record for the kind and
	// classification key whose validity interval covers asOf. More than
	// one result is a data-integrity violation the caller must surface.
	FindActive(ctx context.Context, kind models.ConfigKind, key string, asOf time.Time) ([]models.ConfigurationRecord, error)

	// FindActiveBand is FindActive narrowed to records whose
	// [min_band, max_band] range covers the given value.
	FindActiveBand(ctx context.Context, kind models.ConfigKind, key string, value decimal.Decimal, asOf time.Time) ([]models.ConfigurationRecord, error)

	// List returns all records of a kind, newest effective date first.
	List(ctx context.Context, kind models.ConfigKind) ([]models.ConfigurationRecord, error)

	// Delete removes a record unless an assessment references it, in
	// which case it returns ErrReferenced. Returns ErrRecordNotFound if
	// the record does not exist.
	Delete(ctx context.Context, id int64) error
}

type configurationRepository struct {
	db *database.Database
}

// NewConfigurationRepository creates a new ConfigurationRepository.
func NewConfigurationRepository(db *database.Database) ConfigurationRepository {
	return &configurationRepository{db: db}
}

const configColumns = `
	id, kind, classification_key, value_per_unit, unit_cost,
	depreciation_rate, level_percent, rate_percent, min_band, max_band,
	effective_date, expiration_date, status, created_at, updated_at`

func scanConfig(row pgx.Row) (*models.ConfigurationRecord, error) {
	var rec models.ConfigurationRecord
	err := row.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.ClassificationKey,
		&rec.ValuePerUnit,
		&rec.UnitCost,
		&rec.DepreciationRate,
		&rec.LevelPercent,
		&rec.RatePercent,
		&rec.MinBand,
		&rec.MaxBand,
		&rec.EffectiveDate,
		&rec.ExpirationDate,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// overlapExists checks, inside the caller's transaction, whether any
// other active record for the same kind and key has a validity interval
// overlapping the candidate's. A NULL expiration date is treated as
// infinity on either side.
func overlapExists(ctx context.Context, tx pgx.Tx, rec *models.ConfigurationRecord, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM configuration_records
			WHERE kind = $1
			  AND classification_key = $2
			  AND status = 'active'
			  AND id <> $3
			  AND (expiration_date IS NULL OR expiration_date >= $4)
			  AND ($5::date IS NULL OR effective_date <= $5)
		)
	`

	var exists bool
	err := tx.QueryRow(ctx, query,
		rec.Kind, rec.ClassificationKey, excludeID, rec.EffectiveDate, rec.ExpirationDate,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check configuration overlap: %w", err)
	}
	return exists, nil
}

func (r *configurationRepository) Create(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin configuration write: %w", err)
	}
	defer tx.Rollback(ctx)

	conflict, err := overlapExists(ctx, tx, rec, 0)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, fmt.Errorf("%w: kind=%s key=%s", ErrOverlap, rec.Kind, rec.ClassificationKey)
	}

	query := `
		INSERT INTO configuration_records (
			kind, classification_key, value_per_unit, unit_cost,
			depreciation_rate, level_percent, rate_percent, min_band, max_band,
			effective_date, expiration_date, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING ` + configColumns

	created, err := scanConfig(tx.QueryRow(ctx, query,
		rec.Kind, rec.ClassificationKey, rec.ValuePerUnit, rec.UnitCost,
		rec.DepreciationRate, rec.LevelPercent, rec.RatePercent, rec.MinBand, rec.MaxBand,
		rec.EffectiveDate, rec.ExpirationDate, rec.Status,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert configuration record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit configuration write: %w", err)
	}
	return created, nil
}

func (r *configurationRepository) Update(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin configuration write: %w", err)
	}
	defer tx.Rollback(ctx)

	conflict, err := overlapExists(ctx, tx, rec, rec.ID)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, fmt.Errorf("%w: kind=%s key=%s", ErrOverlap, rec.Kind, rec.ClassificationKey)
	}

	query := `
		UPDATE configuration_records SET
			classification_key = $2,
			value_per_unit = $3,
			unit_cost = $4,
			depreciation_rate = $5,
			level_percent = $6,
			rate_percent = $7,
			min_band = $8,
			max_band = $9,
			effective_date = $10,
			expiration_date = $11,
			status = $12,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + configColumns

	updated, err := scanConfig(tx.QueryRow(ctx, query,
		rec.ID, rec.ClassificationKey, rec.ValuePerUnit, rec.UnitCost,
		rec.DepreciationRate, rec.LevelPercent, rec.RatePercent, rec.MinBand, rec.MaxBand,
		rec.EffectiveDate, rec.ExpirationDate, rec.Status,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update configuration record %d: %w", rec.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit configuration write: %w", err)
	}
	return updated, nil
}

func (r *configurationRepository) FindActive(ctx context.Context, kind models.ConfigKind, key string, asOf time.Time) ([]models.ConfigurationRecord, error) {
	query := `
		SELECT ` + configColumns + `
		FROM configuration_records
		WHERE kind = $1
		  AND classification_key = $2
		  AND status = 'active'
		  AND effective_date <= $3
		  AND (expiration_date IS NULL OR expiration_date >= $3)
		ORDER BY effective_date DESC
	`
	return r.queryConfigs(ctx, query, kind, key, asOf)
}

func (r *configurationRepository) FindActiveBand(ctx context.Context, kind models.ConfigKind, key string, value decimal.Decimal, asOf time.Time) ([]models.ConfigurationRecord, error) {
	query := `
		SELECT ` + configColumns + `
		FROM configuration_records
		WHERE kind = $1
		  AND classification_key = $2
		  AND status = 'active'
		  AND effective_date <= $3
		  AND (expiration_date IS NULL OR expiration_date >= $3)
		  AND (min_band IS NULL OR min_band <= $4)
		  AND (max_band IS NULL OR max_band >= $4)
		ORDER BY effective_date DESC
	`
	return r.queryConfigs(ctx, query, kind, key, asOf, value)
}

func (r *configurationRepository) List(ctx context.Context, kind models.ConfigKind) ([]models.ConfigurationRecord, error) {
	query := `
		SELECT ` + configColumns + `
		FROM configuration_records
		WHERE kind = $1
		ORDER BY classification_key, effective_date DESC
	`
	return r.queryConfigs(ctx, query, kind)
}

func (r *configurationRepository) queryConfigs(ctx context.Context, query string, args ...interface{}) ([]models.ConfigurationRecord, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query configuration records: %w", err)
	}
	defer rows.Close()

	var records []models.ConfigurationRecord
	for rows.Next() {
		rec, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan configuration record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating configuration records: %w", err)
	}

	if records == nil {
		records = []models.ConfigurationRecord{}
	}
	return records, nil
}

// Delete removes a record only if no land or building assessment was
// computed against it. The reference columns record which configuration
// rows each assessment consumed.
func (r *configurationRepository) Delete(ctx context.Context, id int64) error {
	query := `
		DELETE FROM configuration_records c
		WHERE c.id = $1
		  AND NOT EXISTS (SELECT 1 FROM land_assessments la WHERE la.config_ref = c.id)
		  AND NOT EXISTS (SELECT 1 FROM building_assessments ba WHERE ba.config_ref = c.id)
	`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete configuration record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "missing" from "referenced".
		var exists bool
		if err := r.db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM configuration_records WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check configuration record %d: %w", id, err)
		}
		if exists {
			return fmt.Errorf("%w: id=%d", ErrReferenced, id)
		}
		return fmt.Errorf("%w: id=%d", ErrRecordNotFound, id)
	}
	return nil
}
