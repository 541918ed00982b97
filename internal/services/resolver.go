package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jdcastro/treasury/internal/logger"
	"github.com/jdcastro/treasury/internal/models"
	"github.com/jdcastro/treasury/internal/repository"
	"github.com/shopspring/decimal"
)

// ConfigResolver finds the single applicable configuration record for a
// classification key and date, and guards configuration writes against
// overlapping validity intervals.
type ConfigResolver interface {
	// Resolve returns the one active record for (kind, key) whose
	// validity interval covers asOf. Returns ErrConfigurationNotFound if
	// none matches and ErrAmbiguousConfiguration if more than one does.
	Resolve(ctx context.Context, kind models.ConfigKind, key string, asOf time.Time) (*models.ConfigurationRecord, error)

	// ResolveBand is Resolve narrowed to records whose value band covers
	// the given value.
	ResolveBand(ctx context.Context, kind models.ConfigKind, key string, value decimal.Decimal, asOf time.Time) (*models.ConfigurationRecord, error)

	// CreateConfiguration validates and stores a new record. Returns
	// ErrOverlappingConfiguration if it would overlap an active record
	// with the same kind and key.
	CreateConfiguration(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error)

	// UpdateConfiguration rewrites an existing record under the same
	// overlap guard, excluding the record itself from the check.
	UpdateConfiguration(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error)

	// DeleteConfiguration removes a record unless an assessment
	// references it (ErrConfigurationReferenced) or it does not exist
	// (ErrConfigurationNotFound).
	DeleteConfiguration(ctx context.Context, id int64) error

	// ListConfigurations returns all records of a kind.
	ListConfigurations(ctx context.Context, kind models.ConfigKind) ([]models.ConfigurationRecord, error)
}

type configResolver struct {
	repo repository.ConfigurationRepository
	log  *logger.Logger
}

// NewConfigResolver creates a new ConfigResolver.
func NewConfigResolver(repo repository.ConfigurationRepository, log *logger.Logger) ConfigResolver {
	return &configResolver{repo: repo, log: log}
}

func (s *configResolver) Resolve(ctx context.Context, kind models.ConfigKind, key string, asOf time.Time) (*models.ConfigurationRecord, error) {
	records, err := s.repo.FindActive(ctx, kind, key, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration: %w", err)
	}
	return s.single(kind, key, asOf, records)
}

func (s *configResolver) ResolveBand(ctx context.Context, kind models.ConfigKind, key string, value decimal.Decimal, asOf time.Time) (*models.ConfigurationRecord, error) {
	records, err := s.repo.FindActiveBand(ctx, kind, key, value, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration band: %w", err)
	}
	return s.single(kind, key, asOf, records)
}

// single enforces the exactly-one contract over the matched rows.
func (s *configResolver) single(kind models.ConfigKind, key string, asOf time.Time, records []models.ConfigurationRecord) (*models.ConfigurationRecord, error) {
	switch len(records) {
	case 0:
		return nil, fmt.Errorf("%w: kind=%s key=%s as_of=%s",
			ErrConfigurationNotFound, kind, key, asOf.Format("2006-01-02"))
	case 1:
		return &records[0], nil
	default:
		// Overlapping active records slipped past the write-time check.
		// Never pick one silently.
		s.log.Error("Overlapping active configuration records", ErrAmbiguousConfiguration, map[string]interface{}{
			"kind":    kind,
			"key":     key,
			"as_of":   asOf.Format("2006-01-02"),
			"matches": len(records),
		})
		return nil, fmt.Errorf("%w: kind=%s key=%s matches=%d",
			ErrAmbiguousConfiguration, kind, key, len(records))
	}
}

func (s *configResolver) CreateConfiguration(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error) {
	if err := validateConfiguration(rec); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			s.log.Warn("Configuration write rejected for overlap", map[string]interface{}{
				"kind": rec.Kind,
				"key":  rec.ClassificationKey,
			})
			return nil, fmt.Errorf("%w: kind=%s key=%s", ErrOverlappingConfiguration, rec.Kind, rec.ClassificationKey)
		}
		return nil, fmt.Errorf("failed to create configuration: %w", err)
	}

	s.log.Info("Configuration record created", map[string]interface{}{
		"id":   created.ID,
		"kind": created.Kind,
		"key":  created.ClassificationKey,
	})
	return created, nil
}

func (s *configResolver) UpdateConfiguration(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error) {
	if err := validateConfiguration(rec); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			return nil, fmt.Errorf("%w: kind=%s key=%s", ErrOverlappingConfiguration, rec.Kind, rec.ClassificationKey)
		}
		return nil, fmt.Errorf("failed to update configuration %d: %w", rec.ID, err)
	}

	s.log.Info("Configuration record updated", map[string]interface{}{
		"id":   updated.ID,
		"kind": updated.Kind,
		"key":  updated.ClassificationKey,
	})
	return updated, nil
}

func (s *configResolver) DeleteConfiguration(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return fmt.Errorf("%w: id=%d", ErrConfigurationReferenced, id)
		}
		if errors.Is(err, repository.ErrRecordNotFound) {
			return fmt.Errorf("%w: id=%d", ErrConfigurationNotFound, id)
		}
		return fmt.Errorf("failed to delete configuration %d: %w", id, err)
	}

	s.log.Info("Configuration record deleted", map[string]interface{}{"id": id})
	return nil
}

func (s *configResolver) ListConfigurations(ctx context.Context, kind models.ConfigKind) ([]models.ConfigurationRecord, error) {
	records, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	return records, nil
}

func validateConfiguration(rec *models.ConfigurationRecord) error {
	if rec.ClassificationKey == "" {
		return fmt.Errorf("classification key is required")
	}
	if rec.EffectiveDate.IsZero() {
		return fmt.Errorf("effective date is required")
	}
	if rec.ExpirationDate != nil && rec.ExpirationDate.Before(rec.EffectiveDate) {
		return fmt.Errorf("expiration date precedes effective date")
	}
	if rec.MinBand != nil && rec.MaxBand != nil && rec.MaxBand.LessThan(*rec.MinBand) {
		return fmt.Errorf("max band is below min band")
	}
	switch rec.Status {
	case models.ConfigActive, models.ConfigExpired:
	default:
		return fmt.Errorf("invalid status %q", rec.Status)
	}
	return nil
}
