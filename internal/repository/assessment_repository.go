package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jdcastro/treasury/internal/database"
	"github.com/jdcastro/treasury/internal/models"
)

// AssessmentRepository defines persistence for land/building assessments
// and the derived property totals. All writes are upserts keyed by
// registration id, so re-assessment never duplicates rows.
type AssessmentRepository interface {
	// GetRegistrationStatus returns the status of a registration, or
	// empty string with nil error if the registration does not exist.
	GetRegistrationStatus(ctx context.Context, registrationID int64) (models.RegistrationStatus, error)

	// AdvanceRegistrationStatus sets the registration status. The update
	// is conditional: an approved registration is never regressed.
	AdvanceRegistrationStatus(ctx context.Context, registrationID int64, status models.RegistrationStatus) error

	// UpsertLand inserts or replaces the land assessment for a
	// registration and returns the stored row.
	UpsertLand(ctx context.Context, land *models.LandAssessment) (*models.LandAssessment, error)

	// UpsertBuilding inserts or replaces the building assessment for a
	// registration and returns the stored row.
	UpsertBuilding(ctx context.Context, building *models.BuildingAssessment) (*models.BuildingAssessment, error)

	// UpsertTotals inserts or replaces the derived totals for a
	// registration.
	UpsertTotals(ctx context.Context, totals *models.PropertyTotals) (*models.PropertyTotals, error)

	// GetTotals returns the totals for a registration, or nil, nil if no
	// assessment exists yet.
	GetTotals(ctx context.Context, registrationID int64) (*models.PropertyTotals, error)

	// GetLand returns the land assessment, or nil, nil if absent.
	GetLand(ctx context.Context, registrationID int64) (*models.LandAssessment, error)

	// GetBuilding returns the building assessment, or nil, nil if absent.
	GetBuilding(ctx context.Context, registrationID int64) (*models.BuildingAssessment, error)

	// AssignDeclarations stamps permanent tax-declaration numbers on the
	// land and, when present, building assessment of a registration. The
	// stamp only applies once; re-approval leaves existing numbers alone.
	AssignDeclarations(ctx context.Context, registrationID int64, landTD, buildingTD string) error
}

// BusinessRepository reads business tax profiles. The profile's total
// tax is fixed at permit approval and is never written by this engine.
type BusinessRepository interface {
	// GetProfile returns the profile for a permit, or nil, nil if the
	// permit has no tax profile.
	GetProfile(ctx context.Context, permitID int64) (*models.BusinessTaxProfile, error)
}

type assessmentRepository struct {
	db *database.Database
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(db *database.Database) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) GetRegistrationStatus(ctx context.Context, registrationID int64) (models.RegistrationStatus, error) {
	var status models.RegistrationStatus
	err := r.db.Pool.QueryRow(ctx,
		`SELECT status FROM property_registrations WHERE id = $1`, registrationID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query registration %d: %w", registrationID, err)
	}
	return status, nil
}

// AdvanceRegistrationStatus is a single conditional update so a stale
// read can never move an approved registration backwards.
func (r *assessmentRepository) AdvanceRegistrationStatus(ctx context.Context, registrationID int64, status models.RegistrationStatus) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE property_registrations SET status = $2, updated_at = now()
		 WHERE id = $1 AND status <> 'approved'`,
		registrationID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to advance registration %d to %s: %w", registrationID, status, err)
	}
	return nil
}

const landColumns = `
	id, registration_id, config_ref, classification, area, market_value,
	assessment_level, assessed_value, basic_tax_amount, sef_tax_amount,
	annual_tax, tax_declaration_no, created_at, updated_at`

func (r *assessmentRepository) UpsertLand(ctx context.Context, land *models.LandAssessment) (*models.LandAssessment, error) {
	query := `
		INSERT INTO land_assessments (
			registration_id, config_ref, classification, area, market_value,
			assessment_level, assessed_value, basic_tax_amount,
			sef_tax_amount, annual_tax, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		ON CONFLICT (registration_id) DO UPDATE SET
			config_ref = EXCLUDED.config_ref,
			classification = EXCLUDED.classification,
			area = EXCLUDED.area,
			market_value = EXCLUDED.market_value,
			assessment_level = EXCLUDED.assessment_level,
			assessed_value = EXCLUDED.assessed_value,
			basic_tax_amount = EXCLUDED.basic_tax_amount,
			sef_tax_amount = EXCLUDED.sef_tax_amount,
			annual_tax = EXCLUDED.annual_tax,
			updated_at = now()
		RETURNING ` + landColumns

	var stored models.LandAssessment
	err := r.db.Pool.QueryRow(ctx, query,
		land.RegistrationID, land.ConfigRef, land.Classification, land.Area, land.MarketValue,
		land.AssessmentLevel, land.AssessedValue, land.BasicTaxAmount,
		land.SEFTaxAmount, land.AnnualTax,
	).Scan(
		&stored.ID, &stored.RegistrationID, &stored.ConfigRef, &stored.Classification, &stored.Area,
		&stored.MarketValue, &stored.AssessmentLevel, &stored.AssessedValue,
		&stored.BasicTaxAmount, &stored.SEFTaxAmount, &stored.AnnualTax,
		&stored.TaxDeclarationNo, &stored.CreatedAt, &stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert land assessment for registration %d: %w", land.RegistrationID, err)
	}
	return &stored, nil
}

const buildingColumns = `
	id, registration_id, config_ref, material_type, classification, floor_area,
	year_built, unit_cost, depreciation_percent, market_value,
	depreciated_value, assessment_level, assessed_value, basic_tax_amount,
	sef_tax_amount, annual_tax, tax_declaration_no, created_at, updated_at`

func (r *assessmentRepository) UpsertBuilding(ctx context.Context, building *models.BuildingAssessment) (*models.BuildingAssessment, error) {
	query := `
		INSERT INTO building_assessments (
			registration_id, config_ref, material_type, classification, floor_area,
			year_built, unit_cost, depreciation_percent, market_value,
			depreciated_value, assessment_level, assessed_value,
			basic_tax_amount, sef_tax_amount, annual_tax, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		ON CONFLICT (registration_id) DO UPDATE SET
			config_ref = EXCLUDED.config_ref,
			material_type = EXCLUDED.material_type,
			classification = EXCLUDED.classification,
			floor_area = EXCLUDED.floor_area,
			year_built = EXCLUDED.year_built,
			unit_cost = EXCLUDED.unit_cost,
			depreciation_percent = EXCLUDED.depreciation_percent,
			market_value = EXCLUDED.market_value,
			depreciated_value = EXCLUDED.depreciated_value,
			assessment_level = EXCLUDED.assessment_level,
			assessed_value = EXCLUDED.assessed_value,
			basic_tax_amount = EXCLUDED.basic_tax_amount,
			sef_tax_amount = EXCLUDED.sef_tax_amount,
			annual_tax = EXCLUDED.annual_tax,
			updated_at = now()
		RETURNING ` + buildingColumns

	var stored models.BuildingAssessment
	err := r.db.Pool.QueryRow(ctx, query,
		building.RegistrationID, building.ConfigRef, building.MaterialType, building.Classification,
		building.FloorArea, building.YearBuilt, building.UnitCost,
		building.DepreciationPercent, building.MarketValue, building.DepreciatedValue,
		building.AssessmentLevel, building.AssessedValue, building.BasicTaxAmount,
		building.SEFTaxAmount, building.AnnualTax,
	).Scan(
		&stored.ID, &stored.RegistrationID, &stored.ConfigRef, &stored.MaterialType, &stored.Classification,
		&stored.FloorArea, &stored.YearBuilt, &stored.UnitCost,
		&stored.DepreciationPercent, &stored.MarketValue, &stored.DepreciatedValue,
		&stored.AssessmentLevel, &stored.AssessedValue, &stored.BasicTaxAmount,
		&stored.SEFTaxAmount, &stored.AnnualTax, &stored.TaxDeclarationNo,
		&stored.CreatedAt, &stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert building assessment for registration %d: %w", building.RegistrationID, err)
	}
	return &stored, nil
}

func (r *assessmentRepository) UpsertTotals(ctx context.Context, totals *models.PropertyTotals) (*models.PropertyTotals, error) {
	query := `
		INSERT INTO property_totals (
			registration_id, land_annual_tax, building_annual_tax,
			total_annual_tax, status, updated_at
		) VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (registration_id) DO UPDATE SET
			land_annual_tax = EXCLUDED.land_annual_tax,
			building_annual_tax = EXCLUDED.building_annual_tax,
			total_annual_tax = EXCLUDED.total_annual_tax,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING registration_id, land_annual_tax, building_annual_tax, total_annual_tax, status, updated_at
	`

	var stored models.PropertyTotals
	err := r.db.Pool.QueryRow(ctx, query,
		totals.RegistrationID, totals.LandAnnualTax, totals.BuildingAnnualTax,
		totals.TotalAnnualTax, totals.Status,
	).Scan(
		&stored.RegistrationID, &stored.LandAnnualTax, &stored.BuildingAnnualTax,
		&stored.TotalAnnualTax, &stored.Status, &stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert totals for registration %d: %w", totals.RegistrationID, err)
	}
	return &stored, nil
}

func (r *assessmentRepository) GetTotals(ctx context.Context, registrationID int64) (*models.PropertyTotals, error) {
	var totals models.PropertyTotals
	err := r.db.Pool.QueryRow(ctx,
		`SELECT registration_id, land_annual_tax, building_annual_tax, total_annual_tax, status, updated_at
		 FROM property_totals WHERE registration_id = $1`, registrationID,
	).Scan(
		&totals.RegistrationID, &totals.LandAnnualTax, &totals.BuildingAnnualTax,
		&totals.TotalAnnualTax, &totals.Status, &totals.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query totals for registration %d: %w", registrationID, err)
	}
	return &totals, nil
}

func (r *assessmentRepository) GetLand(ctx context.Context, registrationID int64) (*models.LandAssessment, error) {
	var land models.LandAssessment
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+landColumns+` FROM land_assessments WHERE registration_id = $1`, registrationID,
	).Scan(
		&land.ID, &land.RegistrationID, &land.ConfigRef, &land.Classification, &land.Area,
		&land.MarketValue, &land.AssessmentLevel, &land.AssessedValue,
		&land.BasicTaxAmount, &land.SEFTaxAmount, &land.AnnualTax,
		&land.TaxDeclarationNo, &land.CreatedAt, &land.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query land assessment for registration %d: %w", registrationID, err)
	}
	return &land, nil
}

func (r *assessmentRepository) GetBuilding(ctx context.Context, registrationID int64) (*models.BuildingAssessment, error) {
	var building models.BuildingAssessment
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+buildingColumns+` FROM building_assessments WHERE registration_id = $1`, registrationID,
	).Scan(
		&building.ID, &building.RegistrationID, &building.ConfigRef, &building.MaterialType, &building.Classification,
		&building.FloorArea, &building.YearBuilt, &building.UnitCost,
		&building.DepreciationPercent, &building.MarketValue, &building.DepreciatedValue,
		&building.AssessmentLevel, &building.AssessedValue, &building.BasicTaxAmount,
		&building.SEFTaxAmount, &building.AnnualTax, &building.TaxDeclarationNo,
		&building.CreatedAt, &building.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query building assessment for registration %d: %w", registrationID, err)
	}
	return &building, nil
}

// AssignDeclarations only fills NULL declaration numbers, so the values
// assigned at first approval stay frozen across replays.
func (r *assessmentRepository) AssignDeclarations(ctx context.Context, registrationID int64, landTD, buildingTD string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE land_assessments SET tax_declaration_no = $2, updated_at = now()
		 WHERE registration_id = $1 AND tax_declaration_no IS NULL`,
		registrationID, landTD,
	)
	if err != nil {
		return fmt.Errorf("failed to assign land declaration for registration %d: %w", registrationID, err)
	}

	if buildingTD != "" {
		_, err = r.db.Pool.Exec(ctx,
			`UPDATE building_assessments SET tax_declaration_no = $2, updated_at = now()
			 WHERE registration_id = $1 AND tax_declaration_no IS NULL`,
			registrationID, buildingTD,
		)
		if err != nil {
			return fmt.Errorf("failed to assign building declaration for registration %d: %w", registrationID, err)
		}
	}
	return nil
}

type businessRepository struct {
	db *database.Database
}

// NewBusinessRepository creates a new BusinessRepository.
func NewBusinessRepository(db *database.Database) BusinessRepository {
	return &businessRepository{db: db}
}

func (r *businessRepository) GetProfile(ctx context.Context, permitID int64) (*models.BusinessTaxProfile, error) {
	var profile models.BusinessTaxProfile
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, permit_id, total_tax, year, created_at
		 FROM business_tax_profiles WHERE permit_id = $1`, permitID,
	).Scan(&profile.ID, &profile.PermitID, &profile.TotalTax, &profile.Year, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query business tax profile for permit %d: %w", permitID, err)
	}
	return &profile, nil
}
