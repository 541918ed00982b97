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

var hundred = decimal.NewFromInt(100)

// LandInput is the assessor-supplied data for the land path.
type LandInput struct {
	Classification string
	Area           decimal.Decimal
}

// BuildingInput is the assessor-supplied data for the building path. A
// zero or negative floor area means no building is assessed. Force
// bypasses the assessment-band check: the record is stored with a zero
// level pending manual correction. Administrators only.
type BuildingInput struct {
	MaterialType   string
	Classification string
	FloorArea      decimal.Decimal
	YearBuilt      int
	Force          bool
}

// AssessmentCalculator computes market value, depreciation, assessed
// value, and tax for a land parcel and an optional building on it. The
// assessment date is an explicit parameter; the calculator never reads
// the wall clock.
type AssessmentCalculator interface {
	// Assess computes and stores the assessment for a registration.
	// Calling it again for the same registration updates the stored rows
	// in place. On success the registration advances to "assessed"
	// unless it is already approved.
	Assess(ctx context.Context, registrationID int64, land LandInput, building *BuildingInput, asOf time.Time) (*models.PropertyTotals, error)
}

type assessmentCalculator struct {
	resolver ConfigResolver
	repo     repository.AssessmentRepository
	log      *logger.Logger
}

// NewAssessmentCalculator creates a new AssessmentCalculator.
func NewAssessmentCalculator(resolver ConfigResolver, repo repository.AssessmentRepository, log *logger.Logger) AssessmentCalculator {
	return &assessmentCalculator{resolver: resolver, repo: repo, log: log}
}

// BuildingCostKey composes the classification key for the building cost
// table, which is banded by material type and building classification.
func BuildingCostKey(materialType, classification string) string {
	return materialType + ":" + classification
}

func (s *assessmentCalculator) Assess(ctx context.Context, registrationID int64, land LandInput, building *BuildingInput, asOf time.Time) (*models.PropertyTotals, error) {
	status, err := s.repo.GetRegistrationStatus(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	if status == "" {
		return nil, fmt.Errorf("%w: id=%d", ErrRegistrationNotFound, registrationID)
	}

	basicPct, sefPct, err := s.taxRates(ctx, asOf)
	if err != nil {
		return nil, err
	}

	landRow, err := s.assessLand(ctx, registrationID, land, basicPct, sefPct, asOf)
	if err != nil {
		return nil, err
	}

	buildingAnnual := decimal.Zero
	if building != nil && building.FloorArea.GreaterThan(decimal.Zero) {
		buildingRow, err := s.assessBuilding(ctx, registrationID, *building, basicPct, sefPct, asOf)
		if err != nil {
			return nil, err
		}
		buildingAnnual = buildingRow.AnnualTax
	}

	// Approval is a one-way gate: re-assessment after approval keeps the
	// approved status.
	totalsStatus := models.RegistrationAssessed
	if status == models.RegistrationApproved {
		totalsStatus = models.RegistrationApproved
	}

	totals, err := s.repo.UpsertTotals(ctx, &models.PropertyTotals{
		RegistrationID:    registrationID,
		LandAnnualTax:     landRow.AnnualTax,
		BuildingAnnualTax: buildingAnnual,
		TotalAnnualTax:    landRow.AnnualTax.Add(buildingAnnual),
		Status:            totalsStatus,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.AdvanceRegistrationStatus(ctx, registrationID, models.RegistrationAssessed); err != nil {
		return nil, err
	}

	s.log.Info("Assessment stored", map[string]interface{}{
		"registration_id": registrationID,
		"land_annual":     totals.LandAnnualTax.String(),
		"building_annual": totals.BuildingAnnualTax.String(),
		"total_annual":    totals.TotalAnnualTax.String(),
	})
	return totals, nil
}

// taxRates resolves the active basic and SEF rates. Both are required;
// a missing one blocks assessment.
func (s *assessmentCalculator) taxRates(ctx context.Context, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	basic, err := s.resolver.Resolve(ctx, models.KindTaxRate, models.TaxRateBasic, asOf)
	if err != nil {
		if errors.Is(err, ErrConfigurationNotFound) {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: basic rate, as_of=%s", ErrTaxRateUnavailable, asOf.Format("2006-01-02"))
		}
		return decimal.Zero, decimal.Zero, err
	}

	sef, err := s.resolver.Resolve(ctx, models.KindTaxRate, models.TaxRateSEF, asOf)
	if err != nil {
		if errors.Is(err, ErrConfigurationNotFound) {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: SEF rate, as_of=%s", ErrTaxRateUnavailable, asOf.Format("2006-01-02"))
		}
		return decimal.Zero, decimal.Zero, err
	}

	return basic.RatePercent, sef.RatePercent, nil
}

// splitTax computes the annual tax on an assessed value and splits it
// proportionally between the basic and SEF levies. The SEF share is the
// remainder, so the two parts always sum exactly to the annual tax.
func splitTax(assessed, basicPct, sefPct decimal.Decimal) (annual, basicAmt, sefAmt decimal.Decimal) {
	combined := basicPct.Add(sefPct)
	annual = assessed.Mul(combined).Div(hundred).Round(2)
	if combined.IsZero() {
		return annual, decimal.Zero, decimal.Zero
	}
	basicAmt = annual.Mul(basicPct).Div(combined).Round(2)
	sefAmt = annual.Sub(basicAmt)
	return annual, basicAmt, sefAmt
}

func (s *assessmentCalculator) assessLand(ctx context.Context, registrationID int64, land LandInput, basicPct, sefPct decimal.Decimal, asOf time.Time) (*models.LandAssessment, error) {
	band, err := s.resolver.Resolve(ctx, models.KindLandValue, land.Classification, asOf)
	if err != nil {
		return nil, err
	}

	marketValue := land.Area.Mul(band.ValuePerUnit).Round(2)
	assessedValue := marketValue.Mul(band.LevelPercent).Div(hundred).Round(2)
	annual, basicAmt, sefAmt := splitTax(assessedValue, basicPct, sefPct)

	return s.repo.UpsertLand(ctx, &models.LandAssessment{
		RegistrationID:  registrationID,
		ConfigRef:       band.ID,
		Classification:  land.Classification,
		Area:            land.Area,
		MarketValue:     marketValue,
		AssessmentLevel: band.LevelPercent,
		AssessedValue:   assessedValue,
		BasicTaxAmount:  basicAmt,
		SEFTaxAmount:    sefAmt,
		AnnualTax:       annual,
	})
}

func (s *assessmentCalculator) assessBuilding(ctx context.Context, registrationID int64, building BuildingInput, basicPct, sefPct decimal.Decimal, asOf time.Time) (*models.BuildingAssessment, error) {
	costBand, err := s.resolver.Resolve(ctx, models.KindBuildingCost,
		BuildingCostKey(building.MaterialType, building.Classification), asOf)
	if err != nil {
		return nil, err
	}

	marketValue := building.FloorArea.Mul(costBand.UnitCost).Round(2)

	age := asOf.Year() - building.YearBuilt
	if age < 0 {
		age = 0
	}
	depreciationPct := decimal.NewFromInt(int64(age)).Mul(costBand.DepreciationRate)
	if depreciationPct.GreaterThan(hundred) {
		depreciationPct = hundred
	}
	depreciatedValue := marketValue.Mul(hundred.Sub(depreciationPct)).Div(hundred).Round(2)

	level := decimal.Zero
	assessedValue := decimal.Zero
	levelBand, err := s.resolver.ResolveBand(ctx, models.KindBuildingAssessmentLevel,
		building.Classification, depreciatedValue, asOf)
	switch {
	case err == nil:
		level = levelBand.LevelPercent
		assessedValue = depreciatedValue.Mul(level).Div(hundred).Round(2)
	case errors.Is(err, ErrConfigurationNotFound) && building.Force:
		// Escape hatch: persist with a zero level pending manual
		// correction.
		s.log.Warn("Building value outside configured bands, forced to zero level", map[string]interface{}{
			"registration_id":   registrationID,
			"classification":    building.Classification,
			"depreciated_value": depreciatedValue.String(),
		})
	case errors.Is(err, ErrConfigurationNotFound):
		return nil, fmt.Errorf("%w: classification=%s value=%s",
			ErrAssessmentOutOfRange, building.Classification, depreciatedValue.String())
	default:
		return nil, err
	}

	annual, basicAmt, sefAmt := splitTax(assessedValue, basicPct, sefPct)

	return s.repo.UpsertBuilding(ctx, &models.BuildingAssessment{
		RegistrationID:      registrationID,
		ConfigRef:           costBand.ID,
		MaterialType:        building.MaterialType,
		Classification:      building.Classification,
		FloorArea:           building.FloorArea,
		YearBuilt:           building.YearBuilt,
		UnitCost:            costBand.UnitCost,
		DepreciationPercent: depreciationPct,
		MarketValue:         marketValue,
		DepreciatedValue:    depreciatedValue,
		AssessmentLevel:     level,
		AssessedValue:       assessedValue,
		BasicTaxAmount:      basicAmt,
		SEFTaxAmount:        sefAmt,
		AnnualTax:           annual,
	})
}
