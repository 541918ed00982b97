package services

import (
	"context"
	"testing"
	"time"

	"github.com/jdcastro/treasury/internal/logger"
	"github.com/jdcastro/treasury/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newCalculatorFixture wires a calculator over fresh mocks with the
// basic and SEF rates both resolving to 1%.
func newCalculatorFixture(ctx context.Context, asOf time.Time) (*MockConfigResolver, *MockAssessmentRepository, AssessmentCalculator) {
	mockResolver := new(MockConfigResolver)
	mockRepo := new(MockAssessmentRepository)
	log := logger.New("test")
	calc := NewAssessmentCalculator(mockResolver, mockRepo, log)

	mockResolver.On("Resolve", ctx, models.KindTaxRate, models.TaxRateBasic, asOf).
		Return(&models.ConfigurationRecord{ID: 1, RatePercent: decimal.NewFromInt(1)}, nil)
	mockResolver.On("Resolve", ctx, models.KindTaxRate, models.TaxRateSEF, asOf).
		Return(&models.ConfigurationRecord{ID: 2, RatePercent: decimal.NewFromInt(1)}, nil)

	return mockResolver, mockRepo, calc
}

func TestAssess_LandOnly(t *testing.T) {
	// Arrange
	ctx := context.Background()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mockResolver, mockRepo, calc := newCalculatorFixture(ctx, asOf)

	mockRepo.On("GetRegistrationStatus", ctx, int64(10)).
		Return(models.RegistrationPending, nil)
	mockResolver.On("Resolve", ctx, models.KindLandValue, "residential", asOf).
		Return(&models.ConfigurationRecord{
			ID:           31,
			ValuePerUnit: decimal.NewFromInt(1000),
			LevelPercent: decimal.NewFromInt(20),
		}, nil)

	var storedLand *models.LandAssessment
	mockRepo.On("UpsertLand", ctx, mock.AnythingOfType("*models.LandAssessment")).
		Run(func(args mock.Arguments) {
			storedLand = args.Get(1).(*models.LandAssessment)
		}).
		Return(&models.LandAssessment{
			RegistrationID: 10,
			AnnualTax:      decimal.NewFromInt(400),
		}, nil)

	var storedTotals *models.PropertyTotals
	mockRepo.On("UpsertTotals", ctx, mock.AnythingOfType("*models.PropertyTotals")).
		Run(func(args mock.Arguments) {
			storedTotals = args.Get(1).(*models.PropertyTotals)
		}).
		Return(&models.PropertyTotals{
			RegistrationID: 10,
			TotalAnnualTax: decimal.NewFromInt(400),
			Status:         models.RegistrationAssessed,
		}, nil)
	mockRepo.On("AdvanceRegistrationStatus", ctx, int64(10), models.RegistrationAssessed).
		Return(nil)

	// Act: 100 sqm at 1,000/sqm, 20% level, 1% basic + 1% SEF.
	totals, err := calc.Assess(ctx, 10, LandInput{
		Classification: "residential",
		Area:           decimal.NewFromInt(100),
	}, nil, asOf)

	// Assert
	require.NoError(t, err)
	assert.True(t, totals.TotalAnnualTax.Equal(decimal.NewFromInt(400)))

	require.NotNil(t, storedLand)
	assert.Equal(t, int64(31), storedLand.ConfigRef)
	assert.True(t, storedLand.MarketValue.Equal(decimal.NewFromInt(100000)))
	assert.True(t, storedLand.AssessedValue.Equal(decimal.NewFromInt(20000)))
	assert.True(t, storedLand.AnnualTax.Equal(decimal.NewFromInt(400)))
	assert.True(t, storedLand.BasicTaxAmount.Equal(decimal.NewFromInt(200)))
	assert.True(t, storedLand.SEFTaxAmount.Equal(decimal.NewFromInt(200)))

	require.NotNil(t, storedTotals)
	assert.Equal(t, models.RegistrationAssessed, storedTotals.Status)
	mockRepo.AssertExpectations(t)
	mockResolver.AssertExpectations(t)
}

func TestAssess_WithBuildingDepreciation(t *testing.T) {
	// Arrange
	ctx := context.Background()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mockResolver, mockRepo, calc := newCalculatorFixture(ctx, asOf)

	mockRepo.On("GetRegistrationStatus", ctx, int64(20)).
		Return(models.RegistrationPending, nil)
	mockResolver.On("Resolve", ctx, models.KindLandValue, "residential", asOf).
		Return(&models.ConfigurationRecord{
			ID:           31,
			ValuePerUnit: decimal.NewFromInt(1000),
			LevelPercent: decimal.NewFromInt(20),
		}, nil)
	mockResolver.On("Resolve", ctx, models.KindBuildingCost, "concrete:residential", asOf).
		Return(&models.ConfigurationRecord{
			ID:               32,
			UnitCost:         decimal.NewFromInt(5000),
			DepreciationRate: decimal.NewFromInt(2),
		}, nil)
	// 50 sqm * 5,000 = 250,000 market; 10 years at 2%/yr = 20%
	// depreciation leaves 200,000.
	mockResolver.On("ResolveBand", ctx, models.KindBuildingAssessmentLevel, "residential",
		mock.MatchedBy(func(v decimal.Decimal) bool { return v.Equal(decimal.NewFromInt(200000)) }), asOf).
		Return(&models.ConfigurationRecord{
			ID:           33,
			LevelPercent: decimal.NewFromInt(40),
		}, nil)

	mockRepo.On("UpsertLand", ctx, mock.AnythingOfType("*models.LandAssessment")).
		Return(&models.LandAssessment{RegistrationID: 20, AnnualTax: decimal.NewFromInt(400)}, nil)

	var storedBuilding *models.BuildingAssessment
	mockRepo.On("UpsertBuilding", ctx, mock.AnythingOfType("*models.BuildingAssessment")).
		Run(func(args mock.Arguments) {
			storedBuilding = args.Get(1).(*models.BuildingAssessment)
		}).
		Return(&models.BuildingAssessment{RegistrationID: 20, AnnualTax: decimal.NewFromInt(1600)}, nil)

	var storedTotals *models.PropertyTotals
	mockRepo.On("UpsertTotals", ctx, mock.AnythingOfType("*models.PropertyTotals")).
		Run(func(args mock.Arguments) {
			storedTotals = args.Get(1).(*models.PropertyTotals)
		}).
		Return(&models.PropertyTotals{RegistrationID: 20, TotalAnnualTax: decimal.NewFromInt(2000)}, nil)
	mockRepo.On("AdvanceRegistrationStatus", ctx, int64(20), models.RegistrationAssessed).
		Return(nil)

	// Act
	_, err := calc.Assess(ctx, 20, LandInput{
		Classification: "residential",
		Area:           decimal.NewFromInt(100),
	}, &BuildingInput{
		MaterialType:   "concrete",
		Classification: "residential",
		FloorArea:      decimal.NewFromInt(50),
		YearBuilt:      2015,
	}, asOf)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, storedBuilding)
	assert.Equal(t, int64(32), storedBuilding.ConfigRef)
	assert.True(t, storedBuilding.MarketValue.Equal(decimal.NewFromInt(250000)))
	assert.True(t, storedBuilding.DepreciationPercent.Equal(decimal.NewFromInt(20)))
	assert.True(t, storedBuilding.DepreciatedValue.Equal(decimal.NewFromInt(200000)))
	assert.True(t, storedBuilding.AssessedValue.Equal(decimal.NewFromInt(80000)))
	assert.True(t, storedBuilding.AnnualTax.Equal(decimal.NewFromInt(1600)))
	assert.True(t, storedBuilding.BasicTaxAmount.Equal(decimal.NewFromInt(800)))
	assert.True(t, storedBuilding.SEFTaxAmount.Equal(decimal.NewFromInt(800)))

	require.NotNil(t, storedTotals)
	assert.True(t, storedTotals.LandAnnualTax.Equal(decimal.NewFromInt(400)))
	assert.True(t, storedTotals.BuildingAnnualTax.Equal(decimal.NewFromInt(1600)))
	assert.True(t, storedTotals.TotalAnnualTax.Equal(decimal.NewFromInt(2000)))
	mockRepo.AssertExpectations(t)
	mockResolver.AssertExpectations(t)
}

func TestAssess_DepreciationCappedAtFullValue(t *testing.T) {
	// Arrange
	ctx := context.Background()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mockResolver, mockRepo, calc := newCalculatorFixture(ctx, asOf)

	mockRepo.On("GetRegistrationStatus", ctx, int64(21)).
		Return(models.RegistrationPending, nil)
	mockResolver.On("Resolve", ctx, models.KindLandValue, "residential", asOf).
		Return(&models.ConfigurationRecord{ID: 31, ValuePerUnit: decimal.NewFromInt(1000), LevelPercent: decimal.NewFromInt(20)}, nil)
	// 80 years at 2%/yr would be 160%; the clamp holds it at 100%.
	mockResolver.On("Resolve", ctx, models.KindBuildingCost, "wood:residential", asOf).
		Return(&models.ConfigurationRecord{ID: 34, UnitCost: decimal.NewFromInt(2000), DepreciationRate: decimal.NewFromInt(2)}, nil)
	mockResolver.On("ResolveBand", ctx, models.KindBuildingAssessmentLevel, "residential",
		mock.MatchedBy(func(v decimal.Decimal) bool { return v.IsZero() }), asOf).
		Return(&models.ConfigurationRecord{ID: 35, LevelPercent: decimal.NewFromInt(25)}, nil)

	mockRepo.On("UpsertLand", ctx, mock.AnythingOfType("*models.LandAssessment")).
		Return(&models.LandAssessment{RegistrationID: 21, AnnualTax: decimal.NewFromInt(400)}, nil)

	var storedBuilding *models.BuildingAssessment
	mockRepo.On("UpsertBuilding", ctx, mock.AnythingOfType("*models.BuildingAssessment")).
		Run(func(args mock.Arguments) {
			storedBuilding = args.Get(1).(*models.BuildingAssessment)
		}).
		Return(&models.BuildingAssessment{RegistrationID: 21, AnnualTax: decimal.Zero}, nil)
	mockRepo.On("UpsertTotals", ctx, mock.AnythingOfType("*models.PropertyTotals")).
		Return(&models.PropertyTotals{RegistrationID: 21}, nil)
	mockRepo.On("AdvanceRegistrationStatus", ctx, int64(21), models.RegistrationAssessed).
		Return(nil)

	// Act
	_, err := calc.Assess(ctx, 21, LandInput{
		Classification: "residential",
		Area:           decimal.NewFromInt(100),
	}, &BuildingInput{
		MaterialType:   "wood",
		Classification: "residential",
		FloorArea:      decimal.NewFromInt(40),
		YearBuilt:      1945,
	}, asOf)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, storedBuilding)
	assert.True(t, storedBuilding.DepreciationPercent.Equal(decimal.NewFromInt(100)))
	assert.True(t, storedBuilding.DepreciatedValue.IsZero())
	assert.True(t, storedBuilding.AnnualTax.IsZero())
}

func TestAssess_MissingSEFRate(t *testing.T) {
	// Arrange
	mockResolver := new(MockConfigResolver)
	mockRepo := new(MockAssessmentRepository)
	log := logger.New("test")
	calc := NewAssessmentCalculator(mockResolver, mockRepo, log)

	ctx := context.Background()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mockRepo.On("GetRegistrationStatus", ctx, int64(10)).
		Return(models.RegistrationPending, nil)
	mockResolver.On("Resolve", ctx, models.KindTaxRate, models.TaxRateBasic, asOf).
		Return(&models.ConfigurationRecord{ID: 1, RatePercent: decimal.NewFromInt(1)}, nil)
	mockResolver.On("Resolve", ctx, models.KindTaxRate, models.TaxRateSEF, asOf).
		Return(nil, ErrConfigurationNotFound)

	// Act
	totals, err := calc.Assess(ctx, 10, LandInput{
		Classification: "residential",
		Area:           decimal.NewFromInt(100),
	}, nil, asOf)

	// Assert
	assert.Error(t, err)
	assert.Nil(t, totals)
	assert.ErrorIs(t, err, ErrTaxRateUnavailable)
	mockRepo.AssertNotCalled(t, "UpsertLand")
}

func TestAssess_BuildingValueOutsideBands(t *testing.T) {
	// Arrange
	ctx := context.Background()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mockResolver, mockRepo, calc := newCalculatorFixture(ctx, asOf)

	mockRepo.On("GetRegistrationStatus", ctx, int64(22)).
		Return(models.RegistrationPending, nil)
	mockResolver.On("Resolve", ctx, models.KindLandValue, "residential", asOf).
		Return(&models.ConfigurationRecord{ID: 31, ValuePerUnit: decimal.NewFromInt(1000), LevelPercent: decimal.NewFromInt(20)}, nil)
	mockResolver.On("Resolve", ctx, models.KindBuildingCost, "concrete:residential", asOf).
		Return(&models.ConfigurationRecord{ID: 32, UnitCost: decimal.NewFromInt(5000), DepreciationRate: decimal.NewFromInt(2)}, nil)
	mockResolver.On("ResolveBand", ctx, models.KindBuildingAssessmentLevel, "residential",
		mock.AnythingOfType("decimal.Decimal"), asOf).
		Return(nil, ErrConfigurationNotFound)

	mockRepo.On("UpsertLand", ctx, mock.AnythingOfType("*models.LandAssessment")).
		Return(&models.LandAssessment{RegistrationID: 22, AnnualTax: decimal.NewFromInt(400)}, nil)

	// Act
	totals, err := calc.Assess(ctx, 22, LandInput{
		Classification: "residential",
		Area:           decimal.NewFromInt(100),
	}, &BuildingInput{
		MaterialType:   "concrete",
		Classification: "residential",
		FloorArea:      decimal.NewFromInt(50),
		YearBuilt:      2015,
	}, asOf)

	// Assert
	assert.Error(t, err)
	assert.Nil(t, totals)
	assert.ErrorIs(t, err, ErrAssessmentOutOfRange)
	mockRepo.AssertNotCalled(t, "UpsertBuilding")
}

func TestAssess_BuildingValueOutsideBands_Forced(t *testing.T) {
	// Arrange
	ctx := context.Background()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mockResolver, mockRepo, calc := newCalculatorFixture(ctx, asOf)

	mockRepo.On("GetRegistrationStatus", ctx, int64(23)).
		Return(models.RegistrationPending, nil)
	mockResolver.On("Resolve", ctx, models.KindLandValue, "residential", asOf).
		Return(&models.ConfigurationRecord{ID: 31, ValuePerUnit: decimal.NewFromInt(1000), LevelPercent: decimal.NewFromInt(20)}, nil)
	mockResolver.On("Resolve", ctx, models.KindBuildingCost, "concrete:residential", asOf).
		Return(&models.ConfigurationRecord{ID: 32, UnitCost: decimal.NewFromInt(5000), DepreciationRate: decimal.NewFromInt(2)}, nil)
	mockResolver.On("ResolveBand", ctx, models.KindBuildingAssessmentLevel, "residential",
		mock.AnythingOfType("decimal.Decimal"), asOf).
		Return(nil, ErrConfigurationNotFound)

	mockRepo.On("UpsertLand", ctx, mock.AnythingOfType("*models.LandAssessment")).
		Return(&models.LandAssessment{RegistrationID: 23, AnnualTax: decimal.NewFromInt(400)}, nil)

	var storedBuilding *models.BuildingAssessment
	mockRepo.On("UpsertBuilding", ctx, mock.AnythingOfType("*models.BuildingAssessment")).
		Run(func(args mock.Arguments) {
			storedBuilding = args.Get(1).(*models.BuildingAssessment)
		}).
		Return(&models.BuildingAssessment{RegistrationID: 23, AnnualTax: decimal.Zero}, nil)
	mockRepo.On("UpsertTotals", ctx, mock.AnythingOfType("*models.PropertyTotals")).
		Return(&models.PropertyTotals{RegistrationID: 23}, nil)
	mockRepo.On("AdvanceRegistrationStatus", ctx, int64(23), models.RegistrationAssessed).
		Return(nil)

	// Act
	_, err := calc.Assess(ctx, 23, LandInput{
		Classification: "residential",
		Area:           decimal.NewFromInt(100),
	}, &BuildingInput{
		MaterialType:   "concrete",
		Classification: "residential",
		FloorArea:      decimal.NewFromInt(50),
		YearBuilt:      2015,
		Force:          true,
	}, asOf)

	// Assert: stored with a zero level pending manual correction.
	require.NoError(t, err)
	require.NotNil(t, storedBuilding)
	assert.True(t, storedBuilding.AssessmentLevel.IsZero())
	assert.True(t, storedBuilding.AssessedValue.IsZero())
	assert.True(t, storedBuilding.MarketValue.Equal(decimal.NewFromInt(250000)))
	mockRepo.AssertExpectations(t)
}

func TestAssess_ApprovedStatusNotRegressed(t *testing.T) {
	// Arrange
	ctx := context.Background()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mockResolver, mockRepo, calc := newCalculatorFixture(ctx, asOf)

	mockRepo.On("GetRegistrationStatus", ctx, int64(30)).
		Return(models.RegistrationApproved, nil)
	mockResolver.On("Resolve", ctx, models.KindLandValue, "residential", asOf).
		Return(&models.ConfigurationRecord{ID: 31, ValuePerUnit: decimal.NewFromInt(1000), LevelPercent: decimal.NewFromInt(20)}, nil)
	mockRepo.On("UpsertLand", ctx, mock.AnythingOfType("*models.LandAssessment")).
		Return(&models.LandAssessment{RegistrationID: 30, AnnualTax: decimal.NewFromInt(400)}, nil)

	var storedTotals *models.PropertyTotals
	mockRepo.On("UpsertTotals", ctx, mock.AnythingOfType("*models.PropertyTotals")).
		Run(func(args mock.Arguments) {
			storedTotals = args.Get(1).(*models.PropertyTotals)
		}).
		Return(&models.PropertyTotals{RegistrationID: 30, Status: models.RegistrationApproved}, nil)
	mockRepo.On("AdvanceRegistrationStatus", ctx, int64(30), models.RegistrationAssessed).
		Return(nil)

	// Act
	_, err := calc.Assess(ctx, 30, LandInput{
		Classification: "residential",
		Area:           decimal.NewFromInt(100),
	}, nil, asOf)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, storedTotals)
	assert.Equal(t, models.RegistrationApproved, storedTotals.Status)
}

func TestAssess_RegistrationNotFound(t *testing.T) {
	// Arrange
	mockResolver := new(MockConfigResolver)
	mockRepo := new(MockAssessmentRepository)
	log := logger.New("test")
	calc := NewAssessmentCalculator(mockResolver, mockRepo, log)

	ctx := context.Background()
	mockRepo.On("GetRegistrationStatus", ctx, int64(404)).
		Return(models.RegistrationStatus(""), nil)

	// Act
	totals, err := calc.Assess(ctx, 404, LandInput{
		Classification: "residential",
		Area:           decimal.NewFromInt(100),
	}, nil, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	// Assert
	assert.Error(t, err)
	assert.Nil(t, totals)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestSplitTax_SumsExactly(t *testing.T) {
	// Arrange: an assessed value whose proportional split needs
	// rounding.
	assessed := decimal.RequireFromString("33333.33")
	basicPct := decimal.NewFromInt(1)
	sefPct := decimal.NewFromInt(1)

	// Act
	annual, basicAmt, sefAmt := splitTax(assessed, basicPct, sefPct)

	// Assert
	assert.True(t, basicAmt.Add(sefAmt).Equal(annual))
	assert.True(t, annual.Equal(decimal.RequireFromString("666.67")))
}
