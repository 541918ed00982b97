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

func TestDaysLate(t *testing.T) {
	due := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		asOf time.Time
		want int
	}{
		{"on due date", time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC), 0},
		{"before due date", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 0},
		{"one day late", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), 1},
		{"ninety-five days late", time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC), 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysLate(due, tt.asOf))
		})
	}
}

func TestMonthsLate(t *testing.T) {
	// Any fraction of a 30-day month counts as a full month.
	assert.Equal(t, 0, MonthsLate(0))
	assert.Equal(t, 1, MonthsLate(1))
	assert.Equal(t, 1, MonthsLate(30))
	assert.Equal(t, 2, MonthsLate(31))
	assert.Equal(t, 4, MonthsLate(95))
}

func newPenaltyFixture() (*MockConfigResolver, *MockInstallmentRepository, PenaltyEngine) {
	mockResolver := new(MockConfigResolver)
	mockInstallments := new(MockInstallmentRepository)
	log := logger.New("test")
	engine := NewPenaltyEngine(mockResolver, mockInstallments, log)
	return mockResolver, mockInstallments, engine
}

func TestAccruePenalties_OverdueInstallment(t *testing.T) {
	// Arrange
	mockResolver, mockInstallments, engine := newPenaltyFixture()
	ctx := context.Background()
	asOf := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	mockResolver.On("Resolve", ctx, models.KindPenaltyRate, "rpt", asOf).
		Return(&models.ConfigurationRecord{ID: 5, RatePercent: decimal.NewFromInt(2)}, nil)

	// Q1 base of 1,000, due Mar 31, 95 days late: 4 penalty months at
	// 2% is an 80.00 penalty.
	overdue := models.Installment{
		ID:            1,
		OwnerKind:     models.OwnerProperty,
		OwnerID:       10,
		Quarter:       1,
		Year:          2025,
		DueDate:       time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		BaseAmount:    decimal.NewFromInt(1000),
		PenaltyAmount: decimal.Zero,
		PaymentStatus: models.PaymentPending,
	}
	mockInstallments.On("ListAccruable", ctx, models.OwnerProperty, asOf).
		Return([]models.Installment{overdue}, nil)
	mockInstallments.On("ApplyPenalty", ctx, int64(1), 95,
		mock.MatchedBy(func(p decimal.Decimal) bool { return p.Equal(decimal.NewFromInt(80)) }),
		mock.MatchedBy(func(p decimal.Decimal) bool { return p.Equal(decimal.NewFromInt(2)) })).
		Return(true, nil)

	var runLog *models.PenaltyRunLog
	mockInstallments.On("AppendRunLog", ctx, mock.AnythingOfType("*models.PenaltyRunLog")).
		Run(func(args mock.Arguments) {
			runLog = args.Get(1).(*models.PenaltyRunLog)
		}).
		Return(nil)

	// Act
	result, err := engine.AccruePenalties(ctx, models.OwnerProperty, asOf)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.True(t, result.TotalIncrementalPenalty.Equal(decimal.NewFromInt(80)))
	assert.True(t, result.PenaltyPercentUsed.Equal(decimal.NewFromInt(2)))

	require.NotNil(t, runLog)
	assert.Equal(t, "rpt", runLog.Domain)
	assert.Equal(t, 1, runLog.RowsUpdated)
	assert.True(t, runLog.TotalIncrementalPenalty.Equal(decimal.NewFromInt(80)))
	mockInstallments.AssertExpectations(t)
	mockResolver.AssertExpectations(t)
}

func TestAccruePenalties_SecondRunSameDateIsNoOp(t *testing.T) {
	// Arrange
	mockResolver, mockInstallments, engine := newPenaltyFixture()
	ctx := context.Background()
	asOf := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	mockResolver.On("Resolve", ctx, models.KindPenaltyRate, "rpt", asOf).
		Return(&models.ConfigurationRecord{ID: 5, RatePercent: decimal.NewFromInt(2)}, nil)

	// The first run already stored the full penalty for this date.
	accrued := models.Installment{
		ID:            1,
		DueDate:       time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		BaseAmount:    decimal.NewFromInt(1000),
		PenaltyAmount: decimal.NewFromInt(80),
		DaysLate:      95,
		PaymentStatus: models.PaymentOverdue,
	}
	mockInstallments.On("ListAccruable", ctx, models.OwnerProperty, asOf).
		Return([]models.Installment{accrued}, nil)
	mockInstallments.On("AppendRunLog", ctx, mock.AnythingOfType("*models.PenaltyRunLog")).
		Return(nil)

	// Act
	result, err := engine.AccruePenalties(ctx, models.OwnerProperty, asOf)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, result.UpdatedCount)
	assert.True(t, result.TotalIncrementalPenalty.IsZero())
	mockInstallments.AssertNotCalled(t, "ApplyPenalty")
}

func TestAccruePenalties_EarlierAsOfNeverRegresses(t *testing.T) {
	// Arrange
	mockResolver, mockInstallments, engine := newPenaltyFixture()
	ctx := context.Background()
	// A month before the state already stored on the row.
	asOf := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)

	mockResolver.On("Resolve", ctx, models.KindPenaltyRate, "rpt", asOf).
		Return(&models.ConfigurationRecord{ID: 5, RatePercent: decimal.NewFromInt(2)}, nil)

	accrued := models.Installment{
		ID:            1,
		DueDate:       time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		BaseAmount:    decimal.NewFromInt(1000),
		PenaltyAmount: decimal.NewFromInt(80),
		DaysLate:      95,
		PaymentStatus: models.PaymentOverdue,
	}
	mockInstallments.On("ListAccruable", ctx, models.OwnerProperty, asOf).
		Return([]models.Installment{accrued}, nil)
	mockInstallments.On("AppendRunLog", ctx, mock.AnythingOfType("*models.PenaltyRunLog")).
		Return(nil)

	// Act
	result, err := engine.AccruePenalties(ctx, models.OwnerProperty, asOf)

	// Assert: days late and penalty stay at their stored maxima.
	require.NoError(t, err)
	assert.Equal(t, 0, result.UpdatedCount)
	mockInstallments.AssertNotCalled(t, "ApplyPenalty")
}

func TestAccruePenalties_BusinessDomainRate(t *testing.T) {
	// Arrange
	mockResolver, mockInstallments, engine := newPenaltyFixture()
	ctx := context.Background()
	asOf := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	mockResolver.On("Resolve", ctx, models.KindPenaltyRate, "business", asOf).
		Return(&models.ConfigurationRecord{ID: 6, RatePercent: decimal.NewFromInt(3)}, nil)

	// 31 days late rounds up to 2 penalty months: 500 * 3% * 2 = 30.
	overdue := models.Installment{
		ID:            9,
		OwnerKind:     models.OwnerBusiness,
		DueDate:       time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		BaseAmount:    decimal.NewFromInt(500),
		PenaltyAmount: decimal.Zero,
		PaymentStatus: models.PaymentPending,
	}
	mockInstallments.On("ListAccruable", ctx, models.OwnerBusiness, asOf).
		Return([]models.Installment{overdue}, nil)
	mockInstallments.On("ApplyPenalty", ctx, int64(9), 31,
		mock.MatchedBy(func(p decimal.Decimal) bool { return p.Equal(decimal.NewFromInt(30)) }),
		mock.MatchedBy(func(p decimal.Decimal) bool { return p.Equal(decimal.NewFromInt(3)) })).
		Return(true, nil)
	mockInstallments.On("AppendRunLog", ctx, mock.AnythingOfType("*models.PenaltyRunLog")).
		Return(nil)

	// Act
	result, err := engine.AccruePenalties(ctx, models.OwnerBusiness, asOf)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.True(t, result.TotalIncrementalPenalty.Equal(decimal.NewFromInt(30)))
	mockInstallments.AssertExpectations(t)
}

func TestAccruePenalties_MissingRateBlocksRun(t *testing.T) {
	// Arrange
	mockResolver, mockInstallments, engine := newPenaltyFixture()
	ctx := context.Background()
	asOf := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	mockResolver.On("Resolve", ctx, models.KindPenaltyRate, "rpt", asOf).
		Return(nil, ErrConfigurationNotFound)

	// Act
	result, err := engine.AccruePenalties(ctx, models.OwnerProperty, asOf)

	// Assert
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrConfigurationNotFound)
	mockInstallments.AssertNotCalled(t, "ListAccruable")
	mockInstallments.AssertNotCalled(t, "AppendRunLog")
}

func TestAccruePenalties_LostRaceNotCounted(t *testing.T) {
	// Arrange
	mockResolver, mockInstallments, engine := newPenaltyFixture()
	ctx := context.Background()
	asOf := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	mockResolver.On("Resolve", ctx, models.KindPenaltyRate, "rpt", asOf).
		Return(&models.ConfigurationRecord{ID: 5, RatePercent: decimal.NewFromInt(2)}, nil)

	overdue := models.Installment{
		ID:            1,
		DueDate:       time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		BaseAmount:    decimal.NewFromInt(1000),
		PenaltyAmount: decimal.Zero,
		PaymentStatus: models.PaymentPending,
	}
	mockInstallments.On("ListAccruable", ctx, models.OwnerProperty, asOf).
		Return([]models.Installment{overdue}, nil)
	// A concurrent payment or run won between our read and the write.
	mockInstallments.On("ApplyPenalty", ctx, int64(1), 95,
		mock.AnythingOfType("decimal.Decimal"), mock.AnythingOfType("decimal.Decimal")).
		Return(false, nil)
	mockInstallments.On("AppendRunLog", ctx, mock.AnythingOfType("*models.PenaltyRunLog")).
		Return(nil)

	// Act
	result, err := engine.AccruePenalties(ctx, models.OwnerProperty, asOf)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, result.UpdatedCount)
	assert.True(t, result.TotalIncrementalPenalty.IsZero())
}
