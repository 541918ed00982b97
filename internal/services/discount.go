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

// Minimum lead time before the due date for the per-quarter
// early-payment discount.
const earlyPaymentLeadDays = 15

// DiscountQuote is the evaluator's answer at quote time. The discount
// applies only to the base tax portion; accrued penalties are charged in
// full.
type DiscountQuote struct {
	Eligible       bool            `json:"eligible"`
	Percent        decimal.Decimal `json:"percent"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalDue       decimal.Decimal `json:"total_due"`
}

// DiscountDefaults are the fixed fallback percentages used when no
// discount_rate configuration matches.
type DiscountDefaults struct {
	BusinessQuarterlyPercent decimal.Decimal
	RPTAnnualPercent         decimal.Decimal
}

// DiscountEvaluator determines eligibility and magnitude of
// early-payment and annual-prepayment discounts. It is read-only;
// quoting never mutates installments.
type DiscountEvaluator interface {
	// QuoteQuarterly quotes the early-payment discount on a single
	// installment. Eligible only while the installment is unpaid, has no
	// accrued penalty, and asOf is at least 15 days before the due date.
	QuoteQuarterly(ctx context.Context, installmentID int64, asOf time.Time) (*DiscountQuote, error)

	// QuoteAnnual quotes the annual-prepayment discount for a property
	// owner's full year. Real-property tax only: eligible when asOf is
	// in January of the installment year, every installment in the group
	// is unpaid, and none carries a penalty.
	QuoteAnnual(ctx context.Context, registrationID int64, year int, asOf time.Time) (*DiscountQuote, error)
}

type discountEvaluator struct {
	resolver     ConfigResolver
	installments repository.InstallmentRepository
	defaults     DiscountDefaults
	log          *logger.Logger
}

// NewDiscountEvaluator creates a new DiscountEvaluator.
func NewDiscountEvaluator(resolver ConfigResolver, installments repository.InstallmentRepository, defaults DiscountDefaults, log *logger.Logger) DiscountEvaluator {
	return &discountEvaluator{resolver: resolver, installments: installments, defaults: defaults, log: log}
}

func (s *discountEvaluator) QuoteQuarterly(ctx context.Context, installmentID int64, asOf time.Time) (*DiscountQuote, error) {
	inst, err := s.installments.Get(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrInstallmentNotFound, installmentID)
	}

	eligible := inst.PaymentStatus != models.PaymentPaid &&
		inst.PenaltyAmount.IsZero() &&
		!asOf.After(inst.DueDate.AddDate(0, 0, -earlyPaymentLeadDays))
	if !eligible {
		return ineligibleQuote(inst.BaseAmount, inst.PenaltyAmount), nil
	}

	percent, err := s.quarterlyPercent(ctx, inst.OwnerKind, asOf)
	if err != nil {
		return nil, err
	}

	return quoteFor(inst.BaseAmount, inst.PenaltyAmount, percent), nil
}

// quarterlyPercent resolves the per-quarter discount rate for the
// installment's domain. The business domain falls back to a fixed
// default when no configuration matches; the real-property domain quotes
// no discount without configuration.
func (s *discountEvaluator) quarterlyPercent(ctx context.Context, kind models.OwnerKind, asOf time.Time) (decimal.Decimal, error) {
	key := models.DiscountRPTQuarterly
	if kind == models.OwnerBusiness {
		key = models.DiscountBusinessQuarterly
	}

	rec, err := s.resolver.Resolve(ctx, models.KindDiscountRate, key, asOf)
	if err != nil {
		if !errors.Is(err, ErrConfigurationNotFound) {
			return decimal.Zero, err
		}
		if kind == models.OwnerBusiness {
			return s.defaults.BusinessQuarterlyPercent, nil
		}
		return decimal.Zero, nil
	}
	return rec.RatePercent, nil
}

func (s *discountEvaluator) QuoteAnnual(ctx context.Context, registrationID int64, year int, asOf time.Time) (*DiscountQuote, error) {
	group, err := s.installments.ListByOwnerYear(ctx, models.OwnerProperty, registrationID, year)
	if err != nil {
		return nil, err
	}
	if len(group) == 0 {
		return nil, fmt.Errorf("%w: registration=%d year=%d", ErrInstallmentNotFound, registrationID, year)
	}

	baseSum := decimal.Zero
	penaltySum := decimal.Zero
	eligible := asOf.Year() == year && asOf.Month() == time.January
	for i := range group {
		inst := &group[i]
		baseSum = baseSum.Add(inst.BaseAmount)
		penaltySum = penaltySum.Add(inst.PenaltyAmount)
		if inst.PaymentStatus == models.PaymentPaid || !inst.PenaltyAmount.IsZero() {
			eligible = false
		}
	}
	if !eligible {
		return ineligibleQuote(baseSum, penaltySum), nil
	}

	percent := s.defaults.RPTAnnualPercent
	rec, err := s.resolver.Resolve(ctx, models.KindDiscountRate, models.DiscountRPTAnnual, asOf)
	switch {
	case err == nil:
		percent = rec.RatePercent
	case errors.Is(err, ErrConfigurationNotFound):
		// January fallback default.
	default:
		return nil, err
	}

	return quoteFor(baseSum, penaltySum, percent), nil
}

func ineligibleQuote(base, penalty decimal.Decimal) *DiscountQuote {
	return &DiscountQuote{
		Eligible:       false,
		Percent:        decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalDue:       base.Add(penalty),
	}
}

// quoteFor applies the discount to the base portion only:
// total = base * (1 - percent/100) + penalties.
func quoteFor(base, penalty, percent decimal.Decimal) *DiscountQuote {
	discount := base.Mul(percent).Div(hundred).Round(2)
	return &DiscountQuote{
		Eligible:       true,
		Percent:        percent,
		DiscountAmount: discount,
		TotalDue:       base.Sub(discount).Add(penalty),
	}
}
