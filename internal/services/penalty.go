package services

import (
	"context"
	"time"

	"github.com/jdcastro/treasury/internal/logger"
	"github.com/jdcastro/treasury/internal/models"
	"github.com/jdcastro/treasury/internal/repository"
	"github.com/shopspring/decimal"
)

// PenaltyRunResult summarizes one penalty accrual run.
type PenaltyRunResult struct {
	UpdatedCount            int             `json:"updated_count"`
	TotalIncrementalPenalty decimal.Decimal `json:"total_incremental_penalty"`
	PenaltyPercentUsed      decimal.Decimal `json:"penalty_percent_used"`
}

// PenaltyEngine accrues monthly penalties on overdue installments. It is
// a pure function of the stored state, the as-of date, and the resolved
// penalty rate, with a monotonic merge: days late and penalty amount
// never decrease, so the engine is safe to invoke repeatedly, on any
// subset of rows, and after partial failure.
type PenaltyEngine interface {
	// AccruePenalties updates every unpaid installment in the given
	// owner kind whose due date precedes asOf, and appends one run-log
	// row. The penalty rate comes from the domain's penalty_rate
	// configuration.
	AccruePenalties(ctx context.Context, kind models.OwnerKind, asOf time.Time) (*PenaltyRunResult, error)
}

type penaltyEngine struct {
	resolver     ConfigResolver
	installments repository.InstallmentRepository
	log          *logger.Logger
}

// NewPenaltyEngine creates a new PenaltyEngine.
func NewPenaltyEngine(resolver ConfigResolver, installments repository.InstallmentRepository, log *logger.Logger) PenaltyEngine {
	return &penaltyEngine{resolver: resolver, installments: installments, log: log}
}

// DaysLate counts whole days between a due date and a later as-of date.
// Dates are compared at day granularity; a same-day invocation is not
// late.
func DaysLate(dueDate, asOf time.Time) int {
	due := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.UTC)
	at := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	if !at.After(due) {
		return 0
	}
	return int(at.Sub(due).Hours() / 24)
}

// MonthsLate converts days late into penalty months, where any fraction
// of a 30-day month counts as a full month.
func MonthsLate(daysLate int) int {
	if daysLate <= 0 {
		return 0
	}
	return (daysLate + 29) / 30
}

func (s *penaltyEngine) AccruePenalties(ctx context.Context, kind models.OwnerKind, asOf time.Time) (*PenaltyRunResult, error) {
	rate, err := s.resolver.Resolve(ctx, models.KindPenaltyRate, kind.Domain(), asOf)
	if err != nil {
		return nil, err
	}
	percent := rate.RatePercent

	candidates, err := s.installments.ListAccruable(ctx, kind, asOf)
	if err != nil {
		return nil, err
	}

	result := &PenaltyRunResult{
		TotalIncrementalPenalty: decimal.Zero,
		PenaltyPercentUsed:      percent,
	}

	for i := range candidates {
		inst := &candidates[i]

		// Never regress, even when invoked with an earlier as-of date
		// than a previous run.
		daysLate := DaysLate(inst.DueDate, asOf)
		if daysLate < inst.DaysLate {
			daysLate = inst.DaysLate
		}
		months := MonthsLate(daysLate)

		newPenalty := inst.BaseAmount.
			Mul(percent).Div(hundred).
			Mul(decimal.NewFromInt(int64(months))).
			Round(2)
		if !newPenalty.GreaterThan(inst.PenaltyAmount) {
			continue
		}

		// The conditional update re-checks the monotonic guard, so a
		// concurrent run or payment between our read and this write
		// cannot be overwritten.
		applied, err := s.installments.ApplyPenalty(ctx, inst.ID, daysLate, newPenalty, percent)
		if err != nil {
			return nil, err
		}
		if applied {
			result.UpdatedCount++
			result.TotalIncrementalPenalty = result.TotalIncrementalPenalty.Add(newPenalty.Sub(inst.PenaltyAmount))
		}
	}

	if err := s.installments.AppendRunLog(ctx, &models.PenaltyRunLog{
		RunDate:                 asOf,
		Domain:                  kind.Domain(),
		RowsUpdated:             result.UpdatedCount,
		TotalIncrementalPenalty: result.TotalIncrementalPenalty,
		PenaltyPercentUsed:      percent,
	}); err != nil {
		return nil, err
	}

	s.log.Info("Penalty run completed", map[string]interface{}{
		"domain":              kind.Domain(),
		"as_of":               asOf.Format("2006-01-02"),
		"candidates":          len(candidates),
		"updated":             result.UpdatedCount,
		"incremental_penalty": result.TotalIncrementalPenalty.String(),
		"percent":             percent.String(),
	})
	return result, nil
}
