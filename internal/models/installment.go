package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of an installment. "paid" is
// terminal; no field on a paid installment may change except through an
// idempotent replay carrying the same receipt number.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentOverdue PaymentStatus = "overdue"
	PaymentPaid    PaymentStatus = "paid"
)

// OwnerKind distinguishes which aggregate an installment belongs to.
type OwnerKind string

const (
	OwnerProperty OwnerKind = "property"
	OwnerBusiness OwnerKind = "business"
)

// Domain returns the revenue domain whose penalty and discount rates
// govern installments of this owner kind.
func (k OwnerKind) Domain() string {
	if k == OwnerBusiness {
		return DomainBusiness
	}
	return DomainRealProperty
}

// Installment is a single quarterly tax obligation. Exactly one row
// exists per (owner kind, owner id, quarter, year). DaysLate and
// PenaltyAmount are monotonically non-decreasing until the row is paid.
type Installment struct {
	ID                 int64           `json:"id"`
	OwnerKind          OwnerKind       `json:"owner_kind"`
	OwnerID            int64           `json:"owner_id"`
	Quarter            int             `json:"quarter"`
	Year               int             `json:"year"`
	DueDate            time.Time       `json:"due_date"`
	BaseAmount         decimal.Decimal `json:"base_amount"`
	PenaltyAmount      decimal.Decimal `json:"penalty_amount"`
	PenaltyPercentUsed decimal.Decimal `json:"penalty_percent_used"`
	DaysLate           int             `json:"days_late"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	ReceiptNumber      *string         `json:"receipt_number,omitempty"`
	PaymentDate        *time.Time      `json:"payment_date,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TotalDue is the base amount plus accrued penalty.
func (i *Installment) TotalDue() decimal.Decimal {
	return i.BaseAmount.Add(i.PenaltyAmount)
}

// QuarterDueDate returns the fixed statutory due date for a quarter:
// Mar 31, Jun 30, Sep 30, Dec 31 of the given year.
func QuarterDueDate(year, quarter int) time.Time {
	switch quarter {
	case 1:
		return time.Date(year, time.March, 31, 0, 0, 0, 0, time.UTC)
	case 2:
		return time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC)
	case 3:
		return time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
}

// PenaltyRunLog is an append-only audit record of one execution of the
// penalty accrual engine. Runs are not deduplicated per day; repeated
// runs each add a row.
type PenaltyRunLog struct {
	ID                      int64           `json:"id"`
	RunDate                 time.Time       `json:"run_date"`
	Domain                  string          `json:"domain"`
	RowsUpdated             int             `json:"rows_updated"`
	TotalIncrementalPenalty decimal.Decimal `json:"total_incremental_penalty"`
	PenaltyPercentUsed      decimal.Decimal `json:"penalty_percent_used"`
}
