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

// InstallmentRepository defines persistence for quarterly installments
// and the penalty run log. Penalty and payment writes are single
// conditional updates: a scheduled penalty run racing a payment webhook
// on the same row cannot overwrite a terminal or higher-penalty state.
type InstallmentRepository interface {
	// InsertIfAbsent inserts an installment unless one already exists
	// for (owner_kind, owner_id, quarter, year). Reports whether a row
	// was created.
	InsertIfAbsent(ctx context.Context, inst *models.Installment) (bool, error)

	// Get returns an installment by id, or nil, nil if absent.
	Get(ctx context.Context, id int64) (*models.Installment, error)

	// ListByOwnerYear returns all installments for an owner in a year,
	// ordered by quarter.
	ListByOwnerYear(ctx context.Context, kind models.OwnerKind, ownerID int64, year int) ([]models.Installment, error)

	// ListAccruable returns all unpaid installments for an owner kind
	// whose due date precedes asOf.
	ListAccruable(ctx context.Context, kind models.OwnerKind, asOf time.Time) ([]models.Installment, error)

	// ApplyPenalty raises an installment's penalty state. The update
	// applies only while the row is unpaid and the proposed penalty
	// exceeds the stored one; days_late never decreases. Reports whether
	// the update applied.
	ApplyPenalty(ctx context.Context, id int64, daysLate int, penalty, percentUsed decimal.Decimal) (bool, error)

	// MarkPaid transitions an installment to paid. Applies only while
	// the row is unpaid; reports whether the transition happened.
	MarkPaid(ctx context.Context, id int64, receiptNumber string, paymentDate time.Time) (bool, error)

	// AppendRunLog appends one penalty-run audit row.
	AppendRunLog(ctx context.Context, log *models.PenaltyRunLog) error
}

type installmentRepository struct {
	db *database.Database
}

// NewInstallmentRepository creates a new InstallmentRepository.
func NewInstallmentRepository(db *database.Database) InstallmentRepository {
	return &installmentRepository{db: db}
}

const installmentColumns = `
	id, owner_kind, owner_id, quarter, year, due_date, base_amount,
	penalty_amount, penalty_percent_used, days_late, payment_status,
	receipt_number, payment_date, created_at, updated_at`

func scanInstallment(row pgx.Row) (*models.Installment, error) {
	var inst models.Installment
	err := row.Scan(
		&inst.ID, &inst.OwnerKind, &inst.OwnerID, &inst.Quarter, &inst.Year,
		&inst.DueDate, &inst.BaseAmount, &inst.PenaltyAmount,
		&inst.PenaltyPercentUsed, &inst.DaysLate, &inst.PaymentStatus,
		&inst.ReceiptNumber, &inst.PaymentDate, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *installmentRepository) InsertIfAbsent(ctx context.Context, inst *models.Installment) (bool, error) {
	query := `
		INSERT INTO installments (
			owner_kind, owner_id, quarter, year, due_date, base_amount,
			penalty_amount, penalty_percent_used, days_late, payment_status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, 'pending', now(), now())
		ON CONFLICT (owner_kind, owner_id, quarter, year) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		inst.OwnerKind, inst.OwnerID, inst.Quarter, inst.Year, inst.DueDate, inst.BaseAmount,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert installment %s/%d Q%d/%d: %w",
			inst.OwnerKind, inst.OwnerID, inst.Quarter, inst.Year, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *installmentRepository) Get(ctx context.Context, id int64) (*models.Installment, error) {
	inst, err := scanInstallment(r.db.Pool.QueryRow(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query installment %d: %w", id, err)
	}
	return inst, nil
}

func (r *installmentRepository) ListByOwnerYear(ctx context.Context, kind models.OwnerKind, ownerID int64, year int) ([]models.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE owner_kind = $1 AND owner_id = $2 AND year = $3
		ORDER BY quarter
	`
	return r.queryInstallments(ctx, query, kind, ownerID, year)
}

func (r *installmentRepository) ListAccruable(ctx context.Context, kind models.OwnerKind, asOf time.Time) ([]models.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE owner_kind = $1
		  AND payment_status IN ('pending', 'overdue')
		  AND due_date < $2
		ORDER BY due_date, id
	`
	return r.queryInstallments(ctx, query, kind, asOf)
}

func (r *installmentRepository) queryInstallments(ctx context.Context, query string, args ...interface{}) ([]models.Installment, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var installments []models.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment row: %w", err)
		}
		installments = append(installments, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating installment rows: %w", err)
	}

	if installments == nil {
		installments = []models.Installment{}
	}
	return installments, nil
}

func (r *installmentRepository) ApplyPenalty(ctx context.Context, id int64, daysLate int, penalty, percentUsed decimal.Decimal) (bool, error) {
	query := `
		UPDATE installments SET
			days_late = GREATEST(days_late, $2),
			penalty_amount = $3,
			penalty_percent_used = $4,
			payment_status = 'overdue',
			updated_at = now()
		WHERE id = $1
		  AND payment_status <> 'paid'
		  AND penalty_amount < $3
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, daysLate, penalty, percentUsed)
	if err != nil {
		return false, fmt.Errorf("failed to apply penalty to installment %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *installmentRepository) MarkPaid(ctx context.Context, id int64, receiptNumber string, paymentDate time.Time) (bool, error) {
	query := `
		UPDATE installments SET
			payment_status = 'paid',
			receipt_number = $2,
			payment_date = $3,
			updated_at = now()
		WHERE id = $1 AND payment_status <> 'paid'
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, receiptNumber, paymentDate)
	if err != nil {
		return false, fmt.Errorf("failed to mark installment %d paid: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *installmentRepository) AppendRunLog(ctx context.Context, log *models.PenaltyRunLog) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO penalty_run_logs (run_date, domain, rows_updated, total_incremental_penalty, penalty_percent_used)
		 VALUES ($1, $2, $3, $4, $5)`,
		log.RunDate, log.Domain, log.RowsUpdated, log.TotalIncrementalPenalty, log.PenaltyPercentUsed,
	)
	if err != nil {
		return fmt.Errorf("failed to append penalty run log: %w", err)
	}
	return nil
}
