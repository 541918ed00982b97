package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jdcastro/treasury/internal/logger"
	"github.com/jdcastro/treasury/internal/models"
	"github.com/jdcastro/treasury/internal/repository"
)

// PaymentAck is the acknowledgment returned to the payment gateway
// integration.
type PaymentAck string

const (
	// AckApplied means the installment transitioned to paid.
	AckApplied PaymentAck = "applied"
	// AckAlreadyPaid means the installment was already paid under the
	// same receipt; the replay is an idempotent no-op, not an error.
	AckAlreadyPaid PaymentAck = "already_paid"
	// AckIgnored means the notification did not report a completed
	// payment and was not processed.
	AckIgnored PaymentAck = "ignored"
)

// PaymentReconciler applies confirmed external payment notifications to
// installments, idempotently by receipt identity. The caller (the
// gateway integration) owns the mapping from its opaque reference string
// to a concrete installment id; that fragile parsing never enters the
// core.
type PaymentReconciler interface {
	// ApplyPayment records a gateway notification against an
	// installment. Only status "paid" is processed; anything else is
	// acknowledged as ignored. Paid is a terminal, one-way transition.
	ApplyPayment(ctx context.Context, installmentID int64, receiptNumber string, paidAt time.Time, status string) (PaymentAck, error)
}

type paymentReconciler struct {
	installments repository.InstallmentRepository
	log          *logger.Logger
}

// NewPaymentReconciler creates a new PaymentReconciler.
func NewPaymentReconciler(installments repository.InstallmentRepository, log *logger.Logger) PaymentReconciler {
	return &paymentReconciler{installments: installments, log: log}
}

func (s *paymentReconciler) ApplyPayment(ctx context.Context, installmentID int64, receiptNumber string, paidAt time.Time, status string) (PaymentAck, error) {
	if status != "paid" {
		s.log.Info("Payment notification ignored", map[string]interface{}{
			"installment_id": installmentID,
			"status":         status,
		})
		return AckIgnored, nil
	}
	if receiptNumber == "" {
		return "", fmt.Errorf("receipt number is required")
	}

	inst, err := s.installments.Get(ctx, installmentID)
	if err != nil {
		return "", err
	}
	if inst == nil {
		return "", fmt.Errorf("%w: id=%d", ErrInstallmentNotFound, installmentID)
	}

	if inst.PaymentStatus == models.PaymentPaid {
		return s.ackPaid(inst, receiptNumber)
	}

	paymentDate := time.Date(paidAt.Year(), paidAt.Month(), paidAt.Day(), 0, 0, 0, 0, time.UTC)
	applied, err := s.installments.MarkPaid(ctx, installmentID, receiptNumber, paymentDate)
	if err != nil {
		return "", err
	}
	if !applied {
		// Lost a race with another writer; re-read and decide from the
		// terminal state.
		inst, err = s.installments.Get(ctx, installmentID)
		if err != nil {
			return "", err
		}
		if inst == nil {
			return "", fmt.Errorf("%w: id=%d", ErrInstallmentNotFound, installmentID)
		}
		return s.ackPaid(inst, receiptNumber)
	}

	s.log.Info("Payment applied", map[string]interface{}{
		"installment_id": installmentID,
		"receipt_number": receiptNumber,
		"payment_date":   paymentDate.Format("2006-01-02"),
	})
	return AckApplied, nil
}

// ackPaid resolves a notification against an already-paid installment:
// the same receipt is an idempotent replay, a different one a conflict.
func (s *paymentReconciler) ackPaid(inst *models.Installment, receiptNumber string) (PaymentAck, error) {
	if inst.ReceiptNumber != nil && *inst.ReceiptNumber == receiptNumber {
		return AckAlreadyPaid, nil
	}
	return "", fmt.Errorf("%w: id=%d receipt=%s", ErrReceiptMismatch, inst.ID, receiptNumber)
}
