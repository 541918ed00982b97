package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jdcastro/treasury/internal/logger"
	"github.com/jdcastro/treasury/internal/models"
	"github.com/jdcastro/treasury/internal/repository"
	"github.com/shopspring/decimal"
)

var four = decimal.NewFromInt(4)

// InstallmentScheduler converts an approved annual tax amount into four
// quarterly obligations with fixed statutory due dates. Generation is
// idempotent: re-running an approval never adds a fifth installment.
type InstallmentScheduler interface {
	// ApproveProperty approves a registration: stamps permanent
	// tax-declaration numbers on its assessments, marks the registration
	// approved (freezing the assessed values as historical record), and
	// generates the four quarterly installments for the approval year.
	ApproveProperty(ctx context.Context, registrationID int64, approvalDate time.Time) ([]models.Installment, error)

	// GenerateBusinessInstallments generates the four quarterly
	// installments for a business permit's precomputed annual tax.
	GenerateBusinessInstallments(ctx context.Context, permitID int64, year int) ([]models.Installment, error)
}

type installmentScheduler struct {
	assessments  repository.AssessmentRepository
	businesses   repository.BusinessRepository
	installments repository.InstallmentRepository
	log          *logger.Logger
}

// NewInstallmentScheduler creates a new InstallmentScheduler.
func NewInstallmentScheduler(
	assessments repository.AssessmentRepository,
	businesses repository.BusinessRepository,
	installments repository.InstallmentRepository,
	log *logger.Logger,
) InstallmentScheduler {
	return &installmentScheduler{
		assessments:  assessments,
		businesses:   businesses,
		installments: installments,
		log:          log,
	}
}

func (s *installmentScheduler) ApproveProperty(ctx context.Context, registrationID int64, approvalDate time.Time) ([]models.Installment, error) {
	totals, err := s.assessments.GetTotals(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if totals == nil {
		return nil, fmt.Errorf("%w: registration=%d", ErrTotalsNotFound, registrationID)
	}

	year := approvalDate.Year()

	// Declaration numbers are deterministic, so replaying an approval
	// assigns the same identifiers.
	building, err := s.assessments.GetBuilding(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	landTD := fmt.Sprintf("TD-%d-%d-L", year, registrationID)
	buildingTD := ""
	if building != nil {
		buildingTD = fmt.Sprintf("TD-%d-%d-B", year, registrationID)
	}
	if err := s.assessments.AssignDeclarations(ctx, registrationID, landTD, buildingTD); err != nil {
		return nil, err
	}

	if err := s.assessments.AdvanceRegistrationStatus(ctx, registrationID, models.RegistrationApproved); err != nil {
		return nil, err
	}

	installments, err := s.generate(ctx, models.OwnerProperty, registrationID, year, totals.TotalAnnualTax)
	if err != nil {
		return nil, err
	}

	s.log.Info("Registration approved", map[string]interface{}{
		"registration_id": registrationID,
		"year":            year,
		"annual_tax":      totals.TotalAnnualTax.String(),
	})
	return installments, nil
}

func (s *installmentScheduler) GenerateBusinessInstallments(ctx context.Context, permitID int64, year int) ([]models.Installment, error) {
	profile, err := s.businesses.GetProfile(ctx, permitID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: permit=%d", ErrProfileNotFound, permitID)
	}

	return s.generate(ctx, models.OwnerBusiness, permitID, year, profile.TotalTax)
}

// generate splits the annual total into four quarterly bases. Q1 to Q3
// take the rounded quarter; Q4 takes the remainder, so the four bases
// always sum exactly to the annual total.
func (s *installmentScheduler) generate(ctx context.Context, kind models.OwnerKind, ownerID int64, year int, annualTotal decimal.Decimal) ([]models.Installment, error) {
	quarterly := annualTotal.Div(four).Round(2)
	lastQuarter := annualTotal.Sub(quarterly.Mul(decimal.NewFromInt(3)))

	created := 0
	for quarter := 1; quarter <= 4; quarter++ {
		base := quarterly
		if quarter == 4 {
			base = lastQuarter
		}

		inserted, err := s.installments.InsertIfAbsent(ctx, &models.Installment{
			OwnerKind:  kind,
			OwnerID:    ownerID,
			Quarter:    quarter,
			Year:       year,
			DueDate:    models.QuarterDueDate(year, quarter),
			BaseAmount: base,
		})
		if err != nil {
			return nil, err
		}
		if inserted {
			created++
		}
	}

	installments, err := s.installments.ListByOwnerYear(ctx, kind, ownerID, year)
	if err != nil {
		return nil, err
	}
	if len(installments) > 4 {
		// Idempotent generation makes this unreachable; treat it as a
		// logic bug and surface loudly.
		return nil, fmt.Errorf("%w: owner=%s/%d year=%d count=%d",
			ErrDuplicateInstallment, kind, ownerID, year, len(installments))
	}

	s.log.Info("Installments generated", map[string]interface{}{
		"owner_kind": kind,
		"owner_id":   ownerID,
		"year":       year,
		"created":    created,
		"existing":   len(installments) - created,
	})
	return installments, nil
}
