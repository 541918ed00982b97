package services

import "errors"

// Service-level errors. Recoverable business conditions and integrity
// violations share the mechanism but not the handling: an ambiguous
// configuration or a duplicate installment is a logic/data bug and is
// always surfaced, never silently resolved.
var (
	// ErrConfigurationNotFound means no active configuration record
	// covers the requested key and date. Recoverable by admin action.
	ErrConfigurationNotFound = errors.New("no active configuration for key and date")

	// ErrAmbiguousConfiguration means more than one active record
	// matched a resolve; the write-time overlap check should have
	// prevented this.
	ErrAmbiguousConfiguration = errors.New("ambiguous configuration: overlapping active records")

	// ErrOverlappingConfiguration means a configuration write was
	// rejected because it would overlap another active record.
	ErrOverlappingConfiguration = errors.New("configuration write would overlap an active record")

	// ErrConfigurationReferenced means a configuration record cannot be
	// deleted because an assessment references it.
	ErrConfigurationReferenced = errors.New("configuration record referenced by an assessment")

	// ErrTaxRateUnavailable means the basic or SEF rate is missing for
	// the assessment date. Blocks assessment.
	ErrTaxRateUnavailable = errors.New("basic or SEF tax rate unavailable")

	// ErrAssessmentOutOfRange means a depreciated value falls outside
	// every configured assessment-level band and no force override was
	// supplied.
	ErrAssessmentOutOfRange = errors.New("value outside configured assessment bands")

	// ErrRegistrationNotFound means the property registration does not
	// exist.
	ErrRegistrationNotFound = errors.New("registration not found")

	// ErrTotalsNotFound means no assessment totals exist yet for the
	// registration being approved.
	ErrTotalsNotFound = errors.New("no assessment totals for registration")

	// ErrProfileNotFound means the business permit has no tax profile.
	ErrProfileNotFound = errors.New("business tax profile not found")

	// ErrDuplicateInstallment means more than one installment exists for
	// an (owner, quarter, year). Generation is idempotent, so this is a
	// logic bug and is surfaced loudly.
	ErrDuplicateInstallment = errors.New("duplicate installment for owner, quarter, and year")

	// ErrInstallmentNotFound means the referenced installment does not
	// exist.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrReceiptMismatch means a payment arrived for an installment that
	// is already paid under a different receipt number. Paid is
	// terminal; only a replay with the same receipt is acknowledged.
	ErrReceiptMismatch = errors.New("installment already paid under a different receipt")
)
