package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegistrationStatus is the lifecycle state of a property registration.
// Approval is a one-way gate: once approved, re-assessment must not move
// the status backwards.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationAssessed RegistrationStatus = "assessed"
	RegistrationApproved RegistrationStatus = "approved"
)

// LandAssessment holds the computed valuation of a land parcel. At most
// one row exists per registration; re-assessment updates it in place.
type LandAssessment struct {
	ID                int64           `json:"id"`
	RegistrationID    int64           `json:"registration_id"`
	ConfigRef         int64           `json:"config_ref"`
	Classification    string          `json:"classification"`
	Area              decimal.Decimal `json:"area"`
	MarketValue       decimal.Decimal `json:"market_value"`
	AssessmentLevel   decimal.Decimal `json:"assessment_level"`
	AssessedValue     decimal.Decimal `json:"assessed_value"`
	BasicTaxAmount    decimal.Decimal `json:"basic_tax_amount"`
	SEFTaxAmount      decimal.Decimal `json:"sef_tax_amount"`
	AnnualTax         decimal.Decimal `json:"annual_tax"`
	TaxDeclarationNo  *string         `json:"tax_declaration_no,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// BuildingAssessment holds the computed valuation of a building on a
// registered parcel. A zero AssessmentLevel together with a zero
// AssessedValue marks a force-overridden record awaiting manual
// correction.
type BuildingAssessment struct {
	ID                  int64           `json:"id"`
	RegistrationID      int64           `json:"registration_id"`
	ConfigRef           int64           `json:"config_ref"`
	MaterialType        string          `json:"material_type"`
	Classification      string          `json:"classification"`
	FloorArea           decimal.Decimal `json:"floor_area"`
	YearBuilt           int             `json:"year_built"`
	UnitCost            decimal.Decimal `json:"unit_cost"`
	DepreciationPercent decimal.Decimal `json:"depreciation_percent"`
	MarketValue         decimal.Decimal `json:"market_value"`
	DepreciatedValue    decimal.Decimal `json:"depreciated_value"`
	AssessmentLevel     decimal.Decimal `json:"assessment_level"`
	AssessedValue       decimal.Decimal `json:"assessed_value"`
	BasicTaxAmount      decimal.Decimal `json:"basic_tax_amount"`
	SEFTaxAmount        decimal.Decimal `json:"sef_tax_amount"`
	AnnualTax           decimal.Decimal `json:"annual_tax"`
	TaxDeclarationNo    *string         `json:"tax_declaration_no,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// PropertyTotals aggregates the annual tax across land and building for
// one registration. It is the owner of the generated installments and
// becomes immutable input once the registration is approved.
type PropertyTotals struct {
	RegistrationID    int64              `json:"registration_id"`
	LandAnnualTax     decimal.Decimal    `json:"land_annual_tax"`
	BuildingAnnualTax decimal.Decimal    `json:"building_annual_tax"`
	TotalAnnualTax    decimal.Decimal    `json:"total_annual_tax"`
	Status            RegistrationStatus `json:"status"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// BusinessTaxProfile is the business-permit counterpart of
// PropertyTotals. TotalTax is fixed at permit approval and is not
// recalculated by the assessment engine.
type BusinessTaxProfile struct {
	ID        int64           `json:"id"`
	PermitID  int64           `json:"permit_id"`
	TotalTax  decimal.Decimal `json:"total_tax"`
	Year      int             `json:"year"`
	CreatedAt time.Time       `json:"created_at"`
}
