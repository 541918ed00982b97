package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfigKind identifies which configuration table a record belongs to.
// Each kind carries a different subset of the numeric parameters.
type ConfigKind string

const (
	KindLandValue               ConfigKind = "land_value"
	KindBuildingCost            ConfigKind = "building_cost"
	KindBuildingAssessmentLevel ConfigKind = "building_assessment_level"
	KindTaxRate                 ConfigKind = "tax_rate"
	KindDiscountRate            ConfigKind = "discount_rate"
	KindPenaltyRate             ConfigKind = "penalty_rate"
)

// ConfigStatus is the lifecycle state of a configuration record.
type ConfigStatus string

const (
	ConfigActive  ConfigStatus = "active"
	ConfigExpired ConfigStatus = "expired"
)

// Well-known classification keys for the tax_rate kind.
const (
	TaxRateBasic = "basic"
	TaxRateSEF   = "sef"
)

// Revenue domains. Penalty and discount rates are configured per domain.
const (
	DomainRealProperty = "rpt"
	DomainBusiness     = "business"
)

// Classification keys for the discount_rate kind.
const (
	DiscountRPTQuarterly      = "rpt_quarterly"
	DiscountRPTAnnual         = "rpt_annual"
	DiscountBusinessQuarterly = "business_quarterly"
)

// ConfigurationRecord is one row of a temporally-versioned configuration
// table. Which numeric parameters are meaningful depends on Kind:
//
//	land_value:                ValuePerUnit, LevelPercent
//	building_cost:             UnitCost, DepreciationRate
//	building_assessment_level: LevelPercent, MinBand, MaxBand
//	tax_rate:                  RatePercent
//	discount_rate:             RatePercent
//	penalty_rate:              RatePercent
//
// Nullable columns use pointers to distinguish zero values from NULL.
type ConfigurationRecord struct {
	ID                int64            `json:"id"`
	Kind              ConfigKind       `json:"kind"`
	ClassificationKey string           `json:"classification_key"`
	ValuePerUnit      decimal.Decimal  `json:"value_per_unit"`
	UnitCost          decimal.Decimal  `json:"unit_cost"`
	DepreciationRate  decimal.Decimal  `json:"depreciation_rate"`
	LevelPercent      decimal.Decimal  `json:"level_percent"`
	RatePercent       decimal.Decimal  `json:"rate_percent"`
	MinBand           *decimal.Decimal `json:"min_band,omitempty"`
	MaxBand           *decimal.Decimal `json:"max_band,omitempty"`
	EffectiveDate     time.Time        `json:"effective_date"`
	ExpirationDate    *time.Time       `json:"expiration_date,omitempty"`
	Status            ConfigStatus     `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// AppliesAt reports whether the record's validity interval covers the
// given date. The interval is [EffectiveDate, ExpirationDate] with a nil
// expiration meaning open-ended.
func (r *ConfigurationRecord) AppliesAt(asOf time.Time) bool {
	if r.Status != ConfigActive {
		return false
	}
	if asOf.Before(r.EffectiveDate) {
		return false
	}
	if r.ExpirationDate != nil && asOf.After(*r.ExpirationDate) {
		return false
	}
	return true
}

// CoversValue reports whether the record's band covers the given value.
// Records without band columns cover every value.
func (r *ConfigurationRecord) CoversValue(v decimal.Decimal) bool {
	if r.MinBand != nil && v.LessThan(*r.MinBand) {
		return false
	}
	if r.MaxBand != nil && v.GreaterThan(*r.MaxBand) {
		return false
	}
	return true
}

// IntervalsOverlap reports whether two validity intervals share at least
// one day. A nil end date means the interval extends to infinity. This is
// the same predicate the repository enforces in SQL at write time; no two
// active records for the same kind and classification key may overlap.
func IntervalsOverlap(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	if aEnd != nil && aEnd.Before(bStart) {
		return false
	}
	if bEnd != nil && bEnd.Before(aStart) {
		return false
	}
	return true
}
