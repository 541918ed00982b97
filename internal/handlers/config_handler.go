package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/jdcastro/treasury/internal/errors"
	"github.com/jdcastro/treasury/internal/middleware"
	"github.com/jdcastro/treasury/internal/models"
	"github.com/jdcastro/treasury/internal/services"
	"github.com/shopspring/decimal"
)

// ConfigHandler handles administrator CRUD for the versioned
// configuration tables.
type ConfigHandler struct {
	resolver services.ConfigResolver
}

// NewConfigHandler creates a new ConfigHandler instance.
func NewConfigHandler(resolver services.ConfigResolver) *ConfigHandler {
	return &ConfigHandler{resolver: resolver}
}

// ConfigRequest is the request body for creating or updating a
// configuration record. Dates use YYYY-MM-DD.
type ConfigRequest struct {
	Kind              string           `json:"kind" binding:"required,oneof=land_value building_cost building_assessment_level tax_rate discount_rate penalty_rate"`
	ClassificationKey string           `json:"classification_key" binding:"required"`
	ValuePerUnit      decimal.Decimal  `json:"value_per_unit"`
	UnitCost          decimal.Decimal  `json:"unit_cost"`
	DepreciationRate  decimal.Decimal  `json:"depreciation_rate"`
	LevelPercent      decimal.Decimal  `json:"level_percent"`
	RatePercent       decimal.Decimal  `json:"rate_percent"`
	MinBand           *decimal.Decimal `json:"min_band"`
	MaxBand           *decimal.Decimal `json:"max_band"`
	EffectiveDate     string           `json:"effective_date" binding:"required,datetime=2006-01-02"`
	ExpirationDate    *string          `json:"expiration_date" binding:"omitempty,datetime=2006-01-02"`
	Status            string           `json:"status" binding:"required,oneof=active expired"`
}

func (r *ConfigRequest) toRecord() (*models.ConfigurationRecord, error) {
	effective, err := time.Parse("2006-01-02", r.EffectiveDate)
	if err != nil {
		return nil, err
	}
	rec := &models.ConfigurationRecord{
		Kind:              models.ConfigKind(r.Kind),
		ClassificationKey: r.ClassificationKey,
		ValuePerUnit:      r.ValuePerUnit,
		UnitCost:          r.UnitCost,
		DepreciationRate:  r.DepreciationRate,
		LevelPercent:      r.LevelPercent,
		RatePercent:       r.RatePercent,
		MinBand:           r.MinBand,
		MaxBand:           r.MaxBand,
		EffectiveDate:     effective,
		Status:            models.ConfigStatus(r.Status),
	}
	if r.ExpirationDate != nil {
		expiration, err := time.Parse("2006-01-02", *r.ExpirationDate)
		if err != nil {
			return nil, err
		}
		rec.ExpirationDate = &expiration
	}
	return rec, nil
}

// Create handles POST /api/v1/config.
func (h *ConfigHandler) Create(c *gin.Context) {
	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid configuration payload", nil)
		return
	}

	rec, err := req.toRecord()
	if err != nil {
		apierrors.BadRequest(c, "Invalid date format", nil)
		return
	}

	created, err := h.resolver.CreateConfiguration(c.Request.Context(), rec)
	if err != nil {
		h.writeError(c, err, "Failed to create configuration record")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// Update handles PUT /api/v1/config/:id.
func (h *ConfigHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid configuration id", nil)
		return
	}

	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid configuration payload", nil)
		return
	}

	rec, err := req.toRecord()
	if err != nil {
		apierrors.BadRequest(c, "Invalid date format", nil)
		return
	}
	rec.ID = id

	updated, err := h.resolver.UpdateConfiguration(c.Request.Context(), rec)
	if err != nil {
		h.writeError(c, err, "Failed to update configuration record")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// List handles GET /api/v1/config?kind=...
func (h *ConfigHandler) List(c *gin.Context) {
	kind := models.ConfigKind(c.Query("kind"))
	switch kind {
	case models.KindLandValue, models.KindBuildingCost, models.KindBuildingAssessmentLevel,
		models.KindTaxRate, models.KindDiscountRate, models.KindPenaltyRate:
	default:
		apierrors.BadRequest(c, "Unknown configuration kind", map[string]interface{}{"kind": string(kind)})
		return
	}

	records, err := h.resolver.ListConfigurations(c.Request.Context(), kind)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list configuration records", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// Delete handles DELETE /api/v1/config/:id.
func (h *ConfigHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid configuration id", nil)
		return
	}

	if err := h.resolver.DeleteConfiguration(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "Failed to delete configuration record")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ConfigHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrOverlappingConfiguration):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrConfigurationReferenced):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrConfigurationNotFound):
		apierrors.NotFound(c, err.Error())
	default:
		if log := middleware.GetLogger(c); log != nil {
			log.Error(fallback, err, nil)
		}
		apierrors.InternalServerError(c, fallback, err)
	}
}
