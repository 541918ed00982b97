package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/jdcastro/treasury/internal/errors"
	"github.com/jdcastro/treasury/internal/services"
	"github.com/shopspring/decimal"
)

// AssessmentHandler handles assessment submission and approval.
type AssessmentHandler struct {
	calculator services.AssessmentCalculator
	scheduler  services.InstallmentScheduler
}

// NewAssessmentHandler creates a new AssessmentHandler instance.
func NewAssessmentHandler(calculator services.AssessmentCalculator, scheduler services.InstallmentScheduler) *AssessmentHandler {
	return &AssessmentHandler{calculator: calculator, scheduler: scheduler}
}

// AssessRequest is the body for POST /api/v1/assessments. AsOf defaults
// to today when omitted; it is explicit so assessments are reproducible.
type AssessRequest struct {
	RegistrationID int64            `json:"registration_id" binding:"required,gt=0"`
	Land           LandRequest      `json:"land" binding:"required"`
	Building       *BuildingRequest `json:"building"`
	AsOf           string           `json:"as_of" binding:"omitempty,datetime=2006-01-02"`
}

// LandRequest carries the land path inputs.
type LandRequest struct {
	Classification string          `json:"classification" binding:"required"`
	Area           decimal.Decimal `json:"area" binding:"required"`
}

// BuildingRequest carries the building path inputs. Force bypasses the
// assessment-band check and stores a zero level pending manual
// correction.
type BuildingRequest struct {
	MaterialType   string          `json:"material_type" binding:"required"`
	Classification string          `json:"classification" binding:"required"`
	FloorArea      decimal.Decimal `json:"floor_area"`
	YearBuilt      int             `json:"year_built" binding:"required,gte=1800"`
	Force          bool            `json:"force"`
}

// Assess handles POST /api/v1/assessments.
func (h *AssessmentHandler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid assessment payload", nil)
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			apierrors.BadRequest(c, "Invalid as_of date", nil)
			return
		}
		asOf = parsed
	}

	land := services.LandInput{
		Classification: req.Land.Classification,
		Area:           req.Land.Area,
	}
	var building *services.BuildingInput
	if req.Building != nil {
		building = &services.BuildingInput{
			MaterialType:   req.Building.MaterialType,
			Classification: req.Building.Classification,
			FloorArea:      req.Building.FloorArea,
			YearBuilt:      req.Building.YearBuilt,
			Force:          req.Building.Force,
		}
	}

	totals, err := h.calculator.Assess(c.Request.Context(), req.RegistrationID, land, building, asOf)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRegistrationNotFound):
			apierrors.NotFound(c, err.Error())
		case errors.Is(err, services.ErrConfigurationNotFound),
			errors.Is(err, services.ErrTaxRateUnavailable),
			errors.Is(err, services.ErrAssessmentOutOfRange),
			errors.Is(err, services.ErrAmbiguousConfiguration):
			apierrors.Unprocessable(c, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to compute assessment", err)
		}
		return
	}

	c.JSON(http.StatusOK, totals)
}

// ApproveRequest is the body for approval endpoints. ApprovalDate
// defaults to today.
type ApproveRequest struct {
	ApprovalDate string `json:"approval_date" binding:"omitempty,datetime=2006-01-02"`
}

// Approve handles POST /api/v1/registrations/:id/approve.
func (h *AssessmentHandler) Approve(c *gin.Context) {
	registrationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid registration id", nil)
		return
	}

	// The body is optional; approval date defaults to today.
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = ApproveRequest{}
	}

	approvalDate := time.Now().UTC()
	if req.ApprovalDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ApprovalDate)
		if err != nil {
			apierrors.BadRequest(c, "Invalid approval_date", nil)
			return
		}
		approvalDate = parsed
	}

	installments, err := h.scheduler.ApproveProperty(c.Request.Context(), registrationID, approvalDate)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTotalsNotFound):
			apierrors.NotFound(c, err.Error())
		case errors.Is(err, services.ErrDuplicateInstallment):
			apierrors.Conflict(c, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to approve registration", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"installments": installments, "count": len(installments)})
}

// GenerateBusinessRequest is the body for business installment
// generation.
type GenerateBusinessRequest struct {
	Year int `json:"year" binding:"required,gte=2000"`
}

// GenerateBusiness handles POST /api/v1/businesses/:id/installments.
func (h *AssessmentHandler) GenerateBusiness(c *gin.Context) {
	permitID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid permit id", nil)
		return
	}

	var req GenerateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid payload", nil)
		return
	}

	installments, err := h.scheduler.GenerateBusinessInstallments(c.Request.Context(), permitID, req.Year)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProfileNotFound):
			apierrors.NotFound(c, err.Error())
		case errors.Is(err, services.ErrDuplicateInstallment):
			apierrors.Conflict(c, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to generate installments", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"installments": installments, "count": len(installments)})
}
