package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/jdcastro/treasury/internal/errors"
	"github.com/jdcastro/treasury/internal/models"
	"github.com/jdcastro/treasury/internal/services"
)

// RevenueHandler handles penalty runs, discount quotes, and payment
// webhook notifications.
type RevenueHandler struct {
	penalties services.PenaltyEngine
	discounts services.DiscountEvaluator
	payments  services.PaymentReconciler
}

// NewRevenueHandler creates a new RevenueHandler instance.
func NewRevenueHandler(penalties services.PenaltyEngine, discounts services.DiscountEvaluator, payments services.PaymentReconciler) *RevenueHandler {
	return &RevenueHandler{penalties: penalties, discounts: discounts, payments: payments}
}

// PenaltyRunRequest is the body for POST /api/v1/penalties/run.
type PenaltyRunRequest struct {
	Domain string `json:"domain" binding:"required,oneof=rpt business"`
	AsOf   string `json:"as_of" binding:"omitempty,datetime=2006-01-02"`
}

// RunPenalties handles POST /api/v1/penalties/run. Safe to invoke
// repeatedly, including multiple times per day.
func (h *RevenueHandler) RunPenalties(c *gin.Context) {
	var req PenaltyRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid penalty run payload", nil)
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

	kind := models.OwnerProperty
	if req.Domain == models.DomainBusiness {
		kind = models.OwnerBusiness
	}

	result, err := h.penalties.AccruePenalties(c.Request.Context(), kind, asOf)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConfigurationNotFound):
			apierrors.Unprocessable(c, err.Error())
		case errors.Is(err, services.ErrAmbiguousConfiguration):
			apierrors.Unprocessable(c, err.Error())
		default:
			apierrors.InternalServerError(c, "Penalty run failed", err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// QuoteDiscount handles GET /api/v1/discounts/quote.
//
// Query parameters:
//
//	installment_id              per-quarter quote
//	registration_id + year      annual-prepayment quote (real property)
//	as_of                       optional, defaults to today
func (h *RevenueHandler) QuoteDiscount(c *gin.Context) {
	asOf := time.Now().UTC()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid as_of date", nil)
			return
		}
		asOf = parsed
	}

	if raw := c.Query("installment_id"); raw != "" {
		installmentID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid installment_id", nil)
			return
		}
		quote, err := h.discounts.QuoteQuarterly(c.Request.Context(), installmentID, asOf)
		if err != nil {
			h.writeQuoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, quote)
		return
	}

	registrationID, err := strconv.ParseInt(c.Query("registration_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "installment_id or registration_id is required", nil)
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		apierrors.BadRequest(c, "year is required for annual quotes", nil)
		return
	}

	quote, err := h.discounts.QuoteAnnual(c.Request.Context(), registrationID, year, asOf)
	if err != nil {
		h.writeQuoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *RevenueHandler) writeQuoteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInstallmentNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrAmbiguousConfiguration):
		apierrors.Unprocessable(c, err.Error())
	default:
		apierrors.InternalServerError(c, "Failed to quote discount", err)
	}
}

// PaymentWebhookRequest is the confirmed-payment notification from the
// gateway integration. The integration resolves its opaque reference
// string to a concrete installment id before calling this endpoint;
// that mapping is deliberately outside the engine.
type PaymentWebhookRequest struct {
	InstallmentID int64  `json:"installment_id" binding:"required,gt=0"`
	ReceiptNumber string `json:"receipt_number" binding:"required"`
	PaidAt        string `json:"paid_at" binding:"required"`
	Status        string `json:"status" binding:"required"`
}

// PaymentWebhook handles POST /api/v1/payments/webhook.
func (h *RevenueHandler) PaymentWebhook(c *gin.Context) {
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid webhook payload", nil)
		return
	}

	paidAt, err := time.Parse(time.RFC3339, req.PaidAt)
	if err != nil {
		// Gateways are inconsistent about timestamps; accept plain dates.
		paidAt, err = time.Parse("2006-01-02", req.PaidAt)
		if err != nil {
			apierrors.BadRequest(c, "Invalid paid_at timestamp", nil)
			return
		}
	}

	ack, err := h.payments.ApplyPayment(c.Request.Context(), req.InstallmentID, req.ReceiptNumber, paidAt, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInstallmentNotFound):
			apierrors.NotFound(c, err.Error())
		case errors.Is(err, services.ErrReceiptMismatch):
			apierrors.Conflict(c, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to apply payment", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ack": ack})
}
