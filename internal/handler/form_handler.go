package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sitemilenibarros/backend/internal/domain"
	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/service"
	"github.com/sitemilenibarros/backend/pkg/response"
	"github.com/sitemilenibarros/backend/pkg/telemetry"
)

// FormHandler handles registration form HTTP requests
type FormHandler struct {
	formService service.FormService
}

// NewFormHandler creates a new FormHandler
func NewFormHandler(formService service.FormService) *FormHandler {
	return &FormHandler{formService: formService}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid "+name))
		return 0, false
	}
	return id, true
}

func paginationParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

// handleError maps service errors onto the response envelope
func (h *FormHandler) handleError(c *gin.Context, err error) {
	var invalid *service.ErrPayloadInvalid
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, response.ValidationFailed(invalid.Errors))
	case errors.Is(err, domain.ErrEventNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
	case errors.Is(err, domain.ErrRegistrationNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Form not found"))
	case errors.Is(err, domain.ErrInvalidModality):
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeInvalidModality, "Modality must be presencial or online"))
	case errors.Is(err, domain.ErrPriceNotConfigured):
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodePriceNotConfigured, "No price configured for this modality"))
	case errors.Is(err, domain.ErrCapacityExceeded):
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeCapacityExceeded, err.Error()))
	case errors.Is(err, domain.ErrNotDeleted):
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeNotDeleted, "Form is not deleted"))
	default:
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
	}
}

// Create handles a plain form submission
// POST /forms/:eventId
func (h *FormHandler) Create(c *gin.Context) {
	eventID, ok := parseID(c, "eventId")
	if !ok {
		return
	}

	var req dto.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.formService.Create(c.Request.Context(), eventID, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(result))
}

// CreateWithPayment handles a form submission with checkout preference
// POST /forms/:eventId/with-payment
func (h *FormHandler) CreateWithPayment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.form.create_with_payment")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID, ok := parseID(c, "eventId")
	if !ok {
		span.SetStatus(codes.Error, "invalid event id")
		return
	}
	span.SetAttributes(attribute.Int64("event_id", eventID))

	var req dto.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.formService.CreateWithPayment(ctx, eventID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, response.Success(result))
}

// List handles listing all forms
// GET /forms
func (h *FormHandler) List(c *gin.Context) {
	page, limit := paginationParams(c)

	result, err := h.formService.List(c.Request.Context(), page, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// ListByEvent handles listing an event's forms
// GET /forms/by-event/:eventId
func (h *FormHandler) ListByEvent(c *gin.Context) {
	eventID, ok := parseID(c, "eventId")
	if !ok {
		return
	}
	page, limit := paginationParams(c)

	result, err := h.formService.ListByEvent(c.Request.Context(), eventID, page, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// GetByID handles retrieving one form
// GET /forms/id/:id
func (h *FormHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := h.formService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// GetByPaymentID handles retrieving the form carrying a payment id
// GET /forms/payment/:paymentId
func (h *FormHandler) GetByPaymentID(c *gin.Context) {
	paymentID := c.Param("paymentId")
	if paymentID == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Payment ID is required"))
		return
	}

	result, err := h.formService.GetByPaymentID(c.Request.Context(), paymentID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// OverridePaymentStatus handles the administrative status override
// PATCH /forms/:formId/payment-status
func (h *FormHandler) OverridePaymentStatus(c *gin.Context) {
	id, ok := parseID(c, "formId")
	if !ok {
		return
	}

	var req dto.OverridePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.formService.OverridePaymentStatus(c.Request.Context(), id, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// SoftDelete handles soft-deleting a form
// DELETE /forms/:id/soft
func (h *FormHandler) SoftDelete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.formService.SoftDelete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"deleted": true}))
}

// Restore handles restoring a soft-deleted form
// PUT /forms/:id/restore
func (h *FormHandler) Restore(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.formService.Restore(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"restored": true}))
}
