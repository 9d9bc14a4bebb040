package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sitemilenibarros/backend/internal/domain"
	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/service"
	"github.com/sitemilenibarros/backend/pkg/response"
	"github.com/sitemilenibarros/backend/pkg/telemetry"
)

// CheckoutHandler handles the stripe checkout HTTP requests
type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

func (h *CheckoutHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
	case errors.Is(err, domain.ErrNoStripeIntegration):
		c.JSON(http.StatusBadRequest, response.BadRequest("Event has no stripe integration"))
	case errors.Is(err, domain.ErrInvalidModality):
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeInvalidModality, "Modality must be presencial or online"))
	case errors.Is(err, service.ErrInvalidCPF):
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeInvalidCPF, "Documento is not a valid CPF"))
	case errors.Is(err, service.ErrNoActivePrice):
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodePriceNotConfigured, "Event has no active price"))
	default:
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
	}
}

// CreateProduct creates the stripe product backing an event
// POST /events/:eventId/stripe-product
func (h *CheckoutHandler) CreateProduct(c *gin.Context) {
	eventID, ok := parseID(c, "eventId")
	if !ok {
		return
	}

	var req dto.CreateStripeProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	productID, err := h.checkoutService.CreateProduct(c.Request.Context(), eventID, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(gin.H{"product_id": productID}))
}

// RotatePrice replaces the active price on an event's product
// POST /events/:eventId/stripe-price
func (h *CheckoutHandler) RotatePrice(c *gin.Context) {
	eventID, ok := parseID(c, "eventId")
	if !ok {
		return
	}

	var req dto.CreateStripePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	priceID, err := h.checkoutService.RotatePrice(c.Request.Context(), eventID, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(gin.H{"price_id": priceID}))
}

// CreateCheckout creates a checkout session for an event
// POST /events/:eventId/checkout
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.checkout.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID, ok := parseID(c, "eventId")
	if !ok {
		span.SetStatus(codes.Error, "invalid event id")
		return
	}
	span.SetAttributes(attribute.Int64("event_id", eventID))

	var req dto.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.checkoutService.CreateCheckout(ctx, eventID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, response.Success(result))
}

// ListCustomers retrieves all checkout customers
// GET /customers
func (h *CheckoutHandler) ListCustomers(c *gin.Context) {
	result, err := h.checkoutService.ListCustomers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}
