package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/service"
	"github.com/sitemilenibarros/backend/pkg/response"
	"github.com/sitemilenibarros/backend/pkg/telemetry"
)

// WebhookHandler handles provider webhook deliveries
type WebhookHandler struct {
	reconcileService service.ReconcileService
	checkoutService  service.CheckoutService
	logger           *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(reconcileService service.ReconcileService, checkoutService service.CheckoutService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconcileService: reconcileService,
		checkoutService:  checkoutService,
		logger:           logger,
	}
}

// PaymentNotification ingests a payment provider notification.
// The provider retries deliveries that do not get a 2xx, so this endpoint
// always acknowledges; failures are logged and left to the sweeper.
// POST /webhook/payments
func (h *WebhookHandler) PaymentNotification(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.payment")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var notification dto.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&notification); err != nil {
		// Malformed bodies still get acknowledged; the query params may
		// carry enough to identify the payment.
		h.logger.Warn("unparseable webhook body", zap.Error(err))
		notification = dto.PaymentWebhookRequest{}
	}

	queryTopic := c.Query("topic")
	queryID := c.Query("id")
	span.SetAttributes(
		attribute.String("webhook.type", notification.Type),
		attribute.String("webhook.topic", queryTopic),
	)

	if err := h.reconcileService.ProcessWebhook(ctx, &notification, queryTopic, queryID); err != nil {
		span.RecordError(err)
		h.logger.Error("webhook processing failed",
			zap.String("payment_id", notification.PaymentID()),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
}

// StripeWebhook ingests a stripe webhook delivery. Unlike the payment
// provider path, stripe expects a non-2xx on failure so it retries.
// POST /webhook/stripe
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.stripe")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, response.BadRequest("Failed to read request body"))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.checkoutService.HandleWebhook(ctx, payload, signature); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Error("stripe webhook failed", zap.Error(err))
		if errors.Is(err, service.ErrWebhookSignature) {
			c.JSON(http.StatusBadRequest, response.BadRequest("Invalid webhook signature"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Webhook processing failed"))
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{"received": true})
}
