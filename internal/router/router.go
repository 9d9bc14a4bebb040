package router

import (
	"github.com/gin-gonic/gin"

	"github.com/sitemilenibarros/backend/internal/di"
	pkgmiddleware "github.com/sitemilenibarros/backend/pkg/middleware"
)

// Config holds routing configuration
type Config struct {
	JWTSecret string
}

// SetupRoutes registers all routes on the given engine. Submission, schema
// reads and webhooks are public; administrative operations require a JWT.
func SetupRoutes(engine *gin.Engine, c *di.Container, cfg *Config) {
	engine.GET("/health", c.HealthHandler.Health)
	engine.GET("/ready", c.HealthHandler.Ready)

	// Provider callbacks. These are authenticated by signature (stripe) or
	// re-fetch (payments), never by JWT.
	webhooks := engine.Group("/webhook")
	{
		webhooks.POST("/payments", c.WebhookHandler.PaymentNotification)
		webhooks.POST("/stripe", c.WebhookHandler.StripeWebhook)
	}

	engine.POST("/forms/:eventId", c.FormHandler.Create)
	engine.POST("/forms/:eventId/with-payment", c.FormHandler.CreateWithPayment)
	engine.GET("/form-schemas/:eventId", c.SchemaHandler.Get)
	engine.POST("/events/:eventId/checkout", c.CheckoutHandler.CreateCheckout)

	auth := engine.Group("/auth")
	{
		auth.POST("/reset-code", c.AuthHandler.IssueResetCode)
		auth.POST("/reset-code/confirm", c.AuthHandler.ConfirmResetCode)
	}

	jwtAuth := pkgmiddleware.JWTMiddleware(&pkgmiddleware.JWTConfig{Secret: cfg.JWTSecret})

	admin := engine.Group("/", jwtAuth, pkgmiddleware.RequireRole("admin"))
	{
		admin.GET("/forms", c.FormHandler.List)
		admin.GET("/forms/id/:id", c.FormHandler.GetByID)
		admin.GET("/forms/by-event/:eventId", c.FormHandler.ListByEvent)
		admin.GET("/forms/payment/:paymentId", c.FormHandler.GetByPaymentID)
		admin.PATCH("/forms/:formId/payment-status", c.FormHandler.OverridePaymentStatus)
		admin.DELETE("/forms/:id/soft", c.FormHandler.SoftDelete)
		admin.PUT("/forms/:id/restore", c.FormHandler.Restore)
		admin.POST("/form-schemas/:eventId", c.SchemaHandler.Upsert)

		admin.POST("/events/:eventId/stripe-product", c.CheckoutHandler.CreateProduct)
		admin.POST("/events/:eventId/stripe-price", c.CheckoutHandler.RotatePrice)
		admin.GET("/customers", c.CheckoutHandler.ListCustomers)
	}
}
