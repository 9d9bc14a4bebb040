package di

import (
	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/events"
	"github.com/sitemilenibarros/backend/internal/gateway"
	"github.com/sitemilenibarros/backend/internal/handler"
	"github.com/sitemilenibarros/backend/internal/repository"
	"github.com/sitemilenibarros/backend/internal/resetcode"
	"github.com/sitemilenibarros/backend/internal/service"
	"github.com/sitemilenibarros/backend/internal/worker"
	"github.com/sitemilenibarros/backend/pkg/database"
	pkgredis "github.com/sitemilenibarros/backend/pkg/redis"
)

// Container holds all dependencies for the forms service
type Container struct {
	// Infrastructure
	DB        *database.PostgresDB
	Redis     *pkgredis.Client
	Publisher events.Publisher

	// Repositories
	FormRepo     repository.RegistrationRepository
	EventRepo    repository.EventRepository
	SchemaRepo   repository.FormSchemaRepository
	CustomerRepo repository.CustomerRepository

	// Gateways
	PreferenceGateway gateway.PreferenceGateway
	CheckoutGateway   gateway.CheckoutGateway

	// Stores
	ResetCodes resetcode.Store

	// Services
	FormService      service.FormService
	ReconcileService service.ReconcileService
	SchemaService    service.SchemaService
	CheckoutService  service.CheckoutService

	// Workers
	Sweeper *worker.Sweeper

	// Handlers
	HealthHandler   *handler.HealthHandler
	FormHandler     *handler.FormHandler
	WebhookHandler  *handler.WebhookHandler
	SchemaHandler   *handler.SchemaHandler
	CheckoutHandler *handler.CheckoutHandler
	AuthHandler     *handler.AuthHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB        *database.PostgresDB
	Redis     *pkgredis.Client
	Publisher events.Publisher

	PreferenceGateway gateway.PreferenceGateway
	CheckoutGateway   gateway.CheckoutGateway

	BackURLs     service.BackURLConfig
	CheckoutURLs service.CheckoutURLConfig
	Sweeper      worker.SweeperConfig

	Logger *zap.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:                cfg.DB,
		Redis:             cfg.Redis,
		Publisher:         cfg.Publisher,
		PreferenceGateway: cfg.PreferenceGateway,
		CheckoutGateway:   cfg.CheckoutGateway,
	}

	// Initialize repositories
	c.FormRepo = repository.NewPostgresRegistrationRepository(c.DB.Pool())
	c.EventRepo = repository.NewPostgresEventRepository(c.DB.Pool())
	c.SchemaRepo = repository.NewPostgresFormSchemaRepository(c.DB.Pool())
	c.CustomerRepo = repository.NewPostgresCustomerRepository(c.DB.Pool())

	// Initialize services
	c.FormService = service.NewFormService(
		c.FormRepo,
		c.EventRepo,
		c.SchemaRepo,
		c.PreferenceGateway,
		c.Publisher,
		cfg.BackURLs,
		cfg.Logger,
	)
	c.ReconcileService = service.NewReconcileService(
		c.FormRepo,
		c.PreferenceGateway,
		c.Publisher,
		cfg.Logger,
	)
	c.SchemaService = service.NewSchemaService(c.SchemaRepo, cfg.Logger)
	c.CheckoutService = service.NewCheckoutService(
		c.EventRepo,
		c.CustomerRepo,
		c.CheckoutGateway,
		cfg.CheckoutURLs,
		cfg.Logger,
	)

	// Initialize stores. Falls back to the in-memory store when redis is
	// not configured.
	if c.Redis != nil {
		c.ResetCodes = resetcode.NewRedisStore(c.Redis.Client())
	} else {
		c.ResetCodes = resetcode.NewMemoryStore()
	}

	// Initialize workers
	c.Sweeper = worker.NewSweeper(c.ReconcileService, cfg.Sweeper, cfg.Logger)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.FormHandler = handler.NewFormHandler(c.FormService)
	c.WebhookHandler = handler.NewWebhookHandler(c.ReconcileService, c.CheckoutService, cfg.Logger)
	c.SchemaHandler = handler.NewSchemaHandler(c.SchemaService)
	c.CheckoutHandler = handler.NewCheckoutHandler(c.CheckoutService)
	c.AuthHandler = handler.NewAuthHandler(c.ResetCodes, cfg.Logger)

	return c
}
