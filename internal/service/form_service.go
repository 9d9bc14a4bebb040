package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/domain"
	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/events"
	"github.com/sitemilenibarros/backend/internal/gateway"
	"github.com/sitemilenibarros/backend/internal/repository"
	"github.com/sitemilenibarros/backend/internal/schema"
)

// ErrPayloadInvalid wraps the ordered validation errors of a rejected payload
type ErrPayloadInvalid struct {
	Errors []string
}

func (e *ErrPayloadInvalid) Error() string {
	return fmt.Sprintf("payload validation failed: %d error(s)", len(e.Errors))
}

// BackURLConfig holds the redirect and notification URLs handed to the
// payment provider when creating a preference.
type BackURLConfig struct {
	Success         string
	Failure         string
	Pending         string
	NotificationURL string
}

// FormService defines registration form operations
type FormService interface {
	// Create persists a validated form submission without a payment
	Create(ctx context.Context, eventID int64, req *dto.CreateFormRequest) (*dto.FormResponse, error)

	// CreateWithPayment persists a validated form submission and creates a
	// checkout preference for it
	CreateWithPayment(ctx context.Context, eventID int64, req *dto.CreateFormRequest) (*dto.CreateFormWithPaymentResponse, error)

	// GetByID retrieves one form
	GetByID(ctx context.Context, id int64) (*dto.FormResponse, error)

	// GetByPaymentID retrieves the form carrying a payment id
	GetByPaymentID(ctx context.Context, paymentID string) (*dto.FormResponse, error)

	// List retrieves forms, newest first
	List(ctx context.Context, page, limit int) (*dto.ListFormsResponse, error)

	// ListByEvent retrieves an event's forms, newest first
	ListByEvent(ctx context.Context, eventID int64, page, limit int) (*dto.ListFormsResponse, error)

	// OverridePaymentStatus sets the payment status unconditionally (admin)
	OverridePaymentStatus(ctx context.Context, id int64, req *dto.OverridePaymentStatusRequest) (*dto.FormResponse, error)

	// SoftDelete marks a form deleted, freeing its capacity slot
	SoftDelete(ctx context.Context, id int64) error

	// Restore clears the soft-delete marker
	Restore(ctx context.Context, id int64) error
}

type formService struct {
	formRepo   repository.RegistrationRepository
	eventRepo  repository.EventRepository
	schemaRepo repository.FormSchemaRepository
	gateway    gateway.PreferenceGateway
	publisher  events.Publisher
	backURLs   BackURLConfig
	logger     *zap.Logger
}

// NewFormService creates a new FormService
func NewFormService(
	formRepo repository.RegistrationRepository,
	eventRepo repository.EventRepository,
	schemaRepo repository.FormSchemaRepository,
	gw gateway.PreferenceGateway,
	publisher events.Publisher,
	backURLs BackURLConfig,
	logger *zap.Logger,
) FormService {
	return &formService{
		formRepo:   formRepo,
		eventRepo:  eventRepo,
		schemaRepo: schemaRepo,
		gateway:    gw,
		publisher:  publisher,
		backURLs:   backURLs,
		logger:     logger,
	}
}

// validatePayload checks the submission against the event's form schema.
// Events without a schema accept any payload.
func (s *formService) validatePayload(ctx context.Context, eventID int64, payload map[string]any) (*schema.Schema, error) {
	modality, _ := payload["modality"].(string)
	sc, err := s.schemaRepo.Get(ctx, eventID, modality)
	if err != nil {
		if errors.Is(err, repository.ErrSchemaNotFound) {
			return nil, nil
		}
		return nil, err
	}

	result := schema.Validate(sc, payload)
	if !result.IsValid {
		return nil, &ErrPayloadInvalid{Errors: result.Errors}
	}
	return sc, nil
}

// createRegistration routes presencial submissions through the capacity
// guard; online submissions have no limit.
func (s *formService) createRegistration(ctx context.Context, reg *domain.Registration, event *domain.Event) error {
	if reg.Modality() != domain.ModalityOnsite {
		return s.formRepo.Create(ctx, reg)
	}

	limit := domain.DefaultOnsiteSlotLimit
	if event != nil {
		limit = event.OnsiteSlotLimit()
	}
	if err := s.formRepo.CreateWithCapacity(ctx, reg, limit); err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			return fmt.Errorf("%w: limit of %d onsite slots reached", domain.ErrCapacityExceeded, limit)
		}
		return err
	}
	return nil
}

func (s *formService) Create(ctx context.Context, eventID int64, req *dto.CreateFormRequest) (*dto.FormResponse, error) {
	sc, err := s.validatePayload(ctx, eventID, req.FormData)
	if err != nil {
		return nil, err
	}

	reg, err := domain.NewRegistration(eventID, req.FormData)
	if err != nil {
		return nil, err
	}
	if m := reg.Modality(); m != "" && !m.IsValid() {
		return nil, domain.ErrInvalidModality
	}

	// Plain creates tolerate a missing event; the capacity guard then falls
	// back to the default limit.
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.createRegistration(ctx, reg, event); err != nil {
		return nil, err
	}

	s.logger.Info("form created",
		zap.Int64("form_id", reg.ID),
		zap.Int64("event_id", eventID),
		zap.String("modality", string(reg.Modality())),
	)
	return dto.NewFormResponse(reg, schema.Hydrate(sc, reg.Payload)), nil
}

func (s *formService) CreateWithPayment(ctx context.Context, eventID int64, req *dto.CreateFormRequest) (*dto.CreateFormWithPaymentResponse, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}

	sc, err := s.validatePayload(ctx, eventID, req.FormData)
	if err != nil {
		return nil, err
	}

	reg, err := domain.NewRegistration(eventID, req.FormData)
	if err != nil {
		return nil, err
	}
	modality := reg.Modality()
	if !modality.IsValid() {
		return nil, domain.ErrInvalidModality
	}

	priceCents, err := event.PriceFor(modality)
	if err != nil {
		return nil, err
	}
	price := float64(priceCents) / 100

	if err := s.createRegistration(ctx, reg, event); err != nil {
		return nil, err
	}

	pref, err := s.gateway.CreatePreference(ctx, &gateway.PreferenceRequest{
		Title:             fmt.Sprintf("%s - %s", event.Title, modality),
		Quantity:          1,
		UnitPrice:         price,
		ExternalReference: reg.ExternalReference(),
		PayerEmail:        reg.Email(),
		NotificationURL:   s.backURLs.NotificationURL,
		BackURLs: gateway.BackURLs{
			Success: s.backURLs.Success,
			Failure: s.backURLs.Failure,
			Pending: s.backURLs.Pending,
		},
	})
	if err != nil {
		// The pending registration stays; the admin override path or the
		// sweeper resolves it.
		s.logger.Error("preference creation failed",
			zap.Int64("form_id", reg.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create payment preference: %w", err)
	}

	if err := s.formRepo.SetPreference(ctx, reg.ID, pref.ID); err != nil {
		return nil, err
	}
	reg.PreferenceID = pref.ID

	s.logger.Info("form created with payment",
		zap.Int64("form_id", reg.ID),
		zap.Int64("event_id", eventID),
		zap.String("preference_id", pref.ID),
	)

	return &dto.CreateFormWithPaymentResponse{
		Form: dto.NewFormResponse(reg, schema.Hydrate(sc, reg.Payload)),
		Payment: &dto.PaymentResponse{
			PreferenceID: pref.ID,
			InitPoint:    pref.InitPoint,
			Price:        price,
		},
	}, nil
}

func (s *formService) GetByID(ctx context.Context, id int64) (*dto.FormResponse, error) {
	reg, err := s.formRepo.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return s.hydrated(ctx, reg), nil
}

func (s *formService) GetByPaymentID(ctx context.Context, paymentID string) (*dto.FormResponse, error) {
	reg, err := s.formRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.hydrated(ctx, reg), nil
}

// hydrated shapes the stored payload through the event's schema when one
// exists.
func (s *formService) hydrated(ctx context.Context, reg *domain.Registration) *dto.FormResponse {
	sc, err := s.schemaRepo.Get(ctx, reg.EventID, string(reg.Modality()))
	if err != nil {
		return dto.NewFormResponse(reg, nil)
	}
	return dto.NewFormResponse(reg, schema.Hydrate(sc, reg.Payload))
}

func (s *formService) List(ctx context.Context, page, limit int) (*dto.ListFormsResponse, error) {
	regs, total, err := s.formRepo.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	return s.toListResponse(ctx, regs, total, page, limit), nil
}

func (s *formService) ListByEvent(ctx context.Context, eventID int64, page, limit int) (*dto.ListFormsResponse, error) {
	regs, total, err := s.formRepo.ListByEvent(ctx, eventID, page, limit)
	if err != nil {
		return nil, err
	}
	return s.toListResponse(ctx, regs, total, page, limit), nil
}

func (s *formService) toListResponse(ctx context.Context, regs []*domain.Registration, total, page, limit int) *dto.ListFormsResponse {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	forms := make([]*dto.FormResponse, 0, len(regs))
	for _, reg := range regs {
		forms = append(forms, s.hydrated(ctx, reg))
	}
	return &dto.ListFormsResponse{
		Forms:      forms,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

func (s *formService) OverridePaymentStatus(ctx context.Context, id int64, req *dto.OverridePaymentStatusRequest) (*dto.FormResponse, error) {
	reg, err := s.formRepo.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}

	previous := reg.PaymentStatus
	if err := reg.OverridePayment(domain.PaymentStatus(req.PaymentStatus), req.PaymentID); err != nil {
		return nil, err
	}
	if err := s.formRepo.Update(ctx, reg); err != nil {
		return nil, err
	}

	if previous != reg.PaymentStatus {
		if err := s.publisher.PublishPaymentStatus(ctx, events.NewPaymentStatusEvent(reg, previous)); err != nil {
			s.logger.Error("failed to publish status event", zap.Int64("form_id", reg.ID), zap.Error(err))
		}
	}

	s.logger.Info("payment status overridden",
		zap.Int64("form_id", id),
		zap.String("from", string(previous)),
		zap.String("to", req.PaymentStatus),
	)
	return s.hydrated(ctx, reg), nil
}

func (s *formService) SoftDelete(ctx context.Context, id int64) error {
	if err := s.formRepo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("form soft-deleted", zap.Int64("form_id", id))
	return nil
}

func (s *formService) Restore(ctx context.Context, id int64) error {
	if err := s.formRepo.Restore(ctx, id); err != nil {
		return err
	}
	s.logger.Info("form restored", zap.Int64("form_id", id))
	return nil
}
