package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/domain"
	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/events"
	"github.com/sitemilenibarros/backend/internal/gateway"
	"github.com/sitemilenibarros/backend/internal/repository"
	"github.com/sitemilenibarros/backend/pkg/telemetry"
)

// providerLookupTimeout bounds the authoritative re-fetch of a payment
const providerLookupTimeout = 10 * time.Second

// ReconcileService applies provider webhook notifications to registrations.
// Every notification is acknowledged regardless of outcome; processing errors
// are returned to the handler for logging only and never reach the provider.
type ReconcileService interface {
	// ProcessWebhook handles one webhook delivery. The query topic and id are
	// the fallback when the body omits them.
	ProcessWebhook(ctx context.Context, notification *dto.PaymentWebhookRequest, queryTopic, queryID string) error

	// ReconcilePayment re-fetches one payment from the provider and applies
	// it. Used by the webhook path and the sweeper.
	ReconcilePayment(ctx context.Context, paymentID string) error

	// SweepPending reconciles pending registrations older than olderThan that
	// have a preference but never received a payment id, searching the
	// provider by external reference. Returns how many registrations changed.
	SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type reconcileService struct {
	formRepo    repository.RegistrationRepository
	gateway     gateway.PreferenceGateway
	publisher   events.Publisher
	logger      *zap.Logger
	transitions *telemetry.Counter
	dropped     *telemetry.Counter
}

// NewReconcileService creates a new ReconcileService
func NewReconcileService(
	formRepo repository.RegistrationRepository,
	gw gateway.PreferenceGateway,
	publisher events.Publisher,
	logger *zap.Logger,
) ReconcileService {
	transitions, _ := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "forms_reconcile_transitions_total",
		Description: "Payment status transitions applied by reconciliation",
		Unit:        "{transition}",
	})
	dropped, _ := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "forms_reconcile_dropped_total",
		Description: "Notifications dropped as stale or out of a final status",
		Unit:        "{notification}",
	})
	return &reconcileService{
		formRepo:    formRepo,
		gateway:     gw,
		publisher:   publisher,
		logger:      logger,
		transitions: transitions,
		dropped:     dropped,
	}
}

func (s *reconcileService) recordTransition(ctx context.Context, status domain.PaymentStatus) {
	if s.transitions != nil {
		s.transitions.Inc(ctx, telemetry.PaymentStatusAttr(string(status)))
	}
}

func (s *reconcileService) recordDropped(ctx context.Context, reason string) {
	if s.dropped != nil {
		s.dropped.Inc(ctx, telemetry.ErrorTypeAttr(reason))
	}
}

func (s *reconcileService) ProcessWebhook(ctx context.Context, notification *dto.PaymentWebhookRequest, queryTopic, queryID string) error {
	isPayment := notification.IsPayment() || queryTopic == "payment"
	if !isPayment {
		s.logger.Debug("ignoring non-payment notification",
			zap.String("type", notification.Type),
			zap.String("topic", notification.Topic),
		)
		return nil
	}

	paymentID := notification.PaymentID()
	if paymentID == "" {
		paymentID = queryID
	}
	if paymentID == "" {
		s.logger.Warn("payment notification without a payment id")
		return nil
	}

	return s.ReconcilePayment(ctx, paymentID)
}

func (s *reconcileService) ReconcilePayment(ctx context.Context, paymentID string) error {
	// The webhook body is untrusted; the provider's payment record is the
	// source of truth.
	lookupCtx, cancel := context.WithTimeout(ctx, providerLookupTimeout)
	defer cancel()

	record, err := s.gateway.GetPayment(lookupCtx, paymentID)
	if err != nil {
		s.logger.Error("payment lookup failed",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return err
	}

	formID, err := domain.ParseExternalReference(record.ExternalReference)
	if err != nil {
		s.logger.Warn("payment carries no usable external reference",
			zap.String("payment_id", paymentID),
			zap.String("external_reference", record.ExternalReference),
		)
		return err
	}

	status := domain.MapProviderStatus(record.Status)

	var previous domain.PaymentStatus
	var changed bool
	reg, err := s.formRepo.Reconcile(ctx, formID, func(r *domain.Registration) (bool, error) {
		previous = r.PaymentStatus
		applied, applyErr := r.ApplyReconciliation(status, record.ID, record.DateLastUpdated)
		changed = applied
		return applied, applyErr
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRegistrationNotFound):
			s.logger.Warn("payment references unknown form",
				zap.String("payment_id", paymentID),
				zap.Int64("form_id", formID),
			)
		case errors.Is(err, domain.ErrStatusFinal):
			s.recordDropped(ctx, "final_status")
			s.logger.Warn("dropping transition out of final status",
				zap.Int64("form_id", formID),
				zap.String("current", string(previous)),
				zap.String("incoming", string(status)),
			)
		case errors.Is(err, domain.ErrStaleNotification):
			s.recordDropped(ctx, "stale")
			s.logger.Info("dropping stale notification",
				zap.Int64("form_id", formID),
				zap.Time("provider_updated_at", record.DateLastUpdated),
			)
		default:
			s.logger.Error("reconciliation failed",
				zap.Int64("form_id", formID),
				zap.Error(err),
			)
		}
		return err
	}

	if !changed {
		s.logger.Info("notification already applied",
			zap.Int64("form_id", formID),
			zap.String("payment_status", string(reg.PaymentStatus)),
		)
		return nil
	}

	s.recordTransition(ctx, reg.PaymentStatus)
	s.logger.Info("payment reconciled",
		zap.Int64("form_id", formID),
		zap.String("payment_id", record.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(reg.PaymentStatus)),
	)

	if err := s.publisher.PublishPaymentStatus(ctx, events.NewPaymentStatusEvent(reg, previous)); err != nil {
		s.logger.Error("failed to publish status event",
			zap.Int64("form_id", formID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *reconcileService) SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.formRepo.ListStalePending(ctx, time.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, reg := range stale {
		lookupCtx, cancel := context.WithTimeout(ctx, providerLookupTimeout)
		record, err := s.gateway.SearchByReference(lookupCtx, reg.ExternalReference())
		cancel()
		if err != nil {
			if errors.Is(err, gateway.ErrPaymentRecordNotFound) {
				// The payer never completed checkout; nothing to apply.
				continue
			}
			s.logger.Error("sweep lookup failed",
				zap.Int64("form_id", reg.ID),
				zap.Error(err),
			)
			continue
		}

		status := domain.MapProviderStatus(record.Status)
		var previous domain.PaymentStatus
		var applied bool
		updated, err := s.formRepo.Reconcile(ctx, reg.ID, func(r *domain.Registration) (bool, error) {
			previous = r.PaymentStatus
			var applyErr error
			applied, applyErr = r.ApplyReconciliation(status, record.ID, record.DateLastUpdated)
			return applied, applyErr
		})
		if err != nil {
			s.logger.Warn("sweep reconciliation skipped",
				zap.Int64("form_id", reg.ID),
				zap.Error(err),
			)
			continue
		}
		if !applied {
			continue
		}

		changed++
		s.recordTransition(ctx, updated.PaymentStatus)
		s.logger.Info("sweep reconciled form",
			zap.Int64("form_id", reg.ID),
			zap.String("from", string(previous)),
			zap.String("to", string(updated.PaymentStatus)),
		)
		if err := s.publisher.PublishPaymentStatus(ctx, events.NewPaymentStatusEvent(updated, previous)); err != nil {
			s.logger.Error("failed to publish status event",
				zap.Int64("form_id", reg.ID),
				zap.Error(err),
			)
		}
	}
	return changed, nil
}
