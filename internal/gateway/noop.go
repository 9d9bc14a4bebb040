package gateway

import (
	"context"
	"fmt"
)

// NoOpPreferenceGateway is a no-op implementation for local development when
// no provider credentials are configured. Preferences get synthetic ids and
// payment lookups always miss.
type NoOpPreferenceGateway struct {
	counter int
}

// NewNoOpPreferenceGateway creates a new no-op preference gateway
func NewNoOpPreferenceGateway() *NoOpPreferenceGateway {
	return &NoOpPreferenceGateway{}
}

func (g *NoOpPreferenceGateway) CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error) {
	g.counter++
	id := fmt.Sprintf("noop-pref-%d", g.counter)
	return &Preference{
		ID:        id,
		InitPoint: "https://checkout.invalid/" + id,
	}, nil
}

func (g *NoOpPreferenceGateway) GetPayment(ctx context.Context, paymentID string) (*PaymentRecord, error) {
	return nil, ErrPaymentRecordNotFound
}

func (g *NoOpPreferenceGateway) SearchByReference(ctx context.Context, externalReference string) (*PaymentRecord, error) {
	return nil, ErrPaymentRecordNotFound
}

func (g *NoOpPreferenceGateway) Name() string {
	return "noop"
}
