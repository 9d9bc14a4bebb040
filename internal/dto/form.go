package dto

import (
	"time"

	"github.com/sitemilenibarros/backend/internal/domain"
)

// CreateFormRequest represents a form submission. The payload shape is
// event-specific; validation happens against the event's form schema, not
// through binding tags.
type CreateFormRequest struct {
	FormData map[string]any `json:"form_data" binding:"required"`
}

// OverridePaymentStatusRequest represents an administrative status override
type OverridePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required,oneof=pending approved rejected cancelled"`
	PaymentID     string `json:"payment_id" binding:"omitempty"`
}

// FormResponse represents a registration in responses
type FormResponse struct {
	ID               int64          `json:"id"`
	EventID          int64          `json:"event_id"`
	FormData         map[string]any `json:"form_data"`
	PaymentStatus    string         `json:"payment_status"`
	PaymentID        string         `json:"payment_id,omitempty"`
	PreferenceID     string         `json:"preference_id,omitempty"`
	PaymentCreatedAt *time.Time     `json:"payment_created_at,omitempty"`
	PaymentUpdatedAt *time.Time     `json:"payment_updated_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        *time.Time     `json:"deleted_at,omitempty"`
}

// NewFormResponse maps a registration onto its response shape. The payload is
// hydrated by the service before it gets here.
func NewFormResponse(reg *domain.Registration, formData map[string]any) *FormResponse {
	if formData == nil {
		formData = reg.Payload
	}
	return &FormResponse{
		ID:               reg.ID,
		EventID:          reg.EventID,
		FormData:         formData,
		PaymentStatus:    string(reg.PaymentStatus),
		PaymentID:        reg.PaymentID,
		PreferenceID:     reg.PreferenceID,
		PaymentCreatedAt: reg.PaymentCreatedAt,
		PaymentUpdatedAt: reg.PaymentUpdatedAt,
		CreatedAt:        reg.CreatedAt,
		UpdatedAt:        reg.UpdatedAt,
		DeletedAt:        reg.DeletedAt,
	}
}

// CreateFormWithPaymentResponse carries the created registration plus the
// hosted checkout the client should redirect to.
type CreateFormWithPaymentResponse struct {
	Form    *FormResponse    `json:"form"`
	Payment *PaymentResponse `json:"payment"`
}

// PaymentResponse describes the checkout preference created for a form
type PaymentResponse struct {
	PreferenceID string  `json:"preference_id"`
	InitPoint    string  `json:"init_point"`
	Price        float64 `json:"price"`
}

// ListFormsResponse represents a paginated list of registrations
type ListFormsResponse struct {
	Forms      []*FormResponse `json:"forms"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}
