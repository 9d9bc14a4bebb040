package dto

// CreateStripeProductRequest represents an admin request to create the
// event's stripe product
type CreateStripeProductRequest struct {
	Name        string `json:"name" binding:"omitempty,max=255"`
	Description string `json:"description" binding:"omitempty,max=500"`
}

// CreateStripePriceRequest represents an admin request to rotate the event's
// stripe price for one modality
type CreateStripePriceRequest struct {
	Modality    string `json:"modality" binding:"required,oneof=presencial online"`
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
}

// CreateCheckoutRequest represents a card-checkout request
type CreateCheckoutRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=255"`
	Email     string `json:"email" binding:"required,email"`
	Documento string `json:"documento" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"omitempty,gte=1,lte=10"`
}

// CheckoutResponse carries the hosted checkout session the client should
// redirect to
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	CustomerID  int64  `json:"customer_id"`
}

// CustomerResponse represents a checkout customer in responses
type CustomerResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Documento        string `json:"documento"`
	StripeCustomerID string `json:"stripe_customer_id,omitempty"`
	Status           string `json:"status"`
}
