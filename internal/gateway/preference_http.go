package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPPreferenceGateway implements PreferenceGateway against the provider's
// REST API.
type HTTPPreferenceGateway struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewHTTPPreferenceGateway creates a new HTTP preference gateway
func NewHTTPPreferenceGateway(baseURL, accessToken string) *HTTPPreferenceGateway {
	return &HTTPPreferenceGateway{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id,omitempty"`
}

type preferencePayload struct {
	Items             []preferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	Payer             *struct {
		Email string `json:"email"`
	} `json:"payer,omitempty"`
	BackURLs *struct {
		Success string `json:"success,omitempty"`
		Failure string `json:"failure,omitempty"`
		Pending string `json:"pending,omitempty"`
	} `json:"back_urls,omitempty"`
	AutoReturn string `json:"auto_return,omitempty"`
}

// CreatePreference creates a hosted checkout preference at the provider
func (g *HTTPPreferenceGateway) CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error) {
	payload := preferencePayload{
		Items: []preferenceItem{{
			Title:      req.Title,
			Quantity:   req.Quantity,
			UnitPrice:  req.UnitPrice,
			CurrencyID: req.CurrencyID,
		}},
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
	}
	if req.PayerEmail != "" {
		payload.Payer = &struct {
			Email string `json:"email"`
		}{Email: req.PayerEmail}
	}
	if req.BackURLs != (BackURLs{}) {
		payload.BackURLs = &struct {
			Success string `json:"success,omitempty"`
			Failure string `json:"failure,omitempty"`
			Pending string `json:"pending,omitempty"`
		}{
			Success: req.BackURLs.Success,
			Failure: req.BackURLs.Failure,
			Pending: req.BackURLs.Pending,
		}
		if req.BackURLs.Success != "" {
			payload.AutoReturn = "approved"
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preference: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create preference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d creating preference", resp.StatusCode)
	}

	var created struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode preference response: %w", err)
	}

	return &Preference{
		ID:               created.ID,
		InitPoint:        created.InitPoint,
		SandboxInitPoint: created.SandboxInitPoint,
	}, nil
}

// GetPayment retrieves the provider's record of a payment
func (g *HTTPPreferenceGateway) GetPayment(ctx context.Context, paymentID string) (*PaymentRecord, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/%s", g.baseURL, url.PathEscape(paymentID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPaymentRecordNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d fetching payment", resp.StatusCode)
	}

	var record paymentBody
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode payment response: %w", err)
	}
	return record.toRecord(), nil
}

// paymentBody is the provider's payment representation
type paymentBody struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount"`
	DateCreated       time.Time   `json:"date_created"`
	DateLastUpdated   time.Time   `json:"date_last_updated"`
}

func (b *paymentBody) toRecord() *PaymentRecord {
	return &PaymentRecord{
		ID:                b.ID.String(),
		Status:            b.Status,
		StatusDetail:      b.StatusDetail,
		ExternalReference: b.ExternalReference,
		TransactionAmount: b.TransactionAmount,
		DateCreated:       b.DateCreated,
		DateLastUpdated:   b.DateLastUpdated,
	}
}

// SearchByReference retrieves the most recent payment for an external
// reference
func (g *HTTPPreferenceGateway) SearchByReference(ctx context.Context, externalReference string) (*PaymentRecord, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/search?external_reference=%s&sort=date_last_updated&criteria=desc",
		g.baseURL, url.QueryEscape(externalReference))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to search payments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d searching payments", resp.StatusCode)
	}

	var results struct {
		Results []paymentBody `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if len(results.Results) == 0 {
		return nil, ErrPaymentRecordNotFound
	}
	return results.Results[0].toRecord(), nil
}

// Name returns the gateway name
func (g *HTTPPreferenceGateway) Name() string {
	return "preference-http"
}
