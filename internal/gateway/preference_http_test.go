package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPPreferenceGateway_CreatePreference(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/preferences" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":                 "pref-abc",
			"init_point":         "https://checkout.example.com/pref-abc",
			"sandbox_init_point": "https://sandbox.example.com/pref-abc",
		})
	}))
	defer server.Close()

	gw := NewHTTPPreferenceGateway(server.URL, "token-123")
	pref, err := gw.CreatePreference(context.Background(), &PreferenceRequest{
		Title:             "Congresso 2026 - presencial",
		Quantity:          1,
		UnitPrice:         150.00,
		ExternalReference: "form-42-presencial",
		PayerEmail:        "ana@example.com",
		NotificationURL:   "https://api.example.com/webhook",
		BackURLs:          BackURLs{Success: "https://site.example.com/ok"},
	})
	if err != nil {
		t.Fatalf("CreatePreference: %v", err)
	}

	if pref.ID != "pref-abc" {
		t.Errorf("Expected id 'pref-abc', got '%s'", pref.ID)
	}
	if pref.InitPoint != "https://checkout.example.com/pref-abc" {
		t.Errorf("Unexpected init point '%s'", pref.InitPoint)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Expected bearer token, got '%s'", gotAuth)
	}
	if gotPayload["external_reference"] != "form-42-presencial" {
		t.Errorf("Expected external_reference to be forwarded, got %v", gotPayload["external_reference"])
	}
	if gotPayload["auto_return"] != "approved" {
		t.Errorf("Expected auto_return 'approved', got %v", gotPayload["auto_return"])
	}
	items, ok := gotPayload["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("Expected one item, got %v", gotPayload["items"])
	}
}

func TestHTTPPreferenceGateway_GetPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/12345" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":                 12345,
			"status":             "approved",
			"status_detail":      "accredited",
			"external_reference": "form-42-presencial",
			"transaction_amount": 150.00,
			"date_created":       "2026-08-30T11:26:38.000-03:00",
			"date_last_updated":  "2026-08-30T11:27:02.000-03:00",
		})
	}))
	defer server.Close()

	gw := NewHTTPPreferenceGateway(server.URL, "token-123")
	record, err := gw.GetPayment(context.Background(), "12345")
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}

	if record.ID != "12345" {
		t.Errorf("Expected id '12345', got '%s'", record.ID)
	}
	if record.Status != "approved" {
		t.Errorf("Expected status 'approved', got '%s'", record.Status)
	}
	if record.ExternalReference != "form-42-presencial" {
		t.Errorf("Unexpected external reference '%s'", record.ExternalReference)
	}
	if !record.DateLastUpdated.After(record.DateCreated) {
		t.Error("Expected date_last_updated after date_created")
	}
}

func TestHTTPPreferenceGateway_GetPayment_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	gw := NewHTTPPreferenceGateway(server.URL, "token-123")
	_, err := gw.GetPayment(context.Background(), "99999")
	if !errors.Is(err, ErrPaymentRecordNotFound) {
		t.Errorf("Expected ErrPaymentRecordNotFound, got %v", err)
	}
}

func TestHTTPPreferenceGateway_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	gw := NewHTTPPreferenceGateway(server.URL, "token-123")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gw.GetPayment(ctx, "1")
	if err == nil {
		t.Fatal("Expected timeout error")
	}
}
