package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sitemilenibarros/backend/internal/domain"
	"github.com/sitemilenibarros/backend/internal/dto"
	"github.com/sitemilenibarros/backend/internal/service"
)

type fakeFormService struct {
	createErr  error
	paymentErr error
	form       *dto.FormResponse
	withPay    *dto.CreateFormWithPaymentResponse
}

func (f *fakeFormService) Create(ctx context.Context, eventID int64, req *dto.CreateFormRequest) (*dto.FormResponse, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.form, nil
}

func (f *fakeFormService) CreateWithPayment(ctx context.Context, eventID int64, req *dto.CreateFormRequest) (*dto.CreateFormWithPaymentResponse, error) {
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	return f.withPay, nil
}

func (f *fakeFormService) GetByID(ctx context.Context, id int64) (*dto.FormResponse, error) {
	if f.form == nil {
		return nil, domain.ErrRegistrationNotFound
	}
	return f.form, nil
}

func (f *fakeFormService) GetByPaymentID(ctx context.Context, paymentID string) (*dto.FormResponse, error) {
	if f.form == nil {
		return nil, domain.ErrRegistrationNotFound
	}
	return f.form, nil
}

func (f *fakeFormService) List(ctx context.Context, page, limit int) (*dto.ListFormsResponse, error) {
	return &dto.ListFormsResponse{Forms: []*dto.FormResponse{}, Page: page, Limit: limit}, nil
}

func (f *fakeFormService) ListByEvent(ctx context.Context, eventID int64, page, limit int) (*dto.ListFormsResponse, error) {
	return &dto.ListFormsResponse{Forms: []*dto.FormResponse{}, Page: page, Limit: limit}, nil
}

func (f *fakeFormService) OverridePaymentStatus(ctx context.Context, id int64, req *dto.OverridePaymentStatusRequest) (*dto.FormResponse, error) {
	if f.form == nil {
		return nil, domain.ErrRegistrationNotFound
	}
	return f.form, nil
}

func (f *fakeFormService) SoftDelete(ctx context.Context, id int64) error {
	if f.form == nil {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

func (f *fakeFormService) Restore(ctx context.Context, id int64) error {
	if f.form == nil {
		return domain.ErrNotDeleted
	}
	return nil
}

func formTestRouter(svc service.FormService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewFormHandler(svc)
	router := gin.New()
	router.POST("/forms/:eventId", h.Create)
	router.POST("/forms/:eventId/with-payment", h.CreateWithPayment)
	router.GET("/forms/id/:id", h.GetByID)
	router.PATCH("/forms/:eventId/payment-status", h.OverridePaymentStatus)
	return router
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var parsed map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	return parsed
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	parsed := decodeEnvelope(t, w)
	errorObj, ok := parsed["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected error object, body: %s", w.Body.String())
	}
	code, _ := errorObj["code"].(string)
	return code
}

func TestFormHandler_Create_Success(t *testing.T) {
	svc := &fakeFormService{form: &dto.FormResponse{ID: 1, EventID: 5, PaymentStatus: "pending"}}
	router := formTestRouter(svc)

	w := postJSON(router, "/forms/5", gin.H{
		"form_data": gin.H{"nome": "Ana", "modality": "online"},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	parsed := decodeEnvelope(t, w)
	if parsed["success"] != true {
		t.Error("Expected success=true")
	}
}

func TestFormHandler_Create_MissingFormData(t *testing.T) {
	router := formTestRouter(&fakeFormService{})

	w := postJSON(router, "/forms/5", gin.H{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestFormHandler_Create_InvalidEventID(t *testing.T) {
	router := formTestRouter(&fakeFormService{})

	w := postJSON(router, "/forms/abc", gin.H{"form_data": gin.H{"nome": "Ana"}})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestFormHandler_CreateWithPayment_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown event", domain.ErrEventNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid modality", domain.ErrInvalidModality, http.StatusBadRequest, "INVALID_MODALITY"},
		{"no price", domain.ErrPriceNotConfigured, http.StatusBadRequest, "PRICE_NOT_CONFIGURED"},
		{"capacity", domain.ErrCapacityExceeded, http.StatusBadRequest, "CAPACITY_EXCEEDED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := formTestRouter(&fakeFormService{paymentErr: tt.err})

			w := postJSON(router, "/forms/5/with-payment", gin.H{
				"form_data": gin.H{"nome": "Ana", "modality": "presencial"},
			})

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if code := errorCode(t, w); code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, code)
			}
		})
	}
}

func TestFormHandler_CreateWithPayment_ValidationErrors(t *testing.T) {
	router := formTestRouter(&fakeFormService{
		paymentErr: &service.ErrPayloadInvalid{Errors: []string{
			"missing required field: nome",
			"field email must be a valid email",
		}},
	})

	w := postJSON(router, "/forms/5/with-payment", gin.H{
		"form_data": gin.H{"modality": "online"},
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	parsed := decodeEnvelope(t, w)
	errorObj := parsed["error"].(map[string]interface{})
	if errorObj["code"] != "VALIDATION_FAILED" {
		t.Errorf("Expected VALIDATION_FAILED, got %v", errorObj["code"])
	}
	errs, ok := errorObj["errors"].([]interface{})
	if !ok || len(errs) != 2 {
		t.Errorf("Expected 2 validation errors, got %v", errorObj["errors"])
	}
}

func TestFormHandler_CreateWithPayment_Success(t *testing.T) {
	svc := &fakeFormService{withPay: &dto.CreateFormWithPaymentResponse{
		Form: &dto.FormResponse{ID: 1, EventID: 5, PaymentStatus: "pending"},
		Payment: &dto.PaymentResponse{
			PreferenceID: "pref-1",
			InitPoint:    "https://pay.example.com/pref-1",
			Price:        150.0,
		},
	}}
	router := formTestRouter(svc)

	w := postJSON(router, "/forms/5/with-payment", gin.H{
		"form_data": gin.H{"nome": "Ana", "modality": "presencial"},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	parsed := decodeEnvelope(t, w)
	data := parsed["data"].(map[string]interface{})
	payment, ok := data["payment"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected payment object, got %v", data)
	}
	if payment["preference_id"] != "pref-1" {
		t.Errorf("Expected preference_id pref-1, got %v", payment["preference_id"])
	}
	if payment["init_point"] != "https://pay.example.com/pref-1" {
		t.Errorf("Unexpected init_point %v", payment["init_point"])
	}
}

func TestFormHandler_GetByID_NotFound(t *testing.T) {
	router := formTestRouter(&fakeFormService{})

	req := httptest.NewRequest(http.MethodGet, "/forms/id/99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
