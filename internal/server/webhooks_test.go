package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	paymentdomain "github.com/Alecckie/randa-web-sub001/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type stubPaymentService struct {
	callbacks   []paymentdomain.CallbackInput
	callbackErr error
	payment     *paymentdomain.Payment
}

func (s *stubPaymentService) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.Payment, error) {
	return s.payment, nil
}

func (s *stubPaymentService) HandleCallback(ctx context.Context, in paymentdomain.CallbackInput) error {
	s.callbacks = append(s.callbacks, in)
	return s.callbackErr
}

func (s *stubPaymentService) ReconcilePending(ctx context.Context, opts paymentdomain.ReconcileOptions) (int, error) {
	return 0, nil
}

func (s *stubPaymentService) GetByReference(ctx context.Context, reference string) (*paymentdomain.Payment, error) {
	if s.payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentService) ListByAdvertiser(ctx context.Context, advertiserID snowflake.ID, limit int) ([]paymentdomain.Payment, error) {
	return nil, nil
}

func newTestServer(t *testing.T, svc paymentdomain.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := NewEngine(zap.NewNop(), prometheus.NewRegistry())
	NewServer(ServerParams{
		Gin:        engine,
		Log:        zap.NewNop(),
		PaymentSvc: svc,
	})
	return engine
}

func postCallback(t *testing.T, engine *gin.Engine, payload string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/daraja/callback", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	return rec
}

func TestDarajaCallbackAlwaysAcks(t *testing.T) {
	svc := &stubPaymentService{}
	engine := newTestServer(t, svc)

	payloads := []string{
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"}]}}}}`,
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`,
		`not json at all`,
	}
	for _, payload := range payloads {
		rec := postCallback(t, engine, payload)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %q, got %d", payload, rec.Code)
		}
		var ack map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
			t.Fatalf("ack body: %v", err)
		}
		if ack["ResultDesc"] != "Accepted" {
			t.Fatalf("expected ack body, got %v", ack)
		}
	}

	if len(svc.callbacks) != 3 {
		t.Fatalf("expected 3 callbacks delivered, got %d", len(svc.callbacks))
	}
	if svc.callbacks[0].Receipt != "NLJ7RT61SV" {
		t.Fatalf("expected receipt, got %q", svc.callbacks[0].Receipt)
	}
	if svc.callbacks[1].Code != "1032" {
		t.Fatalf("expected cancel code, got %q", svc.callbacks[1].Code)
	}
}

func TestDarajaCallbackAcksUnattributed(t *testing.T) {
	svc := &stubPaymentService{callbackErr: paymentdomain.ErrUnattributedCallback}
	engine := newTestServer(t, svc)

	rec := postCallback(t, engine, `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_unknown","ResultCode":0}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	engine := newTestServer(t, &stubPaymentService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/PMT-NOPE", nil)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
