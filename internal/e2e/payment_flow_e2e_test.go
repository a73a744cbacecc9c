package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	advertiserdomain "github.com/Alecckie/randa-web-sub001/internal/advertiser/domain"
	advertiserrepo "github.com/Alecckie/randa-web-sub001/internal/advertiser/repository"
	advertiserservice "github.com/Alecckie/randa-web-sub001/internal/advertiser/service"
	campaigndomain "github.com/Alecckie/randa-web-sub001/internal/campaign/domain"
	campaignservice "github.com/Alecckie/randa-web-sub001/internal/campaign/service"
	"github.com/Alecckie/randa-web-sub001/internal/clock"
	"github.com/Alecckie/randa-web-sub001/internal/config"
	"github.com/Alecckie/randa-web-sub001/internal/gateway/daraja"
	paymentdomain "github.com/Alecckie/randa-web-sub001/internal/payment/domain"
	paymentrepo "github.com/Alecckie/randa-web-sub001/internal/payment/repository"
	paymentservice "github.com/Alecckie/randa-web-sub001/internal/payment/service"
	"github.com/Alecckie/randa-web-sub001/internal/reference"
	"github.com/Alecckie/randa-web-sub001/internal/server"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// darajaStub plays the provider: it accepts STK pushes, remembers each
// checkout and serves status queries for it.
type darajaStub struct {
	mu       sync.Mutex
	srv      *httptest.Server
	nextID   int
	statuses map[string]string
}

func newDarajaStub(t *testing.T) *darajaStub {
	t.Helper()
	stub := &darajaStub{statuses: map[string]string{}}
	stub.srv = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.srv.Close)
	return stub
}

func (d *darajaStub) handle(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch r.URL.Path {
	case "/oauth/v1/generate":
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "stub-token", "expires_in": "3599"})
	case "/mpesa/stkpush/v1/processrequest":
		d.nextID++
		token := fmt.Sprintf("ws_CO_e2e_%d", d.nextID)
		d.statuses[token] = "" // in flight
		_ = json.NewEncoder(w).Encode(map[string]string{
			"CheckoutRequestID": token,
			"ResponseCode":      "0",
			"CustomerMessage":   "Success. Request accepted for processing",
		})
	case "/mpesa/stkpushquery/v1/query":
		var req struct {
			CheckoutRequestID string `json:"CheckoutRequestID"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		code, ok := d.statuses[req.CheckoutRequestID]
		switch {
		case !ok:
			_ = json.NewEncoder(w).Encode(map[string]string{"errorCode": "404.001.04", "errorMessage": "Invalid CheckoutRequestID"})
		case code == "":
			_ = json.NewEncoder(w).Encode(map[string]string{"errorCode": "500.001.1001", "errorMessage": "The transaction is being processed"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"ResponseCode": "0", "ResultCode": code, "ResultDesc": "done"})
		}
	default:
		http.NotFound(w, r)
	}
}

func (d *darajaStub) resolve(token, resultCode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses[token] = resultCode
}

type testEnv struct {
	engine     *gin.Engine
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	stub       *darajaStub
	paymentSvc paymentdomain.Service
}

func startEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := dbConn.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := dbConn.AutoMigrate(
		&advertiserdomain.Advertiser{},
		&campaigndomain.Campaign{},
		&paymentdomain.Payment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	stub := newDarajaStub(t)
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	cfg := config.Config{
		Daraja: config.DarajaConfig{
			BaseURL:        stub.srv.URL,
			ConsumerKey:    "key",
			ConsumerSecret: "secret",
			ShortCode:      "174379",
			Passkey:        "passkey",
			CallbackURL:    "https://randa.example/webhooks/daraja/callback",
			Timeout:        5 * time.Second,
		},
	}

	gatewayClient := daraja.New(cfg, log, nil)
	campaignSvc := campaignservice.NewService(campaignservice.Params{DB: dbConn, Log: log})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:          dbConn,
		Log:         log,
		GenID:       node,
		Clock:       fakeClock,
		Repo:        paymentrepo.Provide(),
		Gateway:     gatewayClient,
		Refs:        reference.NewAllocator(),
		CampaignSvc: campaignSvc,
	})
	advertiserSvc := advertiserservice.New(advertiserservice.Params{
		DB:    dbConn,
		Log:   log,
		GenID: node,
		Repo:  advertiserrepo.Provide(),
	})

	engine := server.NewEngine(log, prometheus.NewRegistry())
	server.NewServer(server.ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		DB:            dbConn,
		Log:           log,
		PaymentSvc:    paymentSvc,
		AdvertiserSvc: advertiserSvc,
	})

	return &testEnv{
		engine:     engine,
		db:         dbConn,
		node:       node,
		clock:      fakeClock,
		stub:       stub,
		paymentSvc: paymentSvc,
	}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	e.engine.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	e.engine.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec.Code
}

func (e *testEnv) createAdvertiser(t *testing.T) string {
	t.Helper()
	rec := e.postJSON(t, "/api/v1/advertisers", map[string]string{
		"name":  "Randa Motors",
		"email": fmt.Sprintf("ads+%s@randa.example", t.Name()),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create advertiser: status %d body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID snowflake.ID `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode advertiser: %v", err)
	}
	return created.ID.String()
}

type paymentView struct {
	Reference      string `json:"reference"`
	Status         string `json:"status"`
	GatewayReceipt string `json:"gateway_receipt"`
}

func TestPaymentFlowWebhookCompletion(t *testing.T) {
	env := startEnv(t)
	advertiserID := env.createAdvertiser(t)

	rec := env.postJSON(t, "/api/v1/payments", map[string]any{
		"advertiser_id": advertiserID,
		"amount":        150000,
		"phone":         "0712345678",
		"description":   "Helmet campaign funding",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("initiate: status %d body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		paymentView
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if created.Status != string(paymentdomain.StatusProcessing) {
		t.Fatalf("expected processing, got %s", created.Status)
	}

	// Simulate the provider's asynchronous callback.
	token := fmt.Sprintf("ws_CO_e2e_%d", 1)
	callback := fmt.Sprintf(`{"Body":{"stkCallback":{"CheckoutRequestID":%q,"ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"}]}}}}`, token)
	hookRec := httptest.NewRecorder()
	hookReq := httptest.NewRequest(http.MethodPost, "/webhooks/daraja/callback", bytes.NewBufferString(callback))
	env.engine.ServeHTTP(hookRec, hookReq)
	if hookRec.Code != http.StatusOK {
		t.Fatalf("callback: status %d", hookRec.Code)
	}

	var fetched paymentView
	if code := env.getJSON(t, "/api/v1/payments/"+created.Reference, &fetched); code != http.StatusOK {
		t.Fatalf("fetch: status %d", code)
	}
	if fetched.Status != string(paymentdomain.StatusCompleted) {
		t.Fatalf("expected completed, got %s", fetched.Status)
	}
	if fetched.GatewayReceipt != "NLJ7RT61SV" {
		t.Fatalf("expected receipt, got %q", fetched.GatewayReceipt)
	}
}

func TestPaymentFlowPollerCompletion(t *testing.T) {
	env := startEnv(t)
	advertiserID := env.createAdvertiser(t)

	rec := env.postJSON(t, "/api/v1/payments", map[string]any{
		"advertiser_id": advertiserID,
		"amount":        80000,
		"phone":         "0712345678",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("initiate: status %d body %s", rec.Code, rec.Body.String())
	}
	var created paymentView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode payment: %v", err)
	}

	// The webhook never arrives; the provider resolves the charge and the
	// reconciliation sweep picks it up.
	env.stub.resolve("ws_CO_e2e_1", "0")
	env.clock.Advance(10 * time.Minute)
	count, err := env.paymentSvc.ReconcilePending(t.Context(), paymentdomain.ReconcileOptions{
		OlderThan:          5 * time.Minute,
		TokenlessOlderThan: 5 * time.Minute,
		HardDeadline:       24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reconciled, got %d", count)
	}

	var fetched paymentView
	if code := env.getJSON(t, "/api/v1/payments/"+created.Reference, &fetched); code != http.StatusOK {
		t.Fatalf("fetch: status %d", code)
	}
	if fetched.Status != string(paymentdomain.StatusCompleted) {
		t.Fatalf("expected completed, got %s", fetched.Status)
	}
}

func TestPaymentFlowUserCancelledViaWebhook(t *testing.T) {
	env := startEnv(t)
	advertiserID := env.createAdvertiser(t)

	rec := env.postJSON(t, "/api/v1/payments", map[string]any{
		"advertiser_id": advertiserID,
		"amount":        50000,
		"phone":         "0712345678",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("initiate: status %d", rec.Code)
	}
	var created paymentView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode payment: %v", err)
	}

	callback := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_e2e_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	hookRec := httptest.NewRecorder()
	hookReq := httptest.NewRequest(http.MethodPost, "/webhooks/daraja/callback", bytes.NewBufferString(callback))
	env.engine.ServeHTTP(hookRec, hookReq)
	if hookRec.Code != http.StatusOK {
		t.Fatalf("callback: status %d", hookRec.Code)
	}

	var fetched paymentView
	if code := env.getJSON(t, "/api/v1/payments/"+created.Reference, &fetched); code != http.StatusOK {
		t.Fatalf("fetch: status %d", code)
	}
	if fetched.Status != string(paymentdomain.StatusCancelled) {
		t.Fatalf("expected cancelled, got %s", fetched.Status)
	}
}
