package daraja

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alecckie/randa-web-sub001/internal/config"
	gatewaydomain "github.com/Alecckie/randa-web-sub001/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		Daraja: config.DarajaConfig{
			BaseURL:        srv.URL,
			ConsumerKey:    "key",
			ConsumerSecret: "secret",
			ShortCode:      "174379",
			Passkey:        "passkey",
			CallbackURL:    "https://randa.example/webhooks/daraja/callback",
			Timeout:        5 * time.Second,
		},
	}
	return New(cfg, zap.NewNop(), nil)
}

func serveOAuth(w http.ResponseWriter) {
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token": "test-token",
		"expires_in":   "3599",
	})
}

func TestInitiateCharge(t *testing.T) {
	var gotPush stkPushRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			serveOAuth(w)
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPush))
			_ = json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResponseCode":      "0",
				"CustomerMessage":   "Success. Request accepted for processing",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	resp, err := client.InitiateCharge(context.Background(), gatewaydomain.ChargeRequest{
		Phone:            "254712345678",
		Amount:           1500,
		AccountReference: "PMT-01J0TEST",
		Description:      "Campaign funding",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", resp.CorrelationToken)

	assert.Equal(t, "174379", gotPush.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", gotPush.TransactionType)
	assert.Equal(t, int64(1500), gotPush.Amount)
	assert.Equal(t, "254712345678", gotPush.PhoneNumber)
	assert.Equal(t, "PMT-01J0TEST", gotPush.AccountReference)
	assert.NotEmpty(t, gotPush.Password)
}

func TestInitiateChargeRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			serveOAuth(w)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "500.001.1001",
			"errorMessage": "Unable to lock subscriber",
		})
	})

	_, err := client.InitiateCharge(context.Background(), gatewaydomain.ChargeRequest{
		Phone:  "254712345678",
		Amount: 1500,
	})
	require.ErrorIs(t, err, gatewaydomain.ErrChargeRejected)
}

func TestInitiateChargeServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			serveOAuth(w)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.InitiateCharge(context.Background(), gatewaydomain.ChargeRequest{
		Phone:  "254712345678",
		Amount: 1500,
	})
	require.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)
}

func TestQueryStatus(t *testing.T) {
	cases := []struct {
		name    string
		body    map[string]string
		outcome gatewaydomain.Outcome
		code    string
	}{
		{
			name:    "success",
			body:    map[string]string{"ResponseCode": "0", "ResultCode": "0", "ResultDesc": "The service request is processed successfully."},
			outcome: gatewaydomain.OutcomeSuccess,
			code:    "0",
		},
		{
			name:    "user cancelled",
			body:    map[string]string{"ResponseCode": "0", "ResultCode": "1032", "ResultDesc": "Request cancelled by user"},
			outcome: gatewaydomain.OutcomeFailure,
			code:    "1032",
		},
		{
			name:    "still processing",
			body:    map[string]string{"errorCode": "500.001.1001", "errorMessage": "The transaction is being processed"},
			outcome: gatewaydomain.OutcomePending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/oauth/v1/generate" {
					serveOAuth(w)
					return
				}
				_ = json.NewEncoder(w).Encode(tc.body)
			})

			result, err := client.QueryStatus(context.Background(), "ws_CO_191220191020363925")
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, result.Outcome)
			assert.Equal(t, tc.code, result.Code)
		})
	}
}

func TestQueryStatusUnknownToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			serveOAuth(w)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "404.001.04",
			"errorMessage": "Invalid CheckoutRequestID",
		})
	})

	_, err := client.QueryStatus(context.Background(), "ws_CO_bogus")
	require.ErrorIs(t, err, gatewaydomain.ErrUnknownToken)
}

func TestQueryStatusTransientErrorCode(t *testing.T) {
	// Expired bearer tokens and throttling come back as 4xx bodies with
	// errorCodes that say nothing about the charge itself. They must not
	// look like an unknown token, or a paid customer could be failed.
	cases := []struct {
		name   string
		status int
		body   map[string]string
	}{
		{
			name:   "expired access token",
			status: http.StatusNotFound,
			body:   map[string]string{"errorCode": "404.001.03", "errorMessage": "Invalid Access Token"},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   map[string]string{"errorCode": "429.001.01", "errorMessage": "Spike arrest violation"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/oauth/v1/generate" {
					serveOAuth(w)
					return
				}
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(tc.body)
			})

			_, err := client.QueryStatus(context.Background(), "ws_CO_191220191020363925")
			require.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)
			require.NotErrorIs(t, err, gatewaydomain.ErrUnknownToken)
		})
	}
}

func TestMapResultCode(t *testing.T) {
	cases := map[string]gatewaydomain.Outcome{
		"0":     gatewaydomain.OutcomeSuccess,
		"1":     gatewaydomain.OutcomeFailure,
		"1032":  gatewaydomain.OutcomeFailure,
		"1037":  gatewaydomain.OutcomeFailure,
		"":      gatewaydomain.OutcomeUnrecognized,
		"oops":  gatewaydomain.OutcomeUnrecognized,
		" 0 ":   gatewaydomain.OutcomeSuccess,
		"1.032": gatewaydomain.OutcomeUnrecognized,
	}
	for code, want := range cases {
		assert.Equal(t, want, MapResultCode(code), "code %q", code)
	}
}

func TestParseCallbackSuccess(t *testing.T) {
	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1500.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`)

	notice := ParseCallback(payload)
	assert.Equal(t, gatewaydomain.OutcomeSuccess, notice.Outcome)
	assert.Equal(t, "ws_CO_191220191020363925", notice.CorrelationToken)
	assert.Equal(t, "0", notice.Code)
	assert.Equal(t, "NLJ7RT61SV", notice.Receipt)
}

func TestParseCallbackUserCancelled(t *testing.T) {
	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`)

	notice := ParseCallback(payload)
	assert.Equal(t, gatewaydomain.OutcomeFailure, notice.Outcome)
	assert.Equal(t, "1032", notice.Code)
	assert.Empty(t, notice.Receipt)
}

func TestParseCallbackMalformed(t *testing.T) {
	notice := ParseCallback([]byte(`{"Body": [1,2,3]`))
	assert.Equal(t, gatewaydomain.OutcomeUnrecognized, notice.Outcome)
	assert.Empty(t, notice.CorrelationToken)
}
