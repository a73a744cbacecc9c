package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Alecckie/randa-web-sub001/internal/config"
	gatewaydomain "github.com/Alecckie/randa-web-sub001/internal/gateway/domain"
	obsmetrics "github.com/Alecckie/randa-web-sub001/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	transactionType = "CustomerPayBillOnline"
	timestampLayout = "20060102150405"
)

// Daraja result codes that map to a user-caused failure rather than a
// provider error. Anything non-zero and unlisted still fails the charge;
// the code is kept in the status message for audit.
const (
	resultCodeSuccess            = 0
	resultCodeInsufficientFunds  = 1
	resultCodeUserCancelled      = 1032
	resultCodeTimeoutUnreachable = 1037
)

// Query errorCodes the reconciliation sweep may act on. 500.001.1001 means
// the charge is still in flight; 404.001.04 means the provider does not
// know the CheckoutRequestID at all. Every other errorCode (expired bearer
// tokens, throttling) says nothing definitive about the charge.
const (
	errorCodeStillProcessing = "500.001.1001"
	errorCodeInvalidToken    = "404.001.04"
)

// Client speaks the Daraja STK push protocol. It implements
// gatewaydomain.Client.
type Client struct {
	httpClient *http.Client
	log        *zap.Logger
	metrics    *obsmetrics.Metrics

	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
	passkey        string
	callbackURL    string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func New(cfg config.Config, log *zap.Logger, metrics *obsmetrics.Metrics) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Daraja.Timeout},
		log:            log.Named("gateway.daraja"),
		metrics:        metrics,
		baseURL:        strings.TrimRight(cfg.Daraja.BaseURL, "/"),
		consumerKey:    cfg.Daraja.ConsumerKey,
		consumerSecret: cfg.Daraja.ConsumerSecret,
		shortCode:      cfg.Daraja.ShortCode,
		passkey:        cfg.Daraja.Passkey,
		callbackURL:    cfg.Daraja.CallbackURL,
	}
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode string `json:"ResponseCode"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) InitiateCharge(ctx context.Context, req gatewaydomain.ChargeRequest) (*gatewaydomain.ChargeResponse, error) {
	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format(timestampLayout)
	body := stkPushRequest{
		BusinessShortCode: c.shortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            c.shortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.callbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}

	var resp stkPushResponse
	start := time.Now()
	err = c.postJSON(ctx, stkPushPath, token, body, &resp)
	c.metrics.ObserveGatewayDuration("initiate", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if resp.ErrorCode != "" {
		c.log.Warn("stk push rejected",
			zap.String("error_code", resp.ErrorCode),
			zap.String("error_message", resp.ErrorMessage),
		)
		return nil, fmt.Errorf("%w: %s %s", gatewaydomain.ErrChargeRejected, resp.ErrorCode, resp.ErrorMessage)
	}
	if resp.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: %s", gatewaydomain.ErrChargeRejected, resp.ResponseDescription)
	}
	if strings.TrimSpace(resp.CheckoutRequestID) == "" {
		return nil, fmt.Errorf("%w: missing checkout request id", gatewaydomain.ErrChargeRejected)
	}

	return &gatewaydomain.ChargeResponse{
		CorrelationToken: resp.CheckoutRequestID,
		CustomerMessage:  resp.CustomerMessage,
	}, nil
}

func (c *Client) QueryStatus(ctx context.Context, correlationToken string) (*gatewaydomain.QueryResult, error) {
	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format(timestampLayout)
	body := stkQueryRequest{
		BusinessShortCode: c.shortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: correlationToken,
	}

	var resp stkQueryResponse
	start := time.Now()
	err = c.postJSON(ctx, stkQueryPath, token, body, &resp)
	c.metrics.ObserveGatewayDuration("query", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	switch resp.ErrorCode {
	case "":
	case errorCodeStillProcessing:
		return &gatewaydomain.QueryResult{Outcome: gatewaydomain.OutcomePending, Message: resp.ErrorMessage}, nil
	case errorCodeInvalidToken:
		return nil, fmt.Errorf("%w: %s %s", gatewaydomain.ErrUnknownToken, resp.ErrorCode, resp.ErrorMessage)
	default:
		// Transient provider-side condition; the next sweep retries.
		return nil, fmt.Errorf("%w: %s %s", gatewaydomain.ErrGatewayUnavailable, resp.ErrorCode, resp.ErrorMessage)
	}

	return &gatewaydomain.QueryResult{
		Outcome: MapResultCode(resp.ResultCode),
		Code:    strings.TrimSpace(resp.ResultCode),
		Message: resp.ResultDesc,
	}, nil
}

// MapResultCode turns a Daraja result code into the tagged outcome. Code 0
// is the only success; everything else numeric is a failure; non-numeric or
// empty codes are unrecognized.
func MapResultCode(code string) gatewaydomain.Outcome {
	code = strings.TrimSpace(code)
	if code == "" {
		return gatewaydomain.OutcomeUnrecognized
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return gatewaydomain.OutcomeUnrecognized
		}
	}
	if code == "0" {
		return gatewaydomain.OutcomeSuccess
	}
	return gatewaydomain.OutcomeFailure
}

func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + timestamp))
}

func (c *Client) accessTokenFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+oauthPath, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: oauth status %d", gatewaydomain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed oauthResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", gatewaydomain.ErrGatewayUnavailable)
	}

	ttl := 3599 * time.Second
	if secs, err := time.ParseDuration(parsed.ExpiresIn + "s"); err == nil && secs > time.Minute {
		ttl = secs
	}
	c.accessToken = parsed.AccessToken
	// renew a minute early to avoid racing expiry on slow requests
	c.tokenExpiry = time.Now().Add(ttl - time.Minute)
	return c.accessToken, nil
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", gatewaydomain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	return nil
}
