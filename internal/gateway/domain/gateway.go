package domain

import (
	"context"
	"errors"
)

var (
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
	ErrChargeRejected     = errors.New("charge_rejected")
	ErrUnknownToken       = errors.New("unknown_correlation_token")
)

// Outcome is the tri-state result of a charge, derived once at the boundary
// from the provider's result code. Internal logic never inspects raw
// provider fields.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeFailure      Outcome = "failure"
	OutcomeUnrecognized Outcome = "unrecognized"
	// OutcomePending is only ever produced by QueryStatus: the provider
	// has the charge but no terminal result yet.
	OutcomePending Outcome = "pending"
)

// ChargeRequest describes an outbound push-payment initiation.
type ChargeRequest struct {
	Phone            string
	Amount           int64
	Currency         string
	AccountReference string
	Description      string
}

// ChargeResponse carries the provider-assigned correlation token used to
// match asynchronous notifications back to the originating payment.
type ChargeResponse struct {
	CorrelationToken string
	CustomerMessage  string
}

// QueryResult is the parsed status of a previously initiated charge. Code
// keeps the provider's raw result code for audit and for distinguishing a
// user-cancelled charge from other failures.
type QueryResult struct {
	Outcome Outcome
	Code    string
	Receipt string
	Message string
}

// Client is the provider-agnostic boundary with the mobile-money gateway.
// InitiateCharge is not idempotent at the provider and must never be
// retried automatically.
type Client interface {
	InitiateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
	QueryStatus(ctx context.Context, correlationToken string) (*QueryResult, error)
}
