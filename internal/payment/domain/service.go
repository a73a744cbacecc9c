package domain

import (
	"context"
	"time"

	gatewaydomain "github.com/Alecckie/randa-web-sub001/internal/gateway/domain"
	"github.com/bwmarrin/snowflake"
)

// InitiateRequest is a validated charge request from the owning party.
type InitiateRequest struct {
	AdvertiserID snowflake.ID
	CampaignID   *snowflake.ID
	Amount       int64
	Currency     string
	Phone        string
	Description  string
	Metadata     map[string]any
}

// CallbackInput is a webhook already parsed to a tagged outcome at the
// gateway boundary.
type CallbackInput struct {
	CorrelationToken string
	Outcome          gatewaydomain.Outcome
	Code             string
	Receipt          string
	Message          string
}

// ReconcileOptions bounds a reconciliation sweep.
type ReconcileOptions struct {
	// OlderThan is the grace window before a tokened payment is queried.
	OlderThan time.Duration
	// TokenlessOlderThan bounds payments that never registered with the
	// provider; past it they fail directly.
	TokenlessOlderThan time.Duration
	// HardDeadline is the age past which a payment the provider still
	// reports as in-flight is timed out.
	HardDeadline time.Duration
	BatchSize    int
}

type Service interface {
	// Initiate creates the payment, calls the gateway and persists the
	// correlation token. Gateway failure does not error: the payment is
	// returned in failed state so callers always have a record to poll.
	Initiate(ctx context.Context, req InitiateRequest) (*Payment, error)

	// HandleCallback applies an idempotent guarded transition for a webhook.
	// Unknown tokens return ErrUnattributedCallback; redeliveries and
	// already-terminal records are successful no-ops.
	HandleCallback(ctx context.Context, in CallbackInput) error

	// ReconcilePending converges stuck payments by querying the gateway,
	// applying the same transition rule as HandleCallback. Returns how many
	// payments reached a terminal state.
	ReconcilePending(ctx context.Context, opts ReconcileOptions) (int, error)

	GetByReference(ctx context.Context, reference string) (*Payment, error)
	ListByAdvertiser(ctx context.Context, advertiserID snowflake.ID, limit int) ([]Payment, error)
}
