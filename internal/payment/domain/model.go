package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidPhone         = errors.New("invalid_phone")
	ErrAdvertiserNotFound   = errors.New("advertiser_not_found")
	ErrPaymentNotFound      = errors.New("payment_not_found")
	ErrUnattributedCallback = errors.New("unattributed_callback")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

// NonTerminalStatuses is the precondition set for every guarded transition.
func NonTerminalStatuses() []Status {
	return []Status{StatusPending, StatusProcessing}
}

// Payment is the durable record of a single mobile-money charge. Amount,
// currency, advertiser, campaign and reference never change after creation;
// status only moves through the repository's guarded transition.
type Payment struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	Reference        string         `json:"reference" gorm:"type:text;not null;uniqueIndex"`
	CorrelationToken *string        `json:"correlation_token" gorm:"type:text;uniqueIndex"`
	AdvertiserID     snowflake.ID   `json:"advertiser_id" gorm:"not null;index"`
	CampaignID       *snowflake.ID  `json:"campaign_id" gorm:"index"`
	Phone            string         `json:"phone" gorm:"type:text;not null"`
	Amount           int64          `json:"amount" gorm:"not null"`
	Currency         string         `json:"currency" gorm:"type:text;not null"`
	Status           Status         `json:"status" gorm:"type:text;not null;index"`
	GatewayReceipt   string         `json:"gateway_receipt" gorm:"type:text"`
	StatusMessage    string         `json:"status_message" gorm:"type:text"`
	Metadata         datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	InitiatedAt      time.Time      `json:"initiated_at" gorm:"not null;index"`
	ProcessedAt      *time.Time     `json:"processed_at"`
	CompletedAt      *time.Time     `json:"completed_at"`
	FailedAt         *time.Time     `json:"failed_at"`
}

func (Payment) TableName() string { return "payments" }

// TransitionFields are the columns a guarded transition may set alongside
// status. Timestamps are written once; nil fields are left untouched.
type TransitionFields struct {
	GatewayReceipt string
	StatusMessage  string
	ProcessedAt    *time.Time
	CompletedAt    *time.Time
	FailedAt       *time.Time
}
