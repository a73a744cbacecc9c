package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrCampaignNotFound = errors.New("campaign_not_found")

type Status string

const (
	StatusDraft          Status = "draft"
	StatusPendingPayment Status = "pending_payment"
	StatusActive         Status = "active"
	StatusPaused         Status = "paused"
	StatusEnded          Status = "ended"
)

// Campaign is the funded entity. Only the funding path is modeled here;
// campaign CRUD lives outside this engine.
type Campaign struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	AdvertiserID    snowflake.ID  `json:"advertiser_id" gorm:"not null;index"`
	Name            string        `json:"name" gorm:"type:text;not null"`
	Status          Status        `json:"status" gorm:"type:text;not null"`
	BudgetAmount    int64         `json:"budget_amount" gorm:"not null"`
	Currency        string        `json:"currency" gorm:"type:text;not null"`
	FundedByPayment *snowflake.ID `json:"funded_by_payment" gorm:"column:funded_by_payment_id"`
	ActivatedAt     *time.Time    `json:"activated_at"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time     `json:"updated_at" gorm:"not null"`
}

func (Campaign) TableName() string { return "campaigns" }

// Service is the boundary the payment engine fires its completion side
// effect into. The engine guarantees at most one call per completed
// payment; the implementation is additionally idempotent by payment id.
type Service interface {
	OnPaymentCompleted(ctx context.Context, campaignID snowflake.ID, paymentID snowflake.ID, amount int64, currency string) error
}
