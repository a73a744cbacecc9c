package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("advertiser_not_found")
	ErrEmailTaken   = errors.New("email_taken")
)

type Advertiser struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Email     string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Phone     string       `gorm:"type:text" json:"phone,omitempty"`
	Status    string       `gorm:"type:text;not null;default:active" json:"status"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Advertiser) TableName() string { return "advertisers" }

type CreateAdvertiserRequest struct {
	Name  string
	Email string
	Phone string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, advertiser *Advertiser) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Advertiser, error)
	List(ctx context.Context, db *gorm.DB, limit int) ([]Advertiser, error)
}

type Service interface {
	Create(ctx context.Context, req CreateAdvertiserRequest) (Advertiser, error)
	GetByID(ctx context.Context, id string) (Advertiser, error)
	List(ctx context.Context, limit int) ([]Advertiser, error)
}
