package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the payment store. TransitionIfStatusIn is the only way
// status changes after creation; it must be atomic with respect to
// concurrent callers across process instances.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, payment *Payment) error

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)
	FindByCorrelationToken(ctx context.Context, db *gorm.DB, token string) (*Payment, error)
	ListByAdvertiser(ctx context.Context, db *gorm.DB, advertiserID snowflake.ID, limit int) ([]Payment, error)

	// AttachCorrelationToken stores the provider token on a still-pending
	// record and moves it to processing. A no-op when the record already
	// left pending.
	AttachCorrelationToken(ctx context.Context, db *gorm.DB, id snowflake.ID, token string) error

	// FindStuck returns non-terminal payments with a correlation token whose
	// initiation is older than the cutoff.
	FindStuck(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Payment, error)

	// FindTokenless returns pending payments that never received a token and
	// are older than the cutoff; they can never be queried at the provider.
	FindTokenless(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Payment, error)

	// TransitionIfStatusIn performs the guarded transition: status moves to
	// next only if it is currently one of expected. Returns true when this
	// caller won the transition, false when the record was already terminal.
	TransitionIfStatusIn(ctx context.Context, db *gorm.DB, id snowflake.ID, expected []Status, next Status, fields TransitionFields) (bool, error)
}
