package repository

import (
	"context"
	"time"

	"github.com/Alecckie/randa-web-sub001/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const paymentColumns = `id, reference, correlation_token, advertiser_id, campaign_id,
	phone, amount, currency, status, gateway_receipt, status_message, metadata,
	initiated_at, processed_at, completed_at, failed_at`

func (r *repo) Create(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.Reference,
		payment.CorrelationToken,
		payment.AdvertiserID,
		payment.CampaignID,
		payment.Phone,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.GatewayReceipt,
		payment.StatusMessage,
		payment.Metadata,
		payment.InitiatedAt,
		payment.ProcessedAt,
		payment.CompletedAt,
		payment.FailedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Payment, error) {
	return r.findOne(ctx, db, `reference = ?`, reference)
}

func (r *repo) FindByCorrelationToken(ctx context.Context, db *gorm.DB, token string) (*domain.Payment, error) {
	return r.findOne(ctx, db, `correlation_token = ?`, token)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, cond string, arg any) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE `+cond+` LIMIT 1`,
		arg,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByAdvertiser(ctx context.Context, db *gorm.DB, advertiserID snowflake.ID, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments
		 WHERE advertiser_id = ?
		 ORDER BY initiated_at DESC
		 LIMIT ?`,
		advertiserID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AttachCorrelationToken(ctx context.Context, db *gorm.DB, id snowflake.ID, token string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET correlation_token = ?, status = ?
		 WHERE id = ? AND status = ? AND correlation_token IS NULL`,
		token,
		domain.StatusProcessing,
		id,
		domain.StatusPending,
	).Error
}

func (r *repo) FindStuck(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status IN ? AND correlation_token IS NOT NULL AND initiated_at < ?
		 ORDER BY initiated_at ASC
		 LIMIT ?`,
		domain.NonTerminalStatuses(),
		cutoff,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindTokenless(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = ? AND correlation_token IS NULL AND initiated_at < ?
		 ORDER BY initiated_at ASC
		 LIMIT ?`,
		domain.StatusPending,
		cutoff,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// TransitionIfStatusIn is the compare-and-swap the rest of the engine leans
// on: the UPDATE carries the status precondition, so concurrent callers for
// the same payment cannot both win. Outcome timestamps use COALESCE so a
// winning transition never overwrites an earlier one.
func (r *repo) TransitionIfStatusIn(ctx context.Context, db *gorm.DB, id snowflake.ID, expected []domain.Status, next domain.Status, fields domain.TransitionFields) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?,
		     gateway_receipt = CASE WHEN ? != '' THEN ? ELSE gateway_receipt END,
		     status_message = CASE WHEN ? != '' THEN ? ELSE status_message END,
		     processed_at = COALESCE(processed_at, ?),
		     completed_at = COALESCE(completed_at, ?),
		     failed_at = COALESCE(failed_at, ?)
		 WHERE id = ? AND status IN ?`,
		next,
		fields.GatewayReceipt, fields.GatewayReceipt,
		fields.StatusMessage, fields.StatusMessage,
		fields.ProcessedAt,
		fields.CompletedAt,
		fields.FailedAt,
		id,
		expected,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
