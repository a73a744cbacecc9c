package service

import (
	"context"
	"time"

	"github.com/Alecckie/randa-web-sub001/internal/campaign/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("campaign.service"),
	}
}

// OnPaymentCompleted activates the funded campaign. The UPDATE is guarded
// on status so a replayed call, or a second payment racing for the same
// campaign, leaves an already-active campaign untouched.
func (s *Service) OnPaymentCompleted(ctx context.Context, campaignID snowflake.ID, paymentID snowflake.ID, amount int64, currency string) error {
	if campaignID == 0 {
		return nil
	}

	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Exec(
		`UPDATE campaigns
		 SET status = ?, funded_by_payment_id = ?, activated_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusActive,
		paymentID,
		now,
		now,
		campaignID,
		domain.StatusPendingPayment,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		s.log.Info("campaign funding skipped",
			zap.String("campaign_id", campaignID.String()),
			zap.String("payment_id", paymentID.String()),
		)
		return nil
	}

	s.log.Info("campaign activated",
		zap.String("campaign_id", campaignID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.Int64("amount", amount),
		zap.String("currency", currency),
	)
	return nil
}
