package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Alecckie/randa-web-sub001/internal/config"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const statusChangedChannel = "payments.status_changed"

// StatusChangedEvent is published on every terminal payment transition.
// Consumers (dashboard, downstream ledger) subscribe to the Redis channel.
type StatusChangedEvent struct {
	PaymentID  snowflake.ID  `json:"payment_id"`
	Reference  string        `json:"reference"`
	CampaignID *snowflake.ID `json:"campaign_id,omitempty"`
	Status     string        `json:"status"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
	Source     string        `json:"source"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Publisher delivers payment status events. Delivery is best effort; a
// publish failure never rolls back the transition it reports.
type Publisher interface {
	PaymentStatusChanged(ctx context.Context, event StatusChangedEvent) error
}

type redisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func NewPublisher(client *redis.Client, log *zap.Logger) Publisher {
	return &redisPublisher{
		client: client,
		log:    log.Named("notifier"),
	}
}

func (p *redisPublisher) PaymentStatusChanged(ctx context.Context, event StatusChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, statusChangedChannel, payload).Err(); err != nil {
		p.log.Warn("status event publish failed",
			zap.String("reference", event.Reference),
			zap.String("status", event.Status),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func registerHooks(lc fx.Lifecycle, client *redis.Client) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
}

var Module = fx.Module("notifier",
	fx.Provide(
		NewRedisClient,
		NewPublisher,
	),
	fx.Invoke(registerHooks),
)
