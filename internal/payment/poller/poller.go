package poller

import (
	"context"
	"time"

	"github.com/Alecckie/randa-web-sub001/internal/config"
	obsmetrics "github.com/Alecckie/randa-web-sub001/internal/observability/metrics"
	paymentdomain "github.com/Alecckie/randa-web-sub001/internal/payment/domain"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockKey = "locks:payment_poller"

// releaseScript deletes the lock only when the caller still holds it, so a
// run that outlives its TTL cannot release a lock another instance took.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Service    paymentdomain.Service
	Redis      *redis.Client       `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Poller periodically sweeps stuck payments back to a terminal state. A
// Redis lock keeps at most one sweep active across replicas; without a
// Redis client the poller runs unlocked, which is safe because every
// transition is guarded, just wasteful.
type Poller struct {
	cfg        config.PollerConfig
	log        *zap.Logger
	service    paymentdomain.Service
	redis      *redis.Client
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) *Poller {
	return &Poller{
		cfg:        p.Config.Poller,
		log:        p.Log.Named("payment.poller"),
		service:    p.Service,
		redis:      p.Redis,
		obsMetrics: p.ObsMetrics,
	}
}

func (p *Poller) Run(ctx context.Context) {
	interval := p.cfg.RunInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.log.Info("poller started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				p.log.Error("poller run failed", zap.Error(err))
			}
		}
	}
}

func (p *Poller) RunOnce(ctx context.Context) error {
	release, acquired, err := p.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		p.log.Debug("poller lock held elsewhere, skipping run")
		return nil
	}
	defer release()

	p.obsMetrics.IncPollerRun()

	reconciled, err := p.service.ReconcilePending(ctx, paymentdomain.ReconcileOptions{
		OlderThan:          p.cfg.GraceWindow,
		TokenlessOlderThan: p.cfg.TokenGraceWindow,
		HardDeadline:       p.cfg.HardDeadline,
		BatchSize:          p.cfg.BatchSize,
	})
	if reconciled > 0 {
		p.log.Info("poller reconciled payments", zap.Int("count", reconciled))
	}
	return err
}

func (p *Poller) acquireLock(ctx context.Context) (func(), bool, error) {
	if p.redis == nil {
		return func() {}, true, nil
	}
	ttl := p.cfg.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	token := uuid.NewString()
	ok, err := p.redis.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, p.redis, []string{lockKey}, token).Err(); err != nil {
			p.log.Warn("poller lock release failed", zap.Error(err))
		}
	}
	return release, true, nil
}

func registerHooks(lc fx.Lifecycle, p *Poller) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				p.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

var Module = fx.Module("payment.poller",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)
