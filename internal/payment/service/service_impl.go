package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	campaigndomain "github.com/Alecckie/randa-web-sub001/internal/campaign/domain"
	"github.com/Alecckie/randa-web-sub001/internal/clock"
	gatewaydomain "github.com/Alecckie/randa-web-sub001/internal/gateway/domain"
	"github.com/Alecckie/randa-web-sub001/internal/notifier"
	obsmetrics "github.com/Alecckie/randa-web-sub001/internal/observability/metrics"
	paymentdomain "github.com/Alecckie/randa-web-sub001/internal/payment/domain"
	"github.com/Alecckie/randa-web-sub001/internal/reference"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Daraja result code for a charge the customer declined on the handset.
const resultCodeUserCancelled = "1032"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	Gateway     gatewaydomain.Client
	Refs        *reference.Allocator
	CampaignSvc campaigndomain.Service
	Notifier    notifier.Publisher  `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	gateway     gatewaydomain.Client
	refs        *reference.Allocator
	campaignSvc campaigndomain.Service
	notifier    notifier.Publisher
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		gateway:     p.Gateway,
		refs:        p.Refs,
		campaignSvc: p.CampaignSvc,
		notifier:    p.Notifier,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.Payment, error) {
	if req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "KES"
	}
	phone, err := paymentdomain.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if req.AdvertiserID == 0 {
		return nil, paymentdomain.ErrAdvertiserNotFound
	}
	exists, err := s.advertiserExists(ctx, req.AdvertiserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, paymentdomain.ErrAdvertiserNotFound
	}

	var metadata datatypes.JSON
	if len(req.Metadata) > 0 {
		encoded, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = datatypes.JSON(encoded)
	}

	now := s.clock.Now()
	payment := &paymentdomain.Payment{
		ID:           s.genID.Generate(),
		Reference:    s.refs.Payment(),
		AdvertiserID: req.AdvertiserID,
		CampaignID:   req.CampaignID,
		Phone:        phone,
		Amount:       req.Amount,
		Currency:     currency,
		Status:       paymentdomain.StatusPending,
		Metadata:     metadata,
		InitiatedAt:  now,
	}
	if err := s.repo.Create(ctx, s.db, payment); err != nil {
		return nil, err
	}
	s.obsMetrics.IncInitiation("created")

	resp, err := s.gateway.InitiateCharge(ctx, gatewaydomain.ChargeRequest{
		Phone:            phone,
		Amount:           req.Amount,
		Currency:         currency,
		AccountReference: payment.Reference,
		Description:      req.Description,
	})
	if err != nil {
		// The payment record absorbs the failure: the caller gets a
		// terminal record to inspect, never an exception for an
		// asynchronous world.
		s.log.Warn("charge initiation failed",
			zap.String("reference", payment.Reference),
			zap.Error(err),
		)
		if _, ferr := s.failPayment(ctx, payment, "gateway error: "+err.Error(), "initiate"); ferr != nil {
			// The record stays pending until the tokenless sweep collects it.
			s.log.Error("recording gateway failure failed",
				zap.String("reference", payment.Reference),
				zap.Error(ferr),
			)
		}
		s.obsMetrics.IncInitiation("gateway_failed")
		return s.reload(ctx, payment.ID, payment)
	}

	if err := s.repo.AttachCorrelationToken(ctx, s.db, payment.ID, resp.CorrelationToken); err != nil {
		return nil, err
	}
	s.obsMetrics.IncInitiation("accepted")

	token := resp.CorrelationToken
	payment.CorrelationToken = &token
	payment.Status = paymentdomain.StatusProcessing
	s.log.Info("charge initiated",
		zap.String("reference", payment.Reference),
		zap.String("correlation_token", token),
	)
	return payment, nil
}

func (s *Service) HandleCallback(ctx context.Context, in paymentdomain.CallbackInput) error {
	s.obsMetrics.IncWebhookOutcome(string(in.Outcome))

	if in.Outcome != gatewaydomain.OutcomeSuccess && in.Outcome != gatewaydomain.OutcomeFailure {
		s.log.Warn("unrecognized callback outcome",
			zap.String("correlation_token", in.CorrelationToken),
			zap.String("message", in.Message),
		)
		return nil
	}

	token := strings.TrimSpace(in.CorrelationToken)
	if token == "" {
		s.obsMetrics.IncUnattributedWebhook()
		return paymentdomain.ErrUnattributedCallback
	}
	payment, err := s.repo.FindByCorrelationToken(ctx, s.db, token)
	if err != nil {
		return err
	}
	if payment == nil {
		s.obsMetrics.IncUnattributedWebhook()
		s.log.Warn("callback for unknown correlation token",
			zap.String("correlation_token", token),
		)
		return paymentdomain.ErrUnattributedCallback
	}

	_, err = s.applyOutcome(ctx, payment, in.Outcome, in.Code, in.Receipt, in.Message, "webhook")
	return err
}

func (s *Service) ReconcilePending(ctx context.Context, opts paymentdomain.ReconcileOptions) (int, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	now := s.clock.Now()
	reconciled := 0
	var jobErr error

	// Payments that never registered with the provider cannot be queried;
	// past the short grace window they fail directly.
	tokenless, err := s.repo.FindTokenless(ctx, s.db, now.Add(-opts.TokenlessOlderThan), opts.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, payment := range tokenless {
		if ctx.Err() != nil {
			return reconciled, ctx.Err()
		}
		won, err := s.failPayment(ctx, &payment, "initiation never registered with gateway", "poller")
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		if won {
			reconciled++
		}
	}

	stuck, err := s.repo.FindStuck(ctx, s.db, now.Add(-opts.OlderThan), opts.BatchSize)
	if err != nil {
		return reconciled, errors.Join(jobErr, err)
	}
	for _, payment := range stuck {
		if ctx.Err() != nil {
			return reconciled, errors.Join(jobErr, ctx.Err())
		}

		result, err := s.gateway.QueryStatus(ctx, *payment.CorrelationToken)
		if err != nil {
			if errors.Is(err, gatewaydomain.ErrUnknownToken) {
				won, ferr := s.failPayment(ctx, &payment, "gateway does not recognize charge", "poller")
				if ferr != nil {
					jobErr = errors.Join(jobErr, ferr)
				} else if won {
					reconciled++
				}
				continue
			}
			s.log.Warn("status query failed",
				zap.String("reference", payment.Reference),
				zap.Error(err),
			)
			jobErr = errors.Join(jobErr, err)
			continue
		}

		switch result.Outcome {
		case gatewaydomain.OutcomePending:
			if payment.InitiatedAt.Before(now.Add(-opts.HardDeadline)) {
				won, terr := s.timeoutPayment(ctx, &payment)
				if terr != nil {
					jobErr = errors.Join(jobErr, terr)
				} else if won {
					reconciled++
				}
			}
		case gatewaydomain.OutcomeUnrecognized:
			s.log.Warn("unrecognized query result",
				zap.String("reference", payment.Reference),
				zap.String("message", result.Message),
			)
		default:
			won, aerr := s.applyOutcome(ctx, &payment, result.Outcome, result.Code, result.Receipt, result.Message, "poller")
			if aerr != nil {
				jobErr = errors.Join(jobErr, aerr)
			} else if won {
				reconciled++
			}
		}
	}

	s.obsMetrics.AddPollerReconciled(reconciled)
	return reconciled, jobErr
}

func (s *Service) GetByReference(ctx context.Context, ref string) (*paymentdomain.Payment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	payment, err := s.repo.FindByReference(ctx, s.db, ref)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) ListByAdvertiser(ctx context.Context, advertiserID snowflake.ID, limit int) ([]paymentdomain.Payment, error) {
	if advertiserID == 0 {
		return nil, paymentdomain.ErrAdvertiserNotFound
	}
	return s.repo.ListByAdvertiser(ctx, s.db, advertiserID, limit)
}

// applyOutcome is the single transition rule shared by the webhook and
// poller paths. Whichever fires first wins the guarded update; the loser
// observes a no-op and must not re-fire the side effect.
func (s *Service) applyOutcome(ctx context.Context, payment *paymentdomain.Payment, outcome gatewaydomain.Outcome, code, receipt, message, source string) (bool, error) {
	now := s.clock.Now()

	var next paymentdomain.Status
	fields := paymentdomain.TransitionFields{
		StatusMessage: message,
		ProcessedAt:   &now,
	}
	switch outcome {
	case gatewaydomain.OutcomeSuccess:
		next = paymentdomain.StatusCompleted
		fields.GatewayReceipt = receipt
		fields.CompletedAt = &now
	case gatewaydomain.OutcomeFailure:
		next = paymentdomain.StatusFailed
		if code == resultCodeUserCancelled {
			next = paymentdomain.StatusCancelled
		}
		fields.FailedAt = &now
	default:
		return false, nil
	}

	won, err := s.repo.TransitionIfStatusIn(ctx, s.db, payment.ID, paymentdomain.NonTerminalStatuses(), next, fields)
	if err != nil {
		return false, err
	}
	if !won {
		s.log.Info("duplicate outcome ignored",
			zap.String("reference", payment.Reference),
			zap.String("source", source),
			zap.String("outcome", string(outcome)),
		)
		return false, nil
	}

	s.obsMetrics.IncTransition(string(next), source)
	s.log.Info("payment transitioned",
		zap.String("reference", payment.Reference),
		zap.String("status", string(next)),
		zap.String("source", source),
	)

	if next == paymentdomain.StatusCompleted && payment.CampaignID != nil {
		// Coupled to winning the transition, so it fires at most once per
		// payment no matter how many notifications arrive.
		if err := s.campaignSvc.OnPaymentCompleted(ctx, *payment.CampaignID, payment.ID, payment.Amount, payment.Currency); err != nil {
			s.log.Error("campaign funding side effect failed",
				zap.String("reference", payment.Reference),
				zap.String("campaign_id", payment.CampaignID.String()),
				zap.Error(err),
			)
		}
	}

	s.publishStatus(ctx, payment, next, source, now)
	return true, nil
}

func (s *Service) failPayment(ctx context.Context, payment *paymentdomain.Payment, message, source string) (bool, error) {
	now := s.clock.Now()
	won, err := s.repo.TransitionIfStatusIn(ctx, s.db, payment.ID, paymentdomain.NonTerminalStatuses(), paymentdomain.StatusFailed, paymentdomain.TransitionFields{
		StatusMessage: message,
		ProcessedAt:   &now,
		FailedAt:      &now,
	})
	if err != nil || !won {
		return won, err
	}
	s.obsMetrics.IncTransition(string(paymentdomain.StatusFailed), source)
	s.publishStatus(ctx, payment, paymentdomain.StatusFailed, source, now)
	return true, nil
}

func (s *Service) timeoutPayment(ctx context.Context, payment *paymentdomain.Payment) (bool, error) {
	now := s.clock.Now()
	won, err := s.repo.TransitionIfStatusIn(ctx, s.db, payment.ID, paymentdomain.NonTerminalStatuses(), paymentdomain.StatusTimeout, paymentdomain.TransitionFields{
		StatusMessage: "no definitive outcome before deadline",
		ProcessedAt:   &now,
		FailedAt:      &now,
	})
	if err != nil || !won {
		return won, err
	}
	s.obsMetrics.IncTransition(string(paymentdomain.StatusTimeout), "poller")
	s.log.Warn("payment timed out",
		zap.String("reference", payment.Reference),
	)
	s.publishStatus(ctx, payment, paymentdomain.StatusTimeout, "poller", now)
	return true, nil
}

func (s *Service) publishStatus(ctx context.Context, payment *paymentdomain.Payment, status paymentdomain.Status, source string, occurredAt time.Time) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.PaymentStatusChanged(ctx, notifier.StatusChangedEvent{
		PaymentID:  payment.ID,
		Reference:  payment.Reference,
		CampaignID: payment.CampaignID,
		Status:     string(status),
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		Source:     source,
		OccurredAt: occurredAt,
	})
}

func (s *Service) advertiserExists(ctx context.Context, id snowflake.ID) (bool, error) {
	var found snowflake.ID
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM advertisers WHERE id = ?`,
		id,
	).Scan(&found).Error; err != nil {
		return false, err
	}
	return found != 0, nil
}

func (s *Service) reload(ctx context.Context, id snowflake.ID, fallback *paymentdomain.Payment) (*paymentdomain.Payment, error) {
	stored, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil || stored == nil {
		return fallback, nil
	}
	return stored, nil
}
