package main

import (
	"github.com/Alecckie/randa-web-sub001/internal/campaign"
	"github.com/Alecckie/randa-web-sub001/internal/clock"
	"github.com/Alecckie/randa-web-sub001/internal/config"
	"github.com/Alecckie/randa-web-sub001/internal/gateway"
	"github.com/Alecckie/randa-web-sub001/internal/logger"
	"github.com/Alecckie/randa-web-sub001/internal/notifier"
	obsmetrics "github.com/Alecckie/randa-web-sub001/internal/observability/metrics"
	"github.com/Alecckie/randa-web-sub001/internal/payment"
	"github.com/Alecckie/randa-web-sub001/internal/payment/poller"
	"github.com/Alecckie/randa-web-sub001/internal/reference"
	"github.com/Alecckie/randa-web-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Poller-only process. No server module: it sweeps stuck payments and
// exits cleanly on shutdown. Safe to run alongside replicas because
// runs are serialized by a Redis lock.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		obsmetrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		reference.Module,

		gateway.Module,
		campaign.Module,
		notifier.Module,
		payment.Module,
		poller.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
