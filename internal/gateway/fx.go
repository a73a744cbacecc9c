package gateway

import (
	"github.com/Alecckie/randa-web-sub001/internal/gateway/daraja"
	"github.com/Alecckie/randa-web-sub001/internal/gateway/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway",
	fx.Provide(
		fx.Annotate(daraja.New, fx.As(new(domain.Client))),
	),
)
