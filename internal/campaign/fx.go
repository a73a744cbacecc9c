package campaign

import (
	"github.com/Alecckie/randa-web-sub001/internal/campaign/domain"
	"github.com/Alecckie/randa-web-sub001/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.service",
	fx.Provide(
		fx.Annotate(service.NewService, fx.As(new(domain.Service))),
	),
)
