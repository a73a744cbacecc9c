package payment

import (
	"github.com/Alecckie/randa-web-sub001/internal/payment/domain"
	"github.com/Alecckie/randa-web-sub001/internal/payment/repository"
	"github.com/Alecckie/randa-web-sub001/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		fx.Annotate(
			service.NewService,
			fx.As(new(domain.Service)),
		),
	),
)
