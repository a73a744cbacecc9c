package advertiser

import (
	"github.com/Alecckie/randa-web-sub001/internal/advertiser/repository"
	"github.com/Alecckie/randa-web-sub001/internal/advertiser/service"
	"go.uber.org/fx"
)

var Module = fx.Module("advertiser.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
