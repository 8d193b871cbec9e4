package tax

import (
	"github.com/smallbiznis/crmfeed/internal/tax/repository"
	"github.com/smallbiznis/crmfeed/internal/tax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tax.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewLoader),
)
