package order

import (
	"github.com/smallbiznis/crmfeed/internal/order/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("order.source",
	fx.Provide(repository.NewRepository),
)
