package feed

import (
	"github.com/smallbiznis/crmfeed/internal/feed/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feed.service",
	fx.Provide(service.New),
)
