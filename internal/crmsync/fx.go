package crmsync

import (
	"github.com/smallbiznis/crmfeed/internal/crmsync/repository"
	"github.com/smallbiznis/crmfeed/internal/crmsync/secret"
	"github.com/smallbiznis/crmfeed/internal/crmsync/service"
	"go.uber.org/fx"
)

var Module = fx.Module("crmsync.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(secret.NewStore),
	fx.Provide(service.New),
)
