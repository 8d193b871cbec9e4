package config

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// FeedConfigPath points at an explicit feed.yml. Empty means the standard
// search locations.
type FeedConfigPath string

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(provideFeedConfigHolder),
)

func provideFeedConfigHolder(log *zap.Logger, path FeedConfigPath) (*FeedConfigHolder, error) {
	if path != "" {
		return NewFeedConfigHolderFromFile(log, string(path))
	}
	return NewFeedConfigHolder(log)
}
