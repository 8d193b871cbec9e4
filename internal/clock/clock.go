package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the time source of the sync log and the in-memory stores.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func New() Clock {
	return SystemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(New),
)
