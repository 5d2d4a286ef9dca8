package tracing

import (
	"github.com/rs/zerolog"

	"github.com/sarchlab/rocache/mem/cache"
	"github.com/sarchlab/rocache/sim/hooking"
)

// LogTracer writes one debug line per load and per eviction.
type LogTracer struct {
	logger zerolog.Logger
}

// NewLogTracer creates a LogTracer that writes to logger.
func NewLogTracer(logger zerolog.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Func logs the load or eviction.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	switch item := ctx.Item.(type) {
	case cache.AccessRecord:
		t.logger.Debug().
			Str("cache", hooking.DomainName(ctx)).
			Str("address", hex(item.Address)).
			Int("set", item.SetID).
			Int("way", item.WayID).
			Str("tag", hex(item.Tag)).
			Bool("hit", item.Hit).
			Msg("load")
	case cache.EvictionRecord:
		t.logger.Debug().
			Str("cache", hooking.DomainName(ctx)).
			Str("block", hex(item.BlockAddress)).
			Int("set", item.SetID).
			Int("way", item.WayID).
			Str("tag", hex(item.Tag)).
			Msg("evict")
	}
}
