package cache

import (
	"github.com/sarchlab/rocache/sim/hooking"
)

var (
	// HookPosLoadHit marks a load that found its block in the cache.
	HookPosLoadHit = &hooking.HookPos{Name: "LoadHit"}

	// HookPosLoadMiss marks a load that had to fetch its block.
	HookPosLoadMiss = &hooking.HookPos{Name: "LoadMiss"}

	// HookPosEvict marks the replacement of a valid block.
	HookPosEvict = &hooking.HookPos{Name: "Evict"}
)

// AccessRecord describes a completed load.
type AccessRecord struct {
	Address      uint64
	BlockAddress uint64
	Tag          uint64
	SetID        int
	WayID        int
	Hit          bool
	Value        byte
}

// EvictionRecord describes a block that is about to be replaced.
type EvictionRecord struct {
	BlockAddress uint64
	Tag          uint64
	SetID        int
	WayID        int
}

func (c *Cache) traceLoad(pos *hooking.HookPos, record AccessRecord) {
	if c.NumHooks() == 0 {
		return
	}

	ctx := hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   record,
	}

	c.InvokeHook(ctx)
}

func (c *Cache) traceEvict(setID, wayID int, tag uint64) {
	if c.NumHooks() == 0 {
		return
	}

	ctx := hooking.HookCtx{
		Domain: c,
		Pos:    HookPosEvict,
		Item: EvictionRecord{
			BlockAddress: c.layout.Compose(tag, setID),
			Tag:          tag,
			SetID:        setID,
			WayID:        wayID,
		},
	}

	c.InvokeHook(ctx)
}
