package tracing

import (
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/sarchlab/rocache/datarecording"
	"github.com/sarchlab/rocache/mem/cache"
	"github.com/sarchlab/rocache/sim/hooking"
)

// Names of the tables that a DBTracer writes.
const (
	AccessTableName   = "cache_accesses"
	EvictionTableName = "cache_evictions"
)

// AccessEntry is a row of the access table.
type AccessEntry struct {
	ID           string
	Seq          uint64
	Location     string
	Address      uint64
	BlockAddress uint64
	Tag          uint64
	SetID        int
	WayID        int
	Hit          bool
	Value        uint8
}

// EvictionEntry is a row of the eviction table. Seq is the sequence number of
// the access that caused the eviction.
type EvictionEntry struct {
	ID           string
	Seq          uint64
	Location     string
	BlockAddress uint64
	Tag          uint64
	SetID        int
	WayID        int
}

// DBTracer records the loads and evictions of caches into a DataRecorder.
type DBTracer struct {
	lock     sync.Mutex
	recorder datarecording.DataRecorder
	seq      uint64
}

// NewDBTracer creates the tables in the recorder and returns a tracer that
// fills them.
func NewDBTracer(recorder datarecording.DataRecorder) *DBTracer {
	recorder.CreateTable(AccessTableName, AccessEntry{})
	recorder.CreateTable(EvictionTableName, EvictionEntry{})

	return &DBTracer{
		recorder: recorder,
	}
}

// Func records the load or eviction.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch item := ctx.Item.(type) {
	case cache.AccessRecord:
		t.seq++
		t.recorder.InsertData(AccessTableName, AccessEntry{
			ID:           xid.New().String(),
			Seq:          t.seq,
			Location:     hooking.DomainName(ctx),
			Address:      item.Address,
			BlockAddress: item.BlockAddress,
			Tag:          item.Tag,
			SetID:        item.SetID,
			WayID:        item.WayID,
			Hit:          item.Hit,
			Value:        item.Value,
		})
	case cache.EvictionRecord:
		// Evictions are reported before the load that causes them.
		t.recorder.InsertData(EvictionTableName, EvictionEntry{
			ID:           xid.New().String(),
			Seq:          t.seq + 1,
			Location:     hooking.DomainName(ctx),
			BlockAddress: item.BlockAddress,
			Tag:          item.Tag,
			SetID:        item.SetID,
			WayID:        item.WayID,
		})
	}
}

// NumAccesses returns the number of loads recorded so far.
func (t *DBTracer) NumAccesses() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.seq
}

// Flush writes the buffered rows.
func (t *DBTracer) Flush() {
	t.recorder.Flush()
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}
