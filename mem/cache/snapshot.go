package cache

import "github.com/sarchlab/rocache/mem/cache/internal/tagging"

// BlockState is a copy of the metadata of one block.
type BlockState struct {
	SetID        int    `json:"set_id"`
	WayID        int    `json:"way_id"`
	Valid        bool   `json:"valid"`
	Tag          uint64 `json:"tag"`
	BlockAddress uint64 `json:"block_address"`
	Age          int    `json:"age"`
}

// Snapshot is a copy of the metadata of all the blocks of a cache.
type Snapshot struct {
	Name          string         `json:"name"`
	NumSets       int            `json:"num_sets"`
	Associativity int            `json:"associativity"`
	BytesPerBlock int            `json:"bytes_per_block"`
	Sets          [][]BlockState `json:"sets"`
}

// Snapshot copies the metadata of all the blocks. The tag and the block
// address of an invalid block are zero.
func (c *Cache) Snapshot() Snapshot {
	c.lock.Lock()
	defer c.lock.Unlock()

	s := Snapshot{
		Name:          c.name,
		NumSets:       c.tags.NumSets(),
		Associativity: c.tags.NumWays(),
		BytesPerBlock: c.bytesPerBlock,
		Sets:          make([][]BlockState, c.tags.NumSets()),
	}

	c.tags.Visit(func(setID, wayID int, block *tagging.Block) {
		state := BlockState{
			SetID: setID,
			WayID: wayID,
			Valid: block.IsValid(),
			Age:   block.Age(),
		}

		if block.IsValid() {
			state.Tag = block.Tag()
			state.BlockAddress = c.layout.Compose(block.Tag(), setID)
		}

		s.Sets[setID] = append(s.Sets[setID], state)
	})

	return s
}

// ResidentBlocks returns the addresses of all the valid blocks, in set and
// way order.
func (s Snapshot) ResidentBlocks() []uint64 {
	var addrs []uint64

	for _, set := range s.Sets {
		for _, b := range set {
			if b.Valid {
				addrs = append(addrs, b.BlockAddress)
			}
		}
	}

	return addrs
}
