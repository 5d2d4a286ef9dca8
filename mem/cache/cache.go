// Package cache models a read-only, set-associative cache that sits in front
// of a byte-addressable memory.
package cache

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sarchlab/rocache/mem"
	"github.com/sarchlab/rocache/mem/cache/internal/tagging"
	"github.com/sarchlab/rocache/sim/hooking"
)

// Cache is a read-only cache. All the methods of a Cache can be called from
// multiple goroutines; accesses are serialized, since every load ages the
// blocks of all the sets.
type Cache struct {
	hooking.HookableBase

	name          string
	memory        mem.Memory
	blockCount    int
	bytesPerBlock int
	layout        tagging.AddressLayout
	tags          *tagging.TagArray
	victimFinder  tagging.VictimFinder

	lock sync.Mutex
}

// New creates a cache of blockCount blocks, each holding bytesPerBlock bytes,
// grouped into sets of associativity blocks. It uses the default replacement
// policy.
func New(
	memory mem.Memory,
	blockCount, bytesPerBlock, associativity int,
) (*Cache, error) {
	return MakeBuilder().
		WithMemory(memory).
		WithNumBlocks(blockCount).
		WithBytesPerBlock(bytesPerBlock).
		WithWayAssociativity(associativity).
		Build("Cache")
}

// Name returns the name of the cache.
func (c *Cache) Name() string {
	return c.name
}

// BlockCount returns the total number of blocks.
func (c *Cache) BlockCount() int {
	return c.blockCount
}

// BytesPerBlock returns the number of bytes in each block.
func (c *Cache) BytesPerBlock() int {
	return c.bytesPerBlock
}

// Associativity returns the number of blocks in each set.
func (c *Cache) Associativity() int {
	return c.tags.NumWays()
}

// NumSets returns the number of sets.
func (c *Cache) NumSets() int {
	return c.tags.NumSets()
}

// Load returns the byte at address. On a miss, the block that contains the
// address is fetched from the memory and installed. If the fetch fails, the
// cache is left unchanged and the error wraps ErrFetch.
func (c *Cache) Load(address uint64) (byte, error) {
	record, err := c.Access(address)
	if err != nil {
		return 0, err
	}

	return record.Value, nil
}

// Access loads the byte at address like Load and also tells where the block
// was found and whether the load hit.
func (c *Cache) Access(address uint64) (AccessRecord, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	tag, setID, offset := c.layout.Decompose(address)

	wayID, found := c.tags.Lookup(setID, tag)
	if found {
		return c.loadHit(address, tag, setID, wayID, offset), nil
	}

	return c.loadMiss(address, tag, setID, offset)
}

func (c *Cache) loadHit(
	address, tag uint64,
	setID, wayID int,
	offset uint64,
) AccessRecord {
	c.victimFinder.Tick(c.tags)
	c.victimFinder.Touch(c.tags, setID, wayID)

	record := c.accessRecord(address, tag, setID, wayID, offset)
	record.Hit = true
	c.traceLoad(HookPosLoadHit, record)

	return record
}

func (c *Cache) loadMiss(
	address, tag uint64,
	setID int,
	offset uint64,
) (AccessRecord, error) {
	blockAddr := c.layout.BlockAddress(address)

	data, err := c.fetch(blockAddr)
	if err != nil {
		return AccessRecord{}, err
	}

	c.victimFinder.Tick(c.tags)

	wayID := 0
	if c.tags.NumWays() > 1 {
		wayID = c.victimFinder.FindVictim(c.tags, setID)
	}

	block := c.tags.Block(setID, wayID)
	if block.IsValid() {
		c.traceEvict(setID, wayID, block.Tag())
	}

	block.Install(data, tag)
	c.victimFinder.Touch(c.tags, setID, wayID)

	record := c.accessRecord(address, tag, setID, wayID, offset)
	c.traceLoad(HookPosLoadMiss, record)

	return record, nil
}

func (c *Cache) accessRecord(
	address, tag uint64,
	setID, wayID int,
	offset uint64,
) AccessRecord {
	return AccessRecord{
		Address:      address,
		BlockAddress: c.layout.BlockAddress(address),
		Tag:          tag,
		SetID:        setID,
		WayID:        wayID,
		Value:        c.tags.Block(setID, wayID).Data()[offset],
	}
}

func (c *Cache) fetch(blockAddr uint64) ([]byte, error) {
	byteSize := uint64(c.bytesPerBlock)

	data, err := c.memory.Read(blockAddr, byteSize)
	if err != nil {
		return nil, fmt.Errorf("%w: block 0x%x: %w", ErrFetch, blockAddr, err)
	}

	if uint64(len(data)) != byteSize {
		return nil, fmt.Errorf("%w: block 0x%x: got %d bytes, want %d",
			ErrFetch, blockAddr, len(data), byteSize)
	}

	return data, nil
}

// Contains tells if the block that holds address is resident. It does not
// count as an access.
func (c *Cache) Contains(address uint64) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	tag, setID, _ := c.layout.Decompose(address)
	_, found := c.tags.Lookup(setID, tag)

	return found
}

// Reset invalidates all the blocks.
func (c *Cache) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.tags.Reset()
}

// String lists the ages of all the blocks, set by set.
func (c *Cache) String() string {
	c.lock.Lock()
	defer c.lock.Unlock()

	ages := make([]string, 0, c.blockCount)
	c.tags.Visit(func(_, _ int, block *tagging.Block) {
		ages = append(ages, fmt.Sprint(block.Age()))
	})

	return "{" + strings.Join(ages, ", ") + "}"
}
