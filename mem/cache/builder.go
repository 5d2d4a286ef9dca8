package cache

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/rocache/mem"
	"github.com/sarchlab/rocache/mem/cache/internal/tagging"
	"github.com/sarchlab/rocache/sim/hooking"
)

// Replacement policies that a Builder accepts.
const (
	// ReplacePolicyAge ages every valid block of the cache on each access
	// and evicts the oldest block of the set.
	ReplacePolicyAge = "age"

	// ReplacePolicyLRU stamps each access with a global counter and evicts
	// the least recently used block of the set.
	ReplacePolicyLRU = "lru"
)

// Builder can build caches.
type Builder struct {
	memory           mem.Memory
	numBlocks        int
	bytesPerBlock    int
	wayAssociativity int
	replacePolicy    string
	hooks            []hooking.Hook
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		numBlocks:        256,
		bytesPerBlock:    64,
		wayAssociativity: 4,
		replacePolicy:    ReplacePolicyAge,
	}
}

// WithMemory sets the memory that the cache fetches blocks from.
func (b Builder) WithMemory(memory mem.Memory) Builder {
	b.memory = memory
	return b
}

// WithNumBlocks sets the total number of blocks.
func (b Builder) WithNumBlocks(numBlocks int) Builder {
	b.numBlocks = numBlocks
	return b
}

// WithBytesPerBlock sets the block size. It must be a power of two.
func (b Builder) WithBytesPerBlock(bytesPerBlock int) Builder {
	b.bytesPerBlock = bytesPerBlock
	return b
}

// WithWayAssociativity sets the number of blocks in each set. 1 builds a
// direct-mapped cache and the number of blocks builds a fully-associative
// cache.
func (b Builder) WithWayAssociativity(wayAssociativity int) Builder {
	b.wayAssociativity = wayAssociativity
	return b
}

// WithReplacePolicy selects the replacement policy, either ReplacePolicyAge or
// ReplacePolicyLRU.
func (b Builder) WithReplacePolicy(policy string) Builder {
	b.replacePolicy = policy
	return b
}

// WithHook registers a hook with every cache that the builder builds.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

// Build builds a cache.
func (b Builder) Build(name string) (*Cache, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	victimFinder, err := b.createVictimFinder()
	if err != nil {
		return nil, err
	}

	numSets := b.numBlocks / b.wayAssociativity

	c := &Cache{
		name:          name,
		memory:        b.memory,
		blockCount:    b.numBlocks,
		bytesPerBlock: b.bytesPerBlock,
		layout: tagging.MakeAddressLayout(
			log2(b.bytesPerBlock),
			log2(numSets),
		),
		tags:         tagging.NewTagArray(numSets, b.wayAssociativity, b.bytesPerBlock),
		victimFinder: victimFinder,
	}

	for _, h := range b.hooks {
		c.AcceptHook(h)
	}

	return c, nil
}

func (b Builder) validate() error {
	if b.memory == nil {
		return configError("memory is not set")
	}

	if b.numBlocks <= 0 {
		return configError("number of blocks must be positive, got %d",
			b.numBlocks)
	}

	if !isPowerOfTwo(b.bytesPerBlock) {
		return configError("bytes per block must be a power of two, got %d",
			b.bytesPerBlock)
	}

	if b.wayAssociativity <= 0 {
		return configError("associativity must be positive, got %d",
			b.wayAssociativity)
	}

	if b.numBlocks%b.wayAssociativity != 0 {
		return configError(
			"associativity %d does not divide the number of blocks %d",
			b.wayAssociativity, b.numBlocks)
	}

	numSets := b.numBlocks / b.wayAssociativity
	if !isPowerOfTwo(numSets) {
		return configError("number of sets must be a power of two, got %d",
			numSets)
	}

	return nil
}

func (b Builder) createVictimFinder() (tagging.VictimFinder, error) {
	switch b.replacePolicy {
	case ReplacePolicyAge:
		return tagging.NewAgeVictimFinder(), nil
	case ReplacePolicyLRU:
		return tagging.NewLRUVictimFinder(), nil
	default:
		return nil, configError("unknown replace policy %q", b.replacePolicy)
	}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int) uint {
	return uint(bits.TrailingZeros(uint(n)))
}
