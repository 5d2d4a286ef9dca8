package tagging

// A TagArray holds all the blocks of a cache, organized as numSets sets of
// numWays blocks each. The blocks are allocated once and are only mutated in
// place afterwards.
type TagArray struct {
	numSets   int
	numWays   int
	blockSize int
	blocks    []Block
}

// NewTagArray creates a tag array in which every block is invalid.
func NewTagArray(numSets, numWays, blockSize int) *TagArray {
	t := &TagArray{
		numSets:   numSets,
		numWays:   numWays,
		blockSize: blockSize,
		blocks:    make([]Block, numSets*numWays),
	}

	for i := range t.blocks {
		t.blocks[i] = NewBlock(blockSize)
	}

	return t
}

// NumSets returns the number of sets.
func (t *TagArray) NumSets() int {
	return t.numSets
}

// NumWays returns the number of blocks in each set.
func (t *TagArray) NumWays() int {
	return t.numWays
}

// BlockSize returns the number of bytes in each block.
func (t *TagArray) BlockSize() int {
	return t.blockSize
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (t *TagArray) TotalSize() uint64 {
	return uint64(t.numSets) * uint64(t.numWays) * uint64(t.blockSize)
}

// Set returns the blocks of a set. The returned slice aliases the storage of
// the tag array.
func (t *TagArray) Set(setID int) []Block {
	start := setID * t.numWays
	return t.blocks[start : start+t.numWays : start+t.numWays]
}

// Block returns the block at the given set and way.
func (t *TagArray) Block(setID, wayID int) *Block {
	return &t.blocks[setID*t.numWays+wayID]
}

// Lookup searches every way of a set for a valid block with the given tag.
func (t *TagArray) Lookup(setID int, tag uint64) (wayID int, found bool) {
	set := t.Set(setID)
	for i := range set {
		if set[i].IsValid() && set[i].Tag() == tag {
			return i, true
		}
	}

	return 0, false
}

// Visit calls fn for every block, in set-major, way-minor order.
func (t *TagArray) Visit(fn func(setID, wayID int, block *Block)) {
	for i := range t.blocks {
		fn(i/t.numWays, i%t.numWays, &t.blocks[i])
	}
}

// Reset will mark all the blocks in the directory invalid
func (t *TagArray) Reset() {
	for i := range t.blocks {
		t.blocks[i].Invalidate()
	}
}
