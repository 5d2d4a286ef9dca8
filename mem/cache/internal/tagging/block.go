package tagging

// InvalidTag is the tag carried by a block that holds no data.
const InvalidTag = ^uint64(0)

// A Block of a cache is a cache line together with the information that is
// associated with it.
type Block struct {
	valid bool
	tag   uint64
	data  []byte
	age   int
}

// NewBlock creates an invalid block that can hold blockSize bytes.
func NewBlock(blockSize int) Block {
	return Block{
		tag:  InvalidTag,
		data: make([]byte, blockSize),
	}
}

// Install fills the block with data and marks it as valid. The data is copied
// into the storage that the block already owns.
func (b *Block) Install(data []byte, tag uint64) {
	b.valid = true
	b.tag = tag
	copy(b.data, data)
	b.age = 1
}

// Invalidate returns the block to the state of a newly created block.
func (b *Block) Invalidate() {
	b.valid = false
	b.tag = InvalidTag
	b.age = 0
	clear(b.data)
}

// IsValid tells if the block holds live data.
func (b *Block) IsValid() bool {
	return b.valid
}

// Tag returns the tag of the block. It is meaningless if the block is not
// valid.
func (b *Block) Tag() uint64 {
	return b.tag
}

// Age returns the recency counter of the block.
func (b *Block) Age() int {
	return b.age
}

// Data returns the bytes stored in the block.
func (b *Block) Data() []byte {
	return b.data
}

// SetAge overwrites the recency counter.
func (b *Block) SetAge(age int) {
	b.age = age
}

// IncrementAge adds one to the recency counter.
func (b *Block) IncrementAge() {
	b.age++
}
