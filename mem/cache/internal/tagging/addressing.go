package tagging

// AddressLayout splits a byte address into the offset, set index and tag
// fields. From the lowest bit, the offset takes log2(blockSize) bits, the set
// index takes log2(numSets) bits, and the tag takes the rest.
type AddressLayout struct {
	offsetBits uint
	setBits    uint
}

// MakeAddressLayout creates a layout from the bit widths of the offset and the
// set index.
func MakeAddressLayout(log2BlockSize, log2NumSets uint) AddressLayout {
	return AddressLayout{
		offsetBits: log2BlockSize,
		setBits:    log2NumSets,
	}
}

// OffsetBits returns the number of bits used by the offset field.
func (l AddressLayout) OffsetBits() uint {
	return l.offsetBits
}

// SetBits returns the number of bits used by the set index field.
func (l AddressLayout) SetBits() uint {
	return l.setBits
}

// Decompose splits an address into its three fields.
func (l AddressLayout) Decompose(addr uint64) (tag uint64, setID int, offset uint64) {
	offset = addr & mask(l.offsetBits)
	rest := addr >> l.offsetBits
	setID = int(rest & mask(l.setBits))
	tag = rest >> l.setBits

	return tag, setID, offset
}

// BlockAddress returns the address of the first byte of the block that
// contains addr.
func (l AddressLayout) BlockAddress(addr uint64) uint64 {
	return addr &^ mask(l.offsetBits)
}

// Compose rebuilds the block address from a tag and a set index.
func (l AddressLayout) Compose(tag uint64, setID int) uint64 {
	return (tag<<l.setBits | uint64(setID)) << l.offsetBits
}

func mask(bits uint) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}

	return uint64(1)<<bits - 1
}
