// Package mem defines the backing store that a cache reads from and provides
// several implementations of it.
package mem

import "fmt"

// For capacity
const (
	_ = 1 << (10 * iota)
	KB
	MB
	GB
)

type constError string

func (errStr constError) Error() string { return string(errStr) }

const (
	// ErrAddressOutOfRange is returned when an access falls outside of the
	// capacity of a memory.
	ErrAddressOutOfRange = constError("access beyond the memory capacity")

	// ErrShortRead is returned when a memory cannot provide all the bytes
	// that were requested.
	ErrShortRead = constError("short read")
)

// Memory is a byte-addressable backing store.
type Memory interface {
	// Read returns exactly byteSize bytes starting from address.
	Read(address, byteSize uint64) ([]byte, error)
}

// MemoryFunc adapts a function that returns the value of a single byte to the
// Memory interface.
type MemoryFunc func(address uint64) byte

// Read calls f for each byte in the range.
func (f MemoryFunc) Read(address, byteSize uint64) ([]byte, error) {
	data := make([]byte, byteSize)
	for i := range data {
		data[i] = f(address + uint64(i))
	}

	return data, nil
}

// AddressPattern is a memory in which every byte holds the low 8 bits of its
// own address.
var AddressPattern = MemoryFunc(func(address uint64) byte {
	return byte(address)
})

func outOfRangeError(address, byteSize, capacity uint64) error {
	return fmt.Errorf("%w: [0x%x, 0x%x) with capacity 0x%x",
		ErrAddressOutOfRange, address, address+byteSize, capacity)
}

func shortReadError(address, want, got uint64) error {
	return fmt.Errorf("%w: wanted %d bytes from 0x%x, got %d",
		ErrShortRead, want, address, got)
}
