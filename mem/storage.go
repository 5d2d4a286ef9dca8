package mem

// A Storage keeps the data of the simulated memory.
//
// The storage manages the data in units, similar to pages in memory
// management. Units that were never touched by Read or Write do not get any
// memory allocated.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity
func NewStorage(capacity uint64) *Storage {
	storage := new(Storage)

	storage.unitSize = 4 * KB
	storage.capacity = capacity
	storage.data = make(map[uint64][]byte)

	return storage
}

// Capacity returns the number of bytes that the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) mustBeInRange(address, byteSize uint64) error {
	if address > s.capacity || byteSize > s.capacity-address {
		return outOfRangeError(address, byteSize, s.capacity)
	}

	return nil
}

// getStorageUnit retrieves the unit that holds the address. A missing unit is
// only created if create is set; otherwise nil is returned and the caller
// treats the unit as all zeros.
func (s *Storage) getStorageUnit(address uint64, create bool) []byte {
	baseAddr, _ := s.parseAddress(address)

	unit, ok := s.data[baseAddr]
	if !ok && create {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

// Read returns byteSize bytes starting from address. Bytes that were never
// written read as zero.
func (s *Storage) Read(address, byteSize uint64) ([]byte, error) {
	if err := s.mustBeInRange(address, byteSize); err != nil {
		return nil, err
	}

	res := make([]byte, byteSize)
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < byteSize {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToRead := min(byteSize-dataOffset, baseAddr+s.unitSize-currAddr)

		unit := s.getStorageUnit(currAddr, false)
		if unit != nil {
			copy(res[dataOffset:dataOffset+lenToRead],
				unit[inUnitAddr:inUnitAddr+lenToRead])
		}

		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// Write stores data starting from address.
func (s *Storage) Write(address uint64, data []byte) error {
	byteSize := uint64(len(data))
	if err := s.mustBeInRange(address, byteSize); err != nil {
		return err
	}

	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < byteSize {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToWrite := min(byteSize-dataOffset, baseAddr+s.unitSize-currAddr)

		unit := s.getStorageUnit(currAddr, true)
		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])

		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}

// NumAllocatedUnits returns how many units have been allocated so far.
func (s *Storage) NumAllocatedUnits() int {
	return len(s.data)
}
