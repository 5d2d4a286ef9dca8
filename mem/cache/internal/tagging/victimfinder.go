package tagging

// A VictimFinder implements a replacement policy. The cache calls Tick once
// for every access, before the accessed block is touched. It calls Touch
// after a hit and after a block is installed, and FindVictim on a miss in a
// set with more than one way.
type VictimFinder interface {
	Tick(tags *TagArray)
	Touch(tags *TagArray, setID, wayID int)
	FindVictim(tags *TagArray, setID int) (wayID int)
}

// AgeVictimFinder ages every valid block of the cache on each access and
// evicts the oldest block of a set. Invalid blocks are never aged by the
// global tick, which keeps them at age 0 so that they are always taken before
// any valid block.
type AgeVictimFinder struct {
}

// NewAgeVictimFinder returns a newly constructed age-based victim finder.
func NewAgeVictimFinder() *AgeVictimFinder {
	return new(AgeVictimFinder)
}

// Tick increments the age of every valid block in all the sets.
func (e *AgeVictimFinder) Tick(tags *TagArray) {
	tags.Visit(func(_, _ int, block *Block) {
		if block.IsValid() {
			block.IncrementAge()
		}
	})
}

// Touch resets the age of the accessed block.
func (e *AgeVictimFinder) Touch(tags *TagArray, setID, wayID int) {
	tags.Block(setID, wayID).SetAge(1)
}

// FindVictim walks the set in way order, incrementing each block once more.
// A block that reaches age 1 was never ticked and is returned right away,
// leaving the remaining ways unchanged. Otherwise the first block with the
// highest age wins.
func (e *AgeVictimFinder) FindVictim(tags *TagArray, setID int) int {
	set := tags.Set(setID)
	oldestWay := 0
	oldestAge := 1

	for i := range set {
		set[i].IncrementAge()

		if set[i].Age() > oldestAge {
			oldestAge = set[i].Age()
			oldestWay = i
		}

		if set[i].Age() == 1 {
			return i
		}
	}

	return oldestWay
}

// LRUVictimFinder evicts the least recently used block. It keeps one access
// counter for the whole cache and stamps every touched block with it.
type LRUVictimFinder struct {
	now        uint64
	lastAccess []uint64
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	return new(LRUVictimFinder)
}

// Tick advances the access counter.
func (e *LRUVictimFinder) Tick(tags *TagArray) {
	e.mustHaveStamps(tags)
	e.now++
}

// Touch stamps the block with the current access counter.
func (e *LRUVictimFinder) Touch(tags *TagArray, setID, wayID int) {
	e.mustHaveStamps(tags)
	e.lastAccess[setID*tags.NumWays()+wayID] = e.now
}

// FindVictim returns the first invalid block of the set or, if the set is
// full, the block with the oldest stamp.
func (e *LRUVictimFinder) FindVictim(tags *TagArray, setID int) int {
	e.mustHaveStamps(tags)

	set := tags.Set(setID)
	for i := range set {
		if !set[i].IsValid() {
			return i
		}
	}

	base := setID * tags.NumWays()
	victim := 0

	for i := 1; i < len(set); i++ {
		if e.lastAccess[base+i] < e.lastAccess[base+victim] {
			victim = i
		}
	}

	return victim
}

// LastAccess returns the stamp of a block. It is 0 for blocks that were never
// touched.
func (e *LRUVictimFinder) LastAccess(tags *TagArray, setID, wayID int) uint64 {
	e.mustHaveStamps(tags)
	return e.lastAccess[setID*tags.NumWays()+wayID]
}

func (e *LRUVictimFinder) mustHaveStamps(tags *TagArray) {
	n := tags.NumSets() * tags.NumWays()
	if len(e.lastAccess) == n {
		return
	}

	if e.lastAccess != nil {
		panic("lru victim finder is shared by tag arrays of different sizes")
	}

	e.lastAccess = make([]uint64, n)
}
