package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func installWithAge(tags *TagArray, setID, wayID int, tag uint64, age int) {
	block := tags.Block(setID, wayID)
	block.Install(make([]byte, tags.BlockSize()), tag)
	block.SetAge(age)
}

func agesOf(set []Block) []int {
	ages := make([]int, len(set))
	for i := range set {
		ages[i] = set[i].Age()
	}

	return ages
}

var _ = Describe("AgeVictimFinder", func() {
	var (
		tags   *TagArray
		finder *AgeVictimFinder
	)

	BeforeEach(func() {
		tags = NewTagArray(2, 3, 1)
		finder = NewAgeVictimFinder()
	})

	It("should tick only valid blocks in every set", func() {
		installWithAge(tags, 0, 0, 1, 1)
		installWithAge(tags, 1, 2, 1, 4)

		finder.Tick(tags)

		Expect(agesOf(tags.Set(0))).To(Equal([]int{2, 0, 0}))
		Expect(agesOf(tags.Set(1))).To(Equal([]int{0, 0, 5}))
	})

	It("should reset the age of a touched block", func() {
		installWithAge(tags, 1, 1, 1, 9)

		finder.Touch(tags, 1, 1)

		Expect(tags.Block(1, 1).Age()).To(Equal(1))
	})

	It("should take an invalid block before valid ones", func() {
		installWithAge(tags, 0, 0, 1, 3)
		installWithAge(tags, 0, 2, 2, 9)

		Expect(finder.FindVictim(tags, 0)).To(Equal(1))
	})

	It("should stop incrementing once an invalid block is found", func() {
		installWithAge(tags, 0, 0, 1, 2)

		victim := finder.FindVictim(tags, 0)

		Expect(victim).To(Equal(1))
		Expect(agesOf(tags.Set(0))).To(Equal([]int{3, 1, 0}))
	})

	It("should evict the oldest block of a full set", func() {
		installWithAge(tags, 0, 0, 1, 2)
		installWithAge(tags, 0, 1, 2, 5)
		installWithAge(tags, 0, 2, 3, 3)

		victim := finder.FindVictim(tags, 0)

		Expect(victim).To(Equal(1))
		Expect(agesOf(tags.Set(0))).To(Equal([]int{3, 6, 4}))
	})

	It("should take the first block on ties", func() {
		installWithAge(tags, 0, 0, 1, 4)
		installWithAge(tags, 0, 1, 2, 4)
		installWithAge(tags, 0, 2, 3, 4)

		Expect(finder.FindVictim(tags, 0)).To(Equal(0))
	})

	It("should not touch other sets", func() {
		installWithAge(tags, 1, 0, 1, 2)

		finder.FindVictim(tags, 0)

		Expect(tags.Block(1, 0).Age()).To(Equal(2))
	})
})

var _ = Describe("LRUVictimFinder", func() {
	var (
		tags   *TagArray
		finder *LRUVictimFinder
	)

	BeforeEach(func() {
		tags = NewTagArray(1, 3, 1)
		finder = NewLRUVictimFinder()
	})

	touch := func(wayID int) {
		finder.Tick(tags)
		tags.Block(0, wayID).Install([]byte{0}, uint64(wayID))
		finder.Touch(tags, 0, wayID)
	}

	It("should take an invalid block first", func() {
		touch(0)

		Expect(finder.FindVictim(tags, 0)).To(Equal(1))
	})

	It("should evict the least recently touched block", func() {
		touch(0)
		touch(1)
		touch(2)
		touch(0)

		Expect(finder.FindVictim(tags, 0)).To(Equal(1))
		Expect(finder.LastAccess(tags, 0, 0)).To(Equal(uint64(4)))
	})

	It("should refuse to serve tag arrays of different sizes", func() {
		finder.Tick(tags)

		Expect(func() { finder.Tick(NewTagArray(2, 2, 1)) }).To(Panic())
	})
})
