package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Block", func() {
	var block Block

	BeforeEach(func() {
		block = NewBlock(4)
	})

	It("should start invalid", func() {
		Expect(block.IsValid()).To(BeFalse())
		Expect(block.Tag()).To(Equal(InvalidTag))
		Expect(block.Age()).To(Equal(0))
		Expect(block.Data()).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should install data", func() {
		data := []byte{1, 2, 3, 4}

		block.Install(data, 0x40)
		data[0] = 9

		Expect(block.IsValid()).To(BeTrue())
		Expect(block.Tag()).To(Equal(uint64(0x40)))
		Expect(block.Age()).To(Equal(1))
		Expect(block.Data()).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should reset age on install", func() {
		block.Install([]byte{1, 2, 3, 4}, 1)
		block.SetAge(7)
		block.IncrementAge()
		Expect(block.Age()).To(Equal(8))

		block.Install([]byte{5, 6, 7, 8}, 2)

		Expect(block.Age()).To(Equal(1))
		Expect(block.Tag()).To(Equal(uint64(2)))
	})

	It("should invalidate", func() {
		block.Install([]byte{1, 2, 3, 4}, 1)

		block.Invalidate()

		Expect(block.IsValid()).To(BeFalse())
		Expect(block.Tag()).To(Equal(InvalidTag))
		Expect(block.Age()).To(Equal(0))
		Expect(block.Data()).To(Equal([]byte{0, 0, 0, 0}))
	})
})

var _ = Describe("AddressLayout", func() {
	It("should decompose an address", func() {
		l := MakeAddressLayout(6, 4)

		tag, setID, offset := l.Decompose(0x12345)

		Expect(offset).To(Equal(uint64(0x05)))
		Expect(setID).To(Equal(0xd))
		Expect(tag).To(Equal(uint64(0x48)))
	})

	It("should find the block address", func() {
		l := MakeAddressLayout(6, 4)

		Expect(l.BlockAddress(0x12345)).To(Equal(uint64(0x12340)))
		Expect(l.BlockAddress(0x12340)).To(Equal(uint64(0x12340)))
	})

	It("should compose the block address from tag and set", func() {
		l := MakeAddressLayout(6, 4)

		tag, setID, _ := l.Decompose(0x12345)

		Expect(l.Compose(tag, setID)).To(Equal(uint64(0x12340)))
	})

	It("should put everything in the tag when there is only one set", func() {
		l := MakeAddressLayout(2, 0)

		tag, setID, offset := l.Decompose(0x1236)

		Expect(offset).To(Equal(uint64(2)))
		Expect(setID).To(Equal(0))
		Expect(tag).To(Equal(uint64(0x48d)))
	})

	It("should have no offset with one-byte blocks", func() {
		l := MakeAddressLayout(0, 1)

		tag, setID, offset := l.Decompose(4)

		Expect(offset).To(Equal(uint64(0)))
		Expect(setID).To(Equal(0))
		Expect(tag).To(Equal(uint64(2)))
		Expect(l.BlockAddress(5)).To(Equal(uint64(5)))
	})
})

var _ = Describe("TagArray", func() {
	var tags *TagArray

	BeforeEach(func() {
		tags = NewTagArray(1024, 4, 64)
	})

	It("should be able to get total size", func() {
		Expect(tags.TotalSize()).To(Equal(uint64(262144)))
	})

	It("should lookup", func() {
		tags.Block(3, 2).Install(make([]byte, 64), 0x100)

		wayID, found := tags.Lookup(3, 0x100)

		Expect(found).To(BeTrue())
		Expect(wayID).To(Equal(2))
	})

	It("should not find a tag in another set", func() {
		tags.Block(3, 2).Install(make([]byte, 64), 0x100)

		_, found := tags.Lookup(4, 0x100)

		Expect(found).To(BeFalse())
	})

	It("should not find invalid blocks", func() {
		_, found := tags.Lookup(0, InvalidTag)

		Expect(found).To(BeFalse())
	})

	It("should alias the set storage", func() {
		set := tags.Set(5)
		set[1].Install(make([]byte, 64), 7)

		Expect(tags.Block(5, 1).IsValid()).To(BeTrue())
		Expect(set).To(HaveLen(4))
	})

	It("should visit blocks in set and way order", func() {
		small := NewTagArray(2, 2, 1)
		visited := [][2]int{}

		small.Visit(func(setID, wayID int, _ *Block) {
			visited = append(visited, [2]int{setID, wayID})
		})

		Expect(visited).To(Equal([][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}))
	})

	It("should reset", func() {
		tags.Block(0, 0).Install(make([]byte, 64), 1)

		tags.Reset()

		Expect(tags.Block(0, 0).IsValid()).To(BeFalse())
		Expect(tags.Block(0, 0).Age()).To(Equal(0))
	})
})
