package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rocache/mem"
	"github.com/sarchlab/rocache/mem/cache"
	"github.com/sarchlab/rocache/sim/hooking"
)

var _ = Describe("Builder", func() {
	It("should build with the defaults", func() {
		c, err := cache.MakeBuilder().
			WithMemory(mem.AddressPattern).
			Build("L1")

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Name()).To(Equal("L1"))
		Expect(c.BlockCount()).To(Equal(256))
		Expect(c.BytesPerBlock()).To(Equal(64))
		Expect(c.Associativity()).To(Equal(4))
		Expect(c.NumSets()).To(Equal(64))
	})

	It("should register hooks", func() {
		hook := hooking.HookFunc(func(hooking.HookCtx) {})

		c, err := cache.MakeBuilder().
			WithMemory(mem.AddressPattern).
			WithHook(hook).
			Build("L1")

		Expect(err).NotTo(HaveOccurred())
		Expect(c.NumHooks()).To(Equal(1))
	})

	It("should not share hooks between derived builders", func() {
		base := cache.MakeBuilder().
			WithMemory(mem.AddressPattern).
			WithHook(hooking.HookFunc(func(hooking.HookCtx) {}))

		a, err := base.WithHook(hooking.HookFunc(func(hooking.HookCtx) {})).
			Build("A")
		Expect(err).NotTo(HaveOccurred())

		b, err := base.Build("B")
		Expect(err).NotTo(HaveOccurred())

		Expect(a.NumHooks()).To(Equal(2))
		Expect(b.NumHooks()).To(Equal(1))
	})

	It("should build a fully associative cache", func() {
		c, err := cache.New(mem.AddressPattern, 8, 2, 8)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.NumSets()).To(Equal(1))
	})

	DescribeTable("should reject invalid configurations",
		func(b cache.Builder) {
			c, err := b.Build("Cache")

			Expect(err).To(MatchError(cache.ErrInvalidConfig))
			Expect(c).To(BeNil())
		},
		Entry("without memory",
			cache.MakeBuilder()),
		Entry("with no blocks",
			cache.MakeBuilder().WithMemory(mem.AddressPattern).
				WithNumBlocks(0)),
		Entry("with a block size that is not a power of two",
			cache.MakeBuilder().WithMemory(mem.AddressPattern).
				WithBytesPerBlock(48)),
		Entry("with a zero block size",
			cache.MakeBuilder().WithMemory(mem.AddressPattern).
				WithBytesPerBlock(0)),
		Entry("with zero ways",
			cache.MakeBuilder().WithMemory(mem.AddressPattern).
				WithWayAssociativity(0)),
		Entry("with ways that do not divide the blocks",
			cache.MakeBuilder().WithMemory(mem.AddressPattern).
				WithNumBlocks(12).WithWayAssociativity(5)),
		Entry("with a set count that is not a power of two",
			cache.MakeBuilder().WithMemory(mem.AddressPattern).
				WithNumBlocks(12).WithWayAssociativity(2)),
		Entry("with an unknown replace policy",
			cache.MakeBuilder().WithMemory(mem.AddressPattern).
				WithReplacePolicy("random")),
	)
})
