package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rocache/mem"
	"github.com/sarchlab/rocache/mem/cache"
	"github.com/sarchlab/rocache/sim/hooking"
)

func buildCache(name string, memory mem.Memory) *cache.Cache {
	c, err := cache.MakeBuilder().
		WithMemory(memory).
		WithNumBlocks(8).
		WithBytesPerBlock(4).
		WithWayAssociativity(2).
		Build(name)
	Expect(err).NotTo(HaveOccurred())

	return c
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		l1, l2 *cache.Cache
	)

	serve := func(method, url string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, url, nil)
		rec := httptest.NewRecorder()
		m.Router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		m = NewMonitor()
		l1 = buildCache("L1", mem.AddressPattern)
		l2 = buildCache("L2", mem.NewStorage(mem.KB))

		m.RegisterCache(l1)
		m.RegisterCache(l2)
	})

	It("should not register a cache twice", func() {
		Expect(func() { m.RegisterCache(l1) }).To(Panic())
	})

	It("should not use ports below 1000", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should list caches", func() {
		rec := serve(http.MethodGet, "/api/list_components")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`["L1", "L2"]`))
	})

	It("should dump a cache", func() {
		rec := serve(http.MethodGet, "/api/component/L2")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should dump a cache over a generated memory with function hooks", func() {
		c, err := cache.MakeBuilder().
			WithMemory(mem.AddressPattern).
			WithNumBlocks(8).
			WithBytesPerBlock(4).
			WithWayAssociativity(2).
			WithHook(hooking.HookFunc(func(hooking.HookCtx) {})).
			Build("L3")
		Expect(err).NotTo(HaveOccurred())
		m.RegisterCache(c)

		_, err = c.Load(0x44)
		Expect(err).NotTo(HaveOccurred())

		var rec *httptest.ResponseRecorder
		Expect(func() {
			rec = serve(http.MethodGet, "/api/component/L1")
		}).NotTo(Panic())
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("L1"))

		Expect(func() {
			rec = serve(http.MethodGet, "/api/component/L3")
		}).NotTo(Panic())
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("L3"))
	})

	It("should report 404 for unknown caches", func() {
		Expect(serve(http.MethodGet, "/api/component/L3").Code).
			To(Equal(http.StatusNotFound))
		Expect(serve(http.MethodGet, "/api/cache/L3/sets").Code).
			To(Equal(http.StatusNotFound))
		Expect(serve(http.MethodPost, "/api/cache/L3/load/0").Code).
			To(Equal(http.StatusNotFound))
	})

	It("should load through a cache", func() {
		rec := serve(http.MethodPost, "/api/cache/L1/load/0x41")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).
			To(MatchJSON(`{"address": 65, "value": 65, "hit": false,
				"set_id": 0, "way_id": 0}`))

		rec = serve(http.MethodPost, "/api/cache/L1/load/66")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).
			To(MatchJSON(`{"address": 66, "value": 66, "hit": true,
				"set_id": 0, "way_id": 0}`))

		Expect(l1.Contains(0x40)).To(BeTrue())
		Expect(l2.Contains(0x40)).To(BeFalse())
	})

	It("should reject bad loads", func() {
		Expect(serve(http.MethodPost, "/api/cache/L1/load/xyz").Code).
			To(Equal(http.StatusBadRequest))
		Expect(serve(http.MethodPost, "/api/cache/L2/load/0x10000").Code).
			To(Equal(http.StatusBadGateway))
	})

	It("should list the sets of a cache", func() {
		_, err := l1.Load(0x44)
		Expect(err).NotTo(HaveOccurred())

		rec := serve(http.MethodGet, "/api/cache/L1/sets")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var s cache.Snapshot
		Expect(json.Unmarshal(rec.Body.Bytes(), &s)).To(Succeed())
		Expect(s.Name).To(Equal("L1"))
		Expect(s.NumSets).To(Equal(4))
		Expect(s.Associativity).To(Equal(2))
		Expect(s.ResidentBlocks()).To(Equal([]uint64{0x44}))
		Expect(s.Sets[1][0].Valid).To(BeTrue())
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("replay", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)
		bar.IncrementFinished(1)

		rec := serve(http.MethodGet, "/api/progress")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var bars []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["id"]).To(Equal(bar.ID))
		Expect(bars[0]["name"]).To(Equal("replay"))
		Expect(bars[0]["total"]).To(BeEquivalentTo(10))
		Expect(bars[0]["finished"]).To(BeEquivalentTo(3))
		Expect(bars[0]["in_progress"]).To(BeEquivalentTo(1))

		m.CompleteProgressBar(bar)

		rec = serve(http.MethodGet, "/api/progress")
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})

	It("should report resources", func() {
		rec := serve(http.MethodGet, "/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"memory_size"`))
	})

	It("should collect a profile", func() {
		m.profileDuration = 10 * time.Millisecond

		rec := serve(http.MethodGet, "/api/profile")

		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should serve the web page", func() {
		rec := serve(http.MethodGet, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should serve over http", func() {
		addr, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer func() {
			Expect(m.StopServer()).To(Succeed())
		}()

		rsp, err := http.Get(addr + "/api/list_components")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(MatchJSON(`["L1", "L2"]`))
	})
})
