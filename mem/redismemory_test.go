package mem

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

// fakeRedis serves GETRANGE and SET from a map. Calling any other command
// panics through the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable

	values map[string]string
	err    error
}

func (f *fakeRedis) GetRange(
	_ context.Context,
	key string,
	start, end int64,
) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}

	v := f.values[key]
	if start >= int64(len(v)) {
		return redis.NewStringResult("", nil)
	}

	end = min(end, int64(len(v))-1)

	return redis.NewStringResult(v[start:end+1], nil)
}

func (f *fakeRedis) Set(
	_ context.Context,
	key string,
	value any,
	_ time.Duration,
) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

var _ = Describe("RedisMemory", func() {
	var (
		client *fakeRedis
		m      *RedisMemory
	)

	BeforeEach(func() {
		client = &fakeRedis{values: map[string]string{}}
		m = NewRedisMemory(client, "image").WithTimeout(time.Second)
		Expect(m.Store(context.Background(), []byte{0, 1, 2, 3, 4, 5, 6, 7})).
			To(Succeed())
	})

	It("should read a range", func() {
		res, err := m.Read(4, 4)

		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{4, 5, 6, 7}))
		Expect(m.Key()).To(Equal("image"))
	})

	It("should report short reads", func() {
		_, err := m.Read(6, 4)

		Expect(err).To(MatchError(ErrShortRead))
	})

	It("should report reads beyond the image", func() {
		_, err := m.Read(64, 4)

		Expect(err).To(MatchError(ErrShortRead))
	})

	It("should wrap client errors", func() {
		cause := errors.New("connection refused")
		client.err = cause

		_, err := m.Read(0, 4)

		Expect(err).To(MatchError(cause))
	})

	It("should not contact redis for empty reads", func() {
		client.err = errors.New("should not be called")

		res, err := m.Read(0, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(BeEmpty())
	})
})
