package mem

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTimeout bounds each request a RedisMemory sends.
const DefaultRedisTimeout = 2 * time.Second

// RedisMemory is a memory whose content is a single Redis string. Byte i of
// the memory is byte i of the string.
type RedisMemory struct {
	client  redis.Cmdable
	key     string
	timeout time.Duration
}

// NewRedisMemory creates a memory backed by the given key.
func NewRedisMemory(client redis.Cmdable, key string) *RedisMemory {
	return &RedisMemory{
		client:  client,
		key:     key,
		timeout: DefaultRedisTimeout,
	}
}

// WithTimeout sets the timeout of each request.
func (m *RedisMemory) WithTimeout(timeout time.Duration) *RedisMemory {
	m.timeout = timeout
	return m
}

// Key returns the Redis key that holds the memory image.
func (m *RedisMemory) Key() string {
	return m.key
}

// Read fetches the bytes with GETRANGE. Redis clips ranges at the end of the
// string, so a range beyond the image comes back short and is reported as
// ErrShortRead.
func (m *RedisMemory) Read(address, byteSize uint64) ([]byte, error) {
	if byteSize == 0 {
		return []byte{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := int64(address)
	end := int64(address + byteSize - 1)

	val, err := m.client.GetRange(ctx, m.key, start, end).Result()
	if err != nil {
		return nil, fmt.Errorf("redis GETRANGE %s %d %d: %w",
			m.key, start, end, err)
	}

	if uint64(len(val)) != byteSize {
		return nil, shortReadError(address, byteSize, uint64(len(val)))
	}

	return []byte(val), nil
}

// Store replaces the memory image.
func (m *RedisMemory) Store(ctx context.Context, image []byte) error {
	err := m.client.Set(ctx, m.key, image, 0).Err()
	if err != nil {
		return fmt.Errorf("redis SET %s: %w", m.key, err)
	}

	return nil
}
