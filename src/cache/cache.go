// Package cache keeps resolved content payloads keyed by their URI.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/redis/go-redis/v9"
)

const contentPrefix = "geo:content:"

// Content caches payloads by URI. Get reports a miss with ok=false.
type Content interface {
	Get(ctx context.Context, uri string) (payload []byte, ok bool, err error)
	Set(ctx context.Context, uri string, payload []byte) error
}

// Key hashes a URI into its cache key. Content-addressed URIs are immutable,
// so the key never needs invalidation.
func Key(uri string) string {
	h := xxhash.NewS64(0)
	h.Write([]byte(uri))
	sum := make([]byte, 8)
	binary.BigEndian.PutUint64(sum, h.Sum64())
	return contentPrefix + hex.EncodeToString(sum)
}

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to url (redis://...). A zero ttl stores keys forever.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{rdb: redis.NewClient(opt), ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, uri string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, Key(uri)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, uri string, payload []byte) error {
	return r.rdb.Set(ctx, Key(uri), payload, r.ttl).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Memory is an unbounded in-process cache.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, uri string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.items[Key(uri)]
	return b, ok, nil
}

func (m *Memory) Set(_ context.Context, uri string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[Key(uri)] = append([]byte(nil), payload...)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error          { return nil }
