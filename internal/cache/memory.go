package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// Memory is an in-memory W-TinyLFU cache backed by otter. Every entry lives
// for the same ttl, counted from the write.
type Memory struct {
	cache *otter.Cache[string, []byte]
}

// NewMemory creates an in-memory cache with the given max entry count and TTL.
func NewMemory(maxSize int, ttl time.Duration) (*Memory, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("create cache: ttl must be positive, got %s", ttl)
	}
	c, err := otter.New[string, []byte](&otter.Options[string, []byte]{
		MaximumSize:      maxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, []byte](ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Memory{cache: c}, nil
}

// Get returns the body stored under key if it has not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	return m.cache.GetIfPresent(key)
}

func (m *Memory) Set(_ context.Context, key string, val []byte) {
	m.cache.Set(key, val)
}

func (m *Memory) Purge(_ context.Context) {
	m.cache.InvalidateAll()
}
