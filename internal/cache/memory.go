package cache

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v2"
)

const defaultMemoryEntries = 1024

// MemoryProvider keeps entries in an in-process LRU.
type MemoryProvider struct {
	lru *ccache.Cache
}

// NewMemoryProvider returns a provider holding at most maxEntries values.
func NewMemoryProvider(maxEntries int64) *MemoryProvider {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryEntries
	}
	return &MemoryProvider{lru: ccache.New(ccache.Configure().MaxSize(maxEntries))}
}

// Get returns ErrCacheMiss for absent or expired keys.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	item := p.lru.Get(key)
	if item == nil || item.Expired() {
		return nil, ErrCacheMiss
	}
	value, ok := item.Value().([]byte)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value. A non-positive ttl keeps the entry for a day.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	p.lru.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Del removes key.
func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.lru.Delete(key)
	return nil
}

// Close stops the LRU's background worker.
func (p *MemoryProvider) Close() error {
	p.lru.Stop()
	return nil
}
