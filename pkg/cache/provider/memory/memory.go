// Package memory provides an in-process cache provider, suitable for tests
// and single-node deployments where no cross-process sharing is needed.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/aclgate/pkg/cache"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryProvider implements cache.Provider with a TTL map. Expired entries
// are dropped lazily on read.
type MemoryProvider struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   func() time.Time
}

var _ cache.Provider = (*MemoryProvider)(nil)

// New creates an empty provider.
func New() *MemoryProvider {
	return &MemoryProvider{
		entries: make(map[string]entry),
		clock:   time.Now,
	}
}

func (p *MemoryProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	p.mu.RLock()
	e, ok := p.entries[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !e.expiresAt.IsZero() && p.clock().After(e.expiresAt) {
		p.mu.Lock()
		delete(p.entries, key)
		p.mu.Unlock()
		return nil, false, nil
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, true, nil
}

func (p *MemoryProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = p.clock().Add(ttl)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries[key] = e
	return nil
}

func (p *MemoryProvider) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.entries, key)
	return nil
}

func (p *MemoryProvider) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = make(map[string]entry)
	return nil
}

func (p *MemoryProvider) Close() error {
	return nil
}

// Len returns the number of live entries, counting not-yet-collected expired
// ones. Intended for tests.
func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.entries)
}
