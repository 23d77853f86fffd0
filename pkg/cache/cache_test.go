package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// ============================================================================
// Test Doubles
// ============================================================================

// fakeProvider is an in-memory Provider with injectable failures and call
// counters, standing in for the shared tier.
type fakeProvider struct {
	mu       sync.Mutex
	data     map[string][]byte
	lastTTL  time.Duration
	getCalls int
	setCalls int

	getErr error
	setErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{data: make(map[string][]byte)}
}

func (p *fakeProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.getCalls++
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	value, ok := p.data[key]
	return value, ok, nil
}

func (p *fakeProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setCalls++
	if p.setErr != nil {
		return p.setErr
	}
	p.data[key] = value
	p.lastTTL = ttl
	return nil
}

func (p *fakeProvider) Remove(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.data, key)
	return nil
}

func (p *fakeProvider) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data = make(map[string][]byte)
	return nil
}

func (p *fakeProvider) Close() error { return nil }

// fakeMetrics counts observations per cache name and tier.
type fakeMetrics struct {
	mu        sync.Mutex
	hits      map[string]int // keyed by "name/tier"
	misses    map[string]int
	evictions map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		hits:      make(map[string]int),
		misses:    make(map[string]int),
		evictions: make(map[string]int),
	}
}

func (m *fakeMetrics) RecordHit(cache, tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[cache+"/"+tier]++
}

func (m *fakeMetrics) RecordMiss(cache string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses[cache]++
}

func (m *fakeMetrics) RecordEviction(cache string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictions[cache]++
}

// ============================================================================
// TwoTier Tests
// ============================================================================

func TestTwoTier_LocalHitSkipsShared(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	c := NewTwoTier[string](Config{Name: "permissions", Shared: provider})

	c.Set(ctx, "k", "value")

	v, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	if v != "value" {
		t.Errorf("value mismatch: got %q, want %q", v, "value")
	}
	if provider.getCalls != 0 {
		t.Errorf("local hit should not touch the shared tier, got %d reads", provider.getCalls)
	}
}

func TestTwoTier_SharedHitBackfillsLocal(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	c := NewTwoTier[string](Config{Name: "permissions", Shared: provider})

	c.Set(ctx, "k", "value")
	c.ClearLocal()

	v, ok := c.Get(ctx, "k")
	if !ok || v != "value" {
		t.Fatalf("Get after ClearLocal = (%q, %v), want shared hit", v, ok)
	}
	if provider.getCalls != 1 {
		t.Fatalf("expected 1 shared read, got %d", provider.getCalls)
	}

	// The shared hit must have repopulated the local tier.
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit after backfill")
	}
	if provider.getCalls != 1 {
		t.Errorf("backfilled key should be served locally, got %d shared reads", provider.getCalls)
	}
}

func TestTwoTier_MissWhenAbsent(t *testing.T) {
	ctx := context.Background()
	c := NewTwoTier[string](Config{Name: "permissions", Shared: newFakeProvider()})

	v, ok := c.Get(ctx, "unknown")
	if ok {
		t.Fatalf("expected miss, got %q", v)
	}
	if v != "" {
		t.Errorf("miss should return the zero value, got %q", v)
	}
}

func TestTwoTier_SharedReadErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	provider.getErr = errors.New("connection refused")
	c := NewTwoTier[string](Config{Name: "permissions", Shared: provider})

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("shared tier failure should degrade to a miss")
	}
}

func TestTwoTier_UndecodableSharedEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	provider.data["k"] = []byte("{not json")
	c := NewTwoTier[string](Config{Name: "permissions", Shared: provider})

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("undecodable shared entry should degrade to a miss")
	}
}

func TestTwoTier_SetWritesSharedWithTTL(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	c := NewTwoTier[string](Config{
		Name:   "permissions",
		TTL:    42 * time.Second,
		Shared: provider,
	})

	c.Set(ctx, "k", "value")

	if provider.setCalls != 1 {
		t.Fatalf("expected 1 shared write, got %d", provider.setCalls)
	}
	if provider.lastTTL != 42*time.Second {
		t.Errorf("shared TTL = %v, want %v", provider.lastTTL, 42*time.Second)
	}
}

func TestTwoTier_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	c := NewTwoTier[string](Config{Name: "permissions", Shared: provider})

	c.Set(ctx, "k", "value")

	if provider.lastTTL != DefaultTTL {
		t.Errorf("shared TTL = %v, want default %v", provider.lastTTL, DefaultTTL)
	}
}

func TestTwoTier_SharedWriteFailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	provider.setErr = errors.New("connection refused")
	c := NewTwoTier[string](Config{Name: "permissions", Shared: provider})

	c.Set(ctx, "k", "value")

	v, ok := c.Get(ctx, "k")
	if !ok || v != "value" {
		t.Errorf("Get = (%q, %v), want local hit despite shared write failure", v, ok)
	}
}

func TestTwoTier_NilSharedIsLocalOnly(t *testing.T) {
	ctx := context.Background()
	c := NewTwoTier[string](Config{Name: "permissions"})

	c.Set(ctx, "k", "value")
	if v, ok := c.Get(ctx, "k"); !ok || v != "value" {
		t.Fatalf("Get = (%q, %v), want local hit", v, ok)
	}

	c.ClearLocal()
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss with no shared tier after ClearLocal")
	}

	if err := c.RemoveShared(ctx, "k"); err != nil {
		t.Errorf("RemoveShared without a shared tier failed: %v", err)
	}
}

func TestTwoTier_RemoveShared(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	c := NewTwoTier[string](Config{Name: "permissions", Shared: provider})

	c.Set(ctx, "k", "value")
	c.ClearLocal()

	if err := c.RemoveShared(ctx, "k"); err != nil {
		t.Fatalf("RemoveShared() failed: %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss after removing the key from both tiers")
	}
}

func TestTwoTier_StructValuesSurviveSharedTier(t *testing.T) {
	type listing struct {
		Names []string `json:"names"`
	}

	ctx := context.Background()
	c := NewTwoTier[listing](Config{Name: "listings", Shared: newFakeProvider()})

	want := listing{Names: []string{"a.txt", "b.txt"}}
	c.Set(ctx, "dir", want)
	c.ClearLocal()

	got, ok := c.Get(ctx, "dir")
	if !ok {
		t.Fatal("expected shared hit")
	}
	if len(got.Names) != 2 || got.Names[0] != "a.txt" || got.Names[1] != "b.txt" {
		t.Errorf("listing mismatch: got %v, want %v", got.Names, want.Names)
	}
}

func TestTwoTier_Metrics(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	metrics := newFakeMetrics()
	c := NewTwoTier[string](Config{
		Name:     "permissions",
		Capacity: 1,
		Shared:   provider,
		Metrics:  metrics,
	})

	c.Get(ctx, "k")        // miss
	c.Set(ctx, "k", "v")   // populate
	c.Get(ctx, "k")        // local hit
	c.ClearLocal()
	c.Get(ctx, "k")        // shared hit
	c.Set(ctx, "k2", "v2") // evicts k from the local tier

	if got := metrics.misses["permissions"]; got != 1 {
		t.Errorf("misses = %d, want 1", got)
	}
	if got := metrics.hits["permissions/local"]; got != 1 {
		t.Errorf("local hits = %d, want 1", got)
	}
	if got := metrics.hits["permissions/shared"]; got != 1 {
		t.Errorf("shared hits = %d, want 1", got)
	}
	if got := metrics.evictions["permissions"]; got != 1 {
		t.Errorf("evictions = %d, want 1", got)
	}
}

// ============================================================================
// Key Helper Tests
// ============================================================================

func TestPathKey_Deterministic(t *testing.T) {
	if PathKey("docs/reports") != PathKey("docs/reports") {
		t.Error("PathKey must be deterministic")
	}
	if PathKey("docs/reports") == PathKey("docs/report") {
		t.Error("distinct paths should not collide on these inputs")
	}
	// The root path must key cleanly too.
	if PathKey("") == "" {
		t.Error("PathKey of the root path should not be empty")
	}
}

func TestNamespace(t *testing.T) {
	got := Namespace("storage-1", 42)
	want := "aclgate:storage-1:42:"
	if got != want {
		t.Errorf("Namespace() = %q, want %q", got, want)
	}
}
