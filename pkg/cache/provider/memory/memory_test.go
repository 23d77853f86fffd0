package memory

import (
	"context"
	"testing"
	"time"
)

func TestMemoryProvider_SetAndGet(t *testing.T) {
	ctx := context.Background()
	p := New()

	if err := p.Set(ctx, "k", []byte("value"), 0); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	value, found, err := p.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !found {
		t.Fatal("expected hit")
	}
	if string(value) != "value" {
		t.Errorf("value mismatch: got %q, want %q", value, "value")
	}

	_, found, err = p.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if found {
		t.Error("expected miss for unknown key")
	}
}

func TestMemoryProvider_CopiesValues(t *testing.T) {
	ctx := context.Background()
	p := New()

	input := []byte("original")
	if err := p.Set(ctx, "k", input, 0); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	input[0] = 'X'

	value, _, err := p.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(value) != "original" {
		t.Errorf("stored value should not alias caller buffer: got %q", value)
	}

	// Mutating the returned slice must not corrupt the stored entry either.
	value[0] = 'Y'
	again, _, err := p.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(again) != "original" {
		t.Errorf("returned value should not alias stored entry: got %q", again)
	}
}

func TestMemoryProvider_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	p := New()

	now := time.Now()
	p.clock = func() time.Time { return now }

	if err := p.Set(ctx, "k", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if _, found, _ := p.Get(ctx, "k"); !found {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(2 * time.Minute)

	if _, found, _ := p.Get(ctx, "k"); found {
		t.Fatal("expected miss after expiry")
	}
	// The expired entry is collected by the read that observed it.
	if got := p.Len(); got != 0 {
		t.Errorf("Len() after expired read = %d, want 0", got)
	}
}

func TestMemoryProvider_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	p := New()

	now := time.Now()
	p.clock = func() time.Time { return now }

	if err := p.Set(ctx, "k", []byte("value"), 0); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	now = now.Add(24 * time.Hour)

	if _, found, _ := p.Get(ctx, "k"); !found {
		t.Error("entry with no TTL should never expire")
	}
}

func TestMemoryProvider_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := New()

	if err := p.Set(ctx, "k", []byte("value"), 0); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := p.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if err := p.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove() of absent key failed: %v", err)
	}

	if _, found, _ := p.Get(ctx, "k"); found {
		t.Error("expected miss after Remove")
	}
}

func TestMemoryProvider_Clear(t *testing.T) {
	ctx := context.Background()
	p := New()

	for _, key := range []string{"a", "b", "c"} {
		if err := p.Set(ctx, key, []byte(key), 0); err != nil {
			t.Fatalf("Set(%q) failed: %v", key, err)
		}
	}

	if err := p.Clear(ctx); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if got := p.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
}

func TestMemoryProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New()

	if _, _, err := p.Get(ctx, "k"); err == nil {
		t.Error("Get() with cancelled context should fail")
	}
	if err := p.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Error("Set() with cancelled context should fail")
	}
}
