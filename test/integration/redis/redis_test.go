//go:build integration

package redis_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/aclgate/pkg/cache"
	redisprovider "github.com/marmos91/aclgate/pkg/cache/provider/redis"
)

// redisHelper manages the Redis container for cache integration tests.
type redisHelper struct {
	container testcontainers.Container
	addr      string
}

// newRedisHelper starts a Redis container or connects to an existing one.
func newRedisHelper(t *testing.T) *redisHelper {
	t.Helper()
	ctx := context.Background()

	// Check if external Redis is configured via environment
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return &redisHelper{addr: addr}
	}

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container port: %v", err)
	}

	return &redisHelper{
		container: container,
		addr:      fmt.Sprintf("%s:%s", host, port.Port()),
	}
}

// cleanup terminates the container if we started one.
func (rh *redisHelper) cleanup() {
	if rh.container != nil {
		_ = rh.container.Terminate(context.Background())
	}
}

// newProvider creates a provider namespaced to the test so parallel tests
// cannot see each other's keys.
func (rh *redisHelper) newProvider(t *testing.T, folderID int64) *redisprovider.RedisProvider {
	t.Helper()
	ctx := context.Background()

	provider, err := redisprovider.New(ctx, redisprovider.Config{
		Addr:      rh.addr,
		Namespace: cache.Namespace(t.Name(), folderID),
	})
	if err != nil {
		t.Fatalf("failed to create redis provider: %v", err)
	}
	t.Cleanup(func() {
		_ = provider.Clear(context.Background())
		_ = provider.Close()
	})
	return provider
}

func TestRedisProvider_Integration(t *testing.T) {
	helper := newRedisHelper(t)
	defer helper.cleanup()

	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		provider := helper.newProvider(t, 1)

		if err := provider.Set(ctx, "perm:docs", []byte("read,update"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		value, found, err := provider.Get(ctx, "perm:docs")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !found {
			t.Fatal("expected key to be found")
		}
		if !bytes.Equal(value, []byte("read,update")) {
			t.Errorf("value = %q, want %q", value, "read,update")
		}
	})

	t.Run("MissingKey", func(t *testing.T) {
		provider := helper.newProvider(t, 2)

		_, found, err := provider.Get(ctx, "perm:nothing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if found {
			t.Fatal("expected key to be absent")
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		provider := helper.newProvider(t, 3)

		if err := provider.Set(ctx, "perm:short", []byte("read"), time.Second); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			_, found, err := provider.Get(ctx, "perm:short")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !found {
				return
			}
			time.Sleep(200 * time.Millisecond)
		}
		t.Fatal("key did not expire within deadline")
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		provider := helper.newProvider(t, 4)

		if err := provider.Set(ctx, "perm:gone", []byte("read"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := provider.Remove(ctx, "perm:gone"); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if err := provider.Remove(ctx, "perm:gone"); err != nil {
			t.Fatalf("second Remove failed: %v", err)
		}

		_, found, err := provider.Get(ctx, "perm:gone")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if found {
			t.Fatal("expected key to stay removed")
		}
	})

	t.Run("ClearRespectsNamespace", func(t *testing.T) {
		mine := helper.newProvider(t, 5)
		other := helper.newProvider(t, 6)

		if err := mine.Set(ctx, "perm:a", []byte("read"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := other.Set(ctx, "perm:a", []byte("update"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		if err := mine.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}

		if _, found, _ := mine.Get(ctx, "perm:a"); found {
			t.Error("expected cleared namespace to be empty")
		}
		if _, found, _ := other.Get(ctx, "perm:a"); !found {
			t.Error("expected other namespace to survive the clear")
		}
	})

	t.Run("ClearManyKeys", func(t *testing.T) {
		// More keys than one SCAN batch, to exercise cursor iteration.
		provider := helper.newProvider(t, 7)

		for i := 0; i < 250; i++ {
			key := fmt.Sprintf("perm:file-%03d", i)
			if err := provider.Set(ctx, key, []byte("read"), time.Minute); err != nil {
				t.Fatalf("Set %s failed: %v", key, err)
			}
		}

		if err := provider.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}

		for i := 0; i < 250; i += 50 {
			key := fmt.Sprintf("perm:file-%03d", i)
			if _, found, _ := provider.Get(ctx, key); found {
				t.Fatalf("key %s survived Clear", key)
			}
		}
	})
}
