// Package redis provides a Redis-backed cache provider, the shared tier
// for multi-instance deployments.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marmos91/aclgate/pkg/cache"
)

// connectTimeout bounds the liveness check in New.
const connectTimeout = 5 * time.Second

// scanBatchSize is how many keys Clear collects per SCAN page and deletes
// per DEL call.
const scanBatchSize = 100

// Config contains the settings for a Redis provider.
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	// Namespace prefixes every key, usually built with cache.Namespace.
	Namespace string
}

// RedisProvider implements cache.Provider on a Redis database.
type RedisProvider struct {
	client     *redis.Client
	namespace  string
	ownsClient bool
}

var _ cache.Provider = (*RedisProvider)(nil)

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisProvider{client: client, namespace: cfg.Namespace, ownsClient: true}, nil
}

// NewFromClient wraps an existing client. Several providers with different
// namespaces can share one client; Close then leaves the client open for
// the other providers.
func NewFromClient(client *redis.Client, namespace string) *RedisProvider {
	return &RedisProvider{client: client, namespace: namespace}
}

func (p *RedisProvider) key(key string) string {
	return p.namespace + key
}

func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := p.client.Get(ctx, p.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return value, true, nil
}

func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // no expiry
	}
	if err := p.client.Set(ctx, p.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (p *RedisProvider) Remove(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, p.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Clear deletes every key under the provider's namespace, paging through
// SCAN so large namespaces never block the server the way KEYS would.
func (p *RedisProvider) Clear(ctx context.Context) error {
	iter := p.client.Scan(ctx, 0, p.namespace+"*", scanBatchSize).Iterator()

	keys := make([]string, 0, scanBatchSize)
	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		if err := p.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del failed: %w", err)
		}
		keys = keys[:0]
		return nil
	}

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	return flush()
}

func (p *RedisProvider) Close() error {
	if !p.ownsClient {
		return nil
	}
	return p.client.Close()
}
