package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown decides whether an event for key may fire now. A granted call
// starts a new quiet period of length window.
type Cooldown interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// MemoryCooldown keeps the last fire time per key in process memory.
// It is safe for concurrent use.
type MemoryCooldown struct {
	mu       sync.Mutex
	lastFire map[string]time.Time
	now      func() time.Time
}

// NewMemoryCooldown returns an empty MemoryCooldown.
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{lastFire: make(map[string]time.Time), now: time.Now}
}

// Allow implements Cooldown.
func (m *MemoryCooldown) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if last, ok := m.lastFire[key]; ok && now.Sub(last) < window {
		return false, nil
	}
	m.lastFire[key] = now
	return true, nil
}

// RedisCooldown shares cooldown state between server replicas with
// SET NX PX, so only one replica fires per window.
type RedisCooldown struct {
	client *redis.Client
	prefix string
}

// NewRedisCooldown connects to Redis and verifies the connection.
func NewRedisCooldown(ctx context.Context, addr, password string, db int) (*RedisCooldown, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("alerts: redis ping %s: %w", addr, err)
	}
	return &RedisCooldown{client: client, prefix: "clientpulse:cooldown:"}, nil
}

// Allow implements Cooldown.
func (r *RedisCooldown) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, r.prefix+key, time.Now().UTC().Format(time.RFC3339), window).Result()
	if err != nil {
		return false, fmt.Errorf("alerts: redis setnx: %w", err)
	}
	return ok, nil
}

// Close releases the Redis connection pool.
func (r *RedisCooldown) Close() error { return r.client.Close() }
