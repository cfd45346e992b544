// Package cache wires postboard to Redis: either an embedded miniredis
// instance living as long as the process, or an external server.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/postboard/postboard/logger"
	"github.com/redis/go-redis/v9"
)

// Redis owns the client and, when embedded, the in-process server.
type Redis struct {
	client    *redis.Client
	miniRedis *miniredis.Miniredis

	mu       sync.Mutex
	lastTick time.Time
}

// Open starts embedded Redis when redisAddr is empty and connects to
// redisAddr otherwise.
func Open(ctx context.Context, redisAddr string) (*Redis, error) {
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start embedded Redis: %w", err)
		}
		logger.Info("Embedded Redis started on ", mr.Addr())
		return &Redis{
			client:    redis.NewClient(&redis.Options{Addr: mr.Addr()}),
			miniRedis: mr,
			lastTick:  time.Now(),
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   0,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", redisAddr, err)
	}
	logger.Info("Connected to external Redis at ", redisAddr)
	return &Redis{client: client}, nil
}

func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) IsEmbedded() bool {
	return r.miniRedis != nil
}

// ExpireKeys moves the embedded server's clock forward to now. miniredis
// never lets a TTL run out on its own. No-op for an external server.
func (r *Redis) ExpireKeys(now time.Time) {
	if r.miniRedis == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d := now.Sub(r.lastTick); d > 0 {
		r.miniRedis.FastForward(d)
		r.lastTick = now
	}
}

// Close closes the client and stops embedded Redis if running.
func (r *Redis) Close() error {
	var err error
	if r.client != nil {
		err = r.client.Close()
	}
	if r.miniRedis != nil {
		r.miniRedis.Close()
	}
	return err
}
