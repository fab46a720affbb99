// Package stats keeps render counters, either in process memory or in a Redis
// hash shared by every instance of the service.
package stats

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf-generator/internal/infra/logging"
)

// Counter names recorded by the renderer.
const (
	Launched      = "launched"
	LaunchFailed  = "launch_failed"
	Released      = "released"
	ReleaseFailed = "release_failed"
	Succeeded     = "succeeded"
	Failed        = "failed"
	TimedOut      = "timed_out"
)

const redisTimeout = time.Second

// Recorder counts render lifecycle events.
type Recorder interface {
	Incr(ctx context.Context, name string)
	Snapshot(ctx context.Context) (map[string]int64, error)
	Close() error
}

// MemoryRecorder is a process-local Recorder.
type MemoryRecorder struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryRecorder returns an empty in-process recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{counts: make(map[string]int64)}
}

func (m *MemoryRecorder) Incr(_ context.Context, name string) {
	m.mu.Lock()
	m.counts[name]++
	m.mu.Unlock()
}

// Close is a no-op; memory counters need no cleanup.
func (m *MemoryRecorder) Close() error { return nil }

func (m *MemoryRecorder) Snapshot(context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out, nil
}

// RedisRecorder stores counters as fields of one Redis hash.
type RedisRecorder struct {
	rdb *redis.Client
	key string
}

// NewRedisRecorder counts into the hash at key (default "pdfgen:stats").
// The recorder owns rdb and closes it in Close.
func NewRedisRecorder(rdb *redis.Client, key string) *RedisRecorder {
	if key == "" {
		key = "pdfgen:stats"
	}
	return &RedisRecorder{rdb: rdb, key: key}
}

// Incr is best effort; Redis failures are logged and never reach the render path.
func (r *RedisRecorder) Incr(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisTimeout)
	defer cancel()

	if err := r.rdb.HIncrBy(ctx, r.key, name, 1).Err(); err != nil {
		logging.Warn("Redis stats write failed", "counter", name, "error", err)
	}
}

// Close closes the Redis client.
func (r *RedisRecorder) Close() error {
	return r.rdb.Close()
}

func (r *RedisRecorder) Snapshot(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	raw, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

// New returns a RedisRecorder when addr is set, otherwise a MemoryRecorder.
func New(addr string, db int) Recorder {
	if addr == "" {
		return NewMemoryRecorder()
	}
	logging.Info("Using Redis for render stats", "addr", addr, "db", db)
	return NewRedisRecorder(redis.NewClient(&redis.Options{Addr: addr, DB: db}), "")
}
