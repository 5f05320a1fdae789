package worker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by ListStore.Pop when nothing arrived before the timeout.
var ErrEmpty = errors.New("worker: queue empty")

// ListStore is the queue backend: LPUSH on one end, blocking pop on the other.
type ListStore interface {
	Push(ctx context.Context, key string, data []byte) error
	// Pop blocks up to timeout for an item on any of keys, oldest first.
	Pop(ctx context.Context, timeout time.Duration, keys ...string) (string, []byte, error)
	Len(ctx context.Context, key string) (int64, error)
	// Range returns every item of key, oldest first, without removing them.
	Range(ctx context.Context, key string) ([][]byte, error)
	// Remove deletes one occurrence of data from key and reports whether
	// there was one to delete.
	Remove(ctx context.Context, key string, data []byte) (bool, error)
}

type redisLists struct{ rdb *redis.Client }

// NewRedisLists backs the queues with Redis lists.
func NewRedisLists(rdb *redis.Client) ListStore { return &redisLists{rdb: rdb} }

func (r *redisLists) Push(ctx context.Context, key string, data []byte) error {
	return r.rdb.LPush(ctx, key, data).Err()
}

func (r *redisLists) Pop(ctx context.Context, timeout time.Duration, keys ...string) (string, []byte, error) {
	res, err := r.rdb.BRPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, ErrEmpty
	}
	if err != nil {
		return "", nil, err
	}
	if len(res) < 2 {
		return "", nil, ErrEmpty
	}
	return res[0], []byte(res[1]), nil
}

func (r *redisLists) Len(ctx context.Context, key string) (int64, error) {
	return r.rdb.LLen(ctx, key).Result()
}

func (r *redisLists) Range(ctx context.Context, key string) ([][]byte, error) {
	vals, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	// LPUSH puts the newest item first; return oldest first.
	for i := len(vals) - 1; i >= 0; i-- {
		out = append(out, []byte(vals[i]))
	}
	return out, nil
}

func (r *redisLists) Remove(ctx context.Context, key string, data []byte) (bool, error) {
	// Negative count removes starting from the tail, where the oldest items sit.
	n, err := r.rdb.LRem(ctx, key, -1, data).Result()
	return n > 0, err
}

// MemoryLists is the in-process queue used with CACHE_BACKEND=memory and in tests.
type MemoryLists struct {
	mu     sync.Mutex
	lists  map[string][][]byte // index 0 is the oldest item
	signal chan struct{}
}

func NewMemoryLists() *MemoryLists {
	return &MemoryLists{lists: make(map[string][][]byte), signal: make(chan struct{})}
}

func (m *MemoryLists) Push(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	m.lists[key] = append(m.lists[key], append([]byte(nil), data...))
	close(m.signal)
	m.signal = make(chan struct{})
	m.mu.Unlock()
	return nil
}

func (m *MemoryLists) Pop(ctx context.Context, timeout time.Duration, keys ...string) (string, []byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		m.mu.Lock()
		for _, k := range keys {
			if items := m.lists[k]; len(items) > 0 {
				item := items[0]
				m.lists[k] = items[1:]
				m.mu.Unlock()
				return k, item, nil
			}
		}
		wait := m.signal
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-timer.C:
			return "", nil, ErrEmpty
		case <-wait:
		}
	}
}

func (m *MemoryLists) Len(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func (m *MemoryLists) Range(_ context.Context, key string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.lists[key]))
	for i, item := range m.lists[key] {
		out[i] = append([]byte(nil), item...)
	}
	return out, nil
}

func (m *MemoryLists) Remove(_ context.Context, key string, data []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.lists[key]
	for i, item := range items {
		if bytes.Equal(item, data) {
			m.lists[key] = append(items[:i:i], items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
