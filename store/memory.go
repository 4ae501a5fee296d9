package store

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value      []byte
	expiration time.Time // zero means no expiration
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// MemoryConn is an in-process Conn. It keeps Redis semantics for TTLs and
// batch deletes, which makes it usable for embedding and tests.
type MemoryConn struct {
	data     map[string]*entry
	mu       sync.Mutex
	password string
	closed   bool
	done     chan struct{}
	events   *notifier
}

var _ Conn = (*MemoryConn)(nil)

// NewMemoryConn creates an empty MemoryConn. If password is not empty, Auth
// only succeeds with the same password.
func NewMemoryConn(password string) *MemoryConn {
	mc := &MemoryConn{
		data:     make(map[string]*entry),
		password: password,
		done:     make(chan struct{}),
		events:   newNotifier(),
	}

	// Background cleanup of expired entries
	go mc.cleanupExpired()

	return mc
}

// lookup returns the live entry for key, dropping it if it expired.
// mc.mu must be held.
func (mc *MemoryConn) lookup(key string, now time.Time) (*entry, bool) {
	e, exists := mc.data[key]
	if !exists {
		return nil, false
	}
	if e.expired(now) {
		delete(mc.data, key)
		return nil, false
	}
	return e, true
}

func (mc *MemoryConn) Get(_ context.Context, key string) ([]byte, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return nil, false, ErrClosed
	}
	e, ok := mc.lookup(key, time.Now())
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (mc *MemoryConn) Set(_ context.Context, key string, value []byte, ttl time.Duration) (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return "", ErrClosed
	}
	e := &entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiration = time.Now().Add(ttl)
	}
	mc.data[key] = e
	return "OK", nil
}

func (mc *MemoryConn) Del(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return 0, ErrClosed
	}
	return mc.del(key, time.Now()), nil
}

// del removes key and returns 1 if a live entry was removed. mc.mu must be held.
func (mc *MemoryConn) del(key string, now time.Time) int64 {
	if _, ok := mc.lookup(key, now); !ok {
		return 0
	}
	delete(mc.data, key)
	return 1
}

// DelBatch removes all keys under one lock acquisition
func (mc *MemoryConn) DelBatch(_ context.Context, keys []string) ([]int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return nil, ErrClosed
	}
	now := time.Now()
	deleted := make([]int64, len(keys))
	for i, key := range keys {
		deleted[i] = mc.del(key, now)
	}
	return deleted, nil
}

func (mc *MemoryConn) FlushDB(_ context.Context) (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return "", ErrClosed
	}
	mc.data = make(map[string]*entry)
	return "OK", nil
}

func (mc *MemoryConn) TTL(_ context.Context, key string) (time.Duration, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return 0, ErrClosed
	}
	e, ok := mc.lookup(key, time.Now())
	if !ok {
		return KeyAbsent, nil
	}
	if e.expiration.IsZero() {
		return NoExpiration, nil
	}
	return time.Until(e.expiration), nil
}

func (mc *MemoryConn) Auth(_ context.Context, password string) error {
	if mc.password == "" || password != mc.password {
		return ErrInvalidPassword
	}
	return nil
}

// Subscribe registers l. A MemoryConn is connected from the start, so l is
// notified right away.
func (mc *MemoryConn) Subscribe(l Listener) {
	mc.events.add(l)
	l.Connected()
}

// Close drops all data and stops the cleanup goroutine. Listeners receive
// a disconnect with ErrClosed.
func (mc *MemoryConn) Close() error {
	mc.mu.Lock()
	if mc.closed {
		mc.mu.Unlock()
		return nil
	}
	mc.closed = true
	mc.data = nil
	close(mc.done)
	mc.mu.Unlock()

	mc.events.Disconnected(ErrClosed)
	return nil
}

// Background cleanup of expired entries (runs every 5 minutes)
func (mc *MemoryConn) cleanupExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-mc.done:
			return
		case <-ticker.C:
			mc.mu.Lock()
			now := time.Now()
			for key, e := range mc.data {
				if e.expired(now) {
					delete(mc.data, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}
