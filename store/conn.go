// Package store implements a namespaced key-value store on top of a backing
// connection such as Redis. See Store for the operations and Conn for what a
// backing connection has to provide.
package store

import (
	"context"
	"time"
)

// Conn is the backing connection a Store talks to. Implementations must be
// safe for concurrent use; the Store forwards every call without locking.
type Conn interface {
	// Get returns the raw value stored at key. An absent key is reported as
	// found == false with a nil error.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set writes value at key. A positive ttl expires the entry atomically
	// with the write; ttl <= 0 stores it without expiration. The returned
	// string is the server acknowledgement.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (string, error)

	// Del removes key and returns the number of removed entries.
	Del(ctx context.Context, key string) (int64, error)

	// DelBatch removes all keys, transmitted as one unit in input order.
	// The result holds one count per key.
	DelBatch(ctx context.Context, keys []string) ([]int64, error)

	// FlushDB removes every key of the currently selected database.
	FlushDB(ctx context.Context) (string, error)

	// TTL reports the remaining time to live of key: -1 for entries without
	// expiration and -2 for absent keys.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Auth authenticates the connection with password.
	Auth(ctx context.Context, password string) error

	// Subscribe registers l for connect and error notifications.
	Subscribe(l Listener)

	// Close releases the connection.
	Close() error
}

const (
	// NoExpiration is the TTL reported for entries stored without expiration
	NoExpiration time.Duration = -1
	// KeyAbsent is the TTL reported for keys that do not exist
	KeyAbsent time.Duration = -2
)
