package store

import (
	"context"
	"fmt"
	"time"

	"github.com/codetesla51/kvstore/serializer"
	"github.com/redis/go-redis/v9"
)

// authTimeout bounds the authentication step performed by New
const authTimeout = 5 * time.Second

// Options configures a Store.
type Options struct {
	// Prefix is prepended to every key. It cannot be changed afterwards.
	Prefix string

	// Serializer encodes values. Defaults to JSON.
	Serializer serializer.Serializer

	// Client is an existing connection. The Store uses it but does not own
	// it: Store.Close leaves it open. When set, SocketPath and Redis are ignored.
	Client Conn

	// SocketPath connects to Redis over a unix socket instead of TCP.
	SocketPath string

	// Redis holds the options for a new Redis connection. Fields the Store
	// does not set itself are passed to go-redis untouched.
	Redis *redis.Options

	// Password authenticates the connection right after it is created.
	// A failure makes New return an error wrapping ErrAuth.
	Password string

	// Listener is registered before the connection is subscribed, so it
	// also sees events fired while New runs.
	Listener Listener
}

// Store is a namespaced key-value adapter over a Conn.
//
// Every key is physically stored as Prefix+key. Values pass through the
// configured Serializer. The Store keeps no state of its own besides the
// listener registry; concurrency is left to the Conn.
type Store struct {
	prefix     string
	serializer serializer.Serializer
	conn       Conn
	owned      bool
	events     *notifier
}

// New creates a Store from opts. Apart from the optional authentication
// step, which is bounded by ctx, New does not wait for the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	s := &Store{
		prefix:     opts.Prefix,
		serializer: opts.Serializer,
		events:     newNotifier(),
	}
	if s.serializer == nil {
		s.serializer = serializer.NewJSONSerializer()
	}
	if opts.Listener != nil {
		s.events.add(opts.Listener)
	}

	if opts.Client != nil {
		s.conn = opts.Client
	} else {
		ro := &redis.Options{}
		if opts.Redis != nil {
			copied := *opts.Redis
			ro = &copied
		}
		if opts.SocketPath != "" {
			ro.Network = "unix"
			ro.Addr = opts.SocketPath
		}
		if opts.Password != "" {
			ro.Password = opts.Password
		}
		s.conn = NewRedisConn(ro)
		s.owned = true
	}

	s.conn.Subscribe(s.events)

	if opts.Password != "" {
		ctx, cancel := context.WithTimeout(ctx, authTimeout)
		defer cancel()
		if err := s.conn.Auth(ctx, opts.Password); err != nil {
			if s.owned {
				_ = s.conn.Close()
			}
			return nil, fmt.Errorf("%w: %w", ErrAuth, err)
		}
	}

	return s, nil
}

// Prefix returns the namespace prefix of the store
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// OnConnect registers fn for connect notifications. The returned function
// removes the registration.
func (s *Store) OnConnect(fn func()) (cancel func()) {
	return s.events.add(ListenerFuncs{OnConnect: fn})
}

// OnDisconnect registers fn for connection errors. The returned function
// removes the registration.
func (s *Store) OnDisconnect(fn func(err error)) (cancel func()) {
	return s.events.add(ListenerFuncs{OnDisconnect: fn})
}

// Get decodes the value stored at key into dst. An absent key returns
// found == false and no error. Connection errors are returned as they are;
// decode failures wrap ErrDeserialize.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, found, err := s.conn.Get(ctx, s.key(key))
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := s.serializer.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: %w", ErrDeserialize, err)
	}
	return true, nil
}

// GetAs is Get for a value of type T
func GetAs[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	var v T
	found, err := s.Get(ctx, key, &v)
	return v, found, err
}

// Set stores value at key. With ttl > 0 the entry expires after ttl, set in
// the same write. With ttl <= 0 it never expires. If value cannot be
// serialized the connection is not contacted and the error wraps ErrSerialize.
// The returned string is the connection's acknowledgement.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) (string, error) {
	raw, err := s.serializer.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerialize, err)
	}
	return s.write(ctx, key, raw, ttl)
}

func (s *Store) write(ctx context.Context, key string, raw []byte, ttl time.Duration) (string, error) {
	if ttl < 0 {
		ttl = 0
	}
	return s.conn.Set(ctx, s.key(key), raw, ttl)
}

// Destroy deletes key and returns the number of removed entries
func (s *Store) Destroy(ctx context.Context, key string) (int64, error) {
	return s.conn.Del(ctx, s.key(key))
}

// DestroyMany deletes all keys in one batch, in the order given, and returns
// one removal count per key. The batch is sent as a unit; the server may
// still apply the deletions independently. An empty keys slice is a no-op.
func (s *Store) DestroyMany(ctx context.Context, keys []string) ([]int64, error) {
	if len(keys) == 0 {
		return []int64{}, nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.key(key)
	}
	return s.conn.DelBatch(ctx, prefixed)
}

// Clear removes ALL keys of the connection's selected database.
//
// WARNING: Clear is not limited to this store's prefix. Stores sharing the
// same database under other prefixes lose their data too.
func (s *Store) Clear(ctx context.Context) (string, error) {
	return s.conn.FlushDB(ctx)
}

// TTL reports the remaining lifetime of key as seen by the connection:
// NoExpiration for persistent entries and KeyAbsent for missing keys.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.conn.TTL(ctx, s.key(key))
}

// Close closes the connection if the store created it. Connections passed
// in through Options.Client are left open.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.conn.Close()
}

// --------------------------------------------------------------------------
// non-blocking variants
// --------------------------------------------------------------------------

// GetAsync starts a Get. dst must not be read before the Pending is done.
func (s *Store) GetAsync(ctx context.Context, key string, dst any) *Pending[bool] {
	return start(func() (bool, error) {
		return s.Get(ctx, key, dst)
	})
}

// SetAsync serializes value on the calling goroutine and then starts the
// write. Pending.Issued reports whether the write was handed to the connection.
func (s *Store) SetAsync(ctx context.Context, key string, value any, ttl time.Duration) *Pending[string] {
	raw, err := s.serializer.Marshal(value)
	if err != nil {
		return failed[string](fmt.Errorf("%w: %w", ErrSerialize, err))
	}
	return start(func() (string, error) {
		return s.write(ctx, key, raw, ttl)
	})
}

// DestroyAsync starts a Destroy
func (s *Store) DestroyAsync(ctx context.Context, key string) *Pending[int64] {
	return start(func() (int64, error) {
		return s.Destroy(ctx, key)
	})
}

// DestroyManyAsync starts a DestroyMany
func (s *Store) DestroyManyAsync(ctx context.Context, keys []string) *Pending[[]int64] {
	keys = append([]string(nil), keys...)
	return start(func() ([]int64, error) {
		return s.DestroyMany(ctx, keys)
	})
}

// ClearAsync starts a Clear. See Clear: this wipes the whole database.
func (s *Store) ClearAsync(ctx context.Context) *Pending[string] {
	return start(func() (string, error) {
		return s.Clear(ctx)
	})
}
