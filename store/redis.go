package store

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConn is a Conn backed by a go-redis client
type RedisConn struct {
	client   redis.UniversalClient
	username string
	events   *notifier
}

var _ Conn = (*RedisConn)(nil)

// NewRedisConn creates a client from opts. The client connects lazily, so
// this never blocks on the network.
func NewRedisConn(opts *redis.Options) *RedisConn {
	return WrapRedisClient(redis.NewClient(opts))
}

// WrapRedisClient adopts an existing client. Closing the returned RedisConn
// closes the client.
//
// On a cluster client DelBatch runs MULTI/EXEC, which Redis rejects with
// CROSSSLOT unless all keys hash to the same slot. Put a hash tag into the
// store prefix (e.g. "{sessions}:") to keep batch deletes working.
func WrapRedisClient(client redis.UniversalClient) *RedisConn {
	r := &RedisConn{
		client: client,
		events: newNotifier(),
	}
	if c, ok := client.(*redis.Client); ok {
		r.username = c.Options().Username
	}
	client.AddHook(eventHook{events: r.events})
	return r
}

// Client exposes the underlying go-redis client
func (r *RedisConn) Client() redis.UniversalClient {
	return r.client
}

func (r *RedisConn) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		// Key doesn't exist
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisConn) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (string, error) {
	// go-redis treats -1 as KEEPTTL, so clamp to "no expiration"
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Result()
}

func (r *RedisConn) Del(ctx context.Context, key string) (int64, error) {
	return r.client.Del(ctx, key).Result()
}

// DelBatch sends one DEL per key inside a single MULTI/EXEC round-trip.
// On a cluster client all keys must share a hash slot, see WrapRedisClient.
func (r *RedisConn) DelBatch(ctx context.Context, keys []string) ([]int64, error) {
	cmds, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	deleted := make([]int64, 0, len(keys))
	for _, cmd := range cmds {
		if c, ok := cmd.(*redis.IntCmd); ok {
			deleted = append(deleted, c.Val())
		}
	}
	return deleted, nil
}

func (r *RedisConn) FlushDB(ctx context.Context) (string, error) {
	return r.client.FlushDB(ctx).Result()
}

func (r *RedisConn) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}

// Auth issues AUTH on a pooled connection, as the client's ACL user if it
// has one. Connections opened later authenticate through the client's own
// Username and Password options.
func (r *RedisConn) Auth(ctx context.Context, password string) error {
	if r.username != "" {
		return r.client.Do(ctx, "AUTH", r.username, password).Err()
	}
	return r.client.Do(ctx, "AUTH", password).Err()
}

func (r *RedisConn) Subscribe(l Listener) {
	r.events.add(l)
}

// Close closes the Redis connection
func (r *RedisConn) Close() error {
	return r.client.Close()
}

// --------------------------------------------------------------------------
// connectivity hook
// --------------------------------------------------------------------------

// eventHook reports successful dials as connects and transport-level
// command failures (including failed dials) as disconnects
type eventHook struct {
	events *notifier
}

func (h eventHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		h.events.Connected()
		return conn, nil
	}
}

func (h eventHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if isTransportErr(err) {
			h.events.Disconnected(err)
		}
		return err
	}
}

func (h eventHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if isTransportErr(err) {
			h.events.Disconnected(err)
		}
		return err
	}
}

// isTransportErr reports whether err came from the connection rather than
// from a server reply (redis.Nil and error replies are not disconnects)
func isTransportErr(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var reply redis.Error
	return !errors.As(err, &reply)
}
