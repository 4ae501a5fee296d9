package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConnBasic(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryConn("")
	defer mc.Close()

	ack, err := mc.Set(ctx, "k", []byte("v"), 0)
	require.NoError(t, err)
	assert.Equal(t, "OK", ack)

	val, found, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), val)

	n, err := mc.Del(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = mc.Del(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, found, err = mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryConnTTL(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryConn("")
	defer mc.Close()

	_, err := mc.Set(ctx, "short", []byte("v"), 50*time.Millisecond)
	require.NoError(t, err)
	_, err = mc.Set(ctx, "forever", []byte("v"), 0)
	require.NoError(t, err)

	ttl, err := mc.TTL(ctx, "short")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 50*time.Millisecond)

	ttl, err = mc.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, NoExpiration, ttl)

	time.Sleep(60 * time.Millisecond)

	_, found, err := mc.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)

	ttl, err = mc.TTL(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, KeyAbsent, ttl)
}

func TestMemoryConnDelBatchAndFlush(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryConn("")
	defer mc.Close()

	for _, k := range []string{"a", "b", "c"} {
		_, err := mc.Set(ctx, k, []byte(k), 0)
		require.NoError(t, err)
	}

	deleted, err := mc.DelBatch(ctx, []string{"a", "missing", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 0, 1}, deleted)

	deleted, err = mc.DelBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	_, err = mc.FlushDB(ctx)
	require.NoError(t, err)
	_, found, err := mc.Get(ctx, "c")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryConnValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryConn("")
	defer mc.Close()

	buf := []byte("original")
	_, err := mc.Set(ctx, "k", buf, 0)
	require.NoError(t, err)
	buf[0] = 'X'

	val, _, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(val))
}

func TestMemoryConnAuth(t *testing.T) {
	ctx := context.Background()

	open := NewMemoryConn("")
	defer open.Close()
	assert.ErrorIs(t, open.Auth(ctx, "anything"), ErrInvalidPassword)

	locked := NewMemoryConn("secret")
	defer locked.Close()
	assert.NoError(t, locked.Auth(ctx, "secret"))
	assert.ErrorIs(t, locked.Auth(ctx, "wrong"), ErrInvalidPassword)
}

func TestMemoryConnClose(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryConn("")

	var events []string
	mc.Subscribe(ListenerFuncs{
		OnConnect:    func() { events = append(events, "connect") },
		OnDisconnect: func(err error) { events = append(events, err.Error()) },
	})

	require.NoError(t, mc.Close())
	require.NoError(t, mc.Close())
	assert.Equal(t, []string{"connect", ErrClosed.Error()}, events)

	_, _, err := mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = mc.Set(ctx, "k", nil, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryConnBehindStore(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryConn("")
	defer mc.Close()

	sessions, err := New(ctx, Options{Client: mc, Prefix: "sess:"})
	require.NoError(t, err)
	carts, err := New(ctx, Options{Client: mc, Prefix: "cart:"})
	require.NoError(t, err)

	_, err = sessions.Set(ctx, "1", "alice", 0)
	require.NoError(t, err)
	_, err = carts.Set(ctx, "1", []string{"apple"}, 0)
	require.NoError(t, err)

	name, found, err := GetAs[string](ctx, sessions, "1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", name)

	raw, found, err := mc.Get(ctx, "cart:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `["apple"]`, string(raw))

	// clearing one store wipes the other namespace as well
	_, err = sessions.Clear(ctx)
	require.NoError(t, err)
	_, found, err = GetAs[[]string](ctx, carts, "1")
	require.NoError(t, err)
	assert.False(t, found)
}
