package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(io.Discard)
	RootCmd.SetArgs(args)
	err := RootCmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestCommandsAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := []string{"--backend", "redis", "--redis-url", "redis://" + mr.Addr(), "--prefix", "cli:"}
	with := func(args ...string) []string {
		return append(append([]string{}, args...), conn...)
	}

	out, err := run(t, with("set", "user", `{"name":"ada"}`, "--ttl", "1m")...)
	require.NoError(t, err)
	assert.Equal(t, "OK", out)
	assert.True(t, mr.Exists("cli:user"))

	out, err = run(t, with("get", "user")...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ada"}`, out)

	out, err = run(t, with("ttl", "user")...)
	require.NoError(t, err)
	assert.Equal(t, "1m0s", out)

	out, err = run(t, with("set", "plain", "hello world", "--ttl", "0")...)
	require.NoError(t, err)
	assert.Equal(t, "OK", out)

	out, err = run(t, with("ttl", "plain")...)
	require.NoError(t, err)
	assert.Equal(t, "no expiration", out)

	out, err = run(t, with("get", "plain")...)
	require.NoError(t, err)
	assert.Equal(t, `"hello world"`, out)

	out, err = run(t, with("del", "user", "plain", "missing")...)
	require.NoError(t, err)
	assert.Equal(t, "2", out)

	_, err = run(t, with("get", "user")...)
	assert.Error(t, err)
}

func TestClearRequiresConfirmation(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("foreign", "x"))
	conn := []string{"--backend", "redis", "--redis-url", "redis://" + mr.Addr(), "--prefix", "cli:"}

	_, err := run(t, append([]string{"clear", "--yes=false"}, conn...)...)
	assert.Error(t, err)
	assert.True(t, mr.Exists("foreign"))

	out, err := run(t, append([]string{"clear", "--yes"}, conn...)...)
	require.NoError(t, err)
	assert.Equal(t, "OK", out)
	assert.False(t, mr.Exists("foreign"))
}

func TestMemoryBackend(t *testing.T) {
	out, err := run(t, "set", "k", "1", "--ttl", "0", "--backend", "memory", "--serializer", "msgpack")
	require.NoError(t, err)
	assert.Equal(t, "OK", out)
}

func TestInvalidBackend(t *testing.T) {
	_, err := run(t, "get", "k", "--backend", "carrier-pigeon")
	assert.ErrorContains(t, err, "invalid backend")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(3), parseValue("3"))
	assert.Equal(t, map[string]any{"a": true}, parseValue(`{"a":true}`))
	assert.Equal(t, "not json", parseValue("not json"))
}

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchLogsConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	var logs syncBuffer
	RootCmd.SetOut(io.Discard)
	RootCmd.SetErr(&logs)
	RootCmd.SetArgs([]string{"watch",
		"--backend", "redis", "--redis-url", "redis://" + mr.Addr(),
		"--interval", "10ms", "--log-level", "info",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- RootCmd.ExecuteContext(ctx)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "msg=connect")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
