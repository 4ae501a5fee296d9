package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codetesla51/kvstore/serializer"
	"github.com/codetesla51/kvstore/store"
)

// setupFlags adds the connection flags shared by all store commands
func setupFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("backend", "redis", "Backing connection: redis, memory or postgres")
	flags.String("redis-url", "redis://localhost:6379/0", "Redis URL (ignored when --socket is set)")
	flags.String("socket", "", "Path of a Redis unix socket")
	flags.String("password", "", "Password sent with AUTH right after connecting")
	flags.String("dsn", "", "Postgres DSN for the postgres backend")
	flags.String("prefix", "", "Key prefix of the store")
	flags.String("serializer", "json", "Value serializer: json or msgpack")
	flags.Duration("timeout", 10*time.Second, "Timeout of a single command")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
}

// initConfig loads env files and lets KVCTL_* variables override flags
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("kvctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// newLogger builds the logger of the CLI writing to w
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore creates the store described by the current configuration.
// Lifecycle events are logged through logger. The returned function closes
// the store and any connection created for it.
func openStore(ctx context.Context, logger *slog.Logger) (*store.Store, func() error, error) {
	ser, err := serializer.ByName(viper.GetString("serializer"))
	if err != nil {
		return nil, nil, err
	}

	opts := store.Options{
		Prefix:     viper.GetString("prefix"),
		Serializer: ser,
		Password:   viper.GetString("password"),
		Listener: store.ListenerFuncs{
			OnConnect: func() {
				logger.Debug("connected")
			},
			OnDisconnect: func(err error) {
				logger.Warn("disconnected", "err", err)
			},
		},
	}

	switch backend := viper.GetString("backend"); backend {
	case "redis":
		if socket := viper.GetString("socket"); socket != "" {
			opts.SocketPath = socket
		} else {
			ro, err := redis.ParseURL(viper.GetString("redis-url"))
			if err != nil {
				return nil, nil, fmt.Errorf("could not parse redis url: %w", err)
			}
			opts.Redis = ro
		}
	case "memory":
		opts.Client = store.NewMemoryConn(opts.Password)
	case "postgres":
		conn, err := store.NewDatabaseConn(viper.GetString("dsn"))
		if err != nil {
			return nil, nil, err
		}
		opts.Client = conn
		// credentials are part of the DSN
		opts.Password = ""
	default:
		return nil, nil, fmt.Errorf("invalid backend %s", backend)
	}

	s, err := store.New(ctx, opts)
	if err != nil {
		if opts.Client != nil {
			_ = opts.Client.Close()
		}
		return nil, nil, err
	}

	closeFn := s.Close
	if opts.Client != nil {
		closeFn = opts.Client.Close
	}
	return s, closeFn, nil
}
