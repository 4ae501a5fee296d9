package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codetesla51/kvstore/store"
)

const defaultProbeInterval = 5 * time.Second

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Prints the value stored at key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()

			var value any
			found, err := kv.Get(ctx, args[0], &value)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %s not found", args[0])
			}
			out, err := json.Marshal(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Long: `Sets the value for a key. A value that parses as JSON is stored as
that JSON value, anything else as a string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := cmd.Flags().GetDuration("ttl")
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()

			reply, err := kv.Set(ctx, args[0], parseValue(args[1]), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]...",
		Short: "Deletes one or more keys",
		Long:  `Deletes the given keys. Several keys are deleted in one batch.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()

			if len(args) == 1 {
				n, err := kv.Destroy(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}

			deleted, err := kv.DestroyMany(ctx, args)
			if err != nil {
				return err
			}
			var total int64
			for _, n := range deleted {
				total += n
			}
			fmt.Fprintln(cmd.OutOrStdout(), total)
			return nil
		},
	}
	ttlCmd = &cobra.Command{
		Use:   "ttl [key]",
		Short: "Prints the remaining time to live of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opContext()
			defer cancel()

			ttl, err := kv.TTL(ctx, args[0])
			if err != nil {
				return err
			}
			switch ttl {
			case store.NoExpiration:
				fmt.Fprintln(cmd.OutOrStdout(), "no expiration")
			case store.KeyAbsent:
				return fmt.Errorf("key %s not found", args[0])
			default:
				fmt.Fprintln(cmd.OutOrStdout(), ttl)
			}
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes every key of the selected database",
		Long: `Deletes every key of the selected database. This is NOT limited to
the configured prefix: data of all other prefixes in the same database is
removed as well. Requires --yes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to flush the database without --yes")
			}
			ctx, cancel := opContext()
			defer cancel()

			reply, err := kv.Clear(ctx)
			if err != nil {
				return err
			}
			logger.Warn("database flushed", "prefix", kv.Prefix())
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Logs connect and disconnect events until interrupted",
		Long: `Logs connect and disconnect events to stderr until interrupted. The
connection is probed every --interval so state changes surface as events.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stopConnect := kv.OnConnect(func() {
				logger.Info("connect")
			})
			defer stopConnect()
			stopDisconnect := kv.OnDisconnect(func(err error) {
				logger.Info("disconnect", "err", err)
			})
			defer stopDisconnect()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)

			interval := viper.GetDuration("interval")
			if interval <= 0 {
				interval = defaultProbeInterval
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-sig:
					return nil
				case <-cmdCtx.Done():
					return nil
				case <-ticker.C:
					// probe with a read so connection changes surface as events
					ctx, cancel := opContext()
					_, _ = kv.TTL(ctx, "")
					cancel()
				}
			}
		},
	}
)

func init() {
	setCmd.Flags().Duration("ttl", 0, "Expire the key after this duration (0 = never)")
	clearCmd.Flags().Bool("yes", false, "Confirm flushing the whole database")
	watchCmd.Flags().Duration("interval", defaultProbeInterval, "How often to probe the connection")
}

// parseValue returns the JSON value encoded in s, or s itself
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
