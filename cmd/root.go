package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codetesla51/kvstore/store"
)

const (
	Version = "0.3.0"
)

var (
	kv        *store.Store
	closeKV   func() error
	logger    *slog.Logger
	cmdCtx    context.Context
	cmdCancel context.CancelFunc

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvctl",
		Short: "namespaced key-value store client",
		Long: fmt.Sprintf(`kvctl (v%s)

Reads and writes JSON values in a Redis (or compatible) key-value store
under an optional key prefix.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvctl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvctl v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnFinalize(teardownStore)

	setupFlags(RootCmd)

	RootCmd.AddCommand(versionCmd)
	for _, c := range []*cobra.Command{getCmd, setCmd, delCmd, ttlCmd, clearCmd, watchCmd} {
		c.PersistentPreRunE = setupStore
		RootCmd.AddCommand(c)
	}
}

// setupStore binds flags and opens the store used by a command
func setupStore(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	logger = newLogger(cmd.ErrOrStderr())

	cmdCtx, cmdCancel = context.WithCancel(cmd.Context())
	s, closeFn, err := openStore(cmdCtx, logger)
	if err != nil {
		cmdCancel()
		return err
	}
	kv, closeKV = s, closeFn
	return nil
}

// teardownStore closes whatever setupStore opened, also when the command failed
func teardownStore() {
	if closeKV != nil {
		if err := closeKV(); err != nil {
			logger.Warn("closing store failed", "err", err)
		}
		kv, closeKV = nil, nil
	}
	if cmdCancel != nil {
		cmdCancel()
		cmdCancel = nil
	}
}

// opContext bounds a single store command by the configured timeout
func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmdCtx, viper.GetDuration("timeout"))
}
