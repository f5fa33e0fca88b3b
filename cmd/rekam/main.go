package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kafji.net/rekam/logging"
	"kafji.net/rekam/rekam/config"
)

var cfg = &config.Config{}

var rootCmd = &cobra.Command{
	Use:           "rekam",
	Short:         "Record, edit, and replay keyboard and mouse macros",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		c, err := config.ReadConfig()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Warn("failed to read config file", "error", err)
			}
			c = &config.Config{}
		}
		cfg = c
		logging.SetLogLevel(cfg.LogLevel)
	},
}

var slog = logging.NewLogger("rekam")

func main() {
	logging.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
