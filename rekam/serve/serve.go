// Package serve runs the receiving end of macro streaming: it listens for a
// sender, and plays every macro it is sent. The listener restarts when the
// config file changes.
package serve

import (
	"context"
	"fmt"

	"kafji.net/rekam/logging"
	"kafji.net/rekam/rekam/config"
	"kafji.net/rekam/rekam/play"
	"kafji.net/rekam/transport/server"
)

var slog = logging.NewLogger("rekam/serve")

const defaultPort uint16 = 59002

func Start(ctx context.Context, cfg *config.Config) error {
	watcher := config.Watch(ctx)
	cfgs := watcher.Configs()

restart:
	logging.SetLogLevel(cfg.LogLevel)

	slog.Info("starting receiver", "config", cfg)
	runCtx, cancelRun := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- run(runCtx, cfg)
	}()

	for {
		select {
		case <-ctx.Done():
			cancelRun()
			return ctx.Err()

		case next, ok := <-cfgs:
			if !ok {
				// No config file to watch is fine, it just means no
				// restarts on change.
				slog.Warn("config watcher stopped", "error", watcher.Err())
				cfgs = nil
				continue
			}
			slog.Info("configuration changed", "config", next)
			cfg = next
			cancelRun()
			<-done
			goto restart

		case err := <-done:
			cancelRun()
			return err
		}
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	port := cfg.Serve.Port
	if port == 0 {
		port = defaultPort
	}

	srv := server.Start(ctx, &server.Config{
		Addr:              fmt.Sprintf(":%d", port),
		TLSCertPath:       cfg.Serve.TLSCertPath,
		TLSKeyPath:        cfg.Serve.TLSKeyPath,
		ClientTLSCertPath: cfg.Serve.ClientTLSCertPath,
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case states, ok := <-srv.Macros():
			if !ok {
				return srv.Err()
			}
			if err := play.Run(ctx, states, 1); err != nil {
				return err
			}
		}
	}
}
