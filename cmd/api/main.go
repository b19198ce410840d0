// Package main is the entry point of the HealthHarmony assistant server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healthharmony/assistant/internal/infrastructure/config"
	"github.com/healthharmony/assistant/internal/infrastructure/container"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("HEALTHHARMONY_CONFIG"), "path to the config file")
	flag.Parse()

	var shutdownTimeout time.Duration
	app := fx.New(
		fx.Supply(container.ConfigPath(*configPath)),
		container.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		fx.Invoke(func(cfg *config.Config) {
			shutdownTimeout = cfg.Server.ShutdownTimeout
		}),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, fx.DefaultTimeout)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start application: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()

	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop application gracefully: %v\n", err)
		os.Exit(1)
	}
}
