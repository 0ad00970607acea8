// Command viewer connects to the traffic intersection simulation, renders the
// live scene headlessly and serves it over HTTP and gRPC health.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"intersection/viewer/internal/app"
	"intersection/viewer/internal/config"
	"intersection/viewer/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	logging.ReplaceGlobals(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("viewer stopped", logging.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	viewerApp, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	fields := []logging.Field{
		logging.String("endpoint", viewerApp.Endpoint()),
		logging.String("session_id", viewerApp.SessionID()),
	}
	if cfg.HTTPAddr != "" {
		fields = append(fields, logging.String("http", listenerURL(cfg.HTTPAddr, "http")))
	}
	if cfg.GRPCAddr != "" {
		fields = append(fields, logging.String("grpc", listenerURL(cfg.GRPCAddr, "grpc")))
	}
	logger.Info("viewer starting", fields...)
	return viewerApp.Run(ctx)
}
