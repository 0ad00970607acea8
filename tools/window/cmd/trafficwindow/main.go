// Command trafficwindow opens a desktop window on the live intersection.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"

	"intersection/viewer/internal/app"
	"intersection/viewer/internal/config"
	"intersection/viewer/internal/logging"
	"intersection/viewer/tools/window"
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

	viewerApp, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("viewer setup failed", logging.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan error, 1)
	go func() { done <- viewerApp.Run(ctx) }()

	//1.- The window owns the main thread; closing it stops the viewer.
	ebiten.SetWindowSize(window.Width, window.Height)
	ebiten.SetWindowTitle(window.Title(viewerApp))
	if err := ebiten.RunGame(window.New(viewerApp, logger)); err != nil && !errors.Is(err, ebiten.Termination) {
		logger.Error("window failed", logging.Error(err))
	}
	stop()
	if err := <-done; err != nil {
		logger.Error("viewer stopped", logging.Error(err))
	}
}
