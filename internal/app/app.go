// Package app wires the viewer components into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"intersection/viewer/internal/config"
	"intersection/viewer/internal/controls"
	"intersection/viewer/internal/healthsvc"
	"intersection/viewer/internal/httpapi"
	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/protocol"
	"intersection/viewer/internal/render"
	"intersection/viewer/internal/replay"
	"intersection/viewer/internal/simclient"
	"intersection/viewer/internal/state"
	"intersection/viewer/internal/viewer"
)

const shutdownTimeout = 5 * time.Second

// App owns every long-lived viewer component.
type App struct {
	cfg       *config.Config
	logger    *logging.Logger
	sessionID string
	endpoint  string

	store        *state.Store
	client       *simclient.Client
	controls     *controls.Panel
	orchestrator *viewer.Orchestrator
	exporter     *viewer.Exporter
	recorder     *replay.Recorder
	health       *healthsvc.Service
	handlers     *httpapi.HandlerSet
	limiter      *httpapi.SlidingWindowLimiter
}

// New resolves the endpoint and constructs all components without starting them.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.L()
	}

	//1.- Resolve the websocket endpoint from an explicit URL or the page origin.
	endpoint := cfg.Endpoint
	if endpoint == "" {
		derived, err := simclient.EndpointFromOrigin(cfg.Origin, cfg.ChannelPath)
		if err != nil {
			return nil, fmt.Errorf("resolve endpoint: %w", err)
		}
		endpoint = derived
	}

	a := &App{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		endpoint:  endpoint,
		store:     state.NewStore(),
		health:    healthsvc.New(logger.With(logging.String("component", "health"))),
	}
	a.logger = logger.With(logging.String("session_id", a.sessionID))

	//2.- The recorder observes traffic and frames when a record directory is set.
	clientOpts := []simclient.Option{
		simclient.WithLogger(a.logger),
		simclient.WithHandshakeTimeout(cfg.HandshakeTimeout),
		simclient.WithMaxPayloadBytes(cfg.MaxPayloadBytes),
		simclient.WithObserver(a.health),
	}
	if cfg.RecordDir != "" {
		writer, _, err := replay.NewWriter(cfg.RecordDir, "session", a.sessionID, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("open recording: %w", err)
		}
		a.recorder = replay.NewRecorder(writer, a.logger.With(logging.String("component", "recorder")), replay.DefaultQueueSize)
		clientOpts = append(clientOpts, simclient.WithObserver(a.recorder))
	}
	a.client = simclient.New(endpoint, a.store, clientOpts...)
	a.controls = controls.New(a.client)

	//3.- One render task draws the scene and panel for every consumer.
	viewOpts := []viewer.Option{
		viewer.WithLogger(a.logger.With(logging.String("component", "render"))),
		viewer.WithPanel(a.controls),
	}
	if a.recorder != nil {
		viewOpts = append(viewOpts, viewer.WithSink(a.recorder))
	}
	a.orchestrator = viewer.New(a.store, render.NewDefault(), viewOpts...)
	if cfg.FramePath != "" {
		a.exporter = viewer.NewExporter(a.orchestrator, cfg.FramePath, cfg.FrameExportHz, a.logger)
	}

	//4.- Operational surface.
	a.limiter = httpapi.NewSlidingWindowLimiter(cfg.ControlWindow, cfg.ControlBurst, nil)
	handlerOpts := httpapi.Options{
		Logger:      a.logger.With(logging.String("component", "http")),
		State:       a.store,
		Frames:      a.orchestrator,
		Commands:    a,
		ClientStats: a.client.Stats,
		RenderStats: a.orchestrator.Monitor().Snapshot,
		AdminToken:  cfg.AdminToken,
		RateLimiter: a.limiter,
	}
	if a.recorder != nil {
		handlerOpts.Recorder = a.recorder
	}
	a.handlers = httpapi.NewHandlerSet(handlerOpts)
	return a, nil
}

// Endpoint is the websocket URL the viewer connects to.
func (a *App) Endpoint() string { return a.endpoint }

// SessionID identifies this viewer run in logs and recordings.
func (a *App) SessionID() string { return a.sessionID }

// Store exposes the shared state store.
func (a *App) Store() *state.Store { return a.store }

// Latest returns the most recently rendered frame.
func (a *App) Latest() *viewer.Frame { return a.orchestrator.Latest() }

// Apply performs a keyboard or button action and schedules a redraw.
func (a *App) Apply(action controls.Action) bool {
	sent := a.controls.Apply(action)
	a.orchestrator.Invalidate()
	return sent
}

// Forward sends an operator command and schedules a redraw.
func (a *App) Forward(cmd protocol.Command) bool {
	sent := a.controls.Forward(cmd)
	a.orchestrator.Invalidate()
	return sent
}

// Handler returns the HTTP mux with trace middleware applied.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.handlers.Register(mux)
	return logging.HTTPTraceMiddleware(a.logger)(mux)
}

// Run starts every component and blocks until ctx is cancelled. A lost
// simulation connection is logged and the viewer keeps serving its last state.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var httpListener, grpcListener net.Listener
	var err error
	if a.cfg.HTTPAddr != "" {
		if httpListener, err = net.Listen("tcp", a.cfg.HTTPAddr); err != nil {
			return fmt.Errorf("listen http: %w", err)
		}
	}
	if a.cfg.GRPCAddr != "" {
		if grpcListener, err = net.Listen("tcp", a.cfg.GRPCAddr); err != nil {
			if httpListener != nil {
				httpListener.Close()
			}
			return fmt.Errorf("listen grpc: %w", err)
		}
	}
	return a.Serve(ctx, httpListener, grpcListener)
}

// Serve runs the viewer on pre-bound listeners; either may be nil to disable it.
func (a *App) Serve(ctx context.Context, httpListener, grpcListener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	//1.- Render task first so the connecting overlay is available immediately.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.orchestrator.Run(ctx)
	}()
	a.exporter.Start(ctx)

	var httpServer *http.Server
	if httpListener != nil {
		httpServer = &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 5 * time.Second}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server failed", logging.Error(err))
			}
		}()
		a.logger.Info("http surface listening", logging.String("addr", httpListener.Addr().String()))
	}

	var grpcServer *grpc.Server
	if grpcListener != nil {
		grpcServer = a.health.NewServer(a.cfg.GRPCSharedSecret)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				a.logger.Error("grpc server failed", logging.Error(err))
			}
		}()
		a.logger.Info("grpc health listening", logging.String("addr", grpcListener.Addr().String()))
	}

	//2.- One connection attempt for the lifetime of the process.
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.logger.Info("connecting to simulation", logging.String("endpoint", a.endpoint))
		if err := a.client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("simulation connection ended", logging.Error(err))
		}
	}()

	<-ctx.Done()

	//3.- Tear down in reverse order of dependency.
	a.client.Close()
	a.exporter.Stop()
	a.health.Shutdown()
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http shutdown incomplete", logging.Error(err))
		}
		shutdownCancel()
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	wg.Wait()

	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Warn("recording close failed", logging.Error(err))
		}
	}
	return nil
}
