// Package httpapi exposes the viewer's operational HTTP surface: probes,
// Prometheus metrics, the latest rendered frames, a status document and the
// operator control endpoint.
package httpapi

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/panel"
	"intersection/viewer/internal/protocol"
	"intersection/viewer/internal/simclient"
	"intersection/viewer/internal/state"
	"intersection/viewer/internal/viewer"
)

const maxControlBody = 4 << 10

// StateSource exposes the store view rendered by the viewer.
type StateSource interface {
	View() state.View
}

// FrameSource exposes the most recently published frame.
type FrameSource interface {
	Latest() *viewer.Frame
}

// Commander forwards operator commands to the simulation.
type Commander interface {
	Forward(cmd protocol.Command) bool
}

// RateLimiter gates how frequently control commands may be issued.
type RateLimiter interface {
	Allow() bool
}

// RecorderStats reports session recording health.
type RecorderStats interface {
	Dropped() uint64
	Failures() uint64
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	State       StateSource
	Frames      FrameSource
	Commands    Commander
	ClientStats func() simclient.Stats
	RenderStats func() viewer.RenderStats
	Recorder    RecorderStats
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the viewer operational handlers.
type HandlerSet struct {
	logger      *logging.Logger
	state       StateSource
	frames      FrameSource
	commands    Commander
	clientStats func() simclient.Stats
	renderStats func() viewer.RenderStats
	recorder    RecorderStats
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
	started     time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		state:       opts.State,
		frames:      opts.Frames,
		commands:    opts.Commands,
		clientStats: opts.ClientStats,
		renderStats: opts.RenderStats,
		recorder:    opts.Recorder,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
		started:     now(),
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/frame.png", h.FrameHandler(func(f *viewer.Frame) *image.RGBA { return f.Scene }))
	mux.HandleFunc("/panel.png", h.FrameHandler(func(f *viewer.Frame) *image.RGBA { return f.Panel }))
	mux.HandleFunc("/api/status", h.StatusHandler())
	mux.HandleFunc("/api/controls", h.ControlDocsHandler())
	mux.HandleFunc("/api/control", h.ControlHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports ready only while the simulation connection is open.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Connection    string  `json:"connection"`
		HasSnapshot   bool    `json:"has_snapshot"`
		UptimeSeconds float64 `json:"uptime_seconds"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		view := h.view()
		code := http.StatusOK
		resp := response{
			Status:        "ok",
			Connection:    view.Status.String(),
			HasSnapshot:   view.Snapshot != nil,
			UptimeSeconds: h.now().Sub(h.started).Seconds(),
		}
		if view.Status != protocol.Open {
			code = http.StatusServiceUnavailable
			resp.Status = "unavailable"
		}
		writeJSON(w, code, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := h.view()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "# HELP viewer_uptime_seconds Viewer uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE viewer_uptime_seconds gauge\n")
		fmt.Fprintf(w, "viewer_uptime_seconds %.0f\n", h.now().Sub(h.started).Seconds())

		fmt.Fprintf(w, "# HELP viewer_connection_open Whether the simulation connection is open.\n")
		fmt.Fprintf(w, "# TYPE viewer_connection_open gauge\n")
		fmt.Fprintf(w, "viewer_connection_open %d\n", boolGauge(view.Status == protocol.Open))

		fmt.Fprintf(w, "# HELP viewer_state_version Store publications since start.\n")
		fmt.Fprintf(w, "# TYPE viewer_state_version counter\n")
		fmt.Fprintf(w, "viewer_state_version %d\n", view.Version)

		if view.Snapshot != nil {
			fmt.Fprintf(w, "# HELP viewer_vehicles Vehicles in the latest snapshot.\n")
			fmt.Fprintf(w, "# TYPE viewer_vehicles gauge\n")
			fmt.Fprintf(w, "viewer_vehicles %d\n", len(view.Snapshot.Vehicles))
			fmt.Fprintf(w, "# HELP viewer_total_queue Vehicles queued at the intersection.\n")
			fmt.Fprintf(w, "# TYPE viewer_total_queue gauge\n")
			fmt.Fprintf(w, "viewer_total_queue %d\n", view.Snapshot.Metrics.TotalQueue)
			fmt.Fprintf(w, "# HELP viewer_avg_wait_seconds Average wait reported by the simulation.\n")
			fmt.Fprintf(w, "# TYPE viewer_avg_wait_seconds gauge\n")
			fmt.Fprintf(w, "viewer_avg_wait_seconds %g\n", view.Snapshot.Metrics.AvgWaitTime)
		}

		if h.clientStats != nil {
			stats := h.clientStats()
			fmt.Fprintf(w, "# HELP viewer_snapshots_applied_total Snapshots decoded and applied.\n")
			fmt.Fprintf(w, "# TYPE viewer_snapshots_applied_total counter\n")
			fmt.Fprintf(w, "viewer_snapshots_applied_total %d\n", stats.SnapshotsApplied)
			fmt.Fprintf(w, "# HELP viewer_decode_failures_total Inbound frames discarded as malformed.\n")
			fmt.Fprintf(w, "# TYPE viewer_decode_failures_total counter\n")
			fmt.Fprintf(w, "viewer_decode_failures_total %d\n", stats.DecodeFailures)
			fmt.Fprintf(w, "# HELP viewer_received_bytes_total Inbound payload bytes.\n")
			fmt.Fprintf(w, "# TYPE viewer_received_bytes_total counter\n")
			fmt.Fprintf(w, "viewer_received_bytes_total %d\n", stats.BytesReceived)
			fmt.Fprintf(w, "# HELP viewer_commands_sent_total Commands written to the simulation.\n")
			fmt.Fprintf(w, "# TYPE viewer_commands_sent_total counter\n")
			for kind, count := range stats.CommandsSent {
				fmt.Fprintf(w, "viewer_commands_sent_total{type=%q} %d\n", string(kind), count)
			}
			fmt.Fprintf(w, "# HELP viewer_commands_dropped_total Commands dropped while the connection was not open.\n")
			fmt.Fprintf(w, "# TYPE viewer_commands_dropped_total counter\n")
			for kind, count := range stats.CommandsDropped {
				fmt.Fprintf(w, "viewer_commands_dropped_total{type=%q} %d\n", string(kind), count)
			}
		}

		if h.renderStats != nil {
			stats := h.renderStats()
			fmt.Fprintf(w, "# HELP viewer_render_passes_total Completed render passes.\n")
			fmt.Fprintf(w, "# TYPE viewer_render_passes_total counter\n")
			fmt.Fprintf(w, "viewer_render_passes_total %d\n", stats.Samples)
			fmt.Fprintf(w, "# HELP viewer_render_failures_total Render passes skipped on precondition failures.\n")
			fmt.Fprintf(w, "# TYPE viewer_render_failures_total counter\n")
			fmt.Fprintf(w, "viewer_render_failures_total %d\n", stats.Failures)
			fmt.Fprintf(w, "# HELP viewer_render_seconds Render pass duration.\n")
			fmt.Fprintf(w, "# TYPE viewer_render_seconds gauge\n")
			fmt.Fprintf(w, "viewer_render_seconds{stat=\"avg\"} %g\n", stats.Average.Seconds())
			fmt.Fprintf(w, "viewer_render_seconds{stat=\"max\"} %g\n", stats.Max.Seconds())
			fmt.Fprintf(w, "viewer_render_seconds{stat=\"last\"} %g\n", stats.Last.Seconds())
		}

		if h.recorder != nil {
			fmt.Fprintf(w, "# HELP viewer_recorder_dropped_total Records dropped by the session recorder.\n")
			fmt.Fprintf(w, "# TYPE viewer_recorder_dropped_total counter\n")
			fmt.Fprintf(w, "viewer_recorder_dropped_total %d\n", h.recorder.Dropped())
			fmt.Fprintf(w, "# HELP viewer_recorder_failures_total Records the session recorder failed to write.\n")
			fmt.Fprintf(w, "# TYPE viewer_recorder_failures_total counter\n")
			fmt.Fprintf(w, "viewer_recorder_failures_total %d\n", h.recorder.Failures())
		}

		if limiter, ok := h.rateLimiter.(interface{ Denied() uint64 }); ok {
			fmt.Fprintf(w, "# HELP viewer_control_rate_limited_total Control requests rejected by the rate limiter.\n")
			fmt.Fprintf(w, "# TYPE viewer_control_rate_limited_total counter\n")
			fmt.Fprintf(w, "viewer_control_rate_limited_total %d\n", limiter.Denied())
		}
	}
}

// FrameHandler serves one surface of the latest frame as PNG.
func (h *HandlerSet) FrameHandler(pick func(*viewer.Frame) *image.RGBA) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.frames == nil {
			http.Error(w, "frames are unavailable", http.StatusServiceUnavailable)
			return
		}
		frame := h.frames.Latest()
		if frame == nil || pick(frame) == nil {
			http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
			return
		}
		//1.- Encode fully before writing so a failure can still report an error status.
		var buf bytes.Buffer
		if err := png.Encode(&buf, pick(frame)); err != nil {
			h.logger.Error("frame encode failed", logging.Error(err))
			http.Error(w, "failed to encode frame", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Frame-Sequence", fmt.Sprintf("%d", frame.Sequence))
		_, _ = w.Write(buf.Bytes())
	}
}

// StatusHandler returns the connection and analytics summary as protojson.
func (h *HandlerSet) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := structpb.NewStruct(h.statusFields())
		if err != nil {
			h.logger.Error("status document build failed", logging.Error(err))
			http.Error(w, "failed to build status", http.StatusInternalServerError)
			return
		}
		payload, err := protojson.Marshal(doc)
		if err != nil {
			h.logger.Error("status document encode failed", logging.Error(err))
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}
}

func (h *HandlerSet) statusFields() map[string]any {
	view := h.view()
	fields := map[string]any{
		"connection":   view.Status.String(),
		"version":      float64(view.Version),
		"has_snapshot": view.Snapshot != nil,
	}
	if s := view.Snapshot; s != nil {
		fields["lights"] = map[string]any{
			"north_south": s.Lights.NorthSouth,
			"east_west":   s.Lights.EastWest,
		}
		fields["phase"] = panel.Phase(s.Lights)
		fields["vehicles"] = len(s.Vehicles)
		fields["total_queue"] = s.Metrics.TotalQueue
		fields["avg_wait_time"] = s.Metrics.AvgWaitTime
		history := make([]any, len(s.Metrics.History))
		for i, v := range s.Metrics.History {
			history[i] = v
		}
		fields["history"] = history
	}
	return fields
}

// ControlHandler authorises and forwards an operator command.
func (h *HandlerSet) ControlHandler() http.HandlerFunc {
	type response struct {
		Status string `json:"status"`
		Type   string `json:"type"`
		Sent   bool   `json:"sent"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.requestLogger(r).With(
			logging.String("handler", "control"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken != "" && !h.authorise(r) {
			reqLogger.Warn("control denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("control denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.commands == nil {
			http.Error(w, "controls are unavailable", http.StatusServiceUnavailable)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxControlBody+1))
		if err != nil || len(body) > maxControlBody {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		cmd, err := protocol.DecodeCommand(body)
		if err != nil || cmd.Type == "" {
			http.Error(w, "body must be {\"type\":..., \"value\":...}", http.StatusBadRequest)
			return
		}

		//1.- Forward without validating the value; a closed connection simply drops it.
		sent := h.commands.Forward(cmd)
		reqLogger.Info("control forwarded", logging.String("type", string(cmd.Type)), logging.Bool("sent", sent))
		status := "sent"
		if !sent {
			status = "dropped"
		}
		writeJSON(w, http.StatusAccepted, response{Status: status, Type: string(cmd.Type), Sent: sent})
	}
}

// requestLogger prefers the trace-scoped logger installed by the trace middleware.
func (h *HandlerSet) requestLogger(r *http.Request) *logging.Logger {
	if logging.TraceIDFromContext(r.Context()) != "" {
		return logging.LoggerFromContext(r.Context())
	}
	return h.logger
}

func (h *HandlerSet) view() state.View {
	if h.state == nil {
		return state.View{Status: protocol.Closed}
	}
	return h.state.View()
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func boolGauge(v bool) int {
	if v {
		return 1
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
