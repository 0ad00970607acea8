// Package viewer runs the single render task that turns store updates into frames.
package viewer

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"intersection/viewer/internal/controls"
	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/panel"
	"intersection/viewer/internal/protocol"
	"intersection/viewer/internal/render"
	"intersection/viewer/internal/state"
)

// Frame is one completed render pass. Frames are immutable once published.
type Frame struct {
	Scene      *image.RGBA
	Panel      *image.RGBA
	Status     protocol.ConnectionStatus
	Snapshot   *protocol.Snapshot
	Version    uint64
	Sequence   uint64
	RenderedAt time.Time
}

// FrameSink receives every published frame. Implementations must not block.
type FrameSink interface {
	RecordFrame(frame *Frame)
}

// ControlSource exposes the operator state drawn on the panel.
type ControlSource interface {
	State() controls.State
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLogger routes render diagnostics to logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.log = logger
		}
	}
}

// WithPanel also draws the analytics panel on each pass.
func WithPanel(source ControlSource) Option {
	return func(o *Orchestrator) {
		o.panel = true
		o.controls = source
	}
}

// WithSink forwards published frames to sink.
func WithSink(sink FrameSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sinks = append(o.sinks, sink)
		}
	}
}

// WithMonitor shares a render monitor with other components.
func WithMonitor(monitor *RenderMonitor) Option {
	return func(o *Orchestrator) {
		if monitor != nil {
			o.monitor = monitor
		}
	}
}

// Orchestrator owns the render task. Only Run draws; readers use Latest.
type Orchestrator struct {
	store    *state.Store
	renderer *render.Renderer
	log      *logging.Logger
	monitor  *RenderMonitor
	panel    bool
	controls ControlSource
	sinks    []FrameSink

	latest   atomic.Pointer[Frame]
	sequence uint64
	wake     chan struct{}
	now      func() time.Time
}

// New wires the render task to a store and renderer.
func New(store *state.Store, renderer *render.Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		renderer: renderer,
		log:      logging.L(),
		monitor:  NewRenderMonitor(),
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With(logging.String("component", "viewer"))
	return o
}

// Latest returns the most recent frame, or nil before the first pass.
func (o *Orchestrator) Latest() *Frame { return o.latest.Load() }

// Monitor exposes render timing.
func (o *Orchestrator) Monitor() *RenderMonitor { return o.monitor }

// Run draws once immediately and then once per coalesced store update until ctx ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.Pass()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.store.Updates():
			o.Pass()
		case <-o.wake:
			o.Pass()
		}
	}
}

// Invalidate requests a redraw without a store change, e.g. after a control action.
func (o *Orchestrator) Invalidate() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Pass performs one full render of the current view. It must only be called
// from the render task. It reports whether a frame was published.
func (o *Orchestrator) Pass() bool {
	//1.- Take one consistent view for the whole pass.
	view := o.store.View()
	started := o.now()

	//2.- Draw into a fresh surface so published frames are never mutated.
	scene := o.renderer.NewFrame()
	if err := o.renderer.RenderFrame(scene, view.Status, view.Snapshot); err != nil {
		o.monitor.Fail()
		o.log.Warn("render skipped", logging.Error(err), logging.Uint64("version", view.Version), logging.Duration("elapsed", o.now().Sub(started)))
		return false
	}
	frame := &Frame{Scene: scene, Status: view.Status, Snapshot: view.Snapshot, Version: view.Version}
	if o.panel {
		frame.Panel = panel.NewFrame()
		panel.Draw(frame.Panel, view.Snapshot, o.controlsView(view.Status))
	}
	o.monitor.Observe(o.now().Sub(started))

	//3.- Publish and fan out.
	o.sequence++
	frame.Sequence = o.sequence
	frame.RenderedAt = o.now()
	o.latest.Store(frame)
	for _, sink := range o.sinks {
		sink.RecordFrame(frame)
	}
	return true
}

func (o *Orchestrator) controlsView(status protocol.ConnectionStatus) panel.ControlsView {
	view := panel.ControlsView{Density: protocol.DefaultDensity, Status: status}
	if o.controls != nil {
		st := o.controls.State()
		view.Paused, view.Density = st.Paused, st.Density
	}
	return view
}
