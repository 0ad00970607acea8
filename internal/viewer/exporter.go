package viewer

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"intersection/viewer/internal/logging"
)

// FrameSource yields the latest published frame.
type FrameSource interface {
	Latest() *Frame
}

// Exporter periodically writes the latest scene frame to a PNG file so
// external tools can watch the intersection without a display.
type Exporter struct {
	interval time.Duration
	path     string
	source   FrameSource
	log      *logging.Logger

	lastSequence uint64
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewExporter configures an exporter that targets the provided rate.
func NewExporter(source FrameSource, path string, targetHz float64, logger *logging.Logger) *Exporter {
	if targetHz <= 0 {
		targetHz = 2
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 2
	}
	if logger == nil {
		logger = logging.L()
	}
	return &Exporter{
		interval: interval,
		path:     path,
		source:   source,
		log:      logger.With(logging.String("component", "frame_exporter"), logging.String("path", path)),
	}
}

// Interval exposes the configured export period.
func (e *Exporter) Interval() time.Duration {
	if e == nil {
		return 0
	}
	return e.interval
}

// Start begins exporting until ctx is cancelled or Stop is invoked.
func (e *Exporter) Start(ctx context.Context) {
	if e == nil || e.source == nil || e.path == "" {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.log.Info("frame export started", logging.Float64("hz", float64(time.Second)/float64(e.interval)), logging.Duration("interval", e.interval))
	ticker := time.NewTicker(e.interval)
	go func() {
		defer close(e.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.ExportOnce(); err != nil {
					e.log.Warn("frame export failed", logging.Error(err))
				}
			}
		}
	}()
}

// Stop cancels the export goroutine and waits for it to exit.
func (e *Exporter) Stop() {
	if e == nil {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.done != nil {
		<-e.done
		e.done = nil
	}
}

// ExportOnce writes the latest frame if it changed since the previous export.
func (e *Exporter) ExportOnce() (bool, error) {
	frame := e.source.Latest()
	if frame == nil || frame.Sequence == e.lastSequence {
		return false, nil
	}
	//1.- Encode in memory so a failed encode never truncates the previous file.
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.Scene); err != nil {
		return false, fmt.Errorf("encode frame: %w", err)
	}
	//2.- Replace the target atomically via a sibling temp file.
	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	tmp, err := os.CreateTemp(dir, ".frame-*.png")
	if err != nil {
		return false, err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return false, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	if err := os.Rename(tmp.Name(), e.path); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	e.lastSequence = frame.Sequence
	return true, nil
}
