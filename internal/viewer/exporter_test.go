package viewer

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/render"
	"intersection/viewer/internal/state"
)

func TestExportOnceWritesLatestFrame(t *testing.T) {
	store := state.NewStore()
	o := New(store, render.NewDefault(), WithLogger(logging.NewTestLogger()))
	path := filepath.Join(t.TempDir(), "out", "frame.png")
	exporter := NewExporter(o, path, 4, logging.NewTestLogger())

	if written, err := exporter.ExportOnce(); err != nil || written {
		t.Fatalf("expected nothing to export before the first pass, got %v %v", written, err)
	}

	o.Pass()
	written, err := exporter.ExportOnce()
	if err != nil || !written {
		t.Fatalf("expected an export, got %v %v", written, err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 600 {
		t.Fatalf("unexpected frame size %v", img.Bounds())
	}

	if written, _ := exporter.ExportOnce(); written {
		t.Fatalf("unchanged frames must not be rewritten")
	}
}

func TestExporterInterval(t *testing.T) {
	exporter := NewExporter(nil, "", 4, nil)
	if exporter.Interval().Milliseconds() != 250 {
		t.Fatalf("unexpected interval %v", exporter.Interval())
	}
	// A missing source or path makes Start a no-op.
	exporter.Start(context.Background())
	exporter.Stop()
}

func TestExporterLogsCadenceOnStart(t *testing.T) {
	var logs bytes.Buffer
	o := New(state.NewStore(), render.NewDefault(), WithLogger(logging.NewTestLogger()))
	exporter := NewExporter(o, filepath.Join(t.TempDir(), "frame.png"), 4, logging.NewWriterLogger(&logs, logging.InfoLevel))

	exporter.Start(context.Background())
	exporter.Stop()

	out := logs.String()
	if !strings.Contains(out, `"hz":4`) || !strings.Contains(out, `"interval_ms":250`) {
		t.Fatalf("expected export cadence in start log, got %s", out)
	}
}
