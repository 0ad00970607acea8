// Package replayplayer turns recorded viewer sessions back into frames.
package replayplayer

import (
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"intersection/viewer/internal/panel"
	"intersection/viewer/internal/protocol"
	"intersection/viewer/internal/render"
	"intersection/viewer/internal/replay"
)

// Step is the viewer state at one recorded snapshot.
type Step struct {
	Event      uint64             `json:"event"`
	CapturedAt time.Time          `json:"captured_at"`
	Snapshot   *protocol.Snapshot `json:"-"`
	Controls   panel.ControlsView `json:"controls"`
}

// Summary is the machine-readable description of a bundle.
type Summary struct {
	Manifest  replay.Manifest `json:"manifest"`
	Events    int             `json:"events"`
	Frames    int             `json:"frames"`
	Snapshots int             `json:"snapshots"`
	Commands  int             `json:"commands"`
}

// Summarize counts the artefacts held by bundle.
func Summarize(bundle *replay.Bundle) (Summary, error) {
	commands, err := bundle.Commands()
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Manifest:  bundle.Manifest,
		Events:    len(bundle.Events),
		Frames:    len(bundle.Frames),
		Snapshots: len(bundle.Snapshots()),
		Commands:  len(commands),
	}, nil
}

// Timeline replays the event log and returns one step per decodable snapshot,
// carrying the connection status and operator controls in force at that point.
func Timeline(bundle *replay.Bundle) ([]Step, error) {
	controls := panel.ControlsView{Density: protocol.DefaultDensity, Status: protocol.Connecting}
	var steps []Step
	for _, event := range bundle.Events {
		switch event.Type {
		case replay.EventStatus:
			var decoded replay.StatusEvent
			if err := json.Unmarshal(event.Payload, &decoded); err != nil {
				return nil, fmt.Errorf("status event %d: %w", event.Sequence, err)
			}
			controls.Status = parseStatus(decoded.Status)
		case replay.EventCommand:
			var decoded replay.CommandEvent
			if err := json.Unmarshal(event.Payload, &decoded); err != nil {
				return nil, fmt.Errorf("command event %d: %w", event.Sequence, err)
			}
			//1.- The pause flag follows every attempt, sent or not, like the live panel.
			switch decoded.Command.Type {
			case protocol.CommandStop:
				controls.Paused = true
			case protocol.CommandStart:
				controls.Paused = false
			case protocol.CommandSetDensity:
				if decoded.Command.Value != nil {
					controls.Density = *decoded.Command.Value
				}
			}
		case replay.EventSnapshot:
			snapshot, err := protocol.DecodeSnapshot(event.Payload)
			if err != nil {
				continue
			}
			steps = append(steps, Step{Event: event.Sequence, CapturedAt: event.CapturedAt, Snapshot: snapshot, Controls: controls})
		}
	}
	return steps, nil
}

// RenderSteps draws every step into outDir as step-NNNNN.png and returns the
// written paths. When withPanel is set the analytics panel is composed to the
// right of the scene.
func RenderSteps(steps []Step, outDir string, withPanel bool) ([]string, error) {
	if outDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	renderer := render.NewDefault()
	paths := make([]string, 0, len(steps))
	for i, step := range steps {
		img, err := composeStep(renderer, step, withPanel)
		if err != nil {
			return paths, fmt.Errorf("step %d: %w", step.Event, err)
		}
		path := filepath.Join(outDir, fmt.Sprintf("step-%05d.png", i+1))
		if err := writePNG(path, img); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func composeStep(renderer *render.Renderer, step Step, withPanel bool) (*image.RGBA, error) {
	scene := renderer.NewFrame()
	if err := renderer.RenderFrame(scene, step.Controls.Status, step.Snapshot); err != nil {
		return nil, err
	}
	if !withPanel {
		return scene, nil
	}
	side := panel.NewFrame()
	panel.Draw(side, step.Snapshot, step.Controls)

	sb, pb := scene.Bounds(), side.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, sb.Dx()+pb.Dx(), max(sb.Dy(), pb.Dy())))
	draw.Draw(out, sb, scene, image.Point{}, draw.Src)
	draw.Draw(out, pb.Add(image.Pt(sb.Dx(), 0)), side, image.Point{}, draw.Src)
	return out, nil
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func parseStatus(raw string) protocol.ConnectionStatus {
	switch raw {
	case protocol.Open.String():
		return protocol.Open
	case protocol.Closed.String():
		return protocol.Closed
	default:
		return protocol.Connecting
	}
}
