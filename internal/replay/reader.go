package replay

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"intersection/viewer/internal/protocol"
)

// Event is a single decoded line of the event log.
type Event struct {
	Sequence   uint64    `json:"seq"`
	CapturedAt time.Time `json:"captured_at"`
	Type       EventKind `json:"type"`
	Payload    []byte    `json:"payload"`
}

// Frame is a single encoded frame from the zstd stream.
type Frame struct {
	Sequence   uint64    `json:"seq"`
	CapturedAt time.Time `json:"captured_at"`
	Payload    []byte    `json:"payload"`
}

// Bundle holds a fully loaded recording.
type Bundle struct {
	Dir      string   `json:"dir"`
	Manifest Manifest `json:"manifest"`
	Events   []Event  `json:"events"`
	Frames   []Frame  `json:"frames"`
}

// StatusEvent is the payload recorded for connection status changes.
type StatusEvent struct {
	Status string `json:"status"`
}

// CommandEvent is the payload recorded for every command attempt.
type CommandEvent struct {
	Command protocol.Command `json:"command"`
	Sent    bool             `json:"sent"`
}

// Load reads the manifest, events and frames from a bundle directory or manifest path.
func Load(path string) (*Bundle, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	//1.- Locate the manifest so downstream parsing reuses relative asset paths.
	manifestPath := path
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		manifestPath = filepath.Join(path, manifestFile)
	}
	dir := filepath.Dir(manifestPath)
	manifest, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	//2.- Decode events first so tools can rebuild the timeline.
	events, err := loadEvents(filepath.Join(dir, manifest.EventsPath))
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	//3.- Frames follow; they are only needed for visual playback.
	frames, err := loadFrames(filepath.Join(dir, manifest.FramesPath))
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}

	return &Bundle{Dir: dir, Manifest: manifest, Events: events, Frames: frames}, nil
}

// readManifest loads a manifest and rejects layouts this reader does not know.
func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if manifest.Version != ManifestVersion {
		return Manifest{}, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}
	return manifest, nil
}

// Snapshots decodes every recorded snapshot event in log order. Payloads that
// no longer decode are skipped, matching how the live client treats them.
func (b *Bundle) Snapshots() []*protocol.Snapshot {
	if b == nil {
		return nil
	}
	var out []*protocol.Snapshot
	for _, event := range b.Events {
		if event.Type != EventSnapshot {
			continue
		}
		snapshot, err := protocol.DecodeSnapshot(event.Payload)
		if err != nil {
			continue
		}
		out = append(out, snapshot)
	}
	return out
}

// Commands returns the recorded command attempts in log order.
func (b *Bundle) Commands() ([]CommandEvent, error) {
	if b == nil {
		return nil, nil
	}
	var out []CommandEvent
	for _, event := range b.Events {
		if event.Type != EventCommand {
			continue
		}
		var decoded CommandEvent
		if err := json.Unmarshal(event.Payload, &decoded); err != nil {
			return nil, fmt.Errorf("command event %d: %w", event.Sequence, err)
		}
		out = append(out, decoded)
	}
	return out, nil
}

func loadEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var events []Event
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw eventRecord
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, err
		}
		captured, err := time.Parse(time.RFC3339Nano, raw.CapturedAt)
		if err != nil {
			return nil, err
		}
		payload, err := base64.StdEncoding.DecodeString(raw.PayloadB64)
		if err != nil {
			return nil, err
		}
		events = append(events, Event{
			Sequence:   raw.Sequence,
			CapturedAt: captured,
			Type:       EventKind(raw.Type),
			Payload:    payload,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func loadFrames(path string) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if info, err := file.Stat(); err != nil {
		return nil, err
	} else if info.Size() == 0 {
		return nil, nil
	}

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var frames []Frame
	offset := 0
	for offset+frameHeaderSize <= len(payload) {
		//1.- Read the fixed header then copy out the frame bytes.
		sequence := binary.LittleEndian.Uint64(payload[offset : offset+8])
		captured := int64(binary.LittleEndian.Uint64(payload[offset+8 : offset+16]))
		size := int(binary.LittleEndian.Uint32(payload[offset+16 : offset+20]))
		offset += frameHeaderSize
		if offset+size > len(payload) {
			return nil, fmt.Errorf("frame payload truncated")
		}
		frames = append(frames, Frame{
			Sequence:   sequence,
			CapturedAt: time.Unix(0, captured).UTC(),
			Payload:    append([]byte(nil), payload[offset:offset+size]...),
		})
		offset += size
	}
	if offset != len(payload) {
		return nil, fmt.Errorf("frame stream has %d trailing bytes", len(payload)-offset)
	}
	return frames, nil
}
