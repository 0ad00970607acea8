package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intersection/viewer/internal/config"
	"intersection/viewer/internal/controls"
	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/protocol"
	"intersection/viewer/internal/replay"
	"intersection/viewer/internal/wstest"
)

const snapshotPayload = `{"lights":{"north_south":"red","east_west":"green"},"vehicles":[{"id":4,"lane":2,"position":80}],"metrics":{"total_queue":3,"avg_wait_time":4.2,"history":[1,3]}}`

func testConfig(endpoint string) *config.Config {
	return &config.Config{
		Endpoint:         endpoint,
		HandshakeTimeout: 2 * time.Second,
		MaxPayloadBytes:  config.DefaultMaxPayloadBytes,
		ControlWindow:    time.Second,
		ControlBurst:     100,
		FrameExportHz:    config.DefaultFrameExportHz,
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNewDerivesEndpointFromOrigin(t *testing.T) {
	cfg := testConfig("")
	cfg.Origin = "https://sim.example:8443"
	cfg.ChannelPath = config.DefaultChannelPath
	a, err := New(cfg, logging.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "wss://sim.example:8443/ws/simulation", a.Endpoint())
	assert.NotEmpty(t, a.SessionID())

	_, err = New(nil, nil)
	assert.Error(t, err)
}

func TestServeEndToEnd(t *testing.T) {
	sim := wstest.NewServer(t)
	cfg := testConfig(sim.URL())
	cfg.RecordDir = t.TempDir()
	cfg.FramePath = filepath.Join(t.TempDir(), "frame.png")
	cfg.FrameExportHz = 20

	a, err := New(cfg, logging.NewTestLogger())
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- a.Serve(ctx, listener, nil) }()

	//1.- Connection opens and readiness follows.
	require.True(t, sim.WaitConnected(5*time.Second))
	require.Eventually(t, func() bool {
		code, _ := get(t, base+"/readyz")
		return code == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	//2.- A snapshot flows through the store into the status document and frames.
	require.NoError(t, sim.Send([]byte(snapshotPayload)))
	require.Eventually(t, func() bool {
		_, body := get(t, base+"/api/status")
		return strings.Contains(body, "East-West Flow")
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		frame := a.Latest()
		return frame != nil && frame.Snapshot != nil && frame.Panel != nil
	}, 5*time.Second, 20*time.Millisecond)

	code, _ := get(t, base+"/frame.png")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, base+"/panel.png")
	assert.Equal(t, http.StatusOK, code)

	//3.- Operator commands reach the simulation and update the panel state.
	resp, err := http.Post(base+"/api/control", "application/json", strings.NewReader(`{"type":"stop","value":null}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	cmd, ok := sim.NextCommand(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.CommandStop, cmd.Type)

	assert.True(t, a.Apply(controls.DensityUp))
	cmd, ok = sim.NextCommand(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.CommandSetDensity, cmd.Type)
	require.NotNil(t, cmd.Value)
	assert.InDelta(t, 0.4, *cmd.Value, 1e-9)

	//4.- Losing the simulation leaves the viewer serving a closed state.
	sim.DropConnections()
	require.Eventually(t, func() bool {
		code, _ := get(t, base+"/readyz")
		return code == http.StatusServiceUnavailable
	}, 5*time.Second, 20*time.Millisecond)
	_, metrics := get(t, base+"/metrics")
	assert.Contains(t, metrics, "viewer_connection_open 0")
	assert.Contains(t, metrics, `viewer_commands_sent_total{type="stop"} 1`)

	require.Eventually(t, func() bool {
		_, err := os.Stat(cfg.FramePath)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	//5.- The session was recorded.
	entries, err := os.ReadDir(cfg.RecordDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	bundle, err := replay.Load(filepath.Join(cfg.RecordDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, a.SessionID(), bundle.Manifest.SessionID)
	require.Len(t, bundle.Snapshots(), 1)
	commands, err := bundle.Commands()
	require.NoError(t, err)
	require.Len(t, commands, 2)
	assert.True(t, commands[0].Sent)
	assert.NotEmpty(t, bundle.Frames)

	var statuses []string
	for _, event := range bundle.Events {
		if event.Type == replay.EventStatus {
			var decoded replay.StatusEvent
			require.NoError(t, json.Unmarshal(event.Payload, &decoded))
			statuses = append(statuses, decoded.Status)
		}
	}
	assert.Equal(t, []string{"connecting", "open", "closed"}, statuses)
}
