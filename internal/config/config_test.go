package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VIEWER_ENDPOINT",
		"VIEWER_ORIGIN",
		"VIEWER_CHANNEL_PATH",
		"VIEWER_HTTP_ADDR",
		"VIEWER_GRPC_ADDR",
		"VIEWER_GRPC_SHARED_SECRET",
		"VIEWER_ADMIN_TOKEN",
		"VIEWER_HANDSHAKE_TIMEOUT",
		"VIEWER_MAX_PAYLOAD_BYTES",
		"VIEWER_CONTROL_WINDOW",
		"VIEWER_CONTROL_BURST",
		"VIEWER_RECORD_DIR",
		"VIEWER_FRAME_PATH",
		"VIEWER_FRAME_EXPORT_HZ",
		"VIEWER_LOG_LEVEL",
		"VIEWER_LOG_MAX_SIZE_MB",
		"VIEWER_LOG_MAX_BACKUPS",
		"VIEWER_LOG_MAX_AGE_DAYS",
		"VIEWER_LOG_COMPRESS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Endpoint != "" {
		t.Fatalf("expected no explicit endpoint, got %q", cfg.Endpoint)
	}
	if cfg.Origin != DefaultOrigin || cfg.ChannelPath != DefaultChannelPath {
		t.Fatalf("unexpected origin/path %q %q", cfg.Origin, cfg.ChannelPath)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Fatalf("expected default http addr %q, got %q", DefaultHTTPAddr, cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != "" {
		t.Fatalf("expected gRPC to be disabled by default, got %q", cfg.GRPCAddr)
	}
	if cfg.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Fatalf("expected default handshake timeout, got %v", cfg.HandshakeTimeout)
	}
	if cfg.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Fatalf("expected default max payload %d, got %d", DefaultMaxPayloadBytes, cfg.MaxPayloadBytes)
	}
	if cfg.ControlWindow != DefaultControlWindow || cfg.ControlBurst != DefaultControlBurst {
		t.Fatalf("unexpected control limits %v/%d", cfg.ControlWindow, cfg.ControlBurst)
	}
	if cfg.RecordDir != "" || cfg.FramePath != "" {
		t.Fatalf("expected recording and frame export to be disabled")
	}
	if cfg.Logging.Level != DefaultLogLevel || cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIEWER_ENDPOINT", "wss://sim.example/ws/simulation")
	t.Setenv("VIEWER_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("VIEWER_GRPC_ADDR", ":9001")
	t.Setenv("VIEWER_GRPC_SHARED_SECRET", "s3cret")
	t.Setenv("VIEWER_ADMIN_TOKEN", "admin")
	t.Setenv("VIEWER_HANDSHAKE_TIMEOUT", "3s")
	t.Setenv("VIEWER_MAX_PAYLOAD_BYTES", "2048")
	t.Setenv("VIEWER_CONTROL_WINDOW", "2s")
	t.Setenv("VIEWER_CONTROL_BURST", "4")
	t.Setenv("VIEWER_RECORD_DIR", "/tmp/rec")
	t.Setenv("VIEWER_FRAME_PATH", "/tmp/frame.png")
	t.Setenv("VIEWER_FRAME_EXPORT_HZ", "4")
	t.Setenv("VIEWER_LOG_COMPRESS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Endpoint != "wss://sim.example/ws/simulation" {
		t.Fatalf("unexpected endpoint: %q", cfg.Endpoint)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.GRPCAddr != ":9001" {
		t.Fatalf("unexpected listener addresses %q %q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.GRPCSharedSecret != "s3cret" || cfg.AdminToken != "admin" {
		t.Fatalf("unexpected secrets")
	}
	if cfg.HandshakeTimeout != 3*time.Second {
		t.Fatalf("expected handshake timeout 3s, got %v", cfg.HandshakeTimeout)
	}
	if cfg.MaxPayloadBytes != 2048 {
		t.Fatalf("expected overridden max payload, got %d", cfg.MaxPayloadBytes)
	}
	if cfg.ControlWindow != 2*time.Second || cfg.ControlBurst != 4 {
		t.Fatalf("unexpected control limits %v/%d", cfg.ControlWindow, cfg.ControlBurst)
	}
	if cfg.RecordDir != "/tmp/rec" || cfg.FramePath != "/tmp/frame.png" {
		t.Fatalf("unexpected output paths %q %q", cfg.RecordDir, cfg.FramePath)
	}
	if got := cfg.FrameExportInterval(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms export interval, got %v", got)
	}
	if cfg.Logging.Compress {
		t.Fatalf("expected log compression disabled")
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIEWER_ENDPOINT", "http://not-a-socket")
	t.Setenv("VIEWER_CHANNEL_PATH", "ws/simulation")
	t.Setenv("VIEWER_HANDSHAKE_TIMEOUT", "abc")
	t.Setenv("VIEWER_MAX_PAYLOAD_BYTES", "-5")
	t.Setenv("VIEWER_CONTROL_BURST", "0")
	t.Setenv("VIEWER_FRAME_EXPORT_HZ", "-1")
	t.Setenv("VIEWER_LOG_COMPRESS", "maybe")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"VIEWER_ENDPOINT",
		"VIEWER_CHANNEL_PATH",
		"VIEWER_HANDSHAKE_TIMEOUT",
		"VIEWER_MAX_PAYLOAD_BYTES",
		"VIEWER_CONTROL_BURST",
		"VIEWER_FRAME_EXPORT_HZ",
		"VIEWER_LOG_COMPRESS",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadRejectsBadOrigin(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIEWER_ORIGIN", "ftp://example.com")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "VIEWER_ORIGIN") {
		t.Fatalf("expected origin validation error, got %v", err)
	}
}

func TestFrameExportIntervalNilConfig(t *testing.T) {
	var cfg *Config
	if cfg.FrameExportInterval() != 0 {
		t.Fatalf("nil config should disable export")
	}
}
