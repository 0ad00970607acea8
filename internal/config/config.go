package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultOrigin is the simulation page origin used when no endpoint is configured.
	DefaultOrigin = "http://localhost:8000"
	// DefaultChannelPath is the websocket route exposed by the simulation.
	DefaultChannelPath = "/ws/simulation"
	// DefaultHTTPAddr is where the operational HTTP surface listens.
	DefaultHTTPAddr = ":43128"
	// DefaultHandshakeTimeout bounds the initial websocket dial.
	DefaultHandshakeTimeout = 10 * time.Second
	// DefaultMaxPayloadBytes limits inbound snapshot frame size.
	DefaultMaxPayloadBytes int64 = 1 << 20

	// DefaultControlWindow bounds how frequently operators may issue control commands.
	DefaultControlWindow = time.Second
	// DefaultControlBurst sets how many control commands may be issued per window.
	DefaultControlBurst = 10

	// DefaultFrameExportHz is the cadence of the on-disk frame export when enabled.
	DefaultFrameExportHz = 2.0

	// DefaultLogLevel controls verbosity for viewer logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written. Empty logs to stdout only.
	DefaultLogPath = "viewer.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the viewer.
type Config struct {
	Endpoint         string
	Origin           string
	ChannelPath      string
	HandshakeTimeout time.Duration
	MaxPayloadBytes  int64

	HTTPAddr         string
	GRPCAddr         string
	GRPCSharedSecret string
	AdminToken       string
	ControlWindow    time.Duration
	ControlBurst     int

	RecordDir     string
	FramePath     string
	FrameExportHz float64
	Logging       LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the viewer configuration from environment variables, applying
// defaults and returning every invalid override in one error.
func Load() (*Config, error) {
	cfg := &Config{
		Endpoint:         strings.TrimSpace(os.Getenv("VIEWER_ENDPOINT")),
		Origin:           getString("VIEWER_ORIGIN", DefaultOrigin),
		ChannelPath:      getString("VIEWER_CHANNEL_PATH", DefaultChannelPath),
		HandshakeTimeout: DefaultHandshakeTimeout,
		MaxPayloadBytes:  DefaultMaxPayloadBytes,
		HTTPAddr:         getString("VIEWER_HTTP_ADDR", DefaultHTTPAddr),
		GRPCAddr:         strings.TrimSpace(os.Getenv("VIEWER_GRPC_ADDR")),
		GRPCSharedSecret: strings.TrimSpace(os.Getenv("VIEWER_GRPC_SHARED_SECRET")),
		AdminToken:       strings.TrimSpace(os.Getenv("VIEWER_ADMIN_TOKEN")),
		ControlWindow:    DefaultControlWindow,
		ControlBurst:     DefaultControlBurst,
		RecordDir:        strings.TrimSpace(os.Getenv("VIEWER_RECORD_DIR")),
		FramePath:        strings.TrimSpace(os.Getenv("VIEWER_FRAME_PATH")),
		FrameExportHz:    DefaultFrameExportHz,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("VIEWER_LOG_LEVEL", DefaultLogLevel)),
			Path:       DefaultLogPath,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}
	if raw, ok := os.LookupEnv("VIEWER_LOG_PATH"); ok {
		cfg.Logging.Path = strings.TrimSpace(raw)
	}

	var problems []string

	if cfg.Endpoint != "" {
		if parsed, err := url.Parse(cfg.Endpoint); err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("VIEWER_ENDPOINT must be a ws:// or wss:// URL, got %q", cfg.Endpoint))
		}
	} else if parsed, err := url.Parse(cfg.Origin); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		problems = append(problems, fmt.Sprintf("VIEWER_ORIGIN must be an http:// or https:// origin, got %q", cfg.Origin))
	}

	if !strings.HasPrefix(cfg.ChannelPath, "/") {
		problems = append(problems, fmt.Sprintf("VIEWER_CHANNEL_PATH must start with '/', got %q", cfg.ChannelPath))
	}

	if raw := strings.TrimSpace(os.Getenv("VIEWER_HANDSHAKE_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("VIEWER_HANDSHAKE_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.HandshakeTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("VIEWER_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("VIEWER_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("VIEWER_CONTROL_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("VIEWER_CONTROL_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.ControlWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("VIEWER_CONTROL_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("VIEWER_CONTROL_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.ControlBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("VIEWER_FRAME_EXPORT_HZ")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("VIEWER_FRAME_EXPORT_HZ must be a positive number, got %q", raw))
		} else {
			cfg.FrameExportHz = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("VIEWER_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("VIEWER_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("VIEWER_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("VIEWER_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("VIEWER_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("VIEWER_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("VIEWER_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("VIEWER_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// FrameExportInterval converts the export rate into a ticker period.
func (c *Config) FrameExportInterval() time.Duration {
	if c == nil || c.FrameExportHz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.FrameExportHz)
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
