package simclient

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultChannelPath is the simulation's websocket route.
const DefaultChannelPath = "/ws/simulation"

// EndpointFromOrigin derives the websocket endpoint from the origin the
// simulation page is served from.
// 1.- Map http to ws and https to wss; ws and wss pass through unchanged.
// 2.- Normalise wildcard or missing hosts to localhost so the URL is dialable.
// 3.- Replace any path, query or fragment with the channel path.
func EndpointFromOrigin(origin, path string) (string, error) {
	trimmed := strings.TrimSpace(origin)
	if trimmed == "" {
		return "", fmt.Errorf("origin must not be empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "ws":
		parsed.Scheme = "ws"
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", parsed.Scheme)
	}

	parsed.Host = normaliseHostPort(parsed.Host)
	if parsed.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}

	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultChannelPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	parsed.Path = path
	parsed.RawPath = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.User = nil
	return parsed.String(), nil
}

func normaliseHostPort(address string) string {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(trimmed)
	if err != nil {
		return trimmed
	}
	switch strings.TrimSpace(host) {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
