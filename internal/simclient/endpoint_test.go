package simclient

import "testing"

func TestEndpointFromOrigin(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		origin string
		path   string
		want   string
	}{
		"plain_http":        {origin: "http://localhost:8000", want: "ws://localhost:8000/ws/simulation"},
		"https_upgrades":    {origin: "https://sim.example.com", want: "wss://sim.example.com/ws/simulation"},
		"ws_passthrough":    {origin: "ws://10.0.0.5:9000", path: "/custom", want: "ws://10.0.0.5:9000/custom"},
		"no_scheme":         {origin: "sim.local:8000", want: "ws://sim.local:8000/ws/simulation"},
		"port_only":         {origin: ":8000", want: "ws://localhost:8000/ws/simulation"},
		"ipv4_any":          {origin: "http://0.0.0.0:8000", want: "ws://localhost:8000/ws/simulation"},
		"ipv6_any":          {origin: "http://[::]:8000", want: "ws://localhost:8000/ws/simulation"},
		"ipv6_literal":      {origin: "http://[2001:db8::1]:8000", want: "ws://[2001:db8::1]:8000/ws/simulation"},
		"page_path_dropped": {origin: "http://localhost:5173/index.html?x=1#top", want: "ws://localhost:5173/ws/simulation"},
		"relative_path":     {origin: "http://localhost:8000", path: "stream", want: "ws://localhost:8000/stream"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := EndpointFromOrigin(tc.origin, tc.path)
			if err != nil {
				t.Fatalf("EndpointFromOrigin(%q, %q) returned error: %v", tc.origin, tc.path, err)
			}
			if got != tc.want {
				t.Fatalf("EndpointFromOrigin(%q, %q) = %q, want %q", tc.origin, tc.path, got, tc.want)
			}
		})
	}
}

func TestEndpointFromOriginRejectsBadInput(t *testing.T) {
	t.Parallel()

	for _, origin := range []string{"", "   ", "ftp://files.example", "http://"} {
		if _, err := EndpointFromOrigin(origin, ""); err == nil {
			t.Fatalf("expected error for origin %q", origin)
		}
	}
}
