package main

import "testing"

func TestListenerURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		address string
		scheme  string
		want    string
	}{
		"default_port_only":    {address: ":43128", want: "http://localhost:43128"},
		"explicit_localhost":   {address: "localhost:8000", scheme: "http", want: "http://localhost:8000"},
		"explicit_ipv4_any":    {address: "0.0.0.0:9000", scheme: "http", want: "http://localhost:9000"},
		"explicit_ipv4_local":  {address: "127.0.0.1:43128", scheme: "http", want: "http://127.0.0.1:43128"},
		"explicit_ipv6_any":    {address: "[::]:43128", scheme: "http", want: "http://localhost:43128"},
		"explicit_ipv6_custom": {address: "[2001:db8::1]:43128", scheme: "http", want: "http://[2001:db8::1]:43128"},
		"grpc_listener":        {address: ":50051", scheme: "grpc", want: "grpc://localhost:50051"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := listenerURL(tc.address, tc.scheme)
			if got != tc.want {
				t.Fatalf("listenerURL(%q, %q) = %q, want %q", tc.address, tc.scheme, got, tc.want)
			}
		})
	}
}

func TestReachableHostPortNoPort(t *testing.T) {
	t.Parallel()

	if got := reachableHostPort(""); got != "localhost" {
		t.Fatalf("expected localhost for empty address, got %q", got)
	}
	if got := reachableHostPort("viewer.internal"); got != "viewer.internal" {
		t.Fatalf("expected bare host to pass through, got %q", got)
	}
}
