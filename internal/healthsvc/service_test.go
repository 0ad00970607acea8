package healthsvc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/protocol"
)

func startServer(t *testing.T, secret string) (*Service, healthpb.HealthClient) {
	t.Helper()
	listener := bufconn.Listen(1 << 20)
	service := New(logging.NewTestLogger())
	server := service.NewServer(secret)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return service, healthpb.NewHealthClient(conn)
}

func check(ctx context.Context, client healthpb.HealthClient) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func TestHealthFollowsConnectionStatus(t *testing.T) {
	service, client := startServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := check(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, got)

	service.ObserveStatus(protocol.Open)
	got, err = check(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, got)

	service.ObserveSnapshot(nil, nil)
	service.ObserveCommand(protocol.Command{Type: protocol.CommandStop}, true)
	got, err = check(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, got)

	service.ObserveStatus(protocol.Closed)
	got, err = check(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, got)

	overall, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, overall.GetStatus())
}

func TestSharedSecretGuardsHealth(t *testing.T) {
	service, client := startServer(t, "hunter2")
	service.ObserveStatus(protocol.Open)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := check(ctx, client)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	wrong := metadata.AppendToOutgoingContext(ctx, SharedSecretMetadataKey, "nope")
	_, err = check(wrong, client)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	keyed := metadata.AppendToOutgoingContext(ctx, SharedSecretMetadataKey, "hunter2")
	got, err := check(keyed, client)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, got)

	bearer := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer hunter2")
	got, err = check(bearer, client)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, got)
}

func TestSecurityOptionsEmptySecret(t *testing.T) {
	assert.Empty(t, SecurityOptions("  "))
	assert.Len(t, SecurityOptions("s"), 2)
}

func TestExtractSharedSecret(t *testing.T) {
	cases := []struct {
		md   metadata.MD
		want string
	}{
		{metadata.Pairs(SharedSecretMetadataKey, " abc "), "abc"},
		{metadata.Pairs("authorization", "bearer xyz"), "xyz"},
		{metadata.Pairs("authorization", "Basic xyz"), ""},
		{metadata.MD{}, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractSharedSecret(tc.md))
	}
}
