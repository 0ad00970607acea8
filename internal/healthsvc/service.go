// Package healthsvc publishes the simulation connection over the standard
// gRPC health protocol.
package healthsvc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"intersection/viewer/internal/logging"
	"intersection/viewer/internal/protocol"
)

// ServiceName is the health entry that tracks the simulation connection.
const ServiceName = "simulation"

// Service mirrors connection status into a health server. It implements the
// sync client's observer hooks so status changes arrive without polling.
type Service struct {
	health *health.Server
	logger *logging.Logger
}

// New starts with the simulation entry NOT_SERVING. The overall server entry
// ("") stays SERVING while the process is up.
func New(logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.L()
	}
	s := &Service{health: health.NewServer(), logger: logger}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register attaches the health service to server.
func (s *Service) Register(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, s.health)
}

// NewServer builds a gRPC server guarded by the optional shared secret with
// the health service registered.
func (s *Service) NewServer(secret string) *grpc.Server {
	server := grpc.NewServer(SecurityOptions(secret)...)
	s.Register(server)
	return server
}

// ObserveStatus marks the simulation SERVING only while the connection is open.
func (s *Service) ObserveStatus(status protocol.ConnectionStatus) {
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if status == protocol.Open {
		serving = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, serving)
	s.logger.Debug("health status updated", logging.String("connection", status.String()), logging.String("serving", serving.String()))
}

// ObserveSnapshot is a no-op; health only follows the connection.
func (s *Service) ObserveSnapshot([]byte, *protocol.Snapshot) {}

// ObserveCommand is a no-op.
func (s *Service) ObserveCommand(protocol.Command, bool) {}

// Shutdown flips every entry to NOT_SERVING so watchers see the process leave.
func (s *Service) Shutdown() {
	s.health.Shutdown()
}
