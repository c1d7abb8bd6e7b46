package rpc

import (
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wtfashwin/Quiz-App/logger"
)

// HealthServer serves the standard gRPC health protocol so orchestrators can
// check the coordinator.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	listener net.Listener
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	return &HealthServer{grpc: server, health: hs, listener: listener}, nil
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// Start reports SERVING and blocks until Stop.
func (h *HealthServer) Start() {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	logger.Log.Infof("Health server listening on %s", h.Addr())
	if err := h.grpc.Serve(h.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Log.Errorf("Health server error: %v", err)
	}
}

// Stop flips the status to NOT_SERVING before shutting down.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
