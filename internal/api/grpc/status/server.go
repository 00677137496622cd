package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/alert-relay/internal/logger"
)

const (
	// ServiceRelay is the overall health service name.
	ServiceRelay = ""
	// ServiceAlarms reports whether the monitored sources are all clear.
	ServiceAlarms = "alert-relay.alarms"
)

// gracefulStopTimeout bounds GracefulStop; open Watch streams would otherwise hold it.
const gracefulStopTimeout = 2 * time.Second

// Server publishes relay health through a gRPC health server.
type Server struct {
	// health tracks the serving status of each service.
	health *health.Server
	// grpcServer carries the health service.
	grpcServer *grpc.Server
}

// NewServer creates a status server with every service NOT_SERVING.
func NewServer() *Server {
	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceRelay, healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceAlarms, healthpb.HealthCheckResponse_NOT_SERVING)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		health:     healthServer,
		grpcServer: grpcServer,
	}
}

// MarkRunning flips the relay service to SERVING.
func (s *Server) MarkRunning() {
	s.health.SetServingStatus(ServiceRelay, healthpb.HealthCheckResponse_SERVING)
}

// ReportCycle publishes the outcome of a finished cycle.
func (s *Server) ReportCycle(hasActiveAlarms bool) {
	servingStatus := healthpb.HealthCheckResponse_SERVING
	if hasActiveAlarms {
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus(ServiceAlarms, servingStatus)
}

// Serve accepts connections on lis until ctx is canceled, then marks every
// service NOT_SERVING and stops the server.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down status server")
		s.health.Shutdown()
		s.stop()
	}()

	logger.InfoKV(ctx, "Status server listening", "listen_address", lis.Addr().String())

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve status: %w", err)
	}

	<-done

	return nil
}

// stop drains in-flight calls, forcing the stop when that takes too long.
func (s *Server) stop() {
	stopped := make(chan struct{})

	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(gracefulStopTimeout):
		s.grpcServer.Stop()
	}
}
