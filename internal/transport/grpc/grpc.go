// Package grpc implements the gRPC transport for voiceover.
//
// The server exposes the standard grpc.health.v1 service and server
// reflection. The narrator service reports NOT_SERVING while a narration
// holds the exclusion lock, so load balancers and orchestrators can route
// new jobs to an idle instance.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nadzzz/voiceover/internal/transport"
)

// ServiceName is the health-checked narrator service.
const ServiceName = "voiceover.Narrator"

// defaultPollInterval is how often the lock is probed.
const defaultPollInterval = 5 * time.Second

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port         int
	pollInterval time.Duration
	server       *grpc.Server
	health       *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{
		port:         port,
		pollInterval: defaultPollInterval,
		health:       health.NewServer(),
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server. It blocks until the context is cancelled.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	t.server = grpc.NewServer()
	healthpb.RegisterHealthServer(t.server, t.health)
	reflection.Register(t.server)

	t.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	t.refresh(ctx, svc)

	slog.Info("grpc transport listening", "port", t.port)

	go t.watch(ctx, svc)
	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// watch keeps the narrator status in step with the lock.
func (t *Transport) watch(ctx context.Context, svc transport.Service) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.refresh(ctx, svc)
		}
	}
}

// refresh probes the lock once and updates the narrator status.
func (t *Transport) refresh(ctx context.Context, svc transport.Service) {
	status := healthpb.HealthCheckResponse_SERVING
	st, err := svc.LockStatus(ctx)
	switch {
	case err != nil:
		slog.Warn("probing narration lock failed", "error", err)
		status = healthpb.HealthCheckResponse_UNKNOWN
	case st.Held:
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	t.health.SetServingStatus(ServiceName, status)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}
