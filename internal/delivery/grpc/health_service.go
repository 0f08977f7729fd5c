package grpc

import (
	"context"

	"github.com/vogiaan1904/tablequeue/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RealtimeService is the health entry that tracks the change feed.
const RealtimeService = "tablequeue.realtime"

type HealthService struct {
	srv *health.Server
	l   logger.Logger
}

func NewHealthService(l logger.Logger) *HealthService {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(RealtimeService, healthpb.HealthCheckResponse_SERVING)

	return &HealthService{
		srv: srv,
		l:   l,
	}
}

func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// SetRealtime flips the realtime entry. The overall entry stays SERVING since
// polling keeps positions fresh without the feed.
func (h *HealthService) SetRealtime(healthy bool) {
	st := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus(RealtimeService, st)
	h.l.Infof(context.Background(), "delivery.grpc.health_service.SetRealtime: %s %s", RealtimeService, st)
}

// Shutdown reports NOT_SERVING everywhere ahead of GracefulStop.
func (h *HealthService) Shutdown() {
	h.srv.Shutdown()
}

func (h *HealthService) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}
