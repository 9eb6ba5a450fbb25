package handler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rl1809/rocket-cart/internal/port"
)

const CartServiceName = "rocketcart.Cart"

// HealthServer exposes grpc.health.v1, driven by pinging the cart store.
type HealthServer struct {
	health *health.Server
	store  port.Pinger
	log    logrus.FieldLogger
}

func NewHealthServer(store port.Pinger, log logrus.FieldLogger) *HealthServer {
	return &HealthServer{health: health.NewServer(), store: store, log: log}
}

func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
	reflection.Register(s)
}

// Check pings the store once and publishes the result.
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("cart store unreachable")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(CartServiceName, status)
	return status
}

// Watch runs Check every interval until ctx is done.
func (h *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		h.Check(pingCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Shutdown reports NOT_SERVING to every watcher.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}
