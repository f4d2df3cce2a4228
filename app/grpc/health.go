package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthReporter drives the standard gRPC health service from database reachability.
type HealthReporter struct {
	server  *health.Server
	service string
	db      pinger
	logger  logrus.FieldLogger
}

func NewHealthReporter(service string, db pinger) *HealthReporter {
	server := health.NewServer()
	server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	server.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	return &HealthReporter{
		server:  server,
		service: service,
		db:      db,
		logger:  factory.NewModuleLogger("grpc-health"),
	}
}

func (h *HealthReporter) Server() *health.Server {
	return h.server
}

// Check pings the database once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	servingStatus := healthpb.HealthCheckResponse_SERVING
	if err := h.db.PingContext(checkCtx); err != nil {
		h.logger.WithError(err).Warn("Database ping failed")
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", servingStatus)
	h.server.SetServingStatus(h.service, servingStatus)
	return servingStatus
}

// Run re-checks on every tick until ctx is done, then marks the service as shutting down.
func (h *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
