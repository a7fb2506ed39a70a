package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service key reported alongside the overall "" key.
const ServiceName = "madrasah.sms.v1.SMSService"

// CheckFunc checks one dependency, e.g. a Postgres or Redis ping.
type CheckFunc func(ctx context.Context) error

// HealthServer serves grpc.health.v1 and reflection. Status follows the
// dependency checks: SERVING only when every check passes.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   map[string]CheckFunc
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthServer(checks map[string]CheckFunc, interval time.Duration, logger *slog.Logger) *HealthServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s := &HealthServer{
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		checks:   checks,
		interval: interval,
		logger:   logger.With("component", "grpc_health_server"),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health server listening", "address", lis.Addr().String())
	return s.server.Serve(lis)
}

// Run checks immediately and then every interval until ctx is done.
func (s *HealthServer) Run(ctx context.Context) {
	s.Refresh(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh runs all checks concurrently and publishes the combined status.
func (s *HealthServer) Refresh(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	g, gctx := errgroup.WithContext(checkCtx)
	for name, check := range s.checks {
		name, check := name, check
		g.Go(func() error {
			if err := check(gctx); err != nil {
				s.logger.WarnContext(ctx, "Dependency check failed", "dependency", name, "error", err)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

func (s *HealthServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// GracefulStop flips every status to NOT_SERVING before draining connections.
func (s *HealthServer) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
