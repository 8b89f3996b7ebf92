// Package grpc exposes the storefront's dependency health over the standard
// gRPC health protocol.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/example/storefront/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// HealthServer serves grpc.health.v1 for the storefront process.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
	checks map[string]Check
	addr   string
	logger *zap.Logger
}

// NewHealthServer creates a health server that reports on checks.
func NewHealthServer(cfg config.ServerConfig, checks map[string]Check, logger *zap.Logger) *HealthServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &HealthServer{
		srv:    srv,
		health: hs,
		checks: checks,
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		logger: logger.Named("health"),
	}
}

// Start listens on the configured address and blocks until the server stops.
func (s *HealthServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Health service started", zap.String("address", s.addr))
	return s.srv.Serve(lis)
}

// Probe runs every check and publishes the result per dependency name. The
// overall status ("") is SERVING only when every check passes.
func (s *HealthServer) Probe(ctx context.Context) map[string]error {
	results := make(map[string]error, len(s.checks))
	overall := healthpb.HealthCheckResponse_SERVING

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		err := s.checks[name](ctx)
		results[name] = err

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("Dependency unhealthy", zap.String("dependency", name), zap.Error(err))
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
	return results
}

// Watch probes on every tick until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// Stop drains in-flight RPCs and stops the server.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
