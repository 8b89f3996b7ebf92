package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/example/storefront/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(t *testing.T, s *HealthServer, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthServer_Probe(t *testing.T) {
	redisErr := errors.New("connection refused")
	s := NewHealthServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, map[string]Check{
		"mysql": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return redisErr },
	}, zap.NewNop())

	results := s.Probe(context.Background())
	assert.NoError(t, results["mysql"])
	assert.Equal(t, redisErr, results["redis"])

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, "mysql"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, "redis"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, ""))
}

func TestHealthServer_AllHealthy(t *testing.T) {
	s := NewHealthServer(config.ServerConfig{Host: "127.0.0.1"}, map[string]Check{
		"mysql": func(context.Context) error { return nil },
	}, zap.NewNop())

	s.Probe(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, ""))
}
