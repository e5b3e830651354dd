// Package server builds the gRPC server: otelgrpc instrumentation, request logging, the
// grpc.health.v1 readiness service and reflection.
package server

import (
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	healthhandler "gwiit/backend/internal/health/handler"
	"gwiit/backend/internal/server/interceptors"
)

// healthCheckMethods are not logged per call.
var healthCheckMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/List":  true,
}

// Deps holds the services registered on the server.
type Deps struct {
	// Health publishes store and policy readiness. If nil, no health service is registered.
	Health *healthhandler.Server
	// Reflection registers the reflection service (for grpcurl and similar tools).
	Reflection bool
}

// NewServer returns a gRPC server instrumented with otelgrpc and request logging.
func NewServer(log logrus.FieldLogger, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.LoggingUnary(log, healthCheckMethods)),
	}
	return grpc.NewServer(append(base, opts...)...)
}

// RegisterServices registers the configured services with the given server.
//
// Service → handler mapping:
//   - grpc.health.v1.Health → internal/health/handler
//   - grpc.reflection       → google.golang.org/grpc/reflection
func RegisterServices(s *grpc.Server, deps Deps) {
	if deps.Health != nil {
		deps.Health.Register(s)
	}
	if deps.Reflection {
		reflection.Register(s)
	}
}
