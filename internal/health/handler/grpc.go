package handler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"gwiit/backend/internal/routing"
)

// ServicePolicy is the health service name reported for the relation policy engine.
const ServicePolicy = "policy"

// ServiceStore returns the health service name reported for a store.
func ServiceStore(s routing.Store) string { return "store/" + string(s) }

// StorePinger checks the configured stores. *db.Stores satisfies it.
type StorePinger interface {
	Configured() []routing.Store
	Ping(ctx context.Context, name routing.Store) error
}

// PolicyChecker is used by the health server to verify the policy engine (e.g. OPA) is ready.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server publishes readiness over the standard grpc.health.v1 service: one status per store,
// one for the policy engine, and the overall status under the empty service name.
type Server struct {
	health  *health.Server
	stores  StorePinger
	policy  PolicyChecker
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewServer returns a health server. stores and policy may be nil, in which case those checks
// are skipped.
func NewServer(stores StorePinger, policy PolicyChecker, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		health:  health.NewServer(),
		stores:  stores,
		policy:  policy,
		timeout: 2 * time.Second,
		log:     log.WithField("component", "health"),
	}
}

// Register registers the health service with s.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(r, s.health)
}

// Refresh runs every check once and publishes the results. It reports whether all passed.
// A failing check never returns an error; it marks its service NOT_SERVING.
func (s *Server) Refresh(ctx context.Context) bool {
	ok := true
	if s.stores != nil {
		for _, store := range s.stores.Configured() {
			ok = s.check(ctx, ServiceStore(store), func(ctx context.Context) error {
				return s.stores.Ping(ctx, store)
			}) && ok
		}
	}
	if s.policy != nil {
		ok = s.check(ctx, ServicePolicy, s.policy.HealthCheck) && ok
	}
	s.health.SetServingStatus("", statusOf(ok))
	return ok
}

func (s *Server) check(ctx context.Context, service string, fn func(context.Context) error) bool {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := fn(cctx)
	if err != nil {
		s.log.WithField("service", service).WithError(err).Warn("health check failed")
	}
	s.health.SetServingStatus(service, statusOf(err == nil))
	return err == nil
}

// Run refreshes every interval until ctx is done, then marks everything NOT_SERVING.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-t.C:
			s.Refresh(ctx)
		}
	}
}

// Check is the grpc.health.v1 Check for in-process callers.
func (s *Server) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func statusOf(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
