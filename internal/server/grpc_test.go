package server

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	healthhandler "gwiit/backend/internal/health/handler"
)

func serviceNames(deps Deps) []string {
	log, _ := test.NewNullLogger()
	s := NewServer(log)
	defer s.Stop()
	RegisterServices(s, deps)
	var names []string
	for name := range s.GetServiceInfo() {
		names = append(names, name)
	}
	return names
}

func TestRegisterServices_HealthAndReflection(t *testing.T) {
	names := serviceNames(Deps{Health: healthhandler.NewServer(nil, nil, nil), Reflection: true})
	assert.Contains(t, names, "grpc.health.v1.Health")
	assert.Contains(t, names, "grpc.reflection.v1.ServerReflection")
}

func TestRegisterServices_Empty(t *testing.T) {
	assert.Empty(t, serviceNames(Deps{}))
}
