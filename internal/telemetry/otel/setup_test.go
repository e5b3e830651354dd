package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "   "} {
		p, err := NewProviders(context.Background(), endpoint, "gwiit-test", false, nil)
		require.NoError(t, err)
		require.NotNil(t, p.TracerProvider)
		require.NotNil(t, p.MeterProvider)
		require.NotNil(t, p.LoggerProvider)
		assert.NoError(t, p.Shutdown(context.Background()))
	}
}

func TestNewProviders_InvalidURL(t *testing.T) {
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		_, err := NewProviders(context.Background(), endpoint, "gwiit-test", false, nil)
		assert.Error(t, err, endpoint)
	}
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		in       string
		override bool
		target   string
		insecure bool
	}{
		{"localhost:4317", false, "localhost:4317", true},
		{"http://collector:4317/v1/traces", false, "collector:4317", true},
		{"https://collector:4317", false, "collector:4317", false},
		{"https://collector:4317", true, "collector:4317", true},
	}
	for _, tc := range cases {
		target, insecure, err := parseEndpoint(tc.in, tc.override)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.target, target, tc.in)
		assert.Equal(t, tc.insecure, insecure, tc.in)
	}
}

func TestSetGlobal_WithProviders(t *testing.T) {
	p, err := NewProviders(context.Background(), "", "gwiit-test", false, nil)
	require.NoError(t, err)
	oldTP, oldMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	})
	p.SetGlobal()
	assert.Same(t, p.TracerProvider, otel.GetTracerProvider())
	assert.Same(t, p.MeterProvider, otel.GetMeterProvider())
}
