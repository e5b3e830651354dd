package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"gwiit/backend/internal/telemetry"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func attrs(rec otellog.Record) map[string]otellog.Value {
	out := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	require.NotNil(t, em)
	assert.NoError(t, em.Emit(context.Background(), telemetry.LifecycleEvent{Operation: "create"}))
}

func TestNewEventEmitter_Provider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	assert.NoError(t, NewEventEmitter(provider).Emit(context.Background(), telemetry.LifecycleEvent{Operation: "create"}))
}

func TestEmit_AttributeMapping(t *testing.T) {
	c := &recordCapture{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := NewEventEmitterWithLogger(c).Emit(context.Background(), telemetry.LifecycleEvent{
		Operation: "deactivate_privileged", Domain: "identity", RecordID: 9, ActorID: 1,
		Outcome: telemetry.OutcomeRejected, Reason: "last privileged", At: at,
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.n)
	assert.Equal(t, at, c.rec.Timestamp())
	assert.Equal(t, "deactivate_privileged", c.rec.Body().AsString())
	assert.Equal(t, otellog.SeverityInfo, c.rec.Severity())

	a := attrs(c.rec)
	assert.Equal(t, "identity", a["domain"].AsString())
	assert.Equal(t, "rejected", a["outcome"].AsString())
	assert.Equal(t, int64(9), a["record_id"].AsInt64())
	assert.Equal(t, int64(1), a["actor_id"].AsInt64())
	assert.Equal(t, "last privileged", a["reason"].AsString())
}

func TestEmit_ErrorSeverityAndDefaults(t *testing.T) {
	c := &recordCapture{}
	require.NoError(t, NewEventEmitterWithLogger(c).Emit(context.Background(), telemetry.LifecycleEvent{Operation: "create", Outcome: telemetry.OutcomeError}))
	assert.Equal(t, otellog.SeverityError, c.rec.Severity())
	assert.False(t, c.rec.Timestamp().IsZero())
	a := attrs(c.rec)
	_, hasRecord := a["record_id"]
	assert.False(t, hasRecord)
}
