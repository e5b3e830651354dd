package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"gwiit/backend/internal/telemetry"
)

// InstrumentationName scopes every span, metric and log record the service produces.
const InstrumentationName = "gwiit.backend"

// recordEmitter is the slice of otellog.Logger the emitter uses; tests capture records with it.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return telemetry.Nop{}
	}
	return &otelEmitter{logger: provider.Logger(InstrumentationName)}
}

// NewEventEmitterWithLogger builds an emitter over any record sink.
func NewEventEmitterWithLogger(l recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: l}
}

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, ev telemetry.LifecycleEvent) error {
	rec := otellog.Record{}
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(ev.Operation))
	if ev.Outcome == telemetry.OutcomeError {
		rec.SetSeverity(otellog.SeverityError)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	rec.AddAttributes(
		otellog.String("operation", ev.Operation),
		otellog.String("domain", ev.Domain),
		otellog.String("outcome", ev.Outcome),
	)
	if ev.RecordID > 0 {
		rec.AddAttributes(otellog.Int64("record_id", ev.RecordID))
	}
	if ev.ActorID > 0 {
		rec.AddAttributes(otellog.Int64("actor_id", ev.ActorID))
	}
	if ev.Reason != "" {
		rec.AddAttributes(otellog.String("reason", ev.Reason))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
