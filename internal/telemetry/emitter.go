// Package telemetry carries lifecycle events to the observability pipeline.
package telemetry

import (
	"context"
	"time"
)

// Outcome values for LifecycleEvent.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LifecycleEvent describes one operation on a record. It never carries credentials.
type LifecycleEvent struct {
	Operation string
	Domain    string
	RecordID  int64
	ActorID   int64
	Outcome   string
	Reason    string
	At        time.Time
}

// EventEmitter emits lifecycle events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, ev LifecycleEvent) error
}

// Nop drops events.
type Nop struct{}

func (Nop) Emit(context.Context, LifecycleEvent) error { return nil }
