package domain

import "time"

// Actions recorded for record lifecycle events.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDeactivate = "deactivate"
	ActionPurge      = "purge"
	ActionDelete     = "delete"
	ActionLogin      = "login"
	ActionLoginFail  = "login_failure"
)

// AuditLog represents an audit event. It lives in the default store; ActorID and RecordID are
// surrogate references into the store of Domain.
type AuditLog struct {
	ID        string
	ActorID   int64
	Action    string
	Domain    string
	RecordID  int64
	Metadata  string
	CreatedAt time.Time
}
