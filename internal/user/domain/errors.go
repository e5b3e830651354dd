package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("conflict")

	ErrEmailRequired      = &ValidationError{Field: FieldEmail, Reason: "email is required"}
	ErrInvalidEmail       = &ValidationError{Field: FieldEmail, Reason: "email is malformed"}
	ErrIdentifierRequired = &ValidationError{Field: "identifiers", Reason: "one of username, badge barcode or badge RFID is required"}
	ErrPrivilegedFlags    = &ValidationError{Field: "privileged", Reason: "privileged accounts must stay active, staff and superuser"}

	ErrNotFound            = errors.New("user not found")
	ErrAmbiguousIdentifier = errors.New("identifier matches more than one active user")
	ErrNotPrivileged       = errors.New("user is not privileged")
	ErrPrivilegedUser      = errors.New("privileged users must be removed through the privileged path")
	ErrAlreadyInactive     = errors.New("user is already inactive")
	ErrLastPrivileged      = fmt.Errorf("%w: cannot deactivate the last active privileged user", ErrConflict)
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrLoginMethodDisabled = errors.New("login method disabled for organization")
)

// Identifier field names used in validation and conflict errors.
const (
	FieldEmail        = "email"
	FieldUsername     = "username"
	FieldBadgeBarcode = "badge_barcode"
	FieldBadgeRFID    = "badge_rfid"
)

// ValidationError reports an input that was rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) true for every validation error and lets sentinel
// validation errors match by field and reason.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	t, ok := target.(*ValidationError)
	return ok && t.Field == e.Field && t.Reason == e.Reason
}

// ConflictError reports that an active user already holds Value for Field.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("an active user already has %s %q", e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
