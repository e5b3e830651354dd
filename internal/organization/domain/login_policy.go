package domain

// Login methods, named after the user identifier fields they match.
const (
	LoginEmail        = "email"
	LoginUsername     = "username"
	LoginBadgeBarcode = "badge_barcode"
	LoginBadgeRFID    = "badge_rfid"
)

// LoginPolicy restricts which identifiers members of an organization may log in with. Stored
// as JSON; a nil entry falls back to the default.
type LoginPolicy struct {
	AllowEmail        *bool `json:"allow_email,omitempty"`
	AllowUsername     *bool `json:"allow_username,omitempty"`
	AllowBadgeBarcode *bool `json:"allow_badge_barcode,omitempty"`
	AllowBadgeRFID    *bool `json:"allow_badge_rfid,omitempty"`
}

// DefaultLoginPolicy allows every method.
func DefaultLoginPolicy() LoginPolicy {
	return LoginPolicy{
		AllowEmail:        ptr(true),
		AllowUsername:     ptr(true),
		AllowBadgeBarcode: ptr(true),
		AllowBadgeRFID:    ptr(true),
	}
}

// MergeWithDefaults returns a copy of p with nil entries replaced by defaults.
func MergeWithDefaults(p *LoginPolicy) *LoginPolicy {
	d := DefaultLoginPolicy()
	if p == nil {
		return &d
	}
	out := *p
	if out.AllowEmail == nil {
		out.AllowEmail = d.AllowEmail
	}
	if out.AllowUsername == nil {
		out.AllowUsername = d.AllowUsername
	}
	if out.AllowBadgeBarcode == nil {
		out.AllowBadgeBarcode = d.AllowBadgeBarcode
	}
	if out.AllowBadgeRFID == nil {
		out.AllowBadgeRFID = d.AllowBadgeRFID
	}
	return &out
}

// Allows reports whether method is enabled. Unknown methods are refused. p must be merged.
func (p *LoginPolicy) Allows(method string) bool {
	var v *bool
	switch method {
	case LoginEmail:
		v = p.AllowEmail
	case LoginUsername:
		v = p.AllowUsername
	case LoginBadgeBarcode:
		v = p.AllowBadgeBarcode
	case LoginBadgeRFID:
		v = p.AllowBadgeRFID
	}
	return v != nil && *v
}

func ptr[T any](v T) *T { return &v }
