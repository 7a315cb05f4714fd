package privacy

import "time"

// AuditAction names the kind of event recorded in the audit log.
type AuditAction string

const (
	AuditCreated        AuditAction = "settings_created"
	AuditUpdated        AuditAction = "settings_updated"
	AuditLevelChanged   AuditAction = "level_changed"
	AuditConsentChanged AuditAction = "consent_changed"
)

// AuditEntry is one append-only, immutable audit record.
type AuditEntry struct {
	Action    AuditAction
	UserID    string
	Timestamp time.Time
	Before    *Settings
	After     *Settings
}

// AuditFilter narrows AuditLog results; zero-value fields are wildcards.
type AuditFilter struct {
	UserID string
	Action AuditAction
	Since  time.Time
}

func (f AuditFilter) matches(e AuditEntry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}
