// Package quota implements the Rate Limiter: per-action, per-identifier
// token-bucket style admission control with an independent inner burst
// window, channel/user/scope overrides, and violation escalation tracking.
//
// Grounded on the teacher's internal/middleware/rate_limiter.go — the
// read-first RWMutex pattern (fast path under RLock, double-checked
// write lock for new windows) carries over unchanged; the single
// MaxCallsPerMinute/BurstSize pair generalizes to the spec's full
// per-action, per-scope, per-channel override hierarchy with an
// independent burst sub-window and two-phase atomic multi-check.
package quota

import "time"

// Action is an abstract, open-ended action identifier (e.g. "message",
// "reaction", "api_call", "file_upload").
type Action string

const (
	ActionMessage    Action = "message"
	ActionReaction   Action = "reaction"
	ActionAPICall    Action = "api_call"
	ActionFileUpload Action = "file_upload"
)

// Config is the rate-limit policy for one action.
type Config struct {
	Limit         int
	WindowMs      int64
	BurstLimit    int      // 0 means no separate burst allowance
	BurstWindowMs int64    // 0 means burst window == main window
	ExemptRoles   []string
	SkipTrusted   bool
}

// ScopeOverride is consulted when a scope tag is supplied to Check; the
// effective limit is reported as Limit + the caller's burst allowance,
// per the App rate limiter variant's semantics.
type ScopeOverride struct {
	Limit    int
	WindowMs int64
}

// CheckOptions parameterizes one admission check. Consumption behavior is
// selected by calling Limiter.Check (consumes on success) or Limiter.Probe
// (never consumes), matching the spec's check(..., consume=true) default.
type CheckOptions struct {
	ChannelID string
	UserRole  string
	Scope     string // if set, consults the scope-override table
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed        bool
	Remaining      int
	Limit          int
	BurstRemaining *int
	RetryAfter     *time.Duration
	ResetAt        time.Time
}

// Request is one (action, identifier) pair for CheckMultiple.
type Request struct {
	Action     Action
	Identifier string
	Opts       CheckOptions
}
