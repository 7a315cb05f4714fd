// Package raid implements Raid Protection: a rolling join-event window per
// workspace/channel, pattern analysis (velocity, new-account share, single-
// invite-source share, similar-username clustering), a lockdown FSM, and an
// invite-use ledger.
//
// Grounded on the teacher's internal/middleware/rate_limiter.go sliding-
// window-with-background-cleanup shape, generalized from a scalar request
// counter to a timestamped event deque that feeds multi-signal pattern
// analysis, and on internal/federation/state_machine.go's transition-table
// pattern for the lockdown level FSM.
package raid

import "time"

// RaidType classifies the dominant pattern detected in a join burst.
type RaidType string

const (
	RaidMassJoin          RaidType = "mass_join"
	RaidAccountWave       RaidType = "account_wave"
	RaidInviteAbuse       RaidType = "invite_abuse"
	RaidCoordinatedAttack RaidType = "coordinated_attack"
)

// Severity is how urgently a detected raid needs a response.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// LockdownLevel is the FSM state restricting workspace/channel activity.
type LockdownLevel string

const (
	LockdownNone      LockdownLevel = "none"
	LockdownPartial   LockdownLevel = "partial"
	LockdownFull      LockdownLevel = "full"
	LockdownEmergency LockdownLevel = "emergency"
)

// Restrictions is the concrete preset of limits a LockdownLevel applies.
type Restrictions struct {
	BlockNewJoins       bool
	RequireVerification bool
	SlowmodeSeconds     int
	BlockDMs            bool
	ExemptRoles         []string
}

// presets maps each lockdown level to its restriction set. Exactly one
// lockdown is active per key at a time.
var presets = map[LockdownLevel]Restrictions{
	LockdownNone:      {},
	LockdownPartial:   {RequireVerification: true, SlowmodeSeconds: 10},
	LockdownFull:      {BlockNewJoins: true, RequireVerification: true, SlowmodeSeconds: 30},
	LockdownEmergency: {BlockNewJoins: true, RequireVerification: true, SlowmodeSeconds: 60, BlockDMs: true},
}

// JoinEvent is one member join observed by recordJoin.
type JoinEvent struct {
	UserID          string
	Username        string
	WorkspaceID     string
	ChannelID       string
	InviteCode      string
	AccountCreated  time.Time
	JoinedAt        time.Time
}

// JoinResult is the outcome of one recordJoin call.
type JoinResult struct {
	Allowed  bool
	Reason   string
	Analysis *Analysis
}

// Analysis is the output of analyzeJoinPatterns for one workspace.
type Analysis struct {
	JoinVelocity          int
	NewAccountPercentage  float64
	SingleSourcePercentage float64
	SimilarUsernames      int
	RaidTypes             []RaidType
	Severity              Severity
}

// Config tunes raid-detection thresholds.
type Config struct {
	WindowMs int64 // rolling join window, default 60000

	NewAccountAgeDays int // default 7

	VelocityThreshold         int // mass_join trigger
	VelocityCriticalThreshold int // critical severity trigger
	NewAccountThreshold       float64 // default 0.5
	SingleSourceThreshold     float64 // default 0.5
	UsernameEditDistance      int     // default 2

	AutoLockdownEnabled   bool
	AutoLockdownThreshold Severity // minimum severity to trigger auto-lockdown
	AutoLockdownLevel     LockdownLevel
	AutoLockdownDuration  time.Duration

	InviteSuspiciousUseThreshold int // default 20
}

func (c Config) withDefaults() Config {
	if c.WindowMs <= 0 {
		c.WindowMs = 60000
	}
	if c.NewAccountAgeDays <= 0 {
		c.NewAccountAgeDays = 7
	}
	if c.VelocityThreshold <= 0 {
		c.VelocityThreshold = 10
	}
	if c.VelocityCriticalThreshold <= 0 {
		c.VelocityCriticalThreshold = 30
	}
	if c.NewAccountThreshold <= 0 {
		c.NewAccountThreshold = 0.5
	}
	if c.SingleSourceThreshold <= 0 {
		c.SingleSourceThreshold = 0.5
	}
	if c.UsernameEditDistance <= 0 {
		c.UsernameEditDistance = 2
	}
	if c.AutoLockdownThreshold == "" {
		c.AutoLockdownThreshold = SeverityHigh
	}
	if c.AutoLockdownLevel == "" {
		c.AutoLockdownLevel = LockdownFull
	}
	if c.InviteSuspiciousUseThreshold <= 0 {
		c.InviteSuspiciousUseThreshold = 20
	}
	return c
}

// Invite is one registered invite code.
type Invite struct {
	Code      string
	CreatedBy string
	UseCount  int
	Joiners   []string
	Revoked   bool
}

// MitigationRecord is one append-only entry in a raid's mitigation log.
type MitigationRecord struct {
	RaidID    string
	Action    string
	Actor     string
	Timestamp time.Time
	Detail    string
}
