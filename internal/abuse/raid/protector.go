package raid

import (
	"sync"
	"time"

	"github.com/nchat/trustplane/internal/clock"
	"github.com/nchat/trustplane/internal/ids"
)

// Protector is the Raid Protection component: rolling join windows per
// workspace, pattern analysis, lockdown enforcement, and an invite ledger.
type Protector struct {
	mu sync.Mutex

	cfg       Config
	windows   map[string][]JoinEvent // workspaceID -> join events in window, oldest first
	lockdowns *lockdownManager
	invites   *inviteLedger

	mitigations map[string][]MitigationRecord // raidID -> append-only log
	activeRaid  map[string]string             // workspaceID -> most recent raidID

	clock clock.Clock
}

// NewProtector creates a Protector with the given config.
func NewProtector(cfg Config) *Protector {
	return NewProtectorWithClock(cfg, clock.Real{})
}

// NewProtectorWithClock is NewProtector with an injected clock.
func NewProtectorWithClock(cfg Config, c clock.Clock) *Protector {
	return &Protector{
		cfg:         cfg.withDefaults(),
		windows:     make(map[string][]JoinEvent),
		lockdowns:   newLockdownManager(c),
		invites:     newInviteLedger(),
		mitigations: make(map[string][]MitigationRecord),
		activeRaid:  make(map[string]string),
		clock:       c,
	}
}

// RecordJoin appends a join event to its workspace's rolling window,
// evicts events outside the window, re-analyzes the pattern, and — if
// configured — escalates into an auto-lockdown.
func (p *Protector) RecordJoin(e JoinEvent) JoinResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if allowed, reason := p.lockdowns.isActionAllowed(e.WorkspaceID, ActionJoin, ""); !allowed {
		return JoinResult{Allowed: false, Reason: reason}
	}
	if e.ChannelID != "" {
		if allowed, reason := p.lockdowns.isActionAllowed(e.WorkspaceID+":"+e.ChannelID, ActionJoin, ""); !allowed {
			return JoinResult{Allowed: false, Reason: reason}
		}
	}

	now := p.clock.Now()
	nowMs := now.UnixMilli()
	events := append(p.windows[e.WorkspaceID], e)
	events = evictOlderThan(events, nowMs, p.cfg.WindowMs)
	p.windows[e.WorkspaceID] = events

	if e.InviteCode != "" {
		p.invites.recordUse(e.InviteCode, e.UserID)
	}

	analysis := analyzeJoinPatterns(events, nowMs, p.cfg)

	if len(analysis.RaidTypes) > 0 {
		raidID := p.activeRaid[e.WorkspaceID]
		if raidID == "" {
			raidID = ids.New("raid_")
			p.activeRaid[e.WorkspaceID] = raidID
		}
		p.recordMitigationLocked(raidID, "pattern_detected", "system", now, string(analysis.RaidTypes[0]))

		if p.cfg.AutoLockdownEnabled && severityRank(analysis.Severity) >= severityRank(p.cfg.AutoLockdownThreshold) {
			p.lockdowns.activate(e.WorkspaceID, p.cfg.AutoLockdownLevel, p.cfg.AutoLockdownDuration)
			p.recordMitigationLocked(raidID, "auto_lockdown", "system", now, string(p.cfg.AutoLockdownLevel))
		}
	} else {
		delete(p.activeRaid, e.WorkspaceID)
	}

	return JoinResult{Allowed: true, Analysis: &analysis}
}

func evictOlderThan(events []JoinEvent, nowMs, windowMs int64) []JoinEvent {
	cut := 0
	for cut < len(events) && nowMs-events[cut].JoinedAt.UnixMilli() > windowMs {
		cut++
	}
	if cut == 0 {
		return events
	}
	return append([]JoinEvent(nil), events[cut:]...)
}

func (p *Protector) recordMitigationLocked(raidID, action, actor string, ts time.Time, detail string) {
	p.mitigations[raidID] = append(p.mitigations[raidID], MitigationRecord{
		RaidID: raidID, Action: action, Actor: actor, Timestamp: ts, Detail: detail,
	})
}

// MitigationLog returns the append-only mitigation history for a raid.
func (p *Protector) MitigationLog(raidID string) []MitigationRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MitigationRecord(nil), p.mitigations[raidID]...)
}

// Lockdown exposes the lockdown controls (activate/lift/check) for a key
// (workspaceID, or "workspaceID:channelID").
func (p *Protector) ActivateLockdown(key string, level LockdownLevel, duration time.Duration) {
	p.lockdowns.activate(key, level, duration)
}

func (p *Protector) LiftLockdown(key string) {
	p.lockdowns.lift(key)
}

func (p *Protector) LockdownLevel(key string) LockdownLevel {
	return p.lockdowns.current(key)
}

func (p *Protector) IsActionAllowed(key string, action Action, role string) (bool, string) {
	return p.lockdowns.isActionAllowed(key, action, role)
}

// RegisterInvite, RevokeInvite, and SuspiciousInvites expose the invite
// ledger.
func (p *Protector) RegisterInvite(code, createdBy string) {
	p.invites.register(code, createdBy)
}

func (p *Protector) RevokeInvite(code string) {
	p.invites.revoke(code)
}

func (p *Protector) SuspiciousInvites() []*Invite {
	return p.invites.suspicious(p.cfg.InviteSuspiciousUseThreshold)
}

// BanRaidParticipants returns the distinct user IDs that joined during the
// named raid's window. It does not itself ban anyone — the raid protection
// component surfaces intent; the host performs the ban.
func (p *Protector) BanRaidParticipants(workspaceID, raidID, actor string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool)
	var participants []string
	for _, e := range p.windows[workspaceID] {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			participants = append(participants, e.UserID)
		}
	}
	p.recordMitigationLocked(raidID, "ban_intent_surfaced", actor, p.clock.Now(), "")
	return participants
}
