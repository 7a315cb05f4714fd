package raid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nchat/trustplane/internal/clock"
)

func newJoin(workspace, userID, username string, accountAge time.Duration, now time.Time) JoinEvent {
	return JoinEvent{
		UserID:         userID,
		Username:       username,
		WorkspaceID:    workspace,
		AccountCreated: now.Add(-accountAge),
		JoinedAt:       now,
	}
}

func TestRecordJoin_MassJoinDetection(t *testing.T) {
	fc := clock.NewFake(time.Now())
	p := NewProtectorWithClock(Config{VelocityThreshold: 5, VelocityCriticalThreshold: 20}, fc)

	var last JoinResult
	for i := 0; i < 6; i++ {
		last = p.RecordJoin(newJoin("ws1", userID(i), "user"+userID(i), 365*24*time.Hour, fc.Now()))
		fc.Advance(time.Second)
	}
	assert.True(t, last.Allowed)
	assert.Contains(t, last.Analysis.RaidTypes, RaidMassJoin)
}

func userID(i int) string {
	return string(rune('a' + i))
}

func TestRecordJoin_AccountWave(t *testing.T) {
	fc := clock.NewFake(time.Now())
	p := NewProtectorWithClock(Config{VelocityThreshold: 100, NewAccountThreshold: 0.5, NewAccountAgeDays: 7}, fc)

	for i := 0; i < 4; i++ {
		p.RecordJoin(newJoin("ws1", userID(i), "user"+userID(i), time.Hour, fc.Now()))
	}
	last := p.RecordJoin(newJoin("ws1", "z", "userz", time.Hour, fc.Now()))
	assert.Contains(t, last.Analysis.RaidTypes, RaidAccountWave)
}

func TestRecordJoin_WindowEviction(t *testing.T) {
	fc := clock.NewFake(time.Now())
	p := NewProtectorWithClock(Config{WindowMs: 1000, VelocityThreshold: 3}, fc)

	p.RecordJoin(newJoin("ws1", "a", "usera", 0, fc.Now()))
	fc.Advance(2 * time.Second)
	res := p.RecordJoin(newJoin("ws1", "b", "userb", 0, fc.Now()))
	assert.Equal(t, 1, res.Analysis.JoinVelocity) // "a" evicted, only "b" remains
}

func TestAutoLockdown_BlocksSubsequentJoins(t *testing.T) {
	fc := clock.NewFake(time.Now())
	p := NewProtectorWithClock(Config{
		VelocityThreshold:         3,
		VelocityCriticalThreshold: 3,
		AutoLockdownEnabled:       true,
		AutoLockdownThreshold:     SeverityCritical,
		AutoLockdownLevel:         LockdownFull,
	}, fc)

	for i := 0; i < 3; i++ {
		p.RecordJoin(newJoin("ws1", userID(i), "user"+userID(i), 365*24*time.Hour, fc.Now()))
	}

	assert.Equal(t, LockdownFull, p.LockdownLevel("ws1"))
	res := p.RecordJoin(newJoin("ws1", "blocked-user", "blockeduser", 365*24*time.Hour, fc.Now()))
	assert.False(t, res.Allowed)
}

func TestLockdown_AutoLiftAfterDuration(t *testing.T) {
	fc := clock.NewFake(time.Now())
	p := NewProtectorWithClock(Config{}, fc)
	p.ActivateLockdown("ws1", LockdownPartial, time.Minute)
	assert.Equal(t, LockdownPartial, p.LockdownLevel("ws1"))

	fc.Advance(2 * time.Minute)
	assert.Equal(t, LockdownNone, p.LockdownLevel("ws1"))
}

func TestLockdown_ExemptRole(t *testing.T) {
	fc := clock.NewFake(time.Now())
	p := NewProtectorWithClock(Config{}, fc)
	p.ActivateLockdown("ws1", LockdownFull, 0)

	allowed, reason := p.IsActionAllowed("ws1", ActionJoin, "")
	assert.False(t, allowed)
	assert.NotEmpty(t, reason)
}

func TestInviteLedger_SuspiciousUse(t *testing.T) {
	fc := clock.NewFake(time.Now())
	p := NewProtectorWithClock(Config{InviteSuspiciousUseThreshold: 2}, fc)
	p.RegisterInvite("abc123", "owner")

	for i := 0; i < 3; i++ {
		p.RecordJoin(newJoin("ws1", userID(i), "user"+userID(i), 0, fc.Now()))
		p.RecordJoin(JoinEvent{UserID: userID(i), WorkspaceID: "ws1", InviteCode: "abc123", JoinedAt: fc.Now(), AccountCreated: fc.Now()})
	}

	suspicious := p.SuspiciousInvites()
	assert := assert.New(t)
	assert.Len(suspicious, 1)
	assert.Equal("abc123", suspicious[0].Code)
}

func TestBanRaidParticipants_ReturnsDistinctUserIDs(t *testing.T) {
	fc := clock.NewFake(time.Now())
	p := NewProtectorWithClock(Config{}, fc)
	p.RecordJoin(newJoin("ws1", "a", "usera", 0, fc.Now()))
	p.RecordJoin(newJoin("ws1", "b", "userb", 0, fc.Now()))
	p.RecordJoin(newJoin("ws1", "a", "usera", 0, fc.Now())) // rejoin, must not duplicate

	participants := p.BanRaidParticipants("ws1", "raid_1", "moderator1")
	assert.ElementsMatch(t, []string{"a", "b"}, participants)

	log := p.MitigationLog("raid_1")
	assert.Len(t, log, 1)
	assert.Equal(t, "ban_intent_surfaced", log[0].Action)
}

func TestSimilarUsernameClustering(t *testing.T) {
	cluster := largestSimilarUsernameCluster([]string{"alice1", "alice2", "alice3", "bob"}, 1)
	assert.Equal(t, 3, cluster)
}
