package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nchat/trustplane/internal/clock"
)

func TestRateLimitBurst_S5(t *testing.T) {
	fc := clock.NewFake(time.Now())
	l := NewLimiterWithClock(map[Action]Config{
		ActionMessage: {Limit: 2, WindowMs: 60000, BurstLimit: 3, BurstWindowMs: 5000},
	}, fc)

	for i := 0; i < 5; i++ {
		res := l.Check(ActionMessage, "user1", CheckOptions{})
		assert.Truef(t, res.Allowed, "check %d should be allowed", i+1)
	}
	res := l.Check(ActionMessage, "user1", CheckOptions{})
	assert.False(t, res.Allowed)
	require.NotNil(t, res.RetryAfter)
}

func TestRateLimit_WindowReset(t *testing.T) {
	fc := clock.NewFake(time.Now())
	l := NewLimiterWithClock(map[Action]Config{
		ActionAPICall: {Limit: 1, WindowMs: 1000},
	}, fc)

	res := l.Check(ActionAPICall, "u", CheckOptions{})
	assert.True(t, res.Allowed)
	res = l.Check(ActionAPICall, "u", CheckOptions{})
	assert.False(t, res.Allowed)

	fc.Advance(1100 * time.Millisecond)
	res = l.Check(ActionAPICall, "u", CheckOptions{})
	assert.True(t, res.Allowed)
}

func TestRateLimit_ExemptRoleAndTrusted(t *testing.T) {
	fc := clock.NewFake(time.Now())
	l := NewLimiterWithClock(map[Action]Config{
		ActionMessage: {Limit: 1, WindowMs: 60000, ExemptRoles: []string{"admin"}, SkipTrusted: true},
	}, fc)

	for i := 0; i < 3; i++ {
		res := l.Check(ActionMessage, "admin-user", CheckOptions{UserRole: "admin"})
		assert.True(t, res.Allowed)
	}

	l.MarkTrusted("trusted-user")
	for i := 0; i < 3; i++ {
		res := l.Check(ActionMessage, "trusted-user", CheckOptions{})
		assert.True(t, res.Allowed)
	}
}

func TestRateLimit_UserOverridesChannelOverridesDefault(t *testing.T) {
	fc := clock.NewFake(time.Now())
	l := NewLimiterWithClock(map[Action]Config{
		ActionMessage: {Limit: 1, WindowMs: 60000},
	}, fc)
	l.SetChannelOverride(ActionMessage, "chan1", Config{Limit: 2, WindowMs: 60000})
	l.SetUserOverride(ActionMessage, "vip", Config{Limit: 5, WindowMs: 60000})

	for i := 0; i < 2; i++ {
		res := l.Check(ActionMessage, "regular", CheckOptions{ChannelID: "chan1"})
		assert.True(t, res.Allowed)
	}
	res := l.Check(ActionMessage, "regular", CheckOptions{ChannelID: "chan1"})
	assert.False(t, res.Allowed)

	for i := 0; i < 5; i++ {
		res := l.Check(ActionMessage, "vip", CheckOptions{ChannelID: "chan1"})
		assert.True(t, res.Allowed)
	}
}

func TestRateLimit_ScopeOverrideEffectiveLimit(t *testing.T) {
	fc := clock.NewFake(time.Now())
	l := NewLimiterWithClock(map[Action]Config{
		ActionAPICall: {Limit: 10, WindowMs: 60000, BurstLimit: 4},
	}, fc)
	l.SetScopeOverride("write:messages", ScopeOverride{Limit: 2, WindowMs: 60000})

	// effectiveLimit = scopeOverride.limit(2) + burstAllowance(4) = 6
	for i := 0; i < 6; i++ {
		res := l.Check(ActionAPICall, "app1", CheckOptions{Scope: "write:messages"})
		assert.Truef(t, res.Allowed, "check %d should be allowed", i+1)
		assert.Equal(t, 6, res.Limit)
	}
	res := l.Check(ActionAPICall, "app1", CheckOptions{Scope: "write:messages"})
	assert.False(t, res.Allowed)
}

func TestCheckMultiple_AllOrNothing(t *testing.T) {
	fc := clock.NewFake(time.Now())
	l := NewLimiterWithClock(map[Action]Config{
		ActionMessage:  {Limit: 1, WindowMs: 60000},
		ActionReaction: {Limit: 5, WindowMs: 60000},
	}, fc)

	// Exhaust message quota first.
	res := l.Check(ActionMessage, "u1", CheckOptions{})
	require.True(t, res.Allowed)

	allowed, results := l.CheckMultiple([]Request{
		{Action: ActionMessage, Identifier: "u1"},
		{Action: ActionReaction, Identifier: "u1"},
	})
	assert.False(t, allowed)
	require.Len(t, results, 2)
	assert.False(t, results[0].Allowed)
	assert.True(t, results[1].Allowed) // reported, but not consumed

	// Reaction counter must be untouched by the denied batch.
	res = l.Check(ActionReaction, "u1", CheckOptions{})
	assert.True(t, res.Allowed)
	assert.Equal(t, 3, res.Remaining) // 5 - 2 consumed (this call + nothing from the denied batch)
}

func TestCheckMultiple_AllAllowedConsumesAll(t *testing.T) {
	fc := clock.NewFake(time.Now())
	l := NewLimiterWithClock(map[Action]Config{
		ActionMessage:  {Limit: 2, WindowMs: 60000},
		ActionReaction: {Limit: 2, WindowMs: 60000},
	}, fc)

	allowed, results := l.CheckMultiple([]Request{
		{Action: ActionMessage, Identifier: "u1"},
		{Action: ActionReaction, Identifier: "u1"},
	})
	assert.True(t, allowed)
	require.Len(t, results, 2)
	assert.True(t, results[0].Allowed)
	assert.True(t, results[1].Allowed)

	res := l.Check(ActionMessage, "u1", CheckOptions{})
	assert.True(t, res.Allowed)
	res = l.Check(ActionMessage, "u1", CheckOptions{})
	assert.False(t, res.Allowed) // limit 2, already consumed 2
}

func TestViolationTrackingAndEscalation(t *testing.T) {
	fc := clock.NewFake(time.Now())
	l := NewLimiterWithClock(map[Action]Config{
		ActionMessage: {Limit: 1, WindowMs: 60000},
	}, fc)

	l.Check(ActionMessage, "spammer", CheckOptions{})
	for i := 0; i < 9; i++ {
		l.Check(ActionMessage, "spammer", CheckOptions{}) // all denied after the first
	}

	assert.True(t, l.IsRepeatOffender("spammer"))
	assert.InDelta(t, 4.0, l.EscalationMultiplier("spammer"), 0.001) // 1 + floor(9/3)
}
