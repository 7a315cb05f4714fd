package spam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nchat/trustplane/internal/clock"
)

func TestAnalyze_BelowMinLength(t *testing.T) {
	d := NewDetector(Config{MinContentLength: 10})
	res := d.Analyze("hi", Context{UserID: "u1"})
	assert.False(t, res.IsSpam)
}

func TestAnalyze_TrustedUserShortCircuits(t *testing.T) {
	d := NewDetector(Config{})
	d.MarkTrusted("u1")
	res := d.Analyze("BUY NOW!!! CLICK HERE FREE MONEY $$$$$$$$", Context{UserID: "u1"})
	assert.False(t, res.IsSpam)
}

func TestAnalyze_CapsSpam(t *testing.T) {
	d := NewDetector(Config{SpamThreshold: 0.2})
	res := d.Analyze("THIS IS ALL UPPERCASE SHOUTING CONTENT", Context{UserID: "u1"})
	assert.True(t, res.IsSpam)
	assert.Contains(t, res.Categories, CategoryCapsSpam)
}

func TestAnalyze_LinkFlooding(t *testing.T) {
	d := NewDetector(Config{LinkFloodThreshold: 2, SpamThreshold: 0.2})
	content := "check http://a.com and http://b.com and http://c.com and http://d.com"
	res := d.Analyze(content, Context{UserID: "u1"})
	assert.True(t, res.IsSpam)
	assert.Contains(t, res.Categories, CategoryLinkFlooding)
}

func TestAnalyze_RuleMatchForcesSpam(t *testing.T) {
	d := NewDetector(Config{})
	require.NoError(t, d.AddRule(Rule{ID: "r1", Type: RuleKeyword, Pattern: "viagra", Severity: SeverityHigh}))
	res := d.Analyze("buy cheap Viagra online now", Context{UserID: "u1"})
	assert.True(t, res.IsSpam)
	assert.Contains(t, res.MatchedRules, "r1")
	assert.Equal(t, SeverityHigh, res.Severity)
}

func TestAnalyze_RuleExemptRole(t *testing.T) {
	d := NewDetector(Config{})
	require.NoError(t, d.AddRule(Rule{ID: "r1", Type: RuleKeyword, Pattern: "viagra", ExemptRoles: []string{"moderator"}}))
	res := d.Analyze("buy cheap viagra online now", Context{UserID: "u1", UserRole: "moderator"})
	assert.NotContains(t, res.MatchedRules, "r1")
}

func TestAnalyze_DomainRule(t *testing.T) {
	d := NewDetector(Config{})
	require.NoError(t, d.AddRule(Rule{ID: "r1", Type: RuleDomain, Pattern: "spamhost.com"}))
	res := d.Analyze("visit http://evil.spamhost.com/path for a deal", Context{UserID: "u1"})
	assert.Contains(t, res.MatchedRules, "r1")
}

func TestAnalyze_RapidFire(t *testing.T) {
	fc := clock.NewFake(time.Now())
	d := NewDetectorWithClock(Config{RapidFireCount: 3, RapidFireWindowMs: 60000, SpamThreshold: 0.9}, fc)
	for i := 0; i < 3; i++ {
		d.Analyze("hello there friend", Context{UserID: "u1"})
		fc.Advance(time.Second)
	}
	res := d.Analyze("hello there friend", Context{UserID: "u1"})
	assert.Contains(t, res.Categories, CategoryRapidFire)
}

func TestAnalyze_RepetitiveCrossMessage(t *testing.T) {
	d := NewDetector(Config{SpamThreshold: 0.3})
	msg := "join my discord server for free nitro giveaway now"
	d.Analyze(msg, Context{UserID: "u1"})
	res := d.Analyze(msg, Context{UserID: "u1"})
	assert.Contains(t, res.Categories, CategoryRepetitive)
}

func TestQuickCheck_NeverLessStrictThanAnalyze(t *testing.T) {
	d := NewDetector(Config{})
	require.NoError(t, d.AddRule(Rule{ID: "r1", Type: RuleKeyword, Pattern: "viagra"}))

	quick := d.QuickCheck("buy viagra today", Context{UserID: "u1"})
	full := d.Analyze("buy viagra today", Context{UserID: "u2"})
	assert.True(t, quick)
	assert.True(t, full.IsSpam)
}

func TestQuickCheck_BelowMinLength(t *testing.T) {
	d := NewDetector(Config{MinContentLength: 10})
	assert.False(t, d.QuickCheck("hi", Context{UserID: "u1"}))
}
