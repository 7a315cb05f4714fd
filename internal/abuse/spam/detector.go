package spam

import (
	"sync"

	"github.com/nchat/trustplane/internal/clock"
)

// Detector analyzes content for spam using a weighted heuristic pipeline
// augmented by host-configured rules. It owns per-user recent-message
// history (bounded to Config.RecentMessageHistory entries) used by the
// repetitive-content and rapid-fire heuristics.
type Detector struct {
	mu sync.RWMutex

	cfg     Config
	rules   []compiledRule
	trusted map[string]bool
	history map[string][]recentMessage // userID -> recent messages, newest last

	clock clock.Clock
}

// NewDetector creates a Detector with the given config (zero-valued fields
// fall back to defaults).
func NewDetector(cfg Config) *Detector {
	return NewDetectorWithClock(cfg, clock.Real{})
}

// NewDetectorWithClock is NewDetector with an injected clock, for
// deterministic rapid-fire-window testing.
func NewDetectorWithClock(cfg Config, c clock.Clock) *Detector {
	return &Detector{
		cfg:     cfg.withDefaults(),
		trusted: make(map[string]bool),
		history: make(map[string][]recentMessage),
		clock:   c,
	}
}

// AddRule registers a host rule. Regex rules are compiled defensively; a
// malformed pattern is rejected instead of being silently ignored or
// panicking during analysis.
func (d *Detector) AddRule(r Rule) error {
	cr, err := compileRule(r)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules = append(d.rules, cr)
	return nil
}

// MarkTrusted exempts userID from all spam analysis.
func (d *Detector) MarkTrusted(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trusted[userID] = true
}

// QuickCheck is a fast path consulting only the blocklist rules (keyword
// and domain rules) and the caps heuristic. It is a strict subset of
// Analyze's positives: anything QuickCheck flags, Analyze also flags,
// because it reuses the identical rule set and heuristic, just without the
// full signal composition.
func (d *Detector) QuickCheck(content string, ctx Context) bool {
	if len(content) < d.cfg.MinContentLength {
		return false
	}
	d.mu.RLock()
	trusted := d.trusted[ctx.UserID]
	rules := append([]compiledRule(nil), d.rules...)
	cfg := d.cfg
	d.mu.RUnlock()

	if trusted {
		return false
	}

	for _, cr := range evaluateRules(content, ctx, rules) {
		if cr.rule.Type == RuleKeyword || cr.rule.Type == RuleDomain {
			return true
		}
	}

	caps := capsSpamSignal(content, cfg)
	return caps.Fired
}

// Analyze runs the full heuristic + rule pipeline over content.
func (d *Detector) Analyze(content string, ctx Context) Result {
	if len(content) < d.cfg.MinContentLength {
		return Result{SuggestedAction: ActionAllow, Metadata: map[string]interface{}{"reason": "below_min_length"}}
	}

	d.mu.Lock()
	if d.trusted[ctx.UserID] {
		d.mu.Unlock()
		return Result{SuggestedAction: ActionAllow, Metadata: map[string]interface{}{"reason": "trusted_user"}}
	}
	cfg := d.cfg
	rules := append([]compiledRule(nil), d.rules...)
	history := append([]recentMessage(nil), d.history[ctx.UserID]...)
	now := d.clock.Now().UnixMilli()

	timestamps := make([]int64, len(history))
	for i, h := range history {
		timestamps[i] = h.timestamp
	}

	d.appendHistoryLocked(ctx.UserID, content, now)
	d.mu.Unlock()

	signals := []Signal{
		capsSpamSignal(content, cfg),
		linkFloodingSignal(content, cfg),
		mentionSpamSignal(content, cfg),
		emojiSpamSignal(content, cfg),
		unicodeAbuseSignal(content, cfg),
		repetitiveContentSignal(content, history, cfg),
		rapidFireSignal(timestamps, now, cfg),
	}

	var score float64
	var categories []Category
	for _, s := range signals {
		if s.Fired {
			score += cfg.Weights[s.Category] * s.Value
			categories = append(categories, s.Category)
		}
	}
	score = clamp01(score)

	matched := evaluateRules(content, ctx, rules)
	var matchedIDs []string
	var ruleSeverity Severity
	for _, cr := range matched {
		matchedIDs = append(matchedIDs, cr.rule.ID)
		categories = append(categories, CategoryBlocklistMatch)
		if severityRank(cr.rule.Severity) > severityRank(ruleSeverity) {
			ruleSeverity = cr.rule.Severity
		}
	}

	isSpam := score >= cfg.SpamThreshold || len(matched) > 0

	severity := severityForScore(score)
	if severityRank(ruleSeverity) > severityRank(severity) {
		severity = ruleSeverity
	}
	if uniqueCategoryCount(categories) >= 2 || score >= 0.85 {
		severity = escalate(severity)
	}

	action := ActionAllow
	if isSpam {
		switch severity {
		case SeverityLow:
			action = ActionFlag
		case SeverityMedium:
			action = ActionHold
		case SeverityHigh, SeverityCritical:
			action = ActionBlock
		}
	}

	return Result{
		IsSpam:          isSpam,
		Score:           score,
		Severity:        severity,
		Categories:      dedupCategories(categories),
		Heuristics:      signals,
		MatchedRules:    matchedIDs,
		SuggestedAction: action,
		Metadata:        map[string]interface{}{},
	}
}

func (d *Detector) appendHistoryLocked(userID, content string, now int64) {
	h := append(d.history[userID], recentMessage{content: content, timestamp: now})
	if len(h) > d.cfg.RecentMessageHistory {
		h = h[len(h)-d.cfg.RecentMessageHistory:]
	}
	d.history[userID] = h
}

func severityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

func severityForScore(score float64) Severity {
	switch {
	case score >= 0.85:
		return SeverityCritical
	case score >= 0.6:
		return SeverityHigh
	case score >= 0.3:
		return SeverityMedium
	case score > 0:
		return SeverityLow
	default:
		return SeverityLow
	}
}

func escalate(s Severity) Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	case SeverityHigh, SeverityCritical:
		return SeverityCritical
	default:
		return s
	}
}

func uniqueCategoryCount(cats []Category) int {
	seen := make(map[Category]bool)
	for _, c := range cats {
		seen[c] = true
	}
	return len(seen)
}

func dedupCategories(cats []Category) []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, c := range cats {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
