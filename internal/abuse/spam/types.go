// Package spam implements the Spam Detector: a weighted heuristic pipeline
// plus host-configured rule evaluation (keyword/regex/domain) over message
// content, composing into a single score and severity.
//
// Grounded on the teacher's internal/reputation/reputation_manager.go
// weighted-score composition pattern (successRate blended with a decay
// factor into one trust number); generalized here to a sum of independently
// weighted spam signals clamped into [0,1].
package spam

// Category names one heuristic signal or a matched-rule category.
type Category string

const (
	CategoryCapsSpam      Category = "caps_spam"
	CategoryLinkFlooding   Category = "link_flooding"
	CategoryMentionSpam    Category = "mention_spam"
	CategoryEmojiSpam      Category = "emoji_spam"
	CategoryUnicodeAbuse   Category = "unicode_abuse"
	CategoryRepetitive     Category = "repetitive_content"
	CategoryRapidFire      Category = "rapid_fire"
	CategoryBlocklistMatch Category = "blocklist_match"
)

// Severity is the escalation level of a spam verdict.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action is what the detector recommends the caller do about a verdict.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionFlag   Action = "flag"
	ActionHold   Action = "hold"
	ActionBlock  Action = "block"
)

// Context accompanies a piece of content being analyzed.
type Context struct {
	UserID      string
	ChannelID   string
	UserRole    string
	WorkspaceID string
}

// RuleType selects how a Rule's Pattern is evaluated.
type RuleType string

const (
	RuleKeyword RuleType = "keyword"
	RuleRegex   RuleType = "regex"
	RuleDomain  RuleType = "domain"
)

// Rule is one host-configured content rule.
type Rule struct {
	ID          string
	Type        RuleType
	Pattern     string
	Severity    Severity
	ExemptRoles []string
}

// Config tunes heuristic thresholds and weights. Zero-valued fields fall
// back to sane defaults via withDefaults.
type Config struct {
	MinContentLength int

	CapsRatioThreshold float64
	CapsMinLength      int

	LinkFloodThreshold int

	MentionFloodThreshold int

	EmojiRatioThreshold float64

	ZalgoDensityThreshold     float64
	DisallowedCategoryRatio   float64

	RepetitionNgramSize       int
	RepetitionRatioThreshold  float64
	RecentMessageHistory      int // K, number of past messages kept per user

	RapidFireCount  int
	RapidFireWindowMs int64

	SpamThreshold float64 // default 0.6; presets: low 0.75, medium 0.6, high 0.45

	Weights map[Category]float64
}

// PresetStrict is the "low" strictness preset name in spec terms (threshold
// 0.75 — the loosest, flags only egregious content).
const PresetLoose = 0.75

// PresetBalanced is the default spam threshold (0.6).
const PresetBalanced = 0.6

// PresetStrict is the "high" strictness preset (threshold 0.45 — flags more
// aggressively).
const PresetStrict = 0.45

func defaultWeights() map[Category]float64 {
	return map[Category]float64{
		CategoryCapsSpam:    0.25,
		CategoryLinkFlooding: 0.3,
		CategoryMentionSpam:  0.25,
		CategoryEmojiSpam:    0.2,
		CategoryUnicodeAbuse: 0.3,
		CategoryRepetitive:   0.35,
		CategoryRapidFire:    0.35,
	}
}

func (c Config) withDefaults() Config {
	if c.MinContentLength <= 0 {
		c.MinContentLength = 3
	}
	if c.CapsRatioThreshold <= 0 {
		c.CapsRatioThreshold = 0.7
	}
	if c.CapsMinLength <= 0 {
		c.CapsMinLength = 10
	}
	if c.LinkFloodThreshold <= 0 {
		c.LinkFloodThreshold = 3
	}
	if c.MentionFloodThreshold <= 0 {
		c.MentionFloodThreshold = 5
	}
	if c.EmojiRatioThreshold <= 0 {
		c.EmojiRatioThreshold = 0.5
	}
	if c.ZalgoDensityThreshold <= 0 {
		c.ZalgoDensityThreshold = 0.3
	}
	if c.DisallowedCategoryRatio <= 0 {
		c.DisallowedCategoryRatio = 0.1
	}
	if c.RepetitionNgramSize <= 0 {
		c.RepetitionNgramSize = 3
	}
	if c.RepetitionRatioThreshold <= 0 {
		c.RepetitionRatioThreshold = 0.5
	}
	if c.RecentMessageHistory <= 0 {
		c.RecentMessageHistory = 5
	}
	if c.RapidFireCount <= 0 {
		c.RapidFireCount = 5
	}
	if c.RapidFireWindowMs <= 0 {
		c.RapidFireWindowMs = 60000
	}
	if c.SpamThreshold <= 0 {
		c.SpamThreshold = PresetBalanced
	}
	if c.Weights == nil {
		c.Weights = defaultWeights()
	}
	return c
}

// Signal is one heuristic's output.
type Signal struct {
	Category Category
	Value    float64 // in [0,1]
	Fired    bool
}

// Result is the full analysis output for one piece of content.
type Result struct {
	IsSpam         bool
	Score          float64
	Severity       Severity
	Categories     []Category
	Heuristics     []Signal
	MatchedRules   []string
	SuggestedAction Action
	Metadata       map[string]interface{}
}
