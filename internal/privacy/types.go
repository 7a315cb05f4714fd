// Package privacy implements per-user Privacy Settings: preset-layered
// defaults, bounded retention, a monotonic version counter, and an
// append-only filterable audit log.
//
// Grounded on the teacher's internal/governance configuration-layering
// idiom (apply a named preset, then overlay explicit field updates) and
// on the Mindburn-Labs-helm core/pkg/privacy package's PIIClassification
// split between "track nothing," "track with care," and "track freely"
// tiers — generalized here to the spec's four-level preset ladder.
package privacy

import "time"

// Level is a named privacy preset. Setting Level applies the preset's
// field values, then any explicit per-call overrides are layered on top.
type Level string

const (
	LevelMinimal  Level = "minimal"
	LevelBalanced Level = "balanced"
	LevelStrict   Level = "strict"
	LevelMaximum  Level = "maximum"
)

// AnalyticsMode controls how much behavioral telemetry is collected.
type AnalyticsMode string

const (
	AnalyticsFull     AnalyticsMode = "full"
	AnalyticsAnon     AnalyticsMode = "anonymized"
	AnalyticsEssential AnalyticsMode = "essential_only"
	AnalyticsNone     AnalyticsMode = "none"
)

// LocationPrecision bounds how precisely location is recorded.
type LocationPrecision string

const (
	LocationExact  LocationPrecision = "exact"
	LocationCity   LocationPrecision = "city"
	LocationCountry LocationPrecision = "country"
	LocationNone   LocationPrecision = "none"
)

// MaxRetentionDays is the spec's hard ceiling: updateSettings clamps any
// higher request silently rather than erroring.
const MaxRetentionDays = 730

// ThirdPartySettings governs third-party data sharing consent.
type ThirdPartySettings struct {
	DataSharingEnabled bool
	AllowedPartners    []string
	MarketingConsent   bool
}

// Settings is one user's full privacy configuration.
type Settings struct {
	UserID                string
	Level                 Level
	AnalyticsMode         AnalyticsMode
	IPAnonymization       bool
	LocationTracking      LocationPrecision
	ActivityTracking      bool
	MetadataRetentionDays int
	ThirdParty            ThirdPartySettings
	Version               int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (s Settings) clone() Settings {
	cp := s
	cp.ThirdParty.AllowedPartners = append([]string(nil), s.ThirdParty.AllowedPartners...)
	return cp
}

// presetValues returns the concrete field values a Level maps to. Explicit
// overrides passed to SetLevel or UpdateSettings are layered on top of
// these afterward, in the same call.
func presetValues(l Level) Settings {
	switch l {
	case LevelMinimal:
		return Settings{
			Level:                 LevelMinimal,
			AnalyticsMode:         AnalyticsFull,
			IPAnonymization:       false,
			LocationTracking:      LocationExact,
			ActivityTracking:      true,
			MetadataRetentionDays: MaxRetentionDays,
			ThirdParty:            ThirdPartySettings{DataSharingEnabled: true, MarketingConsent: true},
		}
	case LevelStrict:
		return Settings{
			Level:                 LevelStrict,
			AnalyticsMode:         AnalyticsEssential,
			IPAnonymization:       true,
			LocationTracking:      LocationCountry,
			ActivityTracking:      false,
			MetadataRetentionDays: 90,
			ThirdParty:            ThirdPartySettings{DataSharingEnabled: false, MarketingConsent: false},
		}
	case LevelMaximum:
		return Settings{
			Level:                 LevelMaximum,
			AnalyticsMode:         AnalyticsNone,
			IPAnonymization:       true,
			LocationTracking:      LocationNone,
			ActivityTracking:      false,
			MetadataRetentionDays: 30,
			ThirdParty:            ThirdPartySettings{DataSharingEnabled: false, MarketingConsent: false},
		}
	default: // LevelBalanced is the baseline default
		return Settings{
			Level:                 LevelBalanced,
			AnalyticsMode:         AnalyticsAnon,
			IPAnonymization:       true,
			LocationTracking:      LocationCity,
			ActivityTracking:      true,
			MetadataRetentionDays: 365,
			ThirdParty:            ThirdPartySettings{DataSharingEnabled: false, MarketingConsent: false},
		}
	}
}

// Update is a partial set of field overrides for UpdateSettings; nil
// pointers/empty strings mean "leave unchanged."
type Update struct {
	AnalyticsMode         *AnalyticsMode
	IPAnonymization       *bool
	LocationTracking      *LocationPrecision
	ActivityTracking      *bool
	MetadataRetentionDays *int
	ThirdParty            *ThirdPartySettings
}

func (u Update) apply(s Settings) Settings {
	if u.AnalyticsMode != nil {
		s.AnalyticsMode = *u.AnalyticsMode
	}
	if u.IPAnonymization != nil {
		s.IPAnonymization = *u.IPAnonymization
	}
	if u.LocationTracking != nil {
		s.LocationTracking = *u.LocationTracking
	}
	if u.ActivityTracking != nil {
		s.ActivityTracking = *u.ActivityTracking
	}
	if u.MetadataRetentionDays != nil {
		s.MetadataRetentionDays = *u.MetadataRetentionDays
	}
	if u.ThirdParty != nil {
		s.ThirdParty = *u.ThirdParty
	}
	if s.MetadataRetentionDays > MaxRetentionDays {
		s.MetadataRetentionDays = MaxRetentionDays
	}
	if s.MetadataRetentionDays < 0 {
		s.MetadataRetentionDays = 0
	}
	return s
}
