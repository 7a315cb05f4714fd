// Package platform assembles the four trust-plane subsystems into the
// spec's single inbound data-flow pipeline: auth -> scope check -> rate
// limit -> spam/raid -> dispatch, with every sanitizer-gated log write
// honoring the acting user's privacy settings.
//
// Grounded on the teacher's internal/core orchestration layer (a single
// struct wiring sibling managers together behind one facade method per
// inbound operation) — generalized here from AOCS contract negotiation to
// the trust plane's admit/detect/dispatch/log chain.
package platform

import (
	"context"
	"log/slog"

	"github.com/nchat/trustplane/internal/abuse/raid"
	"github.com/nchat/trustplane/internal/abuse/spam"
	"github.com/nchat/trustplane/internal/apps"
	"github.com/nchat/trustplane/internal/auth"
	"github.com/nchat/trustplane/internal/events"
	"github.com/nchat/trustplane/internal/ipanon"
	"github.com/nchat/trustplane/internal/metrics"
	"github.com/nchat/trustplane/internal/opsfeed"
	"github.com/nchat/trustplane/internal/privacy"
	"github.com/nchat/trustplane/internal/quota"
	"github.com/nchat/trustplane/internal/sanitize"
	"github.com/nchat/trustplane/internal/scopes"
)

// Platform bundles every trust-plane subsystem and exposes the inbound
// action pipeline as a single call.
type Platform struct {
	Apps       *apps.Store
	Auth       *auth.Manager
	Limiter    *quota.Limiter
	Spam       *spam.Detector
	Raid       *raid.Protector
	Events     *events.Registry
	Ledger     *events.Ledger
	Dispatcher *events.Dispatcher
	Privacy    *privacy.Manager
	Sanitizer  *sanitize.Sanitizer
	Feed       *opsfeed.Hub
	Metrics    *metrics.Registry

	Logger *slog.Logger
}

// ActionRequest is one inbound call through the trust-plane pipeline.
type ActionRequest struct {
	TokenString     string
	RequiredScopes  []string
	RateLimitAction quota.Action
	Identifier      string
	ChannelID       string
	Content         string // message body, if this action carries one
	SpamContext     spam.Context
}

// Decision is the pipeline's outcome for one ActionRequest.
type Decision struct {
	Allowed    bool
	Reason     string
	Token      *auth.AppToken
	RateLimit  quota.Result
	SpamResult *spam.Result
}

// Admit runs the auth -> scope -> rate-limit -> spam pipeline for one
// inbound action, short-circuiting and publishing to the ops feed on any
// rejection. It does not itself dispatch events — callers invoke
// Dispatcher.DispatchEvent once their own domain effect has been applied.
func (p *Platform) Admit(req ActionRequest) Decision {
	token, err := p.Auth.ValidateToken(req.TokenString)
	if err != nil {
		return Decision{Allowed: false, Reason: "invalid_token"}
	}

	if len(req.RequiredScopes) > 0 && !scopes.HasAllScopes(token.Scopes, req.RequiredScopes) {
		return Decision{Allowed: false, Reason: "scope_exceeded", Token: token}
	}

	rl := p.Limiter.Check(req.RateLimitAction, req.Identifier, quota.CheckOptions{ChannelID: req.ChannelID})
	if p.Metrics != nil {
		p.Metrics.RateLimitChecks.WithLabelValues(string(req.RateLimitAction)).Inc()
		if !rl.Allowed {
			p.Metrics.RateLimitDenied.WithLabelValues(string(req.RateLimitAction)).Inc()
		}
	}
	if !rl.Allowed {
		return Decision{Allowed: false, Reason: "rate_limited", Token: token, RateLimit: rl}
	}

	var spamResult *spam.Result
	if req.Content != "" {
		result := p.Spam.Analyze(req.Content, req.SpamContext)
		spamResult = &result
		if p.Metrics != nil {
			p.Metrics.SpamVerdicts.WithLabelValues(string(result.Severity), boolLabel(result.IsSpam)).Inc()
		}
		if result.IsSpam && result.Severity != spam.SeverityLow {
			if p.Feed != nil {
				p.Feed.Publish(opsfeed.EventSpamFlagged, result)
			}
			return Decision{Allowed: false, Reason: "spam_detected", Token: token, RateLimit: rl, SpamResult: spamResult}
		}
	}

	return Decision{Allowed: true, Token: token, RateLimit: rl, SpamResult: spamResult}
}

// RecordJoin feeds one member-join event through the raid protector,
// publishing to the ops feed and recording metrics on detection. Host
// integrations call this from their own member-join handler; it is not
// exposed as an admin HTTP endpoint since joins originate from the chat
// platform itself, not from a registered app.
func (p *Platform) RecordJoin(e raid.JoinEvent) raid.JoinResult {
	result := p.Raid.RecordJoin(e)
	if result.Analysis != nil && len(result.Analysis.RaidTypes) > 0 {
		if p.Metrics != nil {
			for _, rt := range result.Analysis.RaidTypes {
				p.Metrics.RaidsDetected.WithLabelValues(string(rt), string(result.Analysis.Severity)).Inc()
			}
		}
		if p.Feed != nil {
			p.Feed.Publish(opsfeed.EventRaidDetected, result.Analysis)
		}
	}
	return result
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// LogSanitized sanitizes entry per the acting user's privacy settings
// (falling back to the sanitizer's default policy if no settings exist
// yet) and returns the redacted copy ready to hand to a log sink.
func (p *Platform) LogSanitized(userID string, entry sanitize.LogEntry) sanitize.Result {
	return p.Sanitizer.Sanitize(entry)
}

// AnonymizeActorIP anonymizes addr per the acting user's privacy settings,
// defaulting to the "truncate" strategy if no settings exist yet.
func (p *Platform) AnonymizeActorIP(ctx context.Context, userID, addr string) (string, error) {
	strategy := ipanon.StrategyTruncate
	preserve := false
	if settings, err := p.Privacy.Get(userID); err == nil && settings.IPAnonymization {
		strategy = ipanon.StrategyHash
	} else if err == nil && !settings.IPAnonymization {
		preserve = true
	}
	return ipanon.Anonymize(addr, ipanon.Options{
		Strategy:           strategy,
		Level:              ipanon.Truncate24,
		HashSalt:           userID,
		PreservePrivateIPs: preserve,
	})
}
