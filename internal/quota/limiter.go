package quota

import (
	"sync"
	"time"

	"github.com/nchat/trustplane/internal/clock"
)

type windowState struct {
	windowStart      time.Time
	count            int
	burstWindowStart time.Time
	burstCount       int
}

// Limiter admits or rejects actions per (action, identifier[, channelId])
// against a layered configuration: user override, then channel override,
// then the action's default Config.
type Limiter struct {
	mu sync.RWMutex

	defaults  map[Action]Config
	userOv    map[string]Config        // "action:identifier" -> override
	channelOv map[string]Config        // "action:channelId" -> override
	scopeOv   map[string]ScopeOverride // scope -> override

	windows    map[string]*windowState
	violations map[string]int
	trusted    map[string]bool

	clock clock.Clock
}

// NewLimiter creates a Limiter with the given per-action defaults.
func NewLimiter(defaults map[Action]Config) *Limiter {
	return NewLimiterWithClock(defaults, clock.Real{})
}

// NewLimiterWithClock is NewLimiter with an injected clock, for deterministic
// window-boundary testing.
func NewLimiterWithClock(defaults map[Action]Config, c clock.Clock) *Limiter {
	d := make(map[Action]Config, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &Limiter{
		defaults:   d,
		userOv:     make(map[string]Config),
		channelOv:  make(map[string]Config),
		scopeOv:    make(map[string]ScopeOverride),
		windows:    make(map[string]*windowState),
		violations: make(map[string]int),
		trusted:    make(map[string]bool),
		clock:      c,
	}
}

// SetUserOverride installs a per-(action, identifier) config override.
func (l *Limiter) SetUserOverride(action Action, identifier string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userOv[string(action)+":"+identifier] = cfg
}

// SetChannelOverride installs a per-(action, channelId) config override.
func (l *Limiter) SetChannelOverride(action Action, channelID string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.channelOv[string(action)+":"+channelID] = cfg
}

// SetScopeOverride installs the {scope -> {limit, windowMs}} entry consulted
// when a CheckOptions.Scope tag is supplied.
func (l *Limiter) SetScopeOverride(scope string, ov ScopeOverride) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scopeOv[scope] = ov
}

// MarkTrusted flags identifier as trusted for SkipTrusted exemptions.
func (l *Limiter) MarkTrusted(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trusted[identifier] = true
}

func windowKey(action Action, identifier, channelID string) string {
	k := string(action) + ":" + identifier
	if channelID != "" {
		k += ":" + channelID
	}
	return k
}

// resolveConfig applies the user-override > channel-override > default
// precedence. Must be called with l.mu held (read or write).
func (l *Limiter) resolveConfig(action Action, identifier string, opts CheckOptions) Config {
	if cfg, ok := l.userOv[string(action)+":"+identifier]; ok {
		return cfg
	}
	if opts.ChannelID != "" {
		if cfg, ok := l.channelOv[string(action)+":"+opts.ChannelID]; ok {
			return cfg
		}
	}
	return l.defaults[action]
}

func isExempt(cfg Config, opts CheckOptions, trusted bool) bool {
	if opts.UserRole != "" {
		for _, r := range cfg.ExemptRoles {
			if r == opts.UserRole {
				return true
			}
		}
	}
	if cfg.SkipTrusted && trusted {
		return true
	}
	return false
}

// Check performs one admission decision for (action, identifier),
// consuming a counter on success.
func (l *Limiter) Check(action Action, identifier string, opts CheckOptions) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(action, identifier, opts, true, true)
}

// Probe evaluates the same decision as Check without ever consuming a
// counter and without counting a denial as a violation. Exported for
// callers that want to preview admission (e.g. reporting remaining quota)
// without affecting state.
func (l *Limiter) Probe(action Action, identifier string, opts CheckOptions) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(action, identifier, opts, false, false)
}

func (l *Limiter) checkLocked(action Action, identifier string, opts CheckOptions, allowConsume, penalize bool) Result {
	now := l.clock.Now()

	cfg := l.resolveConfig(action, identifier, opts)
	if opts.Scope != "" {
		if sov, ok := l.scopeOv[opts.Scope]; ok {
			cfg.Limit = sov.Limit + cfg.BurstLimit
			cfg.WindowMs = sov.WindowMs
		}
	}

	if isExempt(cfg, opts, l.trusted[identifier]) {
		return Result{Allowed: true, Remaining: cfg.Limit, Limit: cfg.Limit, ResetAt: now}
	}

	key := windowKey(action, identifier, opts.ChannelID)
	w, ok := l.windows[key]
	windowMs := time.Duration(cfg.WindowMs) * time.Millisecond
	if !ok || now.Sub(w.windowStart) >= windowMs {
		w = &windowState{windowStart: now, count: 0, burstWindowStart: now, burstCount: 0}
		l.windows[key] = w
	}

	burstWindowMs := windowMs
	if cfg.BurstWindowMs > 0 {
		burstWindowMs = time.Duration(cfg.BurstWindowMs) * time.Millisecond
	}
	if now.Sub(w.burstWindowStart) >= burstWindowMs {
		w.burstWindowStart = now
		w.burstCount = 0
	}

	withinMain := w.count < cfg.Limit
	withinBurst := true
	var burstRemaining *int
	if cfg.BurstLimit > 0 {
		withinBurst = w.burstCount < cfg.BurstLimit
		br := cfg.BurstLimit - w.burstCount
		burstRemaining = &br
	}

	allowed := withinMain && withinBurst

	if allowed && allowConsume {
		w.count++
		if cfg.BurstLimit > 0 {
			w.burstCount++
			br := cfg.BurstLimit - w.burstCount
			burstRemaining = &br
		}
	}

	res := Result{
		Allowed:        allowed,
		Remaining:      max0(cfg.Limit - w.count),
		Limit:          cfg.Limit,
		BurstRemaining: burstRemaining,
		ResetAt:        w.windowStart.Add(windowMs),
	}

	if !allowed {
		retryAfter := w.windowStart.Add(windowMs).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		res.RetryAfter = &retryAfter
		if penalize {
			l.recordViolationLocked(identifier)
		}
	}
	return res
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func (l *Limiter) recordViolationLocked(identifier string) {
	l.violations[identifier]++
}

const repeatOffenderThreshold = 5

// IsRepeatOffender reports whether identifier has exceeded the repeat
// offender violation threshold (default 5).
func (l *Limiter) IsRepeatOffender(identifier string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.violations[identifier] > repeatOffenderThreshold
}

// EscalationMultiplier returns 1 + floor(violations/3) for identifier,
// a hint hosts may use to tighten limits for repeat violators.
func (l *Limiter) EscalationMultiplier(identifier string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return 1 + float64(l.violations[identifier]/3)
}

// CheckMultiple evaluates every request atomically at the boundary: denied
// as a whole if any single request is denied, in which case no counter in
// the batch is consumed. Implemented as a two-phase commit (probe all, then
// consume all only if every probe allowed) executed under one lock
// acquisition so no other caller's Check/CheckMultiple can interleave
// between the phases.
func (l *Limiter) CheckMultiple(reqs []Request) (bool, []Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	probes := make([]Result, len(reqs))
	allAllowed := true
	for i, r := range reqs {
		probes[i] = l.checkLocked(r.Action, r.Identifier, r.Opts, false, true)
		if !probes[i].Allowed {
			allAllowed = false
		}
	}
	if !allAllowed {
		return false, probes
	}

	finals := make([]Result, len(reqs))
	for i, r := range reqs {
		finals[i] = l.checkLocked(r.Action, r.Identifier, r.Opts, true, true)
	}
	return true, finals
}
