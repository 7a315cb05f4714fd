package quota

import "encoding/json"

// snapshot persists the durable policy state — overrides, violation
// counts, and the trusted set — but deliberately excludes the in-flight
// rate-limit windows themselves: those are sub-minute transient state the
// spec treats as safe to lose across a restart (a fresh window just opens
// on the next check).
type snapshot struct {
	UserOverrides    map[string]Config        `json:"userOverrides"`
	ChannelOverrides map[string]Config        `json:"channelOverrides"`
	ScopeOverrides   map[string]ScopeOverride `json:"scopeOverrides"`
	Violations       map[string]int           `json:"violations"`
	Trusted          []string                 `json:"trusted"`
}

// Export serializes the limiter's durable policy/violation state.
func (l *Limiter) Export() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := snapshot{
		UserOverrides:    l.userOv,
		ChannelOverrides: l.channelOv,
		ScopeOverrides:   l.scopeOv,
		Violations:       l.violations,
	}
	for id := range l.trusted {
		snap.Trusted = append(snap.Trusted, id)
	}
	return json.Marshal(snap)
}

// Import restores policy/violation state from a prior Export, leaving any
// in-flight windows (which Import never touches) to rebuild naturally.
func (l *Limiter) Import(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if snap.UserOverrides != nil {
		l.userOv = snap.UserOverrides
	}
	if snap.ChannelOverrides != nil {
		l.channelOv = snap.ChannelOverrides
	}
	if snap.ScopeOverrides != nil {
		l.scopeOv = snap.ScopeOverrides
	}
	if snap.Violations != nil {
		l.violations = snap.Violations
	}
	l.trusted = make(map[string]bool, len(snap.Trusted))
	for _, id := range snap.Trusted {
		l.trusted[id] = true
	}
	return nil
}
