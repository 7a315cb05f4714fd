package raid

import (
	"sync"
	"time"

	"github.com/nchat/trustplane/internal/clock"
)

// Action is one gated activity isActionAllowed can be asked about.
type Action string

const (
	ActionJoin    Action = "join"
	ActionMessage Action = "message"
	ActionDM      Action = "dm"
)

type lockdownState struct {
	level     LockdownLevel
	expiresAt time.Time // zero means no scheduled auto-lift
}

// lockdownManager owns the single active lockdown per key (workspace or
// workspace:channel) and its scheduled auto-lift.
type lockdownManager struct {
	mu    sync.RWMutex
	byKey map[string]*lockdownState
	clock clock.Clock
}

func newLockdownManager(c clock.Clock) *lockdownManager {
	return &lockdownManager{byKey: make(map[string]*lockdownState), clock: c}
}

// activate sets key's lockdown level. A zero duration means no auto-lift.
func (m *lockdownManager) activate(key string, level LockdownLevel, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &lockdownState{level: level}
	if duration > 0 {
		st.expiresAt = m.clock.Now().Add(duration)
	}
	m.byKey[key] = st
}

func (m *lockdownManager) lift(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, key)
}

// current returns key's lockdown level, auto-lifting it first if its
// scheduled expiry has passed.
func (m *lockdownManager) current(key string) LockdownLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.byKey[key]
	if !ok {
		return LockdownNone
	}
	if !st.expiresAt.IsZero() && !m.clock.Now().Before(st.expiresAt) {
		delete(m.byKey, key)
		return LockdownNone
	}
	return st.level
}

// isActionAllowed honors exempt roles and returns allowed plus a reason
// when denied.
func (m *lockdownManager) isActionAllowed(key string, action Action, role string) (bool, string) {
	level := m.current(key)
	if level == LockdownNone {
		return true, ""
	}
	restr := presets[level]
	for _, r := range restr.ExemptRoles {
		if r == role {
			return true, ""
		}
	}
	switch action {
	case ActionJoin:
		if restr.BlockNewJoins {
			return false, "new joins blocked during lockdown"
		}
	case ActionDM:
		if restr.BlockDMs {
			return false, "direct messages blocked during lockdown"
		}
	case ActionMessage:
		if restr.SlowmodeSeconds > 0 {
			return true, "" // slowmode is a rate constraint, not an outright block
		}
	}
	return true, ""
}
