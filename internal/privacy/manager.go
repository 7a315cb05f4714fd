package privacy

import (
	"errors"
	"sync"
	"time"

	"github.com/nchat/trustplane/internal/clock"
)

// ErrNotFound is returned when no settings exist yet for a user.
var ErrNotFound = errors.New("privacy: settings not found")

// Manager owns every user's Settings and the shared audit log.
type Manager struct {
	mu       sync.RWMutex
	settings map[string]Settings
	audit    []AuditEntry
	clock    clock.Clock
}

// NewManager creates an empty Manager using the real wall clock.
func NewManager() *Manager {
	return NewManagerWithClock(clock.Real{})
}

// NewManagerWithClock is NewManager with an injected clock, for tests.
func NewManagerWithClock(c clock.Clock) *Manager {
	return &Manager{
		settings: make(map[string]Settings),
		clock:    c,
	}
}

// Create initializes a user's settings at the given preset level, applying
// any immediate overrides in the same call.
func (m *Manager) Create(userID string, level Level, overrides Update) Settings {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	s := presetValues(level)
	s = overrides.apply(s)
	s.UserID = userID
	s.Version = 1
	s.CreatedAt = now
	s.UpdatedAt = now

	m.settings[userID] = s
	m.record(AuditCreated, userID, now, nil, &s)
	return s.clone()
}

// Get returns a copy of a user's current settings.
func (m *Manager) Get(userID string) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[userID]
	if !ok {
		return Settings{}, ErrNotFound
	}
	return s.clone(), nil
}

// SetLevel applies a new preset, then layers overrides on top in the same
// call, incrementing version and recording an audit entry.
func (m *Manager) SetLevel(userID string, level Level, overrides Update) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before, ok := m.settings[userID]
	if !ok {
		return Settings{}, ErrNotFound
	}
	beforeCopy := before.clone()

	now := m.clock.Now()
	next := presetValues(level)
	next = overrides.apply(next)
	next.UserID = userID
	next.Version = before.Version + 1
	next.CreatedAt = before.CreatedAt
	next.UpdatedAt = now

	m.settings[userID] = next
	m.record(AuditLevelChanged, userID, now, &beforeCopy, &next)
	return next.clone(), nil
}

// UpdateSettings layers field overrides onto the current settings without
// touching Level, clamping MetadataRetentionDays and incrementing version.
func (m *Manager) UpdateSettings(userID string, overrides Update) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before, ok := m.settings[userID]
	if !ok {
		return Settings{}, ErrNotFound
	}
	beforeCopy := before.clone()

	now := m.clock.Now()
	next := overrides.apply(before)
	next.Version = before.Version + 1
	next.UpdatedAt = now

	m.settings[userID] = next

	action := AuditUpdated
	if overrides.ThirdParty != nil {
		action = AuditConsentChanged
	}
	m.record(action, userID, now, &beforeCopy, &next)
	return next.clone(), nil
}

// record appends an audit entry. Callers must hold m.mu.
func (m *Manager) record(action AuditAction, userID string, ts time.Time, before, after *Settings) {
	m.audit = append(m.audit, AuditEntry{
		Action:    action,
		UserID:    userID,
		Timestamp: ts,
		Before:    before,
		After:     after,
	})
}

// AuditLog returns every recorded entry matching filter, oldest first.
func (m *Manager) AuditLog(filter AuditFilter) []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []AuditEntry
	for _, e := range m.audit {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out
}
