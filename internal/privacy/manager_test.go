package privacy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nchat/trustplane/internal/clock"
)

func TestCreate_AppliesPreset(t *testing.T) {
	m := NewManager()
	s := m.Create("u1", LevelStrict, Update{})
	assert.Equal(t, LevelStrict, s.Level)
	assert.True(t, s.IPAnonymization)
	assert.Equal(t, 90, s.MetadataRetentionDays)
	assert.Equal(t, 1, s.Version)
}

func TestCreate_OverlaysOverridesOnPreset(t *testing.T) {
	m := NewManager()
	days := 10
	s := m.Create("u1", LevelMinimal, Update{MetadataRetentionDays: &days})
	assert.Equal(t, LevelMinimal, s.Level)
	assert.Equal(t, 10, s.MetadataRetentionDays)
}

func TestUpdateSettings_ClampsRetention(t *testing.T) {
	m := NewManager()
	m.Create("u1", LevelMinimal, Update{})

	days := 5000
	s, err := m.UpdateSettings("u1", Update{MetadataRetentionDays: &days})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal(MaxRetentionDays, s.MetadataRetentionDays)
}

func TestUpdateSettings_IncrementsVersionMonotonically(t *testing.T) {
	m := NewManager()
	m.Create("u1", LevelBalanced, Update{})

	on := true
	s1, _ := m.UpdateSettings("u1", Update{ActivityTracking: &on})
	s2, _ := m.UpdateSettings("u1", Update{ActivityTracking: &on})
	assert.Equal(t, 2, s1.Version)
	assert.Equal(t, 3, s2.Version)
}

func TestUpdateSettings_NotFound(t *testing.T) {
	m := NewManager()
	_, err := m.UpdateSettings("ghost", Update{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetLevel_ReappliesPresetAndOverlays(t *testing.T) {
	m := NewManager()
	m.Create("u1", LevelMinimal, Update{})

	anon := true
	s, err := m.SetLevel("u1", LevelMaximum, Update{IPAnonymization: &anon})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal(LevelMaximum, s.Level)
	assert.True(s.IPAnonymization)
	assert.Equal(30, s.MetadataRetentionDays)
}

func TestAuditLog_RecordsCreateUpdateAndFiltersByUser(t *testing.T) {
	fc := clock.NewFake(time.Now())
	m := NewManagerWithClock(fc)
	m.Create("u1", LevelBalanced, Update{})
	m.Create("u2", LevelBalanced, Update{})
	fc.Advance(time.Minute)
	m.UpdateSettings("u1", Update{})

	entries := m.AuditLog(AuditFilter{UserID: "u1"})
	assert := assert.New(t)
	assert.Len(entries, 2)
	assert.Equal(AuditCreated, entries[0].Action)
	assert.Equal(AuditUpdated, entries[1].Action)
	assert.NotNil(entries[1].Before)
	assert.NotNil(entries[1].After)
}

func TestAuditLog_ConsentChangeRecordedDistinctly(t *testing.T) {
	m := NewManager()
	m.Create("u1", LevelBalanced, Update{})
	tp := ThirdPartySettings{DataSharingEnabled: true}
	m.UpdateSettings("u1", Update{ThirdParty: &tp})

	entries := m.AuditLog(AuditFilter{Action: AuditConsentChanged})
	assert.Len(t, entries, 1)
}
