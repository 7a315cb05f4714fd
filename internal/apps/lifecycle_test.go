package apps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nchat/trustplane/internal/clock"
	"github.com/nchat/trustplane/internal/manifest"
)

func validManifest(appID string, extraScopes ...string) manifest.AppManifest {
	return manifest.AppManifest{
		SchemaVersion: "1.0",
		AppID:         appID,
		Name:          "Test App",
		Description:   "A test app",
		Version:       "1.0.0",
		Developer:     manifest.Developer{Name: "Dev", Email: "dev@example.com"},
		Scopes:        append([]string{"read:messages", "write:messages"}, extraScopes...),
		RateLimit:     manifest.RateLimit{RequestsPerMinute: 60},
	}
}

func TestRegisterApp_DuplicateAppID(t *testing.T) {
	s := NewStore(clock.NewFake(time.Now()))
	m := validManifest("com.acme.bot")

	_, _, err := s.RegisterApp(m, "alice")
	require.NoError(t, err)

	_, _, err = s.RegisterApp(m, "bob")
	require.Error(t, err)
	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeDuplicateAppID, appErr.Code())
}

func TestAppLifecycleTransitions(t *testing.T) {
	s := NewStore(clock.NewFake(time.Now()))
	app, _, err := s.RegisterApp(validManifest("com.acme.bot"), "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingReview, app.Status)

	app, err = s.ApproveApp(app.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, app.Status)

	// approved -> rejected is invalid
	_, err = s.RejectApp(app.ID, "nope")
	require.Error(t, err)
	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeInvalidStateTransition, appErr.Code())

	app, err = s.SuspendApp(app.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, app.Status)

	app, err = s.ResubmitApp(app.ID, validManifest("com.acme.bot"))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingReview, app.Status)
}

func TestInstallApp_ScopeBounding(t *testing.T) {
	s := NewStore(clock.NewFake(time.Now()))
	app, _, err := s.RegisterApp(validManifest("com.acme.bot"), "alice")
	require.NoError(t, err)
	_, err = s.ApproveApp(app.ID)
	require.NoError(t, err)

	_, err = s.InstallApp(app.Manifest.AppID, "ws1", "alice", []string{"admin:apps"})
	require.Error(t, err)
	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeScopeNotInManifest, appErr.Code())

	inst, err := s.InstallApp(app.Manifest.AppID, "ws1", "alice", []string{"read:messages"})
	require.NoError(t, err)
	assert.Equal(t, InstallationInstalled, inst.Status)

	// duplicate non-uninstalled installation rejected
	_, err = s.InstallApp(app.Manifest.AppID, "ws1", "alice", nil)
	require.Error(t, err)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeInstallationExists, appErr.Code())

	// uninstall then reinstall is allowed
	_, err = s.UninstallApp(inst.ID)
	require.NoError(t, err)
	_, err = s.InstallApp(app.Manifest.AppID, "ws1", "alice", nil)
	require.NoError(t, err)
}

func TestUpdateAppVersion_ScopeSupersetRevertsToReview(t *testing.T) {
	s := NewStore(clock.NewFake(time.Now()))
	app, _, err := s.RegisterApp(validManifest("com.acme.bot"), "alice")
	require.NoError(t, err)
	app, err = s.ApproveApp(app.ID)
	require.NoError(t, err)

	// Same scopes: stays approved.
	app, err = s.UpdateAppVersion(app.ID, validManifest("com.acme.bot"))
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, app.Status)

	// Strict superset of scopes: reverts to pending_review.
	app, err = s.UpdateAppVersion(app.ID, validManifest("com.acme.bot", "admin:apps"))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingReview, app.Status)
}
