package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nchat/trustplane/internal/apps"
	"github.com/nchat/trustplane/internal/clock"
	"github.com/nchat/trustplane/internal/manifest"
)

func validManifestForAuth(appID string) manifest.AppManifest {
	return manifest.AppManifest{
		SchemaVersion: "1.0",
		AppID:         appID,
		Name:          "Test App",
		Description:   "A test app",
		Version:       "1.0.0",
		Developer:     manifest.Developer{Name: "Dev", Email: "dev@example.com"},
		Scopes:        []string{"read:messages", "write:messages"},
		RateLimit:     manifest.RateLimit{RequestsPerMinute: 60},
	}
}

func setupAppAndInstallation(t *testing.T) (*apps.RegisteredApp, string, *apps.AppInstallation, *apps.Store) {
	t.Helper()
	store := apps.NewStore(clock.NewFake(time.Now()))
	app, secret, err := store.RegisterApp(validManifestForAuth("com.acme.bot"), "alice")
	require.NoError(t, err)
	app, err = store.ApproveApp(app.ID)
	require.NoError(t, err)
	inst, err := store.InstallApp(app.Manifest.AppID, "ws1", "alice", []string{"read:messages", "write:messages"})
	require.NoError(t, err)
	return app, secret, inst, store
}

func TestIssueTokens_S3_Lifecycle(t *testing.T) {
	app, secret, inst, _ := setupAppAndInstallation(t)
	mgr := NewManager(clock.NewFake(time.Now()), Config{})

	issued, err := mgr.IssueTokens(IssueRequest{ClientSecret: secret}, app, inst)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", issued.TokenType)
	assert.ElementsMatch(t, []string{"read:messages", "write:messages"}, issued.Scopes)

	tok, err := mgr.ValidateToken(issued.AccessToken)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"read:messages", "write:messages"}, tok.Scopes)

	require.NoError(t, mgr.RevokeToken(issued.AccessToken))
	_, err = mgr.ValidateToken(issued.AccessToken)
	require.Error(t, err)
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, CodeTokenRevoked, authErr.Code())

	// refresh token still valid and usable after access revocation
	refreshed, err := mgr.RefreshAccessToken(issued.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, issued.RefreshToken, refreshed.RefreshToken, "refresh token is reused, not rotated")
}

func TestIssueTokens_InvalidClientSecret(t *testing.T) {
	app, _, inst, _ := setupAppAndInstallation(t)
	mgr := NewManager(clock.NewFake(time.Now()), Config{})

	_, err := mgr.IssueTokens(IssueRequest{ClientSecret: "wrong"}, app, inst)
	require.Error(t, err)
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, CodeInvalidClientSecret, authErr.Code())
}

func TestIssueTokens_ScopeExceeded(t *testing.T) {
	app, secret, inst, _ := setupAppAndInstallation(t)
	mgr := NewManager(clock.NewFake(time.Now()), Config{})

	_, err := mgr.IssueTokens(IssueRequest{ClientSecret: secret, RequestedScopes: []string{"admin:apps"}}, app, inst)
	require.Error(t, err)
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, CodeScopeExceeded, authErr.Code())
}

func TestValidateToken_Expiry(t *testing.T) {
	app, secret, inst, _ := setupAppAndInstallation(t)
	fc := clock.NewFake(time.Now())
	mgr := NewManager(fc, Config{AccessTTL: time.Minute})

	issued, err := mgr.IssueTokens(IssueRequest{ClientSecret: secret}, app, inst)
	require.NoError(t, err)

	fc.Advance(2 * time.Minute)
	_, err = mgr.ValidateToken(issued.AccessToken)
	require.Error(t, err)
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, CodeTokenExpired, authErr.Code())
}

func TestRevokeAllTokens(t *testing.T) {
	app, secret, inst, _ := setupAppAndInstallation(t)
	mgr := NewManager(clock.NewFake(time.Now()), Config{})

	issued1, err := mgr.IssueTokens(IssueRequest{ClientSecret: secret}, app, inst)
	require.NoError(t, err)
	issued2, err := mgr.IssueTokens(IssueRequest{ClientSecret: secret}, app, inst)
	require.NoError(t, err)

	count := mgr.RevokeAllTokens(app.ID, nil)
	assert.Equal(t, 4, count) // 2 access + 2 refresh

	_, err = mgr.ValidateToken(issued1.AccessToken)
	require.Error(t, err)
	_, err = mgr.ValidateToken(issued2.AccessToken)
	require.Error(t, err)
}
