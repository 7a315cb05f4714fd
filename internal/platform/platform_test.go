package platform

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/nchat/trustplane/internal/abuse/raid"
	"github.com/nchat/trustplane/internal/abuse/spam"
	"github.com/nchat/trustplane/internal/apps"
	"github.com/nchat/trustplane/internal/auth"
	"github.com/nchat/trustplane/internal/clock"
	"github.com/nchat/trustplane/internal/events"
	"github.com/nchat/trustplane/internal/manifest"
	"github.com/nchat/trustplane/internal/metrics"
	"github.com/nchat/trustplane/internal/privacy"
	"github.com/nchat/trustplane/internal/quota"
	"github.com/nchat/trustplane/internal/sanitize"
)

func newTestPlatform(t *testing.T) (p *Platform, accessToken string) {
	t.Helper()
	c := clock.Real{}

	appStore := apps.NewStore(c)
	m := manifest.AppManifest{
		SchemaVersion: "1.0",
		AppID:         "test-app",
		Name:          "Test App",
		Version:       "1.0.0",
		Developer:     manifest.Developer{Name: "dev", Email: "dev@example.com"},
		Scopes:        []string{"read:messages"},
		Commands:      []manifest.Command{},
		RateLimit:     manifest.RateLimit{RequestsPerMinute: 60},
	}
	app, secret, err := appStore.RegisterApp(m, "owner")
	assert.NoError(t, err)
	app, err = appStore.ApproveApp(app.ID)
	assert.NoError(t, err)
	inst, err := appStore.InstallApp(app.Manifest.AppID, "ws1", "owner", nil)
	assert.NoError(t, err)

	authMgr := auth.NewManager(c, auth.Config{})
	issued, err := authMgr.IssueTokens(auth.IssueRequest{ClientSecret: secret}, app, inst)
	assert.NoError(t, err)

	limiter := quota.NewLimiter(map[quota.Action]quota.Config{
		quota.ActionMessage: {Limit: 5, WindowMs: 60_000},
	})

	p = &Platform{
		Apps:      appStore,
		Auth:      authMgr,
		Limiter:   limiter,
		Spam:      spam.NewDetector(spam.Config{}),
		Raid:      raid.NewProtector(raid.Config{}),
		Events:    events.NewRegistry(),
		Ledger:    events.NewLedger(),
		Privacy:   privacy.NewManager(),
		Sanitizer: sanitize.New(sanitize.DefaultConfig("salt")),
		Metrics:   metrics.NewRegistry(prometheus.NewRegistry()),
	}
	return p, issued.AccessToken
}

func TestAdmit_AllowsValidRequest(t *testing.T) {
	p, token := newTestPlatform(t)
	decision := p.Admit(ActionRequest{
		TokenString:     token,
		RequiredScopes:  []string{"read:messages"},
		RateLimitAction: quota.ActionMessage,
		Identifier:      "user1",
	})
	assert.True(t, decision.Allowed)
}

func TestAdmit_RejectsInvalidToken(t *testing.T) {
	p, _ := newTestPlatform(t)
	decision := p.Admit(ActionRequest{
		TokenString:     "nchat_at_bogus",
		RateLimitAction: quota.ActionMessage,
		Identifier:      "user1",
	})
	assert := assert.New(t)
	assert.False(decision.Allowed)
	assert.Equal("invalid_token", decision.Reason)
}

func TestAdmit_RejectsScopeExceeded(t *testing.T) {
	p, token := newTestPlatform(t)
	decision := p.Admit(ActionRequest{
		TokenString:     token,
		RequiredScopes:  []string{"admin:apps"},
		RateLimitAction: quota.ActionMessage,
		Identifier:      "user1",
	})
	assert := assert.New(t)
	assert.False(decision.Allowed)
	assert.Equal("scope_exceeded", decision.Reason)
}

func TestAdmit_RejectsRateLimited(t *testing.T) {
	p, token := newTestPlatform(t)
	var last Decision
	for i := 0; i < 6; i++ {
		last = p.Admit(ActionRequest{
			TokenString:     token,
			RateLimitAction: quota.ActionMessage,
			Identifier:      "user2",
		})
	}
	assert := assert.New(t)
	assert.False(last.Allowed)
	assert.Equal("rate_limited", last.Reason)
}
