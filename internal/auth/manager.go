package auth

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nchat/trustplane/internal/apps"
	"github.com/nchat/trustplane/internal/clock"
	"github.com/nchat/trustplane/internal/ids"
	"github.com/nchat/trustplane/internal/scopes"
)

// IssueRequest carries the caller-presented client secret and the scopes
// being requested; it never carries the app's expected secret — that is
// looked up from the app entity passed to IssueTokens.
type IssueRequest struct {
	ClientSecret    string
	RequestedScopes []string
}

// Issued is the wire-shaped result of a token issuance or refresh.
type Issued struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scopes       []string
}

// Config tunes token TTLs; zero values fall back to spec defaults.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Manager owns the AppToken map exclusively via a single reader-writer
// lock. No pointer into the internal map escapes to callers.
type Manager struct {
	mu         sync.RWMutex
	byToken    map[string]*AppToken // tokenString -> token
	byID       map[string]*AppToken // id -> token (same underlying objects)
	clock      clock.Clock
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewManager creates an empty Manager.
func NewManager(c clock.Clock, cfg Config) *Manager {
	if c == nil {
		c = clock.Real{}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &Manager{
		byToken:    make(map[string]*AppToken),
		byID:       make(map[string]*AppToken),
		clock:      c,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

// IssueTokens issues a fresh access/refresh token pair bound to app and
// installation. req.RequestedScopes defaults to installation.GrantedScopes.
func (m *Manager) IssueTokens(req IssueRequest, app *apps.RegisteredApp, installation *apps.AppInstallation) (*Issued, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(app.ClientSecretHash), []byte(req.ClientSecret)); err != nil {
		return nil, newErr(CodeInvalidClientSecret, "client secret does not match app %q", app.ID)
	}
	if installation.Status != apps.InstallationInstalled {
		return nil, newErr(CodeInstallationNotActive, "installation %q is not active", installation.ID)
	}

	want := req.RequestedScopes
	if want == nil {
		want = append([]string(nil), installation.GrantedScopes...)
	}
	if !scopes.IsSubsetOfExpanded(want, installation.GrantedScopes) {
		return nil, newErr(CodeScopeExceeded, "requested scopes exceed installation grant")
	}

	accessTok, err := m.mint(KindAccess, app.ID, installation.ID, want, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshTok, err := m.mint(KindRefresh, app.ID, installation.ID, want, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Issued{
		AccessToken:  accessTok.TokenString,
		RefreshToken: refreshTok.TokenString,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.accessTTL.Seconds()),
		Scopes:       want,
	}, nil
}

func (m *Manager) mint(kind Kind, appID, installationID string, scopeSet []string, ttl time.Duration) (*AppToken, error) {
	tokenString, err := newTokenString(kind)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	tok := &AppToken{
		ID:             ids.New("tok_"),
		TokenString:    tokenString,
		Kind:           kind,
		AppID:          appID,
		InstallationID: installationID,
		Scopes:         append([]string(nil), scopeSet...),
		IssuedAt:       now,
		ExpiresAt:      now.Add(ttl),
	}

	m.mu.Lock()
	m.byToken[tok.TokenString] = tok
	m.byID[tok.ID] = tok
	m.mu.Unlock()

	return tok, nil
}

// ValidateToken returns the token iff it exists, is not revoked, and has
// not expired; otherwise a typed error identifies why.
func (m *Manager) ValidateToken(tokenString string) (*AppToken, error) {
	m.mu.RLock()
	tok, ok := m.byToken[tokenString]
	m.mu.RUnlock()

	if !ok {
		return nil, newErr(CodeInvalidToken, "token not recognized")
	}
	if tok.Revoked {
		return nil, newErr(CodeTokenRevoked, "token has been revoked")
	}
	if !m.clock.Now().Before(tok.ExpiresAt) {
		return nil, newErr(CodeTokenExpired, "token has expired")
	}
	return tok.clone(), nil
}

// RefreshAccessToken mints a new access token carrying the same scopes as
// the presented refresh token. The refresh token itself is re-used, not
// rotated, per spec §4.4.
func (m *Manager) RefreshAccessToken(refreshString string) (*Issued, error) {
	m.mu.RLock()
	refreshTok, ok := m.byToken[refreshString]
	m.mu.RUnlock()

	if !ok {
		return nil, newErr(CodeInvalidToken, "refresh token not recognized")
	}
	if refreshTok.Kind != KindRefresh {
		return nil, newErr(CodeInvalidToken, "token is not a refresh token")
	}
	if refreshTok.Revoked {
		return nil, newErr(CodeTokenRevoked, "refresh token has been revoked")
	}
	if !m.clock.Now().Before(refreshTok.ExpiresAt) {
		return nil, newErr(CodeTokenExpired, "refresh token has expired")
	}

	accessTok, err := m.mint(KindAccess, refreshTok.AppID, refreshTok.InstallationID, refreshTok.Scopes, m.accessTTL)
	if err != nil {
		return nil, err
	}

	return &Issued{
		AccessToken:  accessTok.TokenString,
		RefreshToken: refreshTok.TokenString,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.accessTTL.Seconds()),
		Scopes:       accessTok.Scopes,
	}, nil
}

// RevokeToken marks a token revoked. Idempotent: revoking an already-revoked
// or unknown token is not an error.
func (m *Manager) RevokeToken(tokenString string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.byToken[tokenString]
	if !ok {
		return nil
	}
	if !tok.Revoked {
		tok.Revoked = true
		tok.RevokedAt = m.clock.Now()
	}
	return nil
}

// RevokeAllTokens revokes every non-revoked token for appID, optionally
// scoped further to a single installationID, and returns the count revoked.
func (m *Manager) RevokeAllTokens(appID string, installationID *string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	now := m.clock.Now()
	for _, tok := range m.byID {
		if tok.AppID != appID {
			continue
		}
		if installationID != nil && tok.InstallationID != *installationID {
			continue
		}
		if !tok.Revoked {
			tok.Revoked = true
			tok.RevokedAt = now
			count++
		}
	}
	return count
}
