// Package auth implements the Auth Manager: OAuth2-style token issuance,
// validation, refresh, and revocation over AppToken entities.
//
// Grounded on the teacher's internal/security/token_broker.go (JIT token
// issuance gated by a threshold, HMAC signing, revocation sets, key
// rotation) — generalized from trust-score-gated capability tokens to
// scope-gated access/refresh token pairs bound to an app installation.
package auth

import (
	"time"

	"github.com/nchat/trustplane/internal/ids"
)

// Kind distinguishes access from refresh tokens — modeled as a tagged
// variant per the spec's re-architecture notes rather than a bare string.
type Kind string

const (
	KindAccess  Kind = "access_token"
	KindRefresh Kind = "refresh_token"
)

const (
	accessTokenPrefix  = "nchat_at_"
	refreshTokenPrefix = "nchat_rt_"

	// DefaultAccessTTL and DefaultRefreshTTL match spec §4.4.
	DefaultAccessTTL  = 3600 * time.Second
	DefaultRefreshTTL = 2_592_000 * time.Second

	// opaqueEntropyBytes yields >=24 chars of base64url entropy (32 bytes
	// encodes to 43 chars), comfortably over the wire requirement.
	opaqueEntropyBytes = 32
)

// AppToken is an issued access or refresh token. TokenString is unique and
// never re-derivable from the other fields post-issue.
type AppToken struct {
	ID             string
	TokenString    string
	Kind           Kind
	AppID          string
	InstallationID string
	Scopes         []string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	Revoked        bool
	RevokedAt      time.Time
}

func (t *AppToken) clone() *AppToken {
	cp := *t
	cp.Scopes = append([]string(nil), t.Scopes...)
	return &cp
}

func newTokenString(kind Kind) (string, error) {
	opaque, err := ids.Opaque(opaqueEntropyBytes)
	if err != nil {
		return "", err
	}
	if kind == KindAccess {
		return accessTokenPrefix + opaque, nil
	}
	return refreshTokenPrefix + opaque, nil
}
