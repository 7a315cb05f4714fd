package apps

import (
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/nchat/trustplane/internal/clock"
	"github.com/nchat/trustplane/internal/ids"
)

// Store owns the RegisteredApp and AppInstallation maps exclusively. All
// mutation happens through the lifecycle operations in this package; no
// pointer into the internal maps ever escapes — every read returns a Clone.
type Store struct {
	mu    sync.RWMutex
	apps  map[string]*RegisteredApp
	insts map[string]*AppInstallation
	clock clock.Clock
}

// NewStore creates an empty app store using the given clock (clock.Real{}
// in production, a clock.Fake in tests).
func NewStore(c clock.Clock) *Store {
	if c == nil {
		c = clock.Real{}
	}
	return &Store{
		apps:  make(map[string]*RegisteredApp),
		insts: make(map[string]*AppInstallation),
		clock: c,
	}
}

// GetApp returns a clone of the app with the given ID, or nil.
func (s *Store) GetApp(id string) *RegisteredApp {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[id]
	if !ok {
		return nil
	}
	return a.Clone()
}

// findByAppID returns the live (non-clone) app pointer for a given appId,
// for internal use only while holding the lock.
func (s *Store) findByAppIDLocked(appID string) *RegisteredApp {
	for _, a := range s.apps {
		if a.Manifest.AppID == appID {
			return a
		}
	}
	return nil
}

// ListApps returns a clone of every registered app.
func (s *Store) ListApps() []*RegisteredApp {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*RegisteredApp, 0, len(s.apps))
	for _, a := range s.apps {
		out = append(out, a.Clone())
	}
	return out
}

// GetInstallation returns a clone of the installation with the given ID, or nil.
func (s *Store) GetInstallation(id string) *AppInstallation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.insts[id]
	if !ok {
		return nil
	}
	return i.Clone()
}

// findActiveInstallationLocked returns the live, non-uninstalled installation
// for (appID, workspaceID), or nil.
func (s *Store) findActiveInstallationLocked(appID, workspaceID string) *AppInstallation {
	for _, i := range s.insts {
		if i.AppID == appID && i.WorkspaceID == workspaceID && i.Status != InstallationUninstalled {
			return i
		}
	}
	return nil
}

// ListInstallationsByApp returns a clone of every installation for appID.
func (s *Store) ListInstallationsByApp(appID string) []*AppInstallation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*AppInstallation, 0)
	for _, i := range s.insts {
		if i.AppID == appID {
			out = append(out, i.Clone())
		}
	}
	return out
}

// newClientSecret generates the opaque client secret assigned at registration.
// Only its bcrypt hash is ever stored — see hashClientSecret.
func newClientSecret() string {
	return ids.MustOpaque(32)
}

// newWebhookSigningSecret generates the opaque HMAC key used to sign
// webhook deliveries for an app. Unlike the client secret this is kept in
// plaintext, since the dispatcher must be able to read it back.
func newWebhookSigningSecret() string {
	return ids.MustOpaque(32)
}

// hashClientSecret hashes a plaintext client secret for storage, the same
// "hash only the secret, not the ID" pattern the teacher uses for API keys.
func hashClientSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
