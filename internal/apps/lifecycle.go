package apps

import (
	"github.com/nchat/trustplane/internal/ids"
	"github.com/nchat/trustplane/internal/manifest"
	"github.com/nchat/trustplane/internal/scopes"
)

// ManifestError wraps a failed manifest validation with its field errors.
type ManifestError struct {
	*Error
	FieldErrors []manifest.FieldError
}

func newManifestError(result manifest.Result) *ManifestError {
	return &ManifestError{
		Error:       newErr(CodeManifestInvalid, "manifest failed validation"),
		FieldErrors: result.Errors,
	}
}

// appTransitions enumerates every valid (from, to) pair. Any pair absent
// here is rejected, including same-state "transitions".
var appTransitions = map[Status]map[Status]bool{
	StatusPendingReview: {StatusApproved: true, StatusRejected: true},
	StatusApproved:      {StatusSuspended: true},
	StatusRejected:      {StatusPendingReview: true},
	StatusSuspended:     {StatusPendingReview: true},
}

func (s *Store) isValidAppTransition(from, to Status) bool {
	return appTransitions[from][to]
}

// RegisterApp validates the manifest and creates a new RegisteredApp in
// pending_review, or fails with DUPLICATE_APP_ID / a ManifestError. It
// returns the plaintext client secret alongside the app — the only time it
// is ever available, since only its bcrypt hash is stored.
func (s *Store) RegisterApp(m manifest.AppManifest, actor string) (*RegisteredApp, string, error) {
	if result := manifest.Validate(m); !result.Valid {
		return nil, "", newManifestError(result)
	}

	secret := newClientSecret()
	hash, err := hashClientSecret(secret)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findByAppIDLocked(m.AppID); existing != nil {
		return nil, "", newErr(CodeDuplicateAppID, "app id %q is already registered", m.AppID)
	}

	now := s.clock.Now()
	app := &RegisteredApp{
		ID:                   ids.New("app_"),
		Manifest:             m,
		ClientSecretHash:     hash,
		WebhookSigningSecret: newWebhookSigningSecret(),
		Status:               StatusPendingReview,
		RegisteredBy:         actor,
		RegisteredAt:         now,
		UpdatedAt:            now,
	}
	s.apps[app.ID] = app
	return app.Clone(), secret, nil
}

// ApproveApp transitions pending_review -> approved.
func (s *Store) ApproveApp(id string) (*RegisteredApp, error) {
	return s.transitionApp(id, StatusApproved, func(a *RegisteredApp) {
		a.RejectionReason = ""
	})
}

// RejectApp transitions pending_review -> rejected, recording a reason.
func (s *Store) RejectApp(id, reason string) (*RegisteredApp, error) {
	return s.transitionApp(id, StatusRejected, func(a *RegisteredApp) {
		a.RejectionReason = reason
	})
}

// SuspendApp transitions approved -> suspended.
func (s *Store) SuspendApp(id string) (*RegisteredApp, error) {
	return s.transitionApp(id, StatusSuspended, nil)
}

// ResubmitApp transitions rejected|suspended -> pending_review with a new
// manifest. The manifest's appId must match the existing app's appId.
func (s *Store) ResubmitApp(id string, newManifest manifest.AppManifest) (*RegisteredApp, error) {
	if result := manifest.Validate(newManifest); !result.Valid {
		return nil, newManifestError(result)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, newErr(CodeAppNotFound, "app %q not found", id)
	}
	if !s.isValidAppTransition(app.Status, StatusPendingReview) {
		return nil, newErr(CodeInvalidStateTransition, "cannot resubmit app in state %q", app.Status)
	}
	if newManifest.AppID != app.Manifest.AppID {
		return nil, newErr(CodeInvalidStateTransition, "resubmission must keep appId %q", app.Manifest.AppID)
	}

	app.Manifest = newManifest
	app.Status = StatusPendingReview
	app.RejectionReason = ""
	app.UpdatedAt = s.clock.Now()
	return app.Clone(), nil
}

// transitionApp performs a guarded state transition from the app's current
// state to `to`, applying an optional mutation after the transition succeeds.
func (s *Store) transitionApp(id string, to Status, mutate func(*RegisteredApp)) (*RegisteredApp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, newErr(CodeAppNotFound, "app %q not found", id)
	}
	if !s.isValidAppTransition(app.Status, to) {
		return nil, newErr(CodeInvalidStateTransition, "cannot move app from %q to %q", app.Status, to)
	}
	app.Status = to
	app.UpdatedAt = s.clock.Now()
	if mutate != nil {
		mutate(app)
	}
	return app.Clone(), nil
}

// UpdateAppVersion preserves appId and replaces the manifest. If the new
// scopes are a strict superset of the app's previously-approved scopes,
// status reverts to pending_review; otherwise the app's approved status is
// left untouched.
func (s *Store) UpdateAppVersion(id string, newManifest manifest.AppManifest) (*RegisteredApp, error) {
	if result := manifest.Validate(newManifest); !result.Valid {
		return nil, newManifestError(result)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, newErr(CodeAppNotFound, "app %q not found", id)
	}
	if newManifest.AppID != app.Manifest.AppID {
		return nil, newErr(CodeInvalidStateTransition, "version update must keep appId %q", app.Manifest.AppID)
	}

	oldExpanded := scopes.Expand(app.Manifest.Scopes)
	newExpanded := scopes.Expand(newManifest.Scopes)
	isStrictSuperset := isStrictSupersetOf(newExpanded, oldExpanded)

	app.Manifest = newManifest
	app.UpdatedAt = s.clock.Now()
	if isStrictSuperset && app.Status == StatusApproved {
		app.Status = StatusPendingReview
	}
	return app.Clone(), nil
}

func isStrictSupersetOf(super, sub []string) bool {
	if !scopes.IsSubsetOfExpanded(sub, super) {
		return false
	}
	return len(super) > len(sub)
}

// InstallApp installs appID into workspaceID with requestedScopes (defaults
// to the full manifest scope set when nil). The app must be approved, the
// requested scopes must be a subset of the manifest's expanded scopes, and
// at most one non-uninstalled installation may exist per (appID, workspaceID).
func (s *Store) InstallApp(appID, workspaceID, actor string, requestedScopes []string) (*AppInstallation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app := s.findByAppIDLocked(appID)
	if app == nil {
		return nil, newErr(CodeAppNotFound, "app %q not found", appID)
	}
	if app.Status != StatusApproved {
		return nil, newErr(CodeInvalidStateTransition, "app %q is not approved", appID)
	}
	if existing := s.findActiveInstallationLocked(appID, workspaceID); existing != nil {
		return nil, newErr(CodeInstallationExists, "app %q is already installed in workspace %q", appID, workspaceID)
	}

	want := requestedScopes
	if want == nil {
		want = append([]string(nil), app.Manifest.Scopes...)
	}
	if !scopes.IsSubsetOfExpanded(want, app.Manifest.Scopes) {
		return nil, newErr(CodeScopeNotInManifest, "requested scopes exceed manifest scopes for app %q", appID)
	}

	now := s.clock.Now()
	inst := &AppInstallation{
		ID:            ids.New("ins_"),
		AppID:         appID,
		WorkspaceID:   workspaceID,
		GrantedScopes: want,
		Status:        InstallationInstalled,
		InstalledBy:   actor,
		InstalledAt:   now,
		UpdatedAt:     now,
	}
	s.insts[inst.ID] = inst
	return inst.Clone(), nil
}

// UpdateInstallationScopes replaces an installation's granted scopes,
// bounded by the app's current manifest scopes.
func (s *Store) UpdateInstallationScopes(installationID string, newScopes []string) (*AppInstallation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.insts[installationID]
	if !ok {
		return nil, newErr(CodeInstallationNotFound, "installation %q not found", installationID)
	}
	app := s.findByAppIDLocked(inst.AppID)
	if app == nil {
		return nil, newErr(CodeAppNotFound, "app %q not found", inst.AppID)
	}
	if !scopes.IsSubsetOfExpanded(newScopes, app.Manifest.Scopes) {
		return nil, newErr(CodeScopeNotInManifest, "requested scopes exceed manifest scopes for app %q", inst.AppID)
	}
	inst.GrantedScopes = newScopes
	inst.UpdatedAt = s.clock.Now()
	return inst.Clone(), nil
}

// EnableInstallation transitions disabled -> installed.
func (s *Store) EnableInstallation(installationID string) (*AppInstallation, error) {
	return s.transitionInstallation(installationID, InstallationDisabled, InstallationInstalled)
}

// DisableInstallation transitions installed -> disabled.
func (s *Store) DisableInstallation(installationID string) (*AppInstallation, error) {
	return s.transitionInstallation(installationID, InstallationInstalled, InstallationDisabled)
}

// UninstallApp transitions installed|disabled -> uninstalled. A later
// InstallApp call for the same (appID, workspaceID) is then allowed again.
func (s *Store) UninstallApp(installationID string) (*AppInstallation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.insts[installationID]
	if !ok {
		return nil, newErr(CodeInstallationNotFound, "installation %q not found", installationID)
	}
	if inst.Status == InstallationUninstalled {
		return nil, newErr(CodeInvalidStateTransition, "installation %q is already uninstalled", installationID)
	}
	inst.Status = InstallationUninstalled
	inst.UpdatedAt = s.clock.Now()
	return inst.Clone(), nil
}

func (s *Store) transitionInstallation(installationID string, from, to InstallationStatus) (*AppInstallation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.insts[installationID]
	if !ok {
		return nil, newErr(CodeInstallationNotFound, "installation %q not found", installationID)
	}
	if inst.Status != from {
		return nil, newErr(CodeInvalidStateTransition, "cannot move installation from %q to %q", inst.Status, to)
	}
	inst.Status = to
	inst.UpdatedAt = s.clock.Now()
	return inst.Clone(), nil
}
