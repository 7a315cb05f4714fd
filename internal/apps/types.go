// Package apps implements the App Store and lifecycle FSM: RegisteredApp
// and AppInstallation entities, and the operations that transition them.
//
// Grounded on the teacher's internal/federation/state_machine.go for the
// transition-table shape, and internal/marketplace/installer.go for the
// per-tenant installation bookkeeping — repurposed here from AOCS handshake
// states and marketplace connectors to app-review states and workspace
// installations.
package apps

import (
	"time"

	"github.com/nchat/trustplane/internal/manifest"
)

// Status is a RegisteredApp's lifecycle state.
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusSuspended     Status = "suspended"
)

// RegisteredApp owns a manifest and tracks its review lifecycle. Only a
// bcrypt hash of the client secret is ever stored; the plaintext is
// returned to the caller once, at registration, and never persisted.
//
// WebhookSigningSecret is a separate value kept in plaintext: it is an HMAC
// key the dispatcher must be able to read back to sign outgoing webhook
// deliveries, not a credential presented back to us to verify, so it is not
// a bcrypt hashing candidate.
type RegisteredApp struct {
	ID                   string
	Manifest             manifest.AppManifest
	ClientSecretHash     string
	WebhookSigningSecret string
	Status               Status
	RegisteredBy         string
	RegisteredAt         time.Time
	UpdatedAt            time.Time
	RejectionReason      string
}

// Clone returns a value copy safe to hand to callers without exposing the
// store's internal pointer.
func (a *RegisteredApp) Clone() *RegisteredApp {
	cp := *a
	return &cp
}

// InstallationStatus is an AppInstallation's lifecycle state.
type InstallationStatus string

const (
	InstallationInstalled  InstallationStatus = "installed"
	InstallationDisabled   InstallationStatus = "disabled"
	InstallationUninstalled InstallationStatus = "uninstalled"
)

// AppInstallation is one deployment of an app into a workspace.
type AppInstallation struct {
	ID             string
	AppID          string
	WorkspaceID    string
	GrantedScopes  []string
	Status         InstallationStatus
	InstalledBy    string
	InstalledAt    time.Time
	UpdatedAt      time.Time
}

func (i *AppInstallation) Clone() *AppInstallation {
	cp := *i
	cp.GrantedScopes = append([]string(nil), i.GrantedScopes...)
	return &cp
}
