// Package identity provides optional SPIFFE/SPIRE-based mTLS identity for
// the webhook dispatcher's outbound HTTP client, so a deployment can prove
// its own identity to receiver endpoints that require it.
//
// Grounded on the teacher's internal/identity/spiffe.go agent-attestation
// wrapper around go-spiffe's workload API; generalized here from verifying
// inbound agent SVIDs to minting an outbound mTLS *http.Client the event
// dispatcher uses in place of a plain http.Client.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
)

// WorkloadIdentity holds a connection to the local SPIRE agent and mints
// mTLS-capable HTTP clients for the dispatcher.
type WorkloadIdentity struct {
	source *workloadapi.X509Source
}

// Connect dials the SPIRE workload API at socketPath. A short timeout keeps
// a missing SPIRE agent from blocking process startup — callers treat a
// non-nil error as "run without mTLS identity."
func Connect(socketPath string) (*WorkloadIdentity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	source, err := workloadapi.NewX509Source(
		ctx,
		workloadapi.WithClientOptions(workloadapi.WithAddr(socketPath)),
	)
	if err != nil {
		return nil, fmt.Errorf("identity: connect to SPIRE at %s: %w", socketPath, err)
	}
	slog.Info("connected to SPIRE agent", "socket_path", socketPath)
	return &WorkloadIdentity{source: source}, nil
}

// HTTPClient returns an *http.Client authorized to present this workload's
// SVID and to accept any SPIFFE-identified peer. Authorizing a specific
// receiver trust domain is a deployment-time decision left to the caller.
func (w *WorkloadIdentity) HTTPClient(timeout time.Duration) (*http.Client, error) {
	tlsConf := tlsconfig.MTLSClientConfig(w.source, w.source, tlsconfig.AuthorizeAny())
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConf},
	}, nil
}

// Close releases the SPIRE workload API connection.
func (w *WorkloadIdentity) Close() error {
	return w.source.Close()
}

// WebhookSPIFFEID builds the deployment's own SPIFFE ID for presenting to
// webhook receivers that authorize by identity rather than secret alone.
func WebhookSPIFFEID(trustDomain, appID string) (spiffeid.ID, error) {
	return spiffeid.FromString(fmt.Sprintf("spiffe://%s/webhook-dispatcher/%s", trustDomain, appID))
}
