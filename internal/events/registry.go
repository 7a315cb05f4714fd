package events

import (
	"strings"
	"sync"

	"github.com/nchat/trustplane/internal/ids"
	"github.com/nchat/trustplane/internal/scopes"
)

// Registry owns the Subscription map exclusively via a single
// reader-writer lock.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription // id -> subscription

	// byAppInstallation enforces the "at most one subscription per
	// (appId, installationId)" invariant without scanning subs.
	byAppInstallation map[string]string // "appID:installationID" -> subscription id
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		subs:              make(map[string]*Subscription),
		byAppInstallation: make(map[string]string),
	}
}

func installKey(appID, installationID string) string {
	return appID + ":" + installationID
}

// Subscribe registers (or idempotently updates) a subscription for
// (appID, installationID). grantedScopes gates which event types are
// reachable: every requested event type's RequiredScopes entry must be
// satisfied, except app.* lifecycle events which need no scope.
func (r *Registry) Subscribe(appID, installationID string, eventTypes []Type, webhookURL string, grantedScopes []string) (*Subscription, error) {
	if strings.TrimSpace(webhookURL) == "" || !(strings.HasPrefix(webhookURL, "http://") || strings.HasPrefix(webhookURL, "https://")) {
		return nil, newErr(CodeInvalidWebhookURL, "webhook URL must use http or https")
	}
	for _, et := range eventTypes {
		required, ok := RequiredScopes[et]
		if !ok {
			continue // app lifecycle events need no scope
		}
		if !scopes.HasAllScopes(grantedScopes, required) {
			return nil, newErr(CodeInsufficientScope, "installation lacks scopes %v required for event %q", required, et)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := installKey(appID, installationID)
	if existingID, ok := r.byAppInstallation[key]; ok {
		existing := r.subs[existingID]
		existing.Events = append([]Type(nil), eventTypes...)
		existing.WebhookURL = webhookURL
		existing.Active = true
		return existing.clone(), nil
	}

	sub := &Subscription{
		ID:             ids.New("sub_"),
		AppID:          appID,
		InstallationID: installationID,
		Events:         append([]Type(nil), eventTypes...),
		WebhookURL:     webhookURL,
		Active:         true,
	}
	r.subs[sub.ID] = sub
	r.byAppInstallation[key] = sub.ID
	return sub.clone(), nil
}

// Unsubscribe deactivates a subscription; it remains queryable by ID but no
// longer receives dispatches.
func (r *Registry) Unsubscribe(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return newErr(CodeSubscriptionNotFound, "subscription %q not found", id)
	}
	sub.Active = false
	return nil
}

// Get returns a clone of the subscription with the given ID, or nil.
func (r *Registry) Get(id string) *Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil
	}
	return sub.clone()
}

// ActiveSubscribersFor returns every active subscription whose Events
// includes eventType.
func (r *Registry) ActiveSubscribersFor(eventType Type) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Subscription
	for _, sub := range r.subs {
		if !sub.Active {
			continue
		}
		for _, et := range sub.Events {
			if et == eventType {
				out = append(out, sub.clone())
				break
			}
		}
	}
	return out
}
