package events

import "encoding/json"

// Export serializes every subscription for host-side persistence. Delivery
// history is not included here — it belongs to the Ledger, exported
// separately since a host may retain it on a different schedule.
func (r *Registry) Export() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]*Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s.clone())
	}
	return json.Marshal(subs)
}

// Import replaces the registry's subscription set from a prior Export.
func (r *Registry) Import(data []byte) error {
	var subs []*Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs = make(map[string]*Subscription, len(subs))
	r.byAppInstallation = make(map[string]string, len(subs))
	for _, s := range subs {
		r.subs[s.ID] = s
		r.byAppInstallation[installKey(s.AppID, s.InstallationID)] = s.ID
	}
	return nil
}
