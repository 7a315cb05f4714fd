package auth

import "encoding/json"

// Export serializes every issued token (access and refresh, revoked or
// not) for host-side persistence.
func (m *Manager) Export() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := make([]*AppToken, 0, len(m.byID))
	for _, t := range m.byID {
		tokens = append(tokens, t.clone())
	}
	return json.Marshal(tokens)
}

// Import replaces the manager's token set from a prior Export.
func (m *Manager) Import(data []byte) error {
	var tokens []*AppToken
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.byToken = make(map[string]*AppToken, len(tokens))
	m.byID = make(map[string]*AppToken, len(tokens))
	for _, t := range tokens {
		m.byToken[t.TokenString] = t
		m.byID[t.ID] = t
	}
	return nil
}
