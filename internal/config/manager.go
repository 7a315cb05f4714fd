package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// WorkspacesConfig holds a map of per-workspace config overrides.
type WorkspacesConfig struct {
	Workspaces map[string]Config `yaml:"workspaces"`
}

// Manager resolves the effective config for a workspace: the global config
// with any workspace-specific quota/spam/raid/privacy overrides layered
// on top. Only a handful of sections are meaningful to override per
// workspace — server/persistence/identity/metrics stay global.
type Manager struct {
	globalConfig    *Config
	workspaceConfig map[string]Config
	mu              sync.RWMutex
}

// NewManager loads the global config from masterPath and, if present, a
// workspaces overrides file from workspacesPath.
func NewManager(masterPath, workspacesPath string) (*Manager, error) {
	master, err := LoadConfig(masterPath)
	if err != nil {
		return nil, err
	}
	master.applyEnvOverrides()

	f, err := os.Open(workspacesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{globalConfig: master, workspaceConfig: make(map[string]Config)}, nil
		}
		return nil, err
	}
	defer f.Close()

	var wc WorkspacesConfig
	if err := yaml.NewDecoder(f).Decode(&wc); err != nil {
		return nil, err
	}

	return &Manager{
		globalConfig:    master,
		workspaceConfig: wc.Workspaces,
	}, nil
}

// Get returns the effective config for a workspace, merging any override
// on top of the global config. An empty workspaceID (or one with no
// override entry) returns a copy of the global config unchanged.
func (m *Manager) Get(workspaceID string) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	effective := *m.globalConfig

	override, ok := m.workspaceConfig[workspaceID]
	if !ok {
		return &effective
	}

	if override.Quota.DefaultLimit != 0 {
		effective.Quota = override.Quota
	}
	if override.Spam.SpamThreshold != 0 {
		effective.Spam = override.Spam
	}
	if override.Raid.VelocityThreshold != 0 {
		effective.Raid = override.Raid
	}
	if override.Privacy.DefaultLevel != "" {
		effective.Privacy = override.Privacy
	}
	if override.Dispatch.MaxRetries != 0 {
		effective.Dispatch = override.Dispatch
	}

	return &effective
}

// SetWorkspaceOverride installs or replaces a workspace's override at
// runtime (e.g. from an admin API call), without requiring a process
// restart to pick up the workspaces file.
func (m *Manager) SetWorkspaceOverride(workspaceID string, override Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.workspaceConfig == nil {
		m.workspaceConfig = make(map[string]Config)
	}
	m.workspaceConfig[workspaceID] = override
}
