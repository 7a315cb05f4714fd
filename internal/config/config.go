package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v2"
)

// =============================================================================
// Trust Plane Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Quota       QuotaConfig       `yaml:"quota"`
	Spam        SpamConfig        `yaml:"spam"`
	Raid        RaidConfig        `yaml:"raid"`
	Privacy     PrivacyConfig     `yaml:"privacy"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Auth        AuthConfig        `yaml:"auth"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Identity    IdentityConfig    `yaml:"identity"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	Interface        string   `yaml:"interface"`
	ReadTimeoutSec   int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec   int      `yaml:"idle_timeout_sec"`
	ShutdownTimeout  int      `yaml:"shutdown_timeout_sec"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// QuotaConfig holds the default token-bucket policy per action. Per-user
// and per-channel overrides are configured at runtime via the admin API,
// not through this static file.
type QuotaConfig struct {
	DefaultLimit      int   `yaml:"default_limit"`
	DefaultWindowMs   int64 `yaml:"default_window_ms"`
	DefaultBurstLimit int   `yaml:"default_burst_limit"`
}

// SpamConfig tunes the heuristic spam detector's thresholds.
type SpamConfig struct {
	SpamThreshold        float64 `yaml:"spam_threshold"`
	RecentMessageHistory int     `yaml:"recent_message_history"`
	WindowMs             int64   `yaml:"window_ms"`
}

// RaidConfig tunes join-velocity analysis and auto-lockdown behavior.
type RaidConfig struct {
	WindowMs                  int64   `yaml:"window_ms"`
	VelocityThreshold         int     `yaml:"velocity_threshold"`
	VelocityCriticalThreshold int     `yaml:"velocity_critical_threshold"`
	NewAccountAgeDays         int     `yaml:"new_account_age_days"`
	NewAccountThreshold       float64 `yaml:"new_account_threshold"`
	AutoLockdownEnabled       bool    `yaml:"auto_lockdown_enabled"`
	AutoLockdownLevel         string  `yaml:"auto_lockdown_level"`
	AutoLockdownDurationSec   int     `yaml:"auto_lockdown_duration_sec"`
}

// PrivacyConfig sets the default preset for newly created users.
type PrivacyConfig struct {
	DefaultLevel      string `yaml:"default_level"`
	MaxRetentionDays  int    `yaml:"max_retention_days"`
	HashSalt          string `yaml:"hash_salt"`
}

// DispatchConfig tunes the webhook dispatcher's retry/backoff/timeout
// behavior.
type DispatchConfig struct {
	MaxRetries           int   `yaml:"max_retries"`
	InitialRetryDelayMs  int64 `yaml:"initial_retry_delay_ms"`
	TimeoutSec           int   `yaml:"timeout_sec"`
}

// AuthConfig tunes token TTLs.
type AuthConfig struct {
	AccessTTLSec  int64 `yaml:"access_ttl_sec"`
	RefreshTTLSec int64 `yaml:"refresh_ttl_sec"`
}

// PersistenceConfig selects and configures the host-side snapshot backend.
type PersistenceConfig struct {
	Backend        string `yaml:"backend"` // "redis", "postgres", or "" (disabled)
	RedisAddr      string `yaml:"redis_addr"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	SnapshotTable  string `yaml:"snapshot_table"`
	SyncIntervalSec int   `yaml:"sync_interval_sec"`
}

// IdentityConfig configures the optional SPIFFE/SPIRE workload identity
// used for the webhook dispatcher's outbound mTLS client.
type IdentityConfig struct {
	Enabled     bool   `yaml:"enabled"`
	SocketPath  string `yaml:"socket_path"`
	TrustDomain string `yaml:"trust_domain"`
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// =============================================================================
// Singleton Pattern with Environment Overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file (using defaults)", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from YAML file
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	// Server
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("TRUSTPLANE_ENV", c.Server.Env)
	c.Server.Interface = getEnv("TRUSTPLANE_INTERFACE", c.Server.Interface)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowOrigins = splitCSV(origins)
	}

	// Quota
	if v := getEnvInt("QUOTA_DEFAULT_LIMIT", 0); v > 0 {
		c.Quota.DefaultLimit = v
	}
	if v := getEnvInt("QUOTA_DEFAULT_WINDOW_MS", 0); v > 0 {
		c.Quota.DefaultWindowMs = int64(v)
	}
	if v := getEnvInt("QUOTA_DEFAULT_BURST_LIMIT", 0); v > 0 {
		c.Quota.DefaultBurstLimit = v
	}

	// Spam
	if v := getEnvFloat("SPAM_THRESHOLD", 0); v > 0 {
		c.Spam.SpamThreshold = v
	}
	if v := getEnvInt("SPAM_RECENT_HISTORY", 0); v > 0 {
		c.Spam.RecentMessageHistory = v
	}

	// Raid
	if v := getEnvInt("RAID_VELOCITY_THRESHOLD", 0); v > 0 {
		c.Raid.VelocityThreshold = v
	}
	if v := getEnvInt("RAID_VELOCITY_CRITICAL_THRESHOLD", 0); v > 0 {
		c.Raid.VelocityCriticalThreshold = v
	}
	c.Raid.AutoLockdownEnabled = getEnvBool("RAID_AUTO_LOCKDOWN_ENABLED", c.Raid.AutoLockdownEnabled)
	c.Raid.AutoLockdownLevel = getEnv("RAID_AUTO_LOCKDOWN_LEVEL", c.Raid.AutoLockdownLevel)

	// Privacy
	c.Privacy.DefaultLevel = getEnv("PRIVACY_DEFAULT_LEVEL", c.Privacy.DefaultLevel)
	c.Privacy.HashSalt = getEnv("PRIVACY_HASH_SALT", c.Privacy.HashSalt)
	if v := getEnvInt("PRIVACY_MAX_RETENTION_DAYS", 0); v > 0 {
		c.Privacy.MaxRetentionDays = v
	}

	// Dispatch
	if v := getEnvInt("DISPATCH_MAX_RETRIES", 0); v > 0 {
		c.Dispatch.MaxRetries = v
	}
	if v := getEnvInt("DISPATCH_TIMEOUT_SEC", 0); v > 0 {
		c.Dispatch.TimeoutSec = v
	}

	// Auth
	if v := getEnvInt("AUTH_ACCESS_TTL_SEC", 0); v > 0 {
		c.Auth.AccessTTLSec = int64(v)
	}
	if v := getEnvInt("AUTH_REFRESH_TTL_SEC", 0); v > 0 {
		c.Auth.RefreshTTLSec = int64(v)
	}

	// Persistence
	c.Persistence.Backend = getEnv("PERSISTENCE_BACKEND", c.Persistence.Backend)
	c.Persistence.RedisAddr = getEnv("REDIS_ADDR", c.Persistence.RedisAddr)
	c.Persistence.PostgresDSN = getEnv("POSTGRES_DSN", c.Persistence.PostgresDSN)

	// Identity
	c.Identity.Enabled = getEnvBool("SPIFFE_ENABLED", c.Identity.Enabled)
	c.Identity.SocketPath = getEnv("SPIFFE_ENDPOINT_SOCKET", c.Identity.SocketPath)
	c.Identity.TrustDomain = getEnv("SPIFFE_TRUST_DOMAIN", c.Identity.TrustDomain)

	// Metrics
	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)

	c.applyDefaults()
}

// applyDefaults sets sensible defaults for zero-valued config fields
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if len(c.Server.CORSAllowOrigins) == 0 {
		c.Server.CORSAllowOrigins = []string{"*"}
	}
	if c.Quota.DefaultLimit == 0 {
		c.Quota.DefaultLimit = 60
	}
	if c.Quota.DefaultWindowMs == 0 {
		c.Quota.DefaultWindowMs = 60_000
	}
	if c.Spam.SpamThreshold == 0 {
		c.Spam.SpamThreshold = 0.6
	}
	if c.Spam.RecentMessageHistory == 0 {
		c.Spam.RecentMessageHistory = 10
	}
	if c.Spam.WindowMs == 0 {
		c.Spam.WindowMs = 10_000
	}
	if c.Raid.WindowMs == 0 {
		c.Raid.WindowMs = 60_000
	}
	if c.Raid.VelocityThreshold == 0 {
		c.Raid.VelocityThreshold = 10
	}
	if c.Raid.VelocityCriticalThreshold == 0 {
		c.Raid.VelocityCriticalThreshold = 30
	}
	if c.Raid.NewAccountAgeDays == 0 {
		c.Raid.NewAccountAgeDays = 7
	}
	if c.Raid.NewAccountThreshold == 0 {
		c.Raid.NewAccountThreshold = 0.5
	}
	if c.Raid.AutoLockdownLevel == "" {
		c.Raid.AutoLockdownLevel = "partial"
	}
	if c.Raid.AutoLockdownDurationSec == 0 {
		c.Raid.AutoLockdownDurationSec = 600
	}
	if c.Privacy.DefaultLevel == "" {
		c.Privacy.DefaultLevel = "balanced"
	}
	if c.Privacy.MaxRetentionDays == 0 {
		c.Privacy.MaxRetentionDays = 730
	}
	if c.Dispatch.MaxRetries == 0 {
		c.Dispatch.MaxRetries = 2
	}
	if c.Dispatch.InitialRetryDelayMs == 0 {
		c.Dispatch.InitialRetryDelayMs = 1000
	}
	if c.Dispatch.TimeoutSec == 0 {
		c.Dispatch.TimeoutSec = 30
	}
	if c.Auth.AccessTTLSec == 0 {
		c.Auth.AccessTTLSec = 3600
	}
	if c.Auth.RefreshTTLSec == 0 {
		c.Auth.RefreshTTLSec = 2_592_000
	}
	if c.Persistence.SnapshotTable == "" {
		c.Persistence.SnapshotTable = "trustplane_snapshots"
	}
	if c.Persistence.SyncIntervalSec == 0 {
		c.Persistence.SyncIntervalSec = 60
	}
	if c.Identity.TrustDomain == "" {
		c.Identity.TrustDomain = "trustplane.local"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// =============================================================================
// Convenience Methods
// =============================================================================

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) GetPort() string {
	if c.Server.Port == "" {
		return "8080"
	}
	return c.Server.Port
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTTLSec) * time.Second
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTTLSec) * time.Second
}

func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.Dispatch.TimeoutSec) * time.Second
}

func (c *Config) InitialRetryDelay() time.Duration {
	return time.Duration(c.Dispatch.InitialRetryDelayMs) * time.Millisecond
}
