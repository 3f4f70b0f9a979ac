// Package syncconfig loads the user-level sync settings and credentials
// stored under ~/.config/tp, with environment overrides.
package syncconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AutoSyncConfig holds background sync settings.
type AutoSyncConfig struct {
	Enabled       *bool  `json:"enabled,omitempty"`        // nil = default true
	Interval      string `json:"interval,omitempty"`       // duration string, default "5m"
	ProbeInterval string `json:"probe_interval,omitempty"` // duration string, default "30s"
	PushTimeout   string `json:"push_timeout,omitempty"`   // duration string, default "5s"
}

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL     string         `json:"url"`
	Timeout string         `json:"timeout,omitempty"` // per remote call, default "10s"
	Auto    AutoSyncConfig `json:"auto"`
}

// Config is the global tp config stored at ~/.config/tp/config.json.
type Config struct {
	Sync SyncConfig `json:"sync"`
}

// AuthCredentials stores authentication state at ~/.config/tp/auth.json.
type AuthCredentials struct {
	APIKey    string `json:"api_key"`
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	ServerURL string `json:"server_url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/tp, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "tp")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LoadConfig reads the global config. A missing file yields defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	if _, err := readJSON("config.json", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config.
func SaveConfig(cfg *Config) error {
	return writeJSON("config.json", cfg, 0644)
}

// LoadAuth reads stored credentials. It returns nil when none are stored.
func LoadAuth() (*AuthCredentials, error) {
	var creds AuthCredentials
	ok, err := readJSON("auth.json", &creds)
	if err != nil || !ok {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes credentials readable by the owner only.
func SaveAuth(creds *AuthCredentials) error {
	return writeJSON("auth.json", creds, 0600)
}

// ClearAuth removes stored credentials.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetServerURL returns the sync server URL.
// Priority: TP_SYNC_URL env > auth.json > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("TP_SYNC_URL"); v != "" {
		return v
	}
	if creds, err := LoadAuth(); err == nil && creds != nil && creds.ServerURL != "" {
		return creds.ServerURL
	}
	if cfg, err := LoadConfig(); err == nil && cfg.Sync.URL != "" {
		return cfg.Sync.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key.
// Priority: TP_AUTH_KEY env > auth.json.
func GetAPIKey() string {
	if v := os.Getenv("TP_AUTH_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.APIKey
	}
	return ""
}

// IsAuthenticated returns true if an API key is available.
func IsAuthenticated() bool {
	return GetAPIKey() != ""
}

// GetAutoSyncEnabled returns whether background sync runs while a
// principal is active.
// Priority: TP_SYNC_AUTO env > config.json sync.auto.enabled > true
func GetAutoSyncEnabled() bool {
	if v := parseBoolEnv("TP_SYNC_AUTO"); v != nil {
		return *v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Enabled != nil {
		return *cfg.Sync.Auto.Enabled
	}
	return true
}

// GetAutoSyncInterval returns the periodic sync interval.
// Priority: TP_SYNC_INTERVAL env > config.json sync.auto.interval > 5m
func GetAutoSyncInterval() time.Duration {
	return duration("TP_SYNC_INTERVAL", func(c *Config) string { return c.Sync.Auto.Interval }, 5*time.Minute)
}

// GetProbeInterval returns how often connectivity is probed while offline.
// Priority: TP_SYNC_PROBE_INTERVAL env > config.json sync.auto.probe_interval > 30s
func GetProbeInterval() time.Duration {
	return duration("TP_SYNC_PROBE_INTERVAL", func(c *Config) string { return c.Sync.Auto.ProbeInterval }, 30*time.Second)
}

// GetPushTimeout bounds the immediate push run after a local mutation.
// Priority: TP_SYNC_PUSH_TIMEOUT env > config.json sync.auto.push_timeout > 5s
func GetPushTimeout() time.Duration {
	return duration("TP_SYNC_PUSH_TIMEOUT", func(c *Config) string { return c.Sync.Auto.PushTimeout }, 5*time.Second)
}

// GetRequestTimeout bounds every remote call.
// Priority: TP_SYNC_TIMEOUT env > config.json sync.timeout > 10s
func GetRequestTimeout() time.Duration {
	return duration("TP_SYNC_TIMEOUT", func(c *Config) string { return c.Sync.Timeout }, 10*time.Second)
}

// duration resolves a positive duration from env, then config, then def.
func duration(envKey string, fromConfig func(*Config) string, def time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil {
		if v := fromConfig(cfg); v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				return d
			}
		}
	}
	return def
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := strings.ToLower(os.Getenv(envKey))
	switch v {
	case "1", "true", "yes":
		b := true
		return &b
	case "0", "false", "no":
		b := false
		return &b
	}
	return nil
}

func readJSON(name string, v any) (bool, error) {
	dir, err := ConfigDir()
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

func writeJSON(name string, v any, perm os.FileMode) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, perm)
}
