package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	// UserID is the identity used when no bearer token is presented
	// (CLI, MCP, and the web UI when JWTSecret is empty).
	UserID string `json:"user_id,omitempty"`

	// Store selects the document store backend: "sqlite" (default) or "redis".
	Store string `json:"store,omitempty"`

	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`

	// DebounceMs is the quiet period after the last edit before a write fires.
	DebounceMs int `json:"debounce_ms"`

	// SavedDisplayMs is how long the "saved" status shows before reverting to idle.
	SavedDisplayMs int `json:"saved_display_ms"`

	// WriteTimeoutMs bounds a single store write issued by the autosave loop.
	WriteTimeoutMs int `json:"write_timeout_ms"`

	// SessionIdleMinutes closes web editing sessions nobody has touched for this long.
	SessionIdleMinutes int `json:"session_idle_minutes"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// JWTSecret enables bearer-token identity on the web server. Prefer setting
	// it through SCRIBE_JWT_SECRET in <base>/.env over config.json.
	JWTSecret string `json:"jwt_secret,omitempty"`

	// TokenTTLHours is the lifetime of tokens minted by `scribe token`.
	TokenTTLHours int `json:"token_ttl_hours"`

	LogLevel  string `json:"log_level,omitempty"`
	LogPretty bool   `json:"log_pretty,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store:              StoreSQLite,
		RedisAddr:          "localhost:6379",
		DebounceMs:         1500,
		SavedDisplayMs:     2000,
		WriteTimeoutMs:     10000,
		SessionIdleMinutes: 30,
		TokenTTLHours:      24,
		LogLevel:           "info",
	}
}

// Debounce returns DebounceMs as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// SavedDisplay returns SavedDisplayMs as a duration.
func (c *Config) SavedDisplay() time.Duration {
	return time.Duration(c.SavedDisplayMs) * time.Millisecond
}

// WriteTimeout returns WriteTimeoutMs as a duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

// SessionIdle returns SessionIdleMinutes as a duration.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// TokenTTL returns TokenTTLHours as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// Validate rejects values the rest of the program cannot run with.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("store must be one of: %s, %s (got %q)", StoreSQLite, StoreRedis, c.Store)
	}
	if c.DebounceMs <= 0 {
		return fmt.Errorf("debounce_ms must be > 0, got %d", c.DebounceMs)
	}
	if c.SavedDisplayMs <= 0 {
		return fmt.Errorf("saved_display_ms must be > 0, got %d", c.SavedDisplayMs)
	}
	if c.WriteTimeoutMs <= 0 {
		return fmt.Errorf("write_timeout_ms must be > 0, got %d", c.WriteTimeoutMs)
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.scribe.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.scribe) and repo (.scribe) directories.
// Repo config is found by walking upward from startDir to find the nearest .scribe/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment overrides are applied last.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	if err := ApplyEnv(cfg, filepath.Join(globalDir, ".env")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .scribe/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".scribe", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// envKeys lists the variables ApplyEnv reads.
var envKeys = []string{
	"SCRIBE_USER",
	"SCRIBE_STORE",
	"SCRIBE_REDIS_ADDR",
	"SCRIBE_REDIS_PASSWORD",
	"SCRIBE_REDIS_DB",
	"SCRIBE_JWT_SECRET",
	"SCRIBE_LOG_LEVEL",
	"SCRIBE_DEBOUNCE_MS",
}

// ApplyEnv overrides cfg from the dotenv file at envPath (if present) and the
// process environment. Non-blank process variables win over the file.
func ApplyEnv(cfg *Config, envPath string) error {
	fileVars := map[string]string{}
	if envPath != "" {
		vars, err := godotenv.Read(envPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", envPath, err)
		}
		if vars != nil {
			fileVars = vars
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}

	for _, key := range envKeys {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		v = strings.TrimSpace(v)
		switch key {
		case "SCRIBE_USER":
			cfg.UserID = v
		case "SCRIBE_STORE":
			cfg.Store = v
		case "SCRIBE_REDIS_ADDR":
			cfg.RedisAddr = v
		case "SCRIBE_REDIS_PASSWORD":
			cfg.RedisPassword = v
		case "SCRIBE_REDIS_DB":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be an integer: %w", key, err)
			}
			cfg.RedisDB = n
		case "SCRIBE_JWT_SECRET":
			cfg.JWTSecret = v
		case "SCRIBE_LOG_LEVEL":
			cfg.LogLevel = v
		case "SCRIBE_DEBOUNCE_MS":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be an integer: %w", key, err)
			}
			cfg.DebounceMs = n
		}
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.UserID = pickString(overlay.UserID, base.UserID)
	result.Store = pickString(overlay.Store, base.Store)
	result.RedisAddr = pickString(overlay.RedisAddr, base.RedisAddr)
	result.RedisPassword = pickString(overlay.RedisPassword, base.RedisPassword)
	result.JWTSecret = pickString(overlay.JWTSecret, base.JWTSecret)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)

	result.RedisDB = pickInt(overlay.RedisDB, base.RedisDB)
	result.DebounceMs = pickInt(overlay.DebounceMs, base.DebounceMs)
	result.SavedDisplayMs = pickInt(overlay.SavedDisplayMs, base.SavedDisplayMs)
	result.WriteTimeoutMs = pickInt(overlay.WriteTimeoutMs, base.WriteTimeoutMs)
	result.SessionIdleMinutes = pickInt(overlay.SessionIdleMinutes, base.SessionIdleMinutes)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.TokenTTLHours = pickInt(overlay.TokenTTLHours, base.TokenTTLHours)

	// Booleans: overlay wins if true, else base
	result.LogPretty = base.LogPretty || overlay.LogPretty

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
