// ABOUTME: Configuration loading and parsing for the brewdesk clients and backend
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/brewdesk/internal/catalog"
)

// EnvConfigPath names the environment variable consulted by Resolve.
const EnvConfigPath = "BREWDESK_CONFIG"

// minSecretLen is the shortest accepted session-signing secret.
const minSecretLen = 32

// Config represents the complete brewdesk configuration
type Config struct {
	API     APIConfig     `yaml:"api" toml:"api"`
	Session SessionConfig `yaml:"session" toml:"session"`
	Chat    ChatConfig    `yaml:"chat" toml:"chat"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Backend BackendConfig `yaml:"backend" toml:"backend"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// APIConfig holds the backend endpoint used by the clients
type APIConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url"`
	PerPage int    `yaml:"per_page" toml:"per_page"`
	// Paths overrides collection paths by kind name ("products: /drinkware")
	Paths map[string]string `yaml:"paths" toml:"paths"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// SessionConfig holds admin session behaviour
type SessionConfig struct {
	// ForceLocalLogout drops the local session even when the logout call fails
	ForceLocalLogout bool `yaml:"force_local_logout" toml:"force_local_logout"`
}

// ChatConfig holds chat client settings
type ChatConfig struct {
	SessionID   string `yaml:"session_id" toml:"session_id"`
	SendHistory bool   `yaml:"send_history" toml:"send_history"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// BackendConfig holds settings for the development backend
type BackendConfig struct {
	Addr         string `yaml:"addr" toml:"addr"`
	DatabasePath string `yaml:"database_path" toml:"database_path"`
	// AdminPasswordHash is a bcrypt hash; AdminPassword is accepted for local use
	AdminPasswordHash string  `yaml:"admin_password_hash" toml:"admin_password_hash"`
	AdminPassword     string  `yaml:"admin_password" toml:"admin_password"`
	JWTSecret         string  `yaml:"jwt_secret" toml:"jwt_secret"`
	LoginRate         float64 `yaml:"login_rate" toml:"login_rate"` // attempts per second
	LoginBurst        int     `yaml:"login_burst" toml:"login_burst"`
	SecureCookies     bool    `yaml:"secure_cookies" toml:"secure_cookies"`

	SessionTTL    time.Duration `yaml:"-" toml:"-"`
	SessionTTLRaw string        `yaml:"session_ttl" toml:"session_ttl"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8000",
			PerPage:    100,
			TimeoutRaw: "10s",
			Timeout:    10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Backend: BackendConfig{
			Addr:          "127.0.0.1:8000",
			DatabasePath:  "brewdesk.db",
			LoginRate:     1,
			LoginBurst:    5,
			SessionTTLRaw: "24h",
			SessionTTL:    24 * time.Hour,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Resolve picks the config file to load: the explicit path, then
// $BREWDESK_CONFIG, then ./brewdesk.yaml or ./brewdesk.toml if present.
// An empty result means "use defaults".
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	for _, name := range []string{"brewdesk.yaml", "brewdesk.yml", "brewdesk.toml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Keys missing from the file keep their Default values.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables in the raw content
		expanded := expandEnvVars(string(data))

		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if _, err := toml.Decode(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks the settings shared by every binary.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url %q must start with http:// or https://", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.API.PerPage <= 0 {
		return errors.New("api.per_page must be positive")
	}
	if _, err := c.APIPaths(); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	return nil
}

// ValidateBackend checks the settings the backend needs on top of Validate.
func (c *Config) ValidateBackend() error {
	b := c.Backend
	if b.Addr == "" {
		return errors.New("backend.addr is required")
	}
	if b.DatabasePath == "" {
		return errors.New("backend.database_path is required")
	}
	if b.AdminPasswordHash == "" && b.AdminPassword == "" {
		return errors.New("backend.admin_password_hash or backend.admin_password is required")
	}
	if len(b.JWTSecret) < minSecretLen {
		return fmt.Errorf("backend.jwt_secret must be at least %d bytes", minSecretLen)
	}
	if b.SessionTTL <= 0 {
		return errors.New("backend.session_ttl must be positive")
	}
	if b.LoginRate <= 0 || b.LoginBurst <= 0 {
		return errors.New("backend.login_rate and backend.login_burst must be positive")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}
	return nil
}

// APIPaths converts the path overrides into catalog kinds.
func (c *Config) APIPaths() (map[catalog.Kind]string, error) {
	if len(c.API.Paths) == 0 {
		return nil, nil
	}
	out := make(map[catalog.Kind]string, len(c.API.Paths))
	for name, p := range c.API.Paths {
		k, err := catalog.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("api.paths: %w", err)
		}
		if strings.Trim(p, "/") == "" {
			return nil, fmt.Errorf("api.paths.%s must not be empty", name)
		}
		out[k] = p
	}
	return out, nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.API.TimeoutRaw != "" {
		cfg.API.Timeout, err = time.ParseDuration(cfg.API.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing api.timeout %q: %w", cfg.API.TimeoutRaw, err)
		}
	}

	if cfg.Backend.SessionTTLRaw != "" {
		cfg.Backend.SessionTTL, err = time.ParseDuration(cfg.Backend.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing backend.session_ttl %q: %w", cfg.Backend.SessionTTLRaw, err)
		}
	}

	return nil
}
