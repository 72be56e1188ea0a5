// ABOUTME: Configuration loading and parsing for coven-console
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete coven-console configuration
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Push     PushConfig     `yaml:"push"`
	Operator OperatorConfig `yaml:"operator"`
	Observer ObserverConfig `yaml:"observer"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BackendConfig holds the REST backend connection configuration
type BackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// PushConfig holds the push (WebSocket) channel configuration
type PushConfig struct {
	URL string `yaml:"url"`

	ReconnectInitial time.Duration `yaml:"-"`
	ReconnectMax     time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ReconnectInitialRaw string `yaml:"reconnect_initial"`
	ReconnectMaxRaw     string `yaml:"reconnect_max"`
}

// OperatorConfig holds the local operator identity configuration
type OperatorConfig struct {
	// IdentityPath is the TOML state file holding the operator id. A
	// fresh id is generated and persisted when the file does not exist.
	IdentityPath string `yaml:"identity_path"`
}

// ObserverConfig holds the read-only HTTP surface configuration
type ObserverConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.Token == "" && c.Backend.TokenFile == "" {
		return fmt.Errorf("backend.token or backend.token_file is required")
	}

	if c.Push.URL == "" {
		return fmt.Errorf("push.url is required")
	}
	if !strings.HasPrefix(c.Push.URL, "ws://") && !strings.HasPrefix(c.Push.URL, "wss://") {
		return fmt.Errorf("push.url must be a ws:// or wss:// URL")
	}

	if c.Observer.Enabled && c.Observer.ListenAddr == "" {
		return fmt.Errorf("observer.listen_addr is required when observer is enabled")
	}

	return nil
}

// ResolveToken returns the backend token, reading the token file when the
// inline value is not set.
func (c *Config) ResolveToken() (string, error) {
	if c.Backend.Token != "" {
		return c.Backend.Token, nil
	}
	data, err := os.ReadFile(c.Backend.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", c.Backend.TokenFile)
	}
	return token, nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Push.ReconnectInitialRaw != "" {
		cfg.Push.ReconnectInitial, err = time.ParseDuration(cfg.Push.ReconnectInitialRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_initial %q: %w", cfg.Push.ReconnectInitialRaw, err)
		}
	}

	if cfg.Push.ReconnectMaxRaw != "" {
		cfg.Push.ReconnectMax, err = time.ParseDuration(cfg.Push.ReconnectMaxRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_max %q: %w", cfg.Push.ReconnectMaxRaw, err)
		}
	}

	if cfg.Push.ReconnectInitial == 0 {
		cfg.Push.ReconnectInitial = time.Second
	}
	if cfg.Push.ReconnectMax == 0 {
		cfg.Push.ReconnectMax = 30 * time.Second
	}

	return nil
}
