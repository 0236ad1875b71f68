// Package config holds the monitor configuration and the read-side view of a
// gateway's own config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SourceAPI reads everything from a running gateway's management API.
	SourceAPI = "api"
	// SourceLocal reads the gateway's config file, auth dir and usage database.
	SourceLocal = "local"

	DefaultConfigPath   = "$XDG_CONFIG_HOME/llm-mux-monitor/config.yaml"
	DefaultBaseURL      = "http://127.0.0.1:8317"
	DefaultServerPort   = 8318
	DefaultWindowDays   = 7
	DefaultLookbackDays = 30
)

// Config is the monitor configuration file.
type Config struct {
	Source        string           `yaml:"source" json:"source"`
	Management    ManagementConfig `yaml:"management" json:"management"`
	Local         LocalConfig      `yaml:"local" json:"local"`
	Monitor       MonitorConfig    `yaml:"monitor" json:"monitor"`
	Server        ServerConfig     `yaml:"server" json:"server"`
	Debug         bool             `yaml:"debug" json:"debug"`
	LoggingToFile bool             `yaml:"logging-to-file" json:"logging-to-file"`
	LogDir        string           `yaml:"log-dir,omitempty" json:"log-dir,omitempty"`
}

// ManagementConfig points at a gateway's management API.
type ManagementConfig struct {
	BaseURL      string `yaml:"base-url" json:"base-url"`
	Key          string `yaml:"key,omitempty" json:"-"`
	ProxyURL     string `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`
	Timeout      string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	RequestRetry int    `yaml:"request-retry" json:"request-retry"`
}

// LocalConfig points at the files a gateway keeps on disk.
type LocalConfig struct {
	ConfigPath   string `yaml:"config-path" json:"config-path"`
	AuthDir      string `yaml:"auth-dir,omitempty" json:"auth-dir,omitempty"`
	UsageDSN     string `yaml:"usage-dsn,omitempty" json:"usage-dsn,omitempty"`
	LookbackDays int    `yaml:"lookback-days" json:"lookback-days"`
	Watch        bool   `yaml:"watch" json:"watch"`
}

// MonitorConfig holds the default view settings.
type MonitorConfig struct {
	Window          int    `yaml:"window" json:"window"`
	APIFilter       string `yaml:"api-filter,omitempty" json:"api-filter,omitempty"`
	RefreshInterval string `yaml:"refresh-interval,omitempty" json:"refresh-interval,omitempty"`
	RevealKeys      bool   `yaml:"reveal-keys" json:"reveal-keys"`
}

// ServerConfig configures the read-only HTTP surface.
type ServerConfig struct {
	Host             string `yaml:"host" json:"host"`
	Port             int    `yaml:"port" json:"port"`
	RefreshPerMinute int    `yaml:"refresh-per-minute" json:"refresh-per-minute"`
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "config error: " + e.Field + ": " + e.Message
}

// NewDefaultConfig returns a config pointing at a gateway on localhost.
func NewDefaultConfig() *Config {
	return &Config{
		Source: SourceAPI,
		Management: ManagementConfig{
			BaseURL:      DefaultBaseURL,
			Timeout:      "30s",
			RequestRetry: 2,
		},
		Local: LocalConfig{
			ConfigPath:   "$XDG_CONFIG_HOME/llm-mux/config.yaml",
			LookbackDays: DefaultLookbackDays,
		},
		Monitor: MonitorConfig{
			Window:          DefaultWindowDays,
			RefreshInterval: "30s",
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             DefaultServerPort,
			RefreshPerMinute: 6,
		},
		LogDir: "$XDG_CONFIG_HOME/llm-mux-monitor/logs",
	}
}

// LoadConfig reads and validates the config at path.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigOptional(path, false)
}

// LoadConfigOptional reads the config at path. When optional is set a missing
// file yields the defaults instead of an error.
func LoadConfigOptional(path string, optional bool) (*Config, error) {
	cfg := NewDefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Sanitize trims fields and fills zero values with defaults.
func (c *Config) Sanitize() {
	if c == nil {
		return
	}
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = SourceAPI
	}
	c.Management.BaseURL = strings.TrimRight(strings.TrimSpace(c.Management.BaseURL), "/")
	if c.Management.BaseURL == "" {
		c.Management.BaseURL = DefaultBaseURL
	}
	c.Management.Key = strings.TrimSpace(c.Management.Key)
	c.Management.ProxyURL = strings.TrimSpace(c.Management.ProxyURL)
	if c.Management.RequestRetry < 0 {
		c.Management.RequestRetry = 0
	}
	c.Local.ConfigPath = strings.TrimSpace(c.Local.ConfigPath)
	c.Local.AuthDir = strings.TrimSpace(c.Local.AuthDir)
	c.Local.UsageDSN = strings.TrimSpace(c.Local.UsageDSN)
	if c.Local.LookbackDays <= 0 {
		c.Local.LookbackDays = DefaultLookbackDays
	}
	if c.Monitor.Window == 0 {
		c.Monitor.Window = DefaultWindowDays
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceAPI:
		if !strings.HasPrefix(c.Management.BaseURL, "http://") && !strings.HasPrefix(c.Management.BaseURL, "https://") {
			return &ValidationError{Field: "management.base-url", Message: "must be an http(s) URL"}
		}
	case SourceLocal:
		if c.Local.ConfigPath == "" {
			return &ValidationError{Field: "local.config-path", Message: "required for local source"}
		}
	default:
		return &ValidationError{Field: "source", Message: fmt.Sprintf("unknown source %q (use %s or %s)", c.Source, SourceAPI, SourceLocal)}
	}
	switch c.Monitor.Window {
	case 1, 7, 14, 30:
	default:
		return &ValidationError{Field: "monitor.window", Message: "must be one of 1, 7, 14, 30"}
	}
	if _, err := parseOptionalDuration(c.Management.Timeout); err != nil {
		return &ValidationError{Field: "management.timeout", Message: err.Error()}
	}
	if _, err := parseOptionalDuration(c.Monitor.RefreshInterval); err != nil {
		return &ValidationError{Field: "monitor.refresh-interval", Message: err.Error()}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: "out of range"}
	}
	return nil
}

// TimeoutDuration returns the management request timeout, 30s when unset.
func (m ManagementConfig) TimeoutDuration() time.Duration {
	if d, err := parseOptionalDuration(m.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// RefreshDuration returns the serve-mode refresh interval, zero disables it.
func (m MonitorConfig) RefreshDuration() time.Duration {
	d, _ := parseOptionalDuration(m.RefreshInterval)
	return d
}

func parseOptionalDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// GenerateDefaultConfigYAML renders the defaults as a starter config file.
func GenerateDefaultConfigYAML() []byte {
	out, err := yaml.Marshal(NewDefaultConfig())
	if err != nil {
		return nil
	}
	header := "# llm-mux-monitor configuration\n# source: api reads the management API, local reads the gateway files directly.\n"
	return append([]byte(header), out...)
}
