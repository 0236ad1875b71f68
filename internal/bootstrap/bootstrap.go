// Package bootstrap loads the monitor configuration and builds the data
// sources for CLI commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nghyane/llm-mux-monitor/internal/config"
	"github.com/nghyane/llm-mux-monitor/internal/local"
	log "github.com/nghyane/llm-mux-monitor/internal/logging"
	"github.com/nghyane/llm-mux-monitor/internal/management"
	"github.com/nghyane/llm-mux-monitor/internal/source"
	"github.com/nghyane/llm-mux-monitor/internal/util"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LLM_MUX_MONITOR_"

// Result contains the result of bootstrapping the application.
type Result struct {
	Config         *config.Config
	ConfigFilePath string
}

// Bootstrap loads .env from the working directory, then the config at
// configPath (the default location when empty), then applies environment
// overrides. A missing config file yields the defaults.
func Bootstrap(configPath string) (*Result, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	if configPath == "" {
		configPath = config.DefaultConfigPath
	}
	if env, ok := lookupEnv("CONFIG"); ok {
		configPath = env
	}
	resolved, err := util.ResolvePath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	cfg, err := config.LoadConfigOptional(resolved, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	ApplyEnvOverrides(cfg)
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LogDir, err = util.ResolvePath(cfg.LogDir); err != nil {
		return nil, fmt.Errorf("failed to resolve log directory: %w", err)
	}

	return &Result{Config: cfg, ConfigFilePath: resolved}, nil
}

// ApplyEnvOverrides applies LLM_MUX_MONITOR_* variables on top of cfg.
func ApplyEnvOverrides(cfg *config.Config) {
	if v, ok := lookupEnv("SOURCE"); ok {
		cfg.Source = v
		log.Infof("Source overridden by env: %s", v)
	}
	if v, ok := lookupEnv("BASE_URL"); ok {
		cfg.Management.BaseURL = v
		log.Infof("Management base URL overridden by env: %s", v)
	}
	if v, ok := lookupEnv("MANAGEMENT_KEY"); ok {
		cfg.Management.Key = v
		log.Infof("Management key overridden by env")
	}
	if v, ok := lookupEnv("PROXY_URL"); ok {
		cfg.Management.ProxyURL = v
		log.Infof("Proxy URL overridden by env")
	}
	if v, ok := lookupEnvInt("REQUEST_RETRY"); ok {
		cfg.Management.RequestRetry = v
		log.Infof("Request retry overridden by env: %d", v)
	}
	if v, ok := lookupEnv("GATEWAY_CONFIG"); ok {
		cfg.Local.ConfigPath = v
		log.Infof("Gateway config path overridden by env: %s", v)
	}
	if v, ok := lookupEnv("AUTH_DIR"); ok {
		cfg.Local.AuthDir = v
		log.Infof("Auth dir overridden by env: %s", v)
	}
	if v, ok := lookupEnv("USAGE_DSN"); ok {
		cfg.Local.UsageDSN = v
		log.Infof("Usage DSN overridden by env")
	}
	if v, ok := lookupEnvInt("WINDOW"); ok {
		cfg.Monitor.Window = v
		log.Infof("Window overridden by env: %d", v)
	}
	if v, ok := lookupEnv("API_FILTER"); ok {
		cfg.Monitor.APIFilter = v
		log.Infof("API filter overridden by env: %s", v)
	}
	if v, ok := lookupEnvBool("REVEAL_KEYS"); ok {
		cfg.Monitor.RevealKeys = v
		log.Infof("Reveal keys overridden by env: %v", v)
	}
	if v, ok := lookupEnvInt("PORT"); ok {
		cfg.Server.Port = v
		log.Infof("Port overridden by env: %d", v)
	}
	if v, ok := lookupEnvBool("DEBUG"); ok {
		cfg.Debug = v
		log.Infof("Debug overridden by env: %v", v)
	}
	if v, ok := lookupEnvBool("LOGGING_TO_FILE"); ok {
		cfg.LoggingToFile = v
		log.Infof("Logging to file overridden by env: %v", v)
	}
}

// OpenSources builds the provider and usage sources for the configured mode.
func OpenSources(ctx context.Context, cfg *config.Config) (source.Sources, error) {
	switch cfg.Source {
	case config.SourceLocal:
		srcs, err := local.Open(ctx, cfg.Local)
		if err != nil {
			return source.Sources{}, fmt.Errorf("failed to open local sources: %w", err)
		}
		log.Debugf("reading gateway files from %s", cfg.Local.ConfigPath)
		return srcs, nil
	default:
		client, err := management.New(cfg.Management)
		if err != nil {
			return source.Sources{}, fmt.Errorf("failed to create management client: %w", err)
		}
		if cfg.Management.Key == "" {
			log.Warn("no management key configured; the gateway will likely reject requests")
		}
		log.Debugf("reading management API at %s", client.BaseURL())
		return source.Sources{Providers: client, Usage: client}, nil
	}
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func lookupEnvInt(name string) (int, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("ignoring %s%s=%q: not an integer", EnvPrefix, name, v)
		return 0, false
	}
	return n, true
}

func lookupEnvBool(name string) (bool, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warnf("ignoring %s%s=%q: not a boolean", EnvPrefix, name, v)
		return false, false
	}
	return b, true
}
