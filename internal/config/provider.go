package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderType is the type tag of an entry in a gateway's unified providers list.
type ProviderType string

const (
	ProviderTypeGemini       ProviderType = "gemini"
	ProviderTypeAnthropic    ProviderType = "anthropic"
	ProviderTypeOpenAI       ProviderType = "openai"
	ProviderTypeCodex        ProviderType = "codex"
	ProviderTypeVertexCompat ProviderType = "vertex-compat"
)

// GatewayConfig is the subset of a gateway config.yaml the monitor reads:
// the five per-family credential lists and the unified providers list that
// newer gateways use in their place.
type GatewayConfig struct {
	AuthDir             string                `yaml:"auth-dir,omitempty"`
	GeminiKey           []GeminiKey           `yaml:"gemini-api-key,omitempty"`
	ClaudeKey           []ClaudeKey           `yaml:"claude-api-key,omitempty"`
	CodexKey            []CodexKey            `yaml:"codex-api-key,omitempty"`
	OpenAICompatibility []OpenAICompatibility `yaml:"openai-compatibility,omitempty"`
	VertexCompatAPIKey  []VertexCompatKey     `yaml:"vertex-api-key,omitempty"`
	Providers           []Provider            `yaml:"providers,omitempty"`
	Usage               GatewayUsage          `yaml:"usage,omitempty"`
}

// GatewayUsage locates the gateway's usage database.
type GatewayUsage struct {
	DSN string `yaml:"dsn,omitempty"`
}

// ProviderModel is a model descriptor with an optional alias.
type ProviderModel struct {
	Name  string `yaml:"name" json:"name"`
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`
}

type GeminiKey struct {
	APIKey   string            `yaml:"api-key" json:"api-key"`
	Prefix   string            `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	BaseURL  string            `yaml:"base-url,omitempty" json:"base-url,omitempty"`
	ProxyURL string            `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

type ClaudeKey struct {
	APIKey   string            `yaml:"api-key" json:"api-key"`
	Prefix   string            `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	BaseURL  string            `yaml:"base-url,omitempty" json:"base-url,omitempty"`
	ProxyURL string            `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Models   []ProviderModel   `yaml:"models,omitempty" json:"models,omitempty"`
}

type CodexKey = ClaudeKey

type VertexCompatKey = ClaudeKey

// OpenAICompatibility is one OpenAI-compatible upstream with its key entries.
type OpenAICompatibility struct {
	Name          string                      `yaml:"name" json:"name"`
	Prefix        string                      `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	BaseURL       string                      `yaml:"base-url" json:"base-url"`
	Headers       map[string]string           `yaml:"headers,omitempty" json:"headers,omitempty"`
	APIKeyEntries []OpenAICompatibilityAPIKey `yaml:"api-key-entries,omitempty" json:"api-key-entries,omitempty"`
	Models        []ProviderModel             `yaml:"models,omitempty" json:"models,omitempty"`
}

type OpenAICompatibilityAPIKey struct {
	APIKey   string `yaml:"api-key" json:"api-key"`
	ProxyURL string `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`
}

// Provider is an entry of the unified providers list.
type Provider struct {
	Type     ProviderType      `yaml:"type"`
	Name     string            `yaml:"name,omitempty"`
	Prefix   string            `yaml:"prefix,omitempty"`
	Enabled  *bool             `yaml:"enabled,omitempty"`
	APIKey   string            `yaml:"api-key,omitempty"`
	APIKeys  []ProviderAPIKey  `yaml:"api-keys,omitempty"`
	BaseURL  string            `yaml:"base-url,omitempty"`
	ProxyURL string            `yaml:"proxy-url,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Models   []ProviderModel   `yaml:"models,omitempty"`
}

type ProviderAPIKey struct {
	Key      string `yaml:"key"`
	ProxyURL string `yaml:"proxy-url,omitempty"`
}

// IsEnabled returns true if the provider is enabled (default: true).
func (p *Provider) IsEnabled() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// GetAPIKeys returns all API keys for this provider.
// If APIKey is set and APIKeys is empty, returns APIKey as a single entry.
func (p *Provider) GetAPIKeys() []ProviderAPIKey {
	if len(p.APIKeys) > 0 {
		return p.APIKeys
	}
	if p.APIKey != "" {
		return []ProviderAPIKey{{Key: p.APIKey, ProxyURL: p.ProxyURL}}
	}
	return nil
}

// LoadGatewayConfig reads the gateway config at path and folds its unified
// providers into the per-family lists.
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway config: %w", err)
	}
	var gw GatewayConfig
	if err := yaml.Unmarshal(data, &gw); err != nil {
		return nil, fmt.Errorf("failed to parse gateway config: %w", err)
	}
	gw.FoldProviders()
	return &gw, nil
}

// FoldProviders appends every enabled unified provider to the matching
// per-family list, after the entries already declared there. Each key of a
// multi-key provider becomes its own entry.
func (gw *GatewayConfig) FoldProviders() {
	if gw == nil {
		return
	}
	for i := range gw.Providers {
		p := &gw.Providers[i]
		if !p.IsEnabled() {
			continue
		}
		headers := NormalizeHeaders(p.Headers)
		keys := p.GetAPIKeys()
		switch ProviderType(strings.ToLower(strings.TrimSpace(string(p.Type)))) {
		case ProviderTypeOpenAI:
			compat := OpenAICompatibility{
				Name:    strings.TrimSpace(p.Name),
				Prefix:  p.Prefix,
				BaseURL: p.BaseURL,
				Headers: headers,
				Models:  p.Models,
			}
			for _, k := range keys {
				compat.APIKeyEntries = append(compat.APIKeyEntries, OpenAICompatibilityAPIKey{APIKey: k.Key, ProxyURL: k.ProxyURL})
			}
			gw.OpenAICompatibility = append(gw.OpenAICompatibility, compat)
		case ProviderTypeGemini:
			for _, k := range keys {
				gw.GeminiKey = append(gw.GeminiKey, GeminiKey{APIKey: k.Key, Prefix: p.Prefix, BaseURL: p.BaseURL, ProxyURL: k.ProxyURL, Headers: headers})
			}
		case ProviderTypeAnthropic:
			for _, k := range keys {
				gw.ClaudeKey = append(gw.ClaudeKey, p.claudeKey(k, headers))
			}
		case ProviderTypeCodex:
			for _, k := range keys {
				gw.CodexKey = append(gw.CodexKey, p.claudeKey(k, headers))
			}
		case ProviderTypeVertexCompat:
			for _, k := range keys {
				gw.VertexCompatAPIKey = append(gw.VertexCompatAPIKey, p.claudeKey(k, headers))
			}
		}
	}
}

func (p *Provider) claudeKey(k ProviderAPIKey, headers map[string]string) ClaudeKey {
	return ClaudeKey{
		APIKey:   k.Key,
		Prefix:   p.Prefix,
		BaseURL:  p.BaseURL,
		ProxyURL: k.ProxyURL,
		Headers:  headers,
		Models:   p.Models,
	}
}

// NormalizeHeaders trims header names and values and drops empty names.
func NormalizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
