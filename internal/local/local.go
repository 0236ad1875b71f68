// Package local reads provider credentials, auth files and usage straight
// from a gateway's files, for hosts where the management API is disabled.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nghyane/llm-mux-monitor/internal/config"
	"github.com/nghyane/llm-mux-monitor/internal/identity"
	log "github.com/nghyane/llm-mux-monitor/internal/logging"
	"github.com/nghyane/llm-mux-monitor/internal/source"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
	"github.com/nghyane/llm-mux-monitor/internal/util"
	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"
)

// Source reads a gateway config.yaml and its auth directory. The files are
// re-read on every call.
type Source struct {
	configPath string
	authDir    string
}

var _ source.ProviderSource = (*Source)(nil)

// New resolves the paths in cfg. The files are not opened until first use.
func New(cfg config.LocalConfig) (*Source, error) {
	configPath, err := util.ResolvePath(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		return nil, fmt.Errorf("local source: config path is required")
	}
	authDir, err := util.ResolvePath(cfg.AuthDir)
	if err != nil {
		return nil, err
	}
	return &Source{configPath: configPath, authDir: authDir}, nil
}

// ConfigPath returns the resolved gateway config path.
func (s *Source) ConfigPath() string { return s.configPath }

func (s *Source) gateway() (*config.GatewayConfig, error) {
	return config.LoadGatewayConfig(s.configPath)
}

// AuthDir returns the auth directory: the configured one, else the gateway's
// auth-dir resolved against the config file's directory.
func (s *Source) AuthDir() (string, error) {
	if s.authDir != "" {
		return s.authDir, nil
	}
	gw, err := s.gateway()
	if err != nil {
		return "", err
	}
	dir, err := util.ResolvePath(gw.AuthDir)
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", fmt.Errorf("local source: no auth-dir in %s", s.configPath)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(s.configPath), dir)
	}
	return dir, nil
}

func (s *Source) OpenAICompat(context.Context) ([]identity.ProviderRecord, error) {
	gw, err := s.gateway()
	if err != nil {
		return nil, err
	}
	out := make([]identity.ProviderRecord, 0, len(gw.OpenAICompatibility))
	for _, p := range gw.OpenAICompatibility {
		rec := identity.ProviderRecord{
			Family:  identity.FamilyOpenAI,
			Name:    p.Name,
			Prefix:  p.Prefix,
			Headers: p.Headers,
			Models:  models(p.Models),
		}
		for _, e := range p.APIKeyEntries {
			rec.APIKeyEntries = append(rec.APIKeyEntries, identity.KeyEntry{APIKey: e.APIKey, ProxyURL: e.ProxyURL})
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Source) GeminiKeys(context.Context) ([]identity.ProviderRecord, error) {
	gw, err := s.gateway()
	if err != nil {
		return nil, err
	}
	out := make([]identity.ProviderRecord, 0, len(gw.GeminiKey))
	for _, k := range gw.GeminiKey {
		out = append(out, identity.ProviderRecord{
			Family:  identity.FamilyGemini,
			APIKey:  k.APIKey,
			Prefix:  k.Prefix,
			Headers: k.Headers,
		})
	}
	return out, nil
}

func (s *Source) ClaudeKeys(context.Context) ([]identity.ProviderRecord, error) {
	gw, err := s.gateway()
	if err != nil {
		return nil, err
	}
	return keyRecords(identity.FamilyClaude, gw.ClaudeKey), nil
}

func (s *Source) CodexKeys(context.Context) ([]identity.ProviderRecord, error) {
	gw, err := s.gateway()
	if err != nil {
		return nil, err
	}
	return keyRecords(identity.FamilyCodex, gw.CodexKey), nil
}

func (s *Source) VertexKeys(context.Context) ([]identity.ProviderRecord, error) {
	gw, err := s.gateway()
	if err != nil {
		return nil, err
	}
	return keyRecords(identity.FamilyVertex, gw.VertexCompatAPIKey), nil
}

func keyRecords(family identity.Family, keys []config.ClaudeKey) []identity.ProviderRecord {
	out := make([]identity.ProviderRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, identity.ProviderRecord{
			Family:  family,
			APIKey:  k.APIKey,
			Prefix:  k.Prefix,
			Headers: k.Headers,
			Models:  models(k.Models),
		})
	}
	return out
}

func models(in []config.ProviderModel) []identity.ModelAlias {
	if len(in) == 0 {
		return nil
	}
	out := make([]identity.ModelAlias, 0, len(in))
	for _, m := range in {
		out = append(out, identity.ModelAlias{Name: m.Name, Alias: m.Alias})
	}
	return out
}

// AuthFiles lists the *.json credential files of the auth directory in
// case-insensitive name order. The auth index is the one the gateway
// persisted in the file (auth_index, else authIndex); files without one
// carry no index, so they never take over another account's usage rows
// when the directory changes. Files that cannot be parsed are listed with
// their name only.
func (s *Source) AuthFiles(context.Context) ([]identity.AuthFileRecord, error) {
	dir, err := s.AuthDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	out := make([]identity.AuthFileRecord, 0, len(names))
	for _, name := range names {
		data, err := readJSONC(filepath.Join(dir, name))
		if err != nil {
			log.Warnf("auth file %s: %v", name, err)
			out = append(out, identity.AuthFileRecord{Name: name})
			continue
		}
		doc := gjson.ParseBytes(data)
		rec := identity.AuthFileFromJSON(doc)
		rec.Name = name
		// The gateway lists provider and type as the same value.
		rec.Type = strings.TrimSpace(firstString(doc, "type", "provider"))
		rec.Provider = strings.TrimSpace(firstString(doc, "provider", "type"))
		if _, ok := rec.Index.Key(); !ok {
			log.Debugf("auth file %s has no persisted auth index", name)
		}
		out = append(out, rec)
	}
	return out, nil
}

// readJSONC reads a JSON file that may contain comments or trailing commas.
func readJSONC(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, err
	}
	return std, nil
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			return v.Str
		}
	}
	return ""
}

// UsageDSN returns the configured DSN, else the gateway's usage.dsn.
func (s *Source) UsageDSN(configured string) (string, error) {
	if dsn := strings.TrimSpace(configured); dsn != "" {
		return dsn, nil
	}
	gw, err := s.gateway()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(gw.Usage.DSN), nil
}

// Open builds the provider and usage sources for local mode. A missing usage
// DSN is not an error here; every usage load reports it instead.
func Open(ctx context.Context, cfg config.LocalConfig) (source.Sources, error) {
	src, err := New(cfg)
	if err != nil {
		return source.Sources{}, err
	}
	dsn, err := src.UsageDSN(cfg.UsageDSN)
	if err != nil {
		return source.Sources{}, err
	}
	store, err := usage.OpenStore(ctx, usage.StoreConfig{DSN: dsn, LookbackDays: cfg.LookbackDays})
	if err != nil {
		log.Warnf("local usage store unavailable: %v", err)
		return source.Sources{Providers: src, Usage: unavailable{err: err}}, nil
	}
	return source.Sources{Providers: src, Usage: store, Close: store.Close}, nil
}

// unavailable reports the same store error on every load.
type unavailable struct{ err error }

func (u unavailable) Usage(context.Context) (*usage.Dataset, error) {
	return nil, u.err
}
