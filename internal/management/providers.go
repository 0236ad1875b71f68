package management

import (
	"context"
	"fmt"

	"github.com/nghyane/llm-mux-monitor/internal/identity"
	"github.com/nghyane/llm-mux-monitor/internal/source"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
	"github.com/tidwall/gjson"
)

var (
	_ source.ProviderSource = (*Client)(nil)
	_ source.UsageSource    = (*Client)(nil)
)

func (c *Client) OpenAICompat(ctx context.Context) ([]identity.ProviderRecord, error) {
	return c.providers(ctx, identity.FamilyOpenAI)
}

func (c *Client) GeminiKeys(ctx context.Context) ([]identity.ProviderRecord, error) {
	return c.providers(ctx, identity.FamilyGemini)
}

func (c *Client) ClaudeKeys(ctx context.Context) ([]identity.ProviderRecord, error) {
	return c.providers(ctx, identity.FamilyClaude)
}

func (c *Client) CodexKeys(ctx context.Context) ([]identity.ProviderRecord, error) {
	return c.providers(ctx, identity.FamilyCodex)
}

func (c *Client) VertexKeys(ctx context.Context) ([]identity.ProviderRecord, error) {
	return c.providers(ctx, identity.FamilyVertex)
}

// AuthFiles lists the gateway's credential files.
func (c *Client) AuthFiles(ctx context.Context) ([]identity.AuthFileRecord, error) {
	body, err := c.get(ctx, "auth-files")
	if err != nil {
		return nil, err
	}
	items, err := listItems(body, "files")
	if err != nil {
		return nil, fmt.Errorf("management auth-files: %w", err)
	}
	out := make([]identity.AuthFileRecord, 0, len(items))
	for _, item := range items {
		if item.IsObject() {
			out = append(out, identity.AuthFileFromJSON(item))
		}
	}
	return out, nil
}

// Usage fetches the usage snapshot.
func (c *Client) Usage(ctx context.Context) (*usage.Dataset, error) {
	body, err := c.get(ctx, "usage")
	if err != nil {
		return nil, err
	}
	ds, err := usage.ParsePayload(unwrapData(gjson.ParseBytes(body), "usage"))
	if err != nil {
		return nil, fmt.Errorf("management usage: %w", err)
	}
	return ds, nil
}

func (c *Client) providers(ctx context.Context, family identity.Family) ([]identity.ProviderRecord, error) {
	endpoint := source.EndpointOf(family)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	items, err := listItems(body, endpoint)
	if err != nil {
		return nil, fmt.Errorf("management %s: %w", endpoint, err)
	}
	out := make([]identity.ProviderRecord, 0, len(items))
	for _, item := range items {
		if item.IsObject() {
			out = append(out, ProviderFromJSON(family, item))
		}
	}
	return out, nil
}

// unwrapData strips an optional {"data": ...} envelope. The envelope is only
// recognised when it is the sole payload carrier, so a bare usage dataset is
// never mistaken for one.
func unwrapData(root gjson.Result, name string) []byte {
	if data := root.Get("data"); (data.IsObject() || data.IsArray()) && !root.Get(name).Exists() && !root.Get("apis").Exists() {
		return []byte(data.Raw)
	}
	return []byte(root.Raw)
}

// listItems accepts {"<name>": [...]}, a bare array, or either inside a
// data envelope. A null list is empty.
func listItems(body []byte, name string) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	root := gjson.ParseBytes(unwrapData(gjson.ParseBytes(body), name))
	switch {
	case root.IsArray():
		return root.Array(), nil
	case root.IsObject():
		list := root.Get(name)
		if !list.Exists() || list.Type == gjson.Null {
			return nil, nil
		}
		if !list.IsArray() {
			return nil, fmt.Errorf("field %q is not a list", name)
		}
		return list.Array(), nil
	case root.Type == gjson.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected response shape")
	}
}

// ProviderFromJSON reads one provider entry, accepting kebab-case,
// snake_case and camelCase field names.
func ProviderFromJSON(family identity.Family, r gjson.Result) identity.ProviderRecord {
	rec := identity.ProviderRecord{
		Family: family,
		Name:   str(r, "name"),
		Prefix: str(r, "prefix"),
		APIKey: str(r, "api-key", "api_key", "apiKey"),
	}
	if headers := r.Get("headers"); headers.IsObject() {
		rec.Headers = make(map[string]string)
		headers.ForEach(func(k, v gjson.Result) bool {
			rec.Headers[k.String()] = v.String()
			return true
		})
	}
	for _, e := range field(r, "api-key-entries", "api_key_entries", "apiKeyEntries").Array() {
		if e.Type == gjson.String {
			rec.APIKeyEntries = append(rec.APIKeyEntries, identity.KeyEntry{APIKey: e.Str})
			continue
		}
		rec.APIKeyEntries = append(rec.APIKeyEntries, identity.KeyEntry{
			APIKey:   str(e, "api-key", "api_key", "apiKey"),
			ProxyURL: str(e, "proxy-url", "proxy_url", "proxyUrl"),
		})
	}
	for _, m := range r.Get("models").Array() {
		if m.Type == gjson.String {
			rec.Models = append(rec.Models, identity.ModelAlias{Name: m.Str})
			continue
		}
		rec.Models = append(rec.Models, identity.ModelAlias{Name: str(m, "name"), Alias: str(m, "alias")})
	}
	return rec
}

func field(r gjson.Result, names ...string) gjson.Result {
	for _, n := range names {
		if v := r.Get(n); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func str(r gjson.Result, names ...string) string {
	v := field(r, names...)
	if v.Type == gjson.String {
		return v.Str
	}
	return ""
}
