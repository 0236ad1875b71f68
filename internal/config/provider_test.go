package config

import (
	"testing"
)

func TestLoadGatewayConfigFoldsProviders(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
auth-dir: ~/.config/llm-mux/auth
gemini-api-key:
  - api-key: g-legacy
    prefix: team
openai-compatibility:
  - name: openrouter
    base-url: https://openrouter.ai/api/v1
    headers:
      X-Provider: OpenRouter
    api-key-entries:
      - api-key: or-1
    models:
      - name: gpt-4o
        alias: gpt4
providers:
  - type: openai
    name: deepseek
    base-url: https://api.deepseek.com
    api-keys:
      - key: ds-1
      - key: ds-2
    models:
      - name: deepseek-chat
  - type: anthropic
    api-key: claude-1
  - type: gemini
    enabled: false
    api-key: g-disabled
  - type: vertex-compat
    api-key: vx-1
    prefix: zen
  - type: codex
    api-key: cx-1
usage:
  dsn: sqlite://~/.config/llm-mux/usage.db
`)
	gw, err := LoadGatewayConfig(path)
	if err != nil {
		t.Fatalf("LoadGatewayConfig: %v", err)
	}
	if len(gw.GeminiKey) != 1 || gw.GeminiKey[0].APIKey != "g-legacy" {
		t.Errorf("gemini keys = %+v", gw.GeminiKey)
	}
	if len(gw.OpenAICompatibility) != 2 {
		t.Fatalf("openai compat = %+v", gw.OpenAICompatibility)
	}
	ds := gw.OpenAICompatibility[1]
	if ds.Name != "deepseek" || len(ds.APIKeyEntries) != 2 || ds.APIKeyEntries[1].APIKey != "ds-2" {
		t.Errorf("folded openai provider = %+v", ds)
	}
	if len(gw.ClaudeKey) != 1 || gw.ClaudeKey[0].APIKey != "claude-1" {
		t.Errorf("claude keys = %+v", gw.ClaudeKey)
	}
	if len(gw.VertexCompatAPIKey) != 1 || gw.VertexCompatAPIKey[0].Prefix != "zen" {
		t.Errorf("vertex keys = %+v", gw.VertexCompatAPIKey)
	}
	if len(gw.CodexKey) != 1 {
		t.Errorf("codex keys = %+v", gw.CodexKey)
	}
	if gw.Usage.DSN == "" || gw.AuthDir == "" {
		t.Errorf("usage/auth dir not parsed: %+v", gw)
	}
}

func TestNormalizeHeaders(t *testing.T) {
	got := NormalizeHeaders(map[string]string{" X-Provider ": " Acme ", " ": "dropped"})
	if len(got) != 1 || got["X-Provider"] != "Acme" {
		t.Errorf("NormalizeHeaders = %v", got)
	}
	if NormalizeHeaders(map[string]string{"": "x"}) != nil {
		t.Error("expected nil for all-empty names")
	}
}
