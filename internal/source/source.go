// Package source defines the collaborators the monitor loads its data from.
package source

import (
	"context"

	"github.com/nghyane/llm-mux-monitor/internal/identity"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
)

// ProviderSource lists provider credentials and auth files. Every method
// returns records already tagged with their identity.Family.
type ProviderSource interface {
	OpenAICompat(ctx context.Context) ([]identity.ProviderRecord, error)
	GeminiKeys(ctx context.Context) ([]identity.ProviderRecord, error)
	ClaudeKeys(ctx context.Context) ([]identity.ProviderRecord, error)
	CodexKeys(ctx context.Context) ([]identity.ProviderRecord, error)
	VertexKeys(ctx context.Context) ([]identity.ProviderRecord, error)
	AuthFiles(ctx context.Context) ([]identity.AuthFileRecord, error)
}

// UsageSource returns the full usage dataset.
type UsageSource interface {
	Usage(ctx context.Context) (*usage.Dataset, error)
}

// Sources bundles both collaborators. Close releases whatever the
// implementation holds open; it may be nil.
type Sources struct {
	Providers ProviderSource
	Usage     UsageSource
	Close     func() error
}

// Kind names the family list a ProviderSource method reads.
type Kind struct {
	Family   identity.Family
	Endpoint string
}

// ProviderKinds lists the provider lists in resolve order with their
// management endpoint and config key.
var ProviderKinds = []Kind{
	{identity.FamilyOpenAI, "openai-compatibility"},
	{identity.FamilyGemini, "gemini-api-key"},
	{identity.FamilyClaude, "claude-api-key"},
	{identity.FamilyCodex, "codex-api-key"},
	{identity.FamilyVertex, "vertex-api-key"},
}

// EndpointOf returns the list name of a family.
func EndpointOf(f identity.Family) string {
	for _, k := range ProviderKinds {
		if k.Family == f {
			return k.Endpoint
		}
	}
	return ""
}
