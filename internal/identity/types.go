// Package identity merges provider credential lists and auth files into one
// lookup from opaque keys to display names, provider types and model sets.
package identity

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// Family tags the provider family a record was listed under.
type Family string

const (
	FamilyOpenAI Family = "openai"
	FamilyGemini Family = "gemini"
	FamilyClaude Family = "claude"
	FamilyCodex  Family = "codex"
	FamilyVertex Family = "vertex"
)

// Families lists every family in merge order. Later families overwrite
// earlier ones on key collisions; auth files are merged after all of them.
var Families = []Family{FamilyOpenAI, FamilyGemini, FamilyClaude, FamilyCodex, FamilyVertex}

// TypeLabel is the provider type recorded for keys of this family.
func (f Family) TypeLabel() string {
	switch f {
	case FamilyOpenAI:
		return "OpenAI"
	case FamilyGemini:
		return "Gemini"
	case FamilyClaude:
		return "Claude"
	case FamilyCodex:
		return "Codex"
	case FamilyVertex:
		return "Vertex"
	default:
		return UnknownType
	}
}

// UnknownType is used when no type can be determined.
const UnknownType = "unknown"

// ModelAlias is a model descriptor; either field may be empty.
type ModelAlias struct {
	Name  string `json:"name,omitempty"`
	Alias string `json:"alias,omitempty"`
}

// KeyEntry is one credential of an OpenAI-compatible provider.
type KeyEntry struct {
	APIKey   string `json:"api-key"`
	ProxyURL string `json:"proxy-url,omitempty"`
}

// ProviderRecord is a provider configuration entry of any family.
//
// OpenAI-compatible records carry Name, Headers and APIKeyEntries; the other
// families carry a single APIKey and an optional Prefix.
type ProviderRecord struct {
	Family        Family            `json:"family"`
	Name          string            `json:"name,omitempty"`
	Prefix        string            `json:"prefix,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	APIKey        string            `json:"api-key,omitempty"`
	APIKeyEntries []KeyEntry        `json:"api-key-entries,omitempty"`
	Models        []ModelAlias      `json:"models,omitempty"`
}

// AuthIndex is a normalised auth file index. The zero value is invalid.
type AuthIndex struct {
	key string
}

// NumberIndex normalises a numeric index. NaN and infinities are invalid.
func NumberIndex(v float64) AuthIndex {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return AuthIndex{}
	}
	return AuthIndex{key: strconv.FormatFloat(v, 'f', -1, 64)}
}

// StringIndex normalises a string index; blank strings are invalid.
func StringIndex(s string) AuthIndex {
	return AuthIndex{key: strings.TrimSpace(s)}
}

// IndexFromJSON normalises a raw JSON value. Numbers and strings are
// accepted, anything else yields an invalid index.
func IndexFromJSON(r gjson.Result) AuthIndex {
	switch r.Type {
	case gjson.Number:
		if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return AuthIndex{key: strconv.FormatInt(i, 10)}
		}
		return NumberIndex(r.Float())
	case gjson.String:
		return StringIndex(r.Str)
	default:
		return AuthIndex{}
	}
}

// Key returns the map key and whether the index is usable.
func (a AuthIndex) Key() (string, bool) {
	return a.key, a.key != ""
}

func (a AuthIndex) String() string { return a.key }

// MarshalJSON writes the normalised key, or null when invalid.
func (a AuthIndex) MarshalJSON() ([]byte, error) {
	if a.key == "" {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(a.key)), nil
}

// UnmarshalJSON accepts a number or a string.
func (a *AuthIndex) UnmarshalJSON(data []byte) error {
	*a = IndexFromJSON(gjson.ParseBytes(data))
	return nil
}

// AuthFileRecord is one entry of the auth file listing.
type AuthFileRecord struct {
	Index    AuthIndex `json:"auth_index"`
	Name     string    `json:"name,omitempty"`
	Provider string    `json:"provider,omitempty"`
	Type     string    `json:"type,omitempty"`
}

// AuthFileFromJSON reads an auth file entry, taking the index from
// auth_index and falling back to authIndex when that is absent or null.
func AuthFileFromJSON(r gjson.Result) AuthFileRecord {
	idx := r.Get("auth_index")
	if !idx.Exists() || idx.Type == gjson.Null {
		idx = r.Get("authIndex")
	}
	return AuthFileRecord{
		Index:    IndexFromJSON(idx),
		Name:     stringField(r, "name"),
		Provider: stringField(r, "provider"),
		Type:     stringField(r, "type"),
	}
}

// stringField returns a string or number field as text; other types are empty.
func stringField(r gjson.Result, path string) string {
	v := r.Get(path)
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	default:
		return ""
	}
}

// ModelSet is a set of model names.
type ModelSet map[string]struct{}

// NewModelSet collects every name and alias of the descriptors.
func NewModelSet(models []ModelAlias) ModelSet {
	set := make(ModelSet, len(models)*2)
	for _, m := range models {
		if m.Alias != "" {
			set[m.Alias] = struct{}{}
		}
		if m.Name != "" {
			set[m.Name] = struct{}{}
		}
	}
	return set
}

// Has reports whether model is a member.
func (s ModelSet) Has(model string) bool {
	_, ok := s[model]
	return ok
}

// Sorted returns the members in lexical order.
func (s ModelSet) Sorted() []string {
	out := lo.Keys(s)
	sort.Strings(out)
	return out
}

func (s ModelSet) clone() ModelSet {
	if s == nil {
		return nil
	}
	out := make(ModelSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}
