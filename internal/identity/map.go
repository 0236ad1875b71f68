package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// AuthInfo is the identity resolved for an auth index.
type AuthInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Map is an immutable identity snapshot produced by Resolve. Every key with a
// model set or a type also has a display name.
type Map struct {
	names     map[string]string
	models    map[string]ModelSet
	types     map[string]string
	authIndex map[string]AuthInfo
}

func newMap() *Map {
	return &Map{
		names:     make(map[string]string),
		models:    make(map[string]ModelSet),
		types:     make(map[string]string),
		authIndex: make(map[string]AuthInfo),
	}
}

// Empty returns a map with no entries.
func Empty() *Map { return newMap() }

// Name returns the display name for a credential key or file name.
func (m *Map) Name(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.names[key]
	return v, ok
}

// Type returns the provider type for a key.
func (m *Map) Type(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.types[key]
	return v, ok
}

// Models returns a copy of the permitted model set for a key.
func (m *Map) Models(key string) (ModelSet, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.models[key]
	return v.clone(), ok
}

// Auth returns the identity of an auth index.
func (m *Map) Auth(index string) (AuthInfo, bool) {
	if m == nil {
		return AuthInfo{}, false
	}
	v, ok := m.authIndex[strings.TrimSpace(index)]
	return v, ok
}

// Allows reports whether model is permitted for key. Keys without a known
// model set are unrestricted.
func (m *Map) Allows(key, model string) bool {
	if m == nil {
		return true
	}
	set, ok := m.models[key]
	if !ok {
		return true
	}
	return set.Has(model)
}

// Len returns the number of keys with a display name and of auth indexes.
func (m *Map) Len() (keys, authIndexes int) {
	if m == nil {
		return 0, 0
	}
	return len(m.names), len(m.authIndex)
}

// Identity is the resolved identity of one usage record.
type Identity struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Models   []string `json:"models,omitempty"`
	Resolved bool     `json:"resolved"`
}

// Lookup resolves a usage record by auth index first, then by API key. When
// neither matches the masked key is returned under the unknown type.
func (m *Map) Lookup(apiKey, authIndex string) Identity {
	if info, ok := m.Auth(authIndex); ok {
		return Identity{Name: info.Name, Type: info.Type, Resolved: true}
	}
	if name, ok := m.Name(apiKey); ok {
		id := Identity{Name: name, Type: UnknownType, Resolved: true}
		if typ, ok := m.types[apiKey]; ok {
			id.Type = typ
		}
		if set, ok := m.models[apiKey]; ok {
			id.Models = set.Sorted()
		}
		return id
	}
	return Identity{Name: MaskKey(apiKey), Type: UnknownType}
}

// Snapshot is the serialisable form of a Map.
type Snapshot struct {
	Names     map[string]string   `json:"names"`
	Models    map[string][]string `json:"models"`
	Types     map[string]string   `json:"types"`
	AuthIndex map[string]AuthInfo `json:"auth_index"`
}

// Snapshot copies the map into plain maps. With mask set, credential keys
// are masked; auth indexes and file names are left as they are. Keys whose
// masks coincide get a short fingerprint suffix so no entry is lost.
func (m *Map) Snapshot(mask bool) Snapshot {
	s := Snapshot{
		Names:     map[string]string{},
		Models:    map[string][]string{},
		Types:     map[string]string{},
		AuthIndex: map[string]AuthInfo{},
	}
	if m == nil {
		return s
	}
	keyOf := func(k string) string { return k }
	if mask {
		keyOf = m.maskedKeys()
	}
	for k, v := range m.names {
		s.Names[keyOf(k)] = v
	}
	for k, v := range m.types {
		s.Types[keyOf(k)] = v
	}
	for k, v := range m.models {
		s.Models[keyOf(k)] = v.Sorted()
	}
	for k, v := range m.authIndex {
		s.AuthIndex[k] = v
	}
	return s
}

// Keys returns every named key in lexical order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	keys := lo.Keys(m.names)
	sort.Strings(keys)
	return keys
}

// maskedKeys maps every key to its masked snapshot key. File names are kept
// and colliding masks are disambiguated with fingerprintKey.
func (m *Map) maskedKeys() func(string) string {
	all := lo.Uniq(append(append(lo.Keys(m.names), lo.Keys(m.types)...), lo.Keys(m.models)...))
	seen := make(map[string]int, len(all))
	for _, k := range all {
		if m.isFileName(k) {
			seen[k]++
		} else {
			seen[MaskKey(k)]++
		}
	}
	return func(k string) string {
		if m.isFileName(k) {
			return k
		}
		if masked := MaskKey(k); seen[masked] == 1 {
			return masked
		}
		return fingerprintKey(k)
	}
}

// fingerprintKey is MaskKey plus a short hash of the full key.
func fingerprintKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return MaskKey(key) + "#" + hex.EncodeToString(sum[:4])
}

// isFileName reports whether k was registered from an auth file name.
func (m *Map) isFileName(k string) bool {
	typ := m.types[k]
	for _, f := range Families {
		if typ == f.TypeLabel() {
			return false
		}
	}
	return true
}

// MaskKey hides all but the first and last two characters of a secret.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return key[:2] + strings.Repeat("*", len(key)-4) + key[len(key)-2:]
}
