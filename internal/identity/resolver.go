package identity

import (
	"strings"
)

// Sources are the raw inputs of one resolve pass. A nil slice contributes
// nothing; callers substitute nil for any source that failed to load.
type Sources struct {
	Providers []ProviderRecord
	AuthFiles []AuthFileRecord
}

// extraction is what a provider record contributes to the key maps.
type extraction struct {
	name   string
	typ    string
	keys   []string
	models ModelSet // nil leaves any existing model set for the keys alone
}

type extractor func(ProviderRecord) (extraction, bool)

var extractors = map[Family]extractor{
	FamilyOpenAI: extractOpenAI,
	FamilyGemini: prefixed(FamilyGemini, false),
	FamilyClaude: prefixed(FamilyClaude, true),
	FamilyCodex:  prefixed(FamilyCodex, true),
	FamilyVertex: prefixed(FamilyVertex, true),
}

// extractOpenAI maps every key entry and the provider's own name.
func extractOpenAI(r ProviderRecord) (extraction, bool) {
	name := headerValue(r.Headers, "X-Provider")
	if name == "" {
		name = r.Name
	}
	if name == "" {
		name = UnknownType
	}
	ex := extraction{
		name:   name,
		typ:    FamilyOpenAI.TypeLabel(),
		models: NewModelSet(r.Models),
	}
	for _, entry := range r.APIKeyEntries {
		if entry.APIKey != "" {
			ex.keys = append(ex.keys, entry.APIKey)
		}
	}
	if r.Name != "" {
		ex.keys = append(ex.keys, r.Name)
	}
	return ex, len(ex.keys) > 0
}

// prefixed builds the extractor shared by the single-key families: the
// display name is the trimmed prefix or the family label.
func prefixed(f Family, withModels bool) extractor {
	return func(r ProviderRecord) (extraction, bool) {
		if r.APIKey == "" {
			return extraction{}, false
		}
		name := strings.TrimSpace(r.Prefix)
		if name == "" {
			name = f.TypeLabel()
		}
		ex := extraction{name: name, typ: f.TypeLabel(), keys: []string{r.APIKey}}
		if withModels && len(r.Models) > 0 {
			ex.models = NewModelSet(r.Models)
		}
		return ex, true
	}
}

// headerValue looks the header up exactly first, then case-insensitively.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Resolve merges the sources into a new Map. Provider records are applied
// family by family in the order of Families, keeping list order within a
// family, and auth files last; a later entry overwrites an earlier one that
// shares its key. Records with an unknown family are ignored.
func Resolve(src Sources) *Map {
	m := newMap()

	for _, family := range Families {
		extract := extractors[family]
		for _, rec := range src.Providers {
			if rec.Family != family {
				continue
			}
			ex, ok := extract(rec)
			if !ok {
				continue
			}
			for _, key := range ex.keys {
				m.names[key] = ex.name
				m.types[key] = ex.typ
				if ex.models != nil {
					m.models[key] = ex.models
				}
			}
		}
	}

	for _, file := range src.AuthFiles {
		idx, ok := file.Index.Key()
		if !ok {
			continue
		}
		fileType := file.Type
		if fileType == "" {
			fileType = UnknownType
		}
		stripped := StripJSONSuffix(file.Name)
		name := strings.TrimSpace(file.Provider)
		if name == "" {
			name = stripped
		}
		if name == "" {
			name = fileType
		}

		m.authIndex[idx] = AuthInfo{Name: name, Type: fileType}

		if file.Name == "" {
			continue
		}
		m.names[file.Name] = name
		m.types[file.Name] = fileType
		if stripped != file.Name && stripped != "" {
			m.names[stripped] = name
			m.types[stripped] = fileType
		}
	}

	return m
}

// StripJSONSuffix removes one trailing ".json", matched case-insensitively.
func StripJSONSuffix(name string) string {
	const suffix = ".json"
	if len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}
