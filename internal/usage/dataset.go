// Package usage models the per-request usage telemetry exported by the
// gateway and the pure transforms applied to it.
package usage

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/identity"
	"github.com/tidwall/gjson"
)

// TokenStats is the token breakdown of one request.
type TokenStats struct {
	InputTokens     int64 `json:"input_tokens"`
	OutputTokens    int64 `json:"output_tokens"`
	ReasoningTokens int64 `json:"reasoning_tokens"`
	CachedTokens    int64 `json:"cached_tokens"`
	TotalTokens     int64 `json:"total_tokens"`
}

// Detail is a single usage record.
type Detail struct {
	Timestamp string     `json:"timestamp"`
	Failed    bool       `json:"failed"`
	Source    string     `json:"source"`
	AuthIndex string     `json:"auth_index"`
	Tokens    TokenStats `json:"tokens"`
}

// Time parses the record timestamp. ok is false when it cannot be parsed.
func (d Detail) Time() (time.Time, bool) {
	return ParseTimestamp(d.Timestamp)
}

// Model holds the records of one model under one API key, in source order.
type Model struct {
	TotalRequests int64    `json:"total_requests,omitempty"`
	TotalTokens   int64    `json:"total_tokens,omitempty"`
	Details       []Detail `json:"details"`
}

// API groups the models used through one API key.
type API struct {
	TotalRequests int64            `json:"total_requests,omitempty"`
	TotalTokens   int64            `json:"total_tokens,omitempty"`
	Models        map[string]Model `json:"models"`
}

// Dataset is the nested usage snapshot keyed by API key then model. The
// counters are passed through from the source when present; filtered views
// leave them zero.
type Dataset struct {
	TotalRequests int64          `json:"total_requests,omitempty"`
	SuccessCount  int64          `json:"success_count,omitempty"`
	FailureCount  int64          `json:"failure_count,omitempty"`
	TotalTokens   int64          `json:"total_tokens,omitempty"`
	APIs          map[string]API `json:"apis"`
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{APIs: make(map[string]API)}
}

// Add appends a record under apiKey and model.
func (ds *Dataset) Add(apiKey, model string, d Detail) {
	if ds.APIs == nil {
		ds.APIs = make(map[string]API)
	}
	api, ok := ds.APIs[apiKey]
	if !ok {
		api = API{Models: make(map[string]Model)}
	}
	m := api.Models[model]
	m.Details = append(m.Details, d)
	m.TotalRequests++
	m.TotalTokens += d.Tokens.TotalTokens
	api.Models[model] = m
	api.TotalRequests++
	api.TotalTokens += d.Tokens.TotalTokens
	ds.APIs[apiKey] = api

	ds.TotalRequests++
	if d.Failed {
		ds.FailureCount++
	} else {
		ds.SuccessCount++
	}
	ds.TotalTokens += d.Tokens.TotalTokens
}

// RecordCount returns the number of detail records.
func (ds *Dataset) RecordCount() int {
	if ds == nil {
		return 0
	}
	n := 0
	for _, api := range ds.APIs {
		for _, m := range api.Models {
			n += len(m.Details)
		}
	}
	return n
}

var errNotObject = errors.New("usage payload is not a JSON object")

// ParsePayload decodes a usage response. Both {"usage": {...}} and the bare
// dataset are accepted; a null or missing usage field falls back to the root.
// Malformed records are kept with whatever fields could be read.
func ParsePayload(data []byte) (*Dataset, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("usage payload is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if inner := root.Get("usage"); inner.IsObject() {
		root = inner
	}
	if !root.IsObject() {
		return nil, errNotObject
	}

	ds := &Dataset{
		TotalRequests: root.Get("total_requests").Int(),
		SuccessCount:  root.Get("success_count").Int(),
		FailureCount:  root.Get("failure_count").Int(),
		TotalTokens:   root.Get("total_tokens").Int(),
		APIs:          make(map[string]API),
	}
	root.Get("apis").ForEach(func(key, apiValue gjson.Result) bool {
		if !apiValue.IsObject() {
			return true
		}
		api := API{
			TotalRequests: apiValue.Get("total_requests").Int(),
			TotalTokens:   apiValue.Get("total_tokens").Int(),
			Models:        make(map[string]Model),
		}
		apiValue.Get("models").ForEach(func(name, modelValue gjson.Result) bool {
			if !modelValue.IsObject() {
				return true
			}
			m := Model{
				TotalRequests: modelValue.Get("total_requests").Int(),
				TotalTokens:   modelValue.Get("total_tokens").Int(),
			}
			modelValue.Get("details").ForEach(func(_, v gjson.Result) bool {
				if v.IsObject() {
					m.Details = append(m.Details, parseDetail(v))
				}
				return true
			})
			api.Models[name.String()] = m
			return true
		})
		ds.APIs[key.String()] = api
		return true
	})
	return ds, nil
}

func parseDetail(v gjson.Result) Detail {
	d := Detail{
		Failed:    v.Get("failed").Bool(),
		Source:    v.Get("source").String(),
		AuthIndex: identity.IndexFromJSON(v.Get("auth_index")).String(),
	}
	if ts := v.Get("timestamp"); ts.Type == gjson.String {
		d.Timestamp = ts.Str
	} else if ts.Type == gjson.Number {
		d.Timestamp = ts.Raw
	}
	tokens := v.Get("tokens")
	d.Tokens = TokenStats{
		InputTokens:     firstInt(tokens, "input_tokens", "prompt_tokens"),
		OutputTokens:    firstInt(tokens, "output_tokens", "completion_tokens"),
		ReasoningTokens: firstInt(tokens, "reasoning_tokens"),
		CachedTokens:    firstInt(tokens, "cached_tokens"),
		TotalTokens:     firstInt(tokens, "total_tokens"),
	}
	if d.Tokens.TotalTokens == 0 {
		d.Tokens.TotalTokens = d.Tokens.InputTokens + d.Tokens.OutputTokens + d.Tokens.ReasoningTokens
	}
	return d
}

// firstInt returns the first present path as a non-negative integer.
func firstInt(r gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return max(v.Int(), 0)
		}
	}
	return 0
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses RFC 3339 and the common SQL layouts (UTC when no zone
// is given), then unix seconds or milliseconds.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n >= 1e12 || n <= -1e12 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}
