package usage

import (
	"reflect"
	"testing"
	"time"
)

const barePayload = `{
	"total_requests": 3,
	"success_count": 2,
	"failure_count": 1,
	"total_tokens": 60,
	"apis": {
		"sk-1": {
			"total_requests": 3,
			"models": {
				"gpt-4": {
					"details": [
						{"timestamp": "2026-10-18T10:00:00Z", "source": "a@example.com", "auth_index": 5,
						 "tokens": {"input_tokens": 10, "output_tokens": 5, "reasoning_tokens": 1, "cached_tokens": 2, "total_tokens": 16}},
						{"timestamp": "2026-10-18T11:00:00Z", "failed": true, "auth_index": "7",
						 "tokens": {"prompt_tokens": 20, "completion_tokens": 4}},
						{"timestamp": "garbage", "tokens": {"input_tokens": -3}}
					]
				},
				"broken": "not an object"
			}
		}
	}
}`

func TestParsePayloadShapes(t *testing.T) {
	bare, err := ParsePayload([]byte(barePayload))
	if err != nil {
		t.Fatalf("bare payload: %v", err)
	}
	wrapped, err := ParsePayload([]byte(`{"usage": ` + barePayload + `, "failed_requests": 1}`))
	if err != nil {
		t.Fatalf("wrapped payload: %v", err)
	}
	if !reflect.DeepEqual(bare, wrapped) {
		t.Error("wrapped and bare payloads must decode to the same dataset")
	}

	if bare.TotalRequests != 3 || bare.FailureCount != 1 || bare.TotalTokens != 60 {
		t.Errorf("counters not passed through: %+v", bare)
	}
	details := bare.APIs["sk-1"].Models["gpt-4"].Details
	if len(details) != 3 {
		t.Fatalf("expected 3 details, got %d", len(details))
	}
	want := Detail{
		Timestamp: "2026-10-18T10:00:00Z",
		Source:    "a@example.com",
		AuthIndex: "5",
		Tokens:    TokenStats{InputTokens: 10, OutputTokens: 5, ReasoningTokens: 1, CachedTokens: 2, TotalTokens: 16},
	}
	if details[0] != want {
		t.Errorf("detail[0] = %+v, want %+v", details[0], want)
	}
	if d := details[1]; !d.Failed || d.AuthIndex != "7" || d.Tokens.InputTokens != 20 || d.Tokens.OutputTokens != 4 || d.Tokens.TotalTokens != 24 {
		t.Errorf("detail[1] = %+v", d)
	}
	if d := details[2]; d.Tokens.InputTokens != 0 || d.AuthIndex != "" {
		t.Errorf("detail[2] = %+v", d)
	}
	if _, ok := bare.APIs["sk-1"].Models["broken"]; ok {
		t.Error("non-object model entries are skipped")
	}
}

func TestParsePayloadNullUsageFallsBack(t *testing.T) {
	ds, err := ParsePayload([]byte(`{"usage": null, "apis": {"k": {"models": {"m": {"details": []}}}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ds.APIs["k"]; !ok {
		t.Errorf("expected root dataset, got %+v", ds)
	}
}

func TestParsePayloadErrors(t *testing.T) {
	for _, in := range []string{``, `not json`, `[1, 2]`, `"usage"`} {
		if _, err := ParsePayload([]byte(in)); err == nil {
			t.Errorf("ParsePayload(%q) expected error", in)
		}
	}
	ds, err := ParsePayload([]byte(`{}`))
	if err != nil || ds == nil || len(ds.APIs) != 0 {
		t.Errorf("empty object should decode to an empty dataset, got %+v, %v", ds, err)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 10, 18, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		in string
		ok bool
	}{
		{"2026-10-18T10:30:00Z", true},
		{"2026-10-18T10:30:00.000Z", true},
		{"2026-10-18T12:30:00+02:00", true},
		{"2026-10-18 10:30:00", true},
		{"2026-10-18T10:30:00", true},
		{"2026-10-18 10:30:00 +0000 UTC", true},
		{"1792319400", true},
		{"1792319400000", true},
		{"", false},
		{"yesterday", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestDatasetAdd(t *testing.T) {
	ds := NewDataset()
	ds.Add("k", "m", Detail{Source: "one", Tokens: TokenStats{TotalTokens: 3}})
	ds.Add("k", "m", Detail{Source: "two", Failed: true, Tokens: TokenStats{TotalTokens: 4}})
	ds.Add("k", "n", Detail{Source: "three"})

	if ds.TotalRequests != 3 || ds.SuccessCount != 2 || ds.FailureCount != 1 || ds.TotalTokens != 7 {
		t.Errorf("dataset counters = %+v", ds)
	}
	api := ds.APIs["k"]
	if api.TotalRequests != 3 || api.Models["m"].TotalRequests != 2 || api.Models["m"].TotalTokens != 7 {
		t.Errorf("api counters = %+v", api)
	}
	if got := sources(ds, "k", "m"); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("order = %v", got)
	}
	if ds.RecordCount() != 3 {
		t.Errorf("RecordCount = %d", ds.RecordCount())
	}
}
