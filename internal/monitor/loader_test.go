package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/identity"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
)

type fakeProviders struct {
	openai, gemini, claude, codex, vertex []identity.ProviderRecord
	files                                 []identity.AuthFileRecord
	err                                   error
	panicOn                               string
}

func (f *fakeProviders) list(name string, recs []identity.ProviderRecord) ([]identity.ProviderRecord, error) {
	if f.panicOn == name {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return recs, nil
}

func (f *fakeProviders) OpenAICompat(context.Context) ([]identity.ProviderRecord, error) {
	return f.list("openai", f.openai)
}

func (f *fakeProviders) GeminiKeys(context.Context) ([]identity.ProviderRecord, error) {
	return f.list("gemini", f.gemini)
}

func (f *fakeProviders) ClaudeKeys(context.Context) ([]identity.ProviderRecord, error) {
	return f.list("claude", f.claude)
}

func (f *fakeProviders) CodexKeys(context.Context) ([]identity.ProviderRecord, error) {
	return f.list("codex", f.codex)
}

func (f *fakeProviders) VertexKeys(context.Context) ([]identity.ProviderRecord, error) {
	return f.list("vertex", f.vertex)
}

func (f *fakeProviders) AuthFiles(context.Context) ([]identity.AuthFileRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

// fakeUsage returns queued results in call order; a call with a gate blocks
// until the gate is closed.
type fakeUsage struct {
	calls   atomic.Int32
	results []usageResult
}

type usageResult struct {
	ds   *usage.Dataset
	err  error
	gate chan struct{}
}

func (f *fakeUsage) Usage(ctx context.Context) (*usage.Dataset, error) {
	n := int(f.calls.Add(1)) - 1
	r := f.results[min(n, len(f.results)-1)]
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.ds, r.err
}

func datasetWith(key, model string) *usage.Dataset {
	ds := usage.NewDataset()
	ds.Add(key, model, usage.Detail{Timestamp: "2026-10-18T10:30:00Z"})
	return ds
}

func TestLoadPublishes(t *testing.T) {
	ds := datasetWith("sk-acme", "gpt-4")
	providers := &fakeProviders{
		openai: []identity.ProviderRecord{{Family: identity.FamilyOpenAI, Name: "acme", APIKeyEntries: []identity.KeyEntry{{APIKey: "sk-acme"}}}},
		files:  []identity.AuthFileRecord{{Index: identity.NumberIndex(1), Name: "me.json", Type: "claude"}},
	}
	l := NewLoader(providers, &fakeUsage{results: []usageResult{{ds: ds}}})

	res := l.Load(context.Background())
	if res.Err != nil || res.Stale || len(res.Degraded) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	snap := l.State().Snapshot()
	if snap.Dataset != ds {
		t.Error("dataset not published")
	}
	if name, _ := snap.Identity.Name("sk-acme"); name != "acme" {
		t.Errorf("identity name = %q", name)
	}
	if _, ok := snap.Identity.Auth("1"); !ok {
		t.Error("auth index 1 missing")
	}
	if snap.Loading || snap.Err != "" || snap.Generation != 1 || snap.LoadedAt.IsZero() {
		t.Errorf("snapshot flags = %+v", snap)
	}
}

func TestIdentityFailuresDegradeToEmpty(t *testing.T) {
	ds := datasetWith("k", "m")
	l := NewLoader(&fakeProviders{err: errors.New("forbidden")}, &fakeUsage{results: []usageResult{{ds: ds}}})

	res := l.Load(context.Background())
	if res.Err != nil {
		t.Fatalf("identity failures must not surface as an error: %v", res.Err)
	}
	if len(res.Degraded) != 6 {
		t.Errorf("degraded = %v, want all six sources", res.Degraded)
	}
	snap := l.State().Snapshot()
	if snap.Dataset != ds {
		t.Error("usage must still be published")
	}
	if keys, auths := snap.Identity.Len(); keys != 0 || auths != 0 {
		t.Errorf("identity map not empty: %d keys, %d auths", keys, auths)
	}
	if snap.Err != "" {
		t.Errorf("error = %q", snap.Err)
	}
}

func TestIdentityPanicIsContained(t *testing.T) {
	providers := &fakeProviders{
		panicOn: "gemini",
		claude:  []identity.ProviderRecord{{Family: identity.FamilyClaude, APIKey: "sk-ant-1"}},
	}
	l := NewLoader(providers, &fakeUsage{results: []usageResult{{ds: usage.NewDataset()}}})
	res := l.Load(context.Background())
	if len(res.Degraded) != 1 || res.Degraded[0] != "gemini-api-key" {
		t.Errorf("degraded = %v", res.Degraded)
	}
	if _, ok := res.Identity.Name("sk-ant-1"); !ok {
		t.Error("healthy sources still contribute")
	}
}

func TestUsageFailureKeepsPreviousDataset(t *testing.T) {
	first := datasetWith("k", "m")
	fu := &fakeUsage{results: []usageResult{{ds: first}, {err: errors.New("connection refused")}}}
	l := NewLoader(&fakeProviders{}, fu)

	l.Load(context.Background())
	res := l.Load(context.Background())
	if res.Err == nil {
		t.Fatal("expected usage error")
	}
	snap := l.State().Snapshot()
	if snap.Dataset != first {
		t.Error("previous dataset must be kept on failure")
	}
	if snap.Err != "connection refused" {
		t.Errorf("error = %q", snap.Err)
	}
	if snap.Loading {
		t.Error("loading must be cleared")
	}
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	older := datasetWith("old", "m")
	newer := datasetWith("new", "m")
	fu := &fakeUsage{results: []usageResult{{ds: older, gate: gate}, {ds: newer}}}
	l := NewLoader(&fakeProviders{}, fu)

	done := make(chan Result)
	go func() { done <- l.Load(context.Background()) }()
	for fu.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := l.Load(context.Background())
	if second.Stale {
		t.Fatal("latest load must publish")
	}
	close(gate)
	first := <-done
	if !first.Stale {
		t.Error("older load must be marked stale")
	}
	snap := l.State().Snapshot()
	if snap.Dataset != newer || snap.Generation != 2 {
		t.Errorf("published generation %d, dataset %p", snap.Generation, snap.Dataset)
	}
}

func TestLoadingFlagWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	fu := &fakeUsage{results: []usageResult{{ds: usage.NewDataset(), gate: gate}}}
	l := NewLoader(&fakeProviders{}, fu)

	done := make(chan struct{})
	go func() {
		l.Load(context.Background())
		close(done)
	}()
	for fu.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if !l.State().Snapshot().Loading {
		t.Error("loading must be set while a load is in flight")
	}
	close(gate)
	<-done
	if l.State().Snapshot().Loading {
		t.Error("loading must be cleared after the load settles")
	}
}

func TestErrorClearedWhenLoadStarts(t *testing.T) {
	gate := make(chan struct{})
	fu := &fakeUsage{results: []usageResult{
		{err: errors.New("connection refused")},
		{ds: usage.NewDataset(), gate: gate},
	}}
	l := NewLoader(&fakeProviders{}, fu)

	l.Load(context.Background())
	if l.State().Snapshot().Err == "" {
		t.Fatal("first load should record its error")
	}

	done := make(chan struct{})
	go func() {
		l.Load(context.Background())
		close(done)
	}()
	for fu.calls.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	snap := l.State().Snapshot()
	if !snap.Loading || snap.Err != "" {
		t.Errorf("in-flight snapshot = loading %v, err %q; want loading with no error", snap.Loading, snap.Err)
	}
	close(gate)
	<-done
	if snap := l.State().Snapshot(); snap.Err != "" || snap.Loading {
		t.Errorf("settled snapshot = loading %v, err %q", snap.Loading, snap.Err)
	}
}

func TestProviderRecordsTaggedWithList(t *testing.T) {
	providers := &fakeProviders{
		gemini: []identity.ProviderRecord{{APIKey: "AIza-1", Prefix: "team"}},
		claude: []identity.ProviderRecord{{APIKey: "sk-ant-1"}},
		vertex: []identity.ProviderRecord{{Family: identity.FamilyGemini, APIKey: "vx-1"}},
	}
	l := NewLoader(providers, &fakeUsage{results: []usageResult{{ds: usage.NewDataset()}}})
	res := l.Load(context.Background())

	tests := []struct {
		key      string
		wantType string
	}{
		{"AIza-1", identity.FamilyGemini.TypeLabel()},
		{"sk-ant-1", identity.FamilyClaude.TypeLabel()},
		{"vx-1", identity.FamilyVertex.TypeLabel()},
	}
	for _, tt := range tests {
		if got, ok := res.Identity.Type(tt.key); !ok || got != tt.wantType {
			t.Errorf("Type(%q) = %q, %v; want %q", tt.key, got, ok, tt.wantType)
		}
	}
	if providers.gemini[0].Family != "" {
		t.Error("source records must not be modified")
	}
}

func TestNilSources(t *testing.T) {
	l := NewLoader(nil, nil)
	res := l.Load(context.Background())
	if res.Err == nil {
		t.Error("missing usage source must be reported")
	}
	if l.State().Snapshot().Dataset != nil {
		t.Error("no dataset expected")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	fu := &fakeUsage{results: []usageResult{{ds: usage.NewDataset()}}}
	l := NewLoader(&fakeProviders{}, fu)
	trigger := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		l.Run(ctx, 0, trigger)
		close(stopped)
	}()
	trigger <- struct{}{}
	trigger <- struct{}{}
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := fu.calls.Load(); n < 2 {
		t.Errorf("usage calls = %d, want at least 2", n)
	}
}
