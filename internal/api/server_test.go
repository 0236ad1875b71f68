package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/config"
	"github.com/nghyane/llm-mux-monitor/internal/identity"
	"github.com/nghyane/llm-mux-monitor/internal/json"
	"github.com/nghyane/llm-mux-monitor/internal/monitor"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
)

type stubProviders struct{}

func (stubProviders) OpenAICompat(context.Context) ([]identity.ProviderRecord, error) {
	return []identity.ProviderRecord{{
		Family:        identity.FamilyOpenAI,
		Name:          "acme",
		APIKeyEntries: []identity.KeyEntry{{APIKey: "sk-acme-secret"}},
	}}, nil
}

func (stubProviders) GeminiKeys(context.Context) ([]identity.ProviderRecord, error) {
	return nil, errors.New("forbidden")
}

func (stubProviders) ClaudeKeys(context.Context) ([]identity.ProviderRecord, error) { return nil, nil }
func (stubProviders) CodexKeys(context.Context) ([]identity.ProviderRecord, error) { return nil, nil }
func (stubProviders) VertexKeys(context.Context) ([]identity.ProviderRecord, error) { return nil, nil }

func (stubProviders) AuthFiles(context.Context) ([]identity.AuthFileRecord, error) {
	return []identity.AuthFileRecord{{Index: identity.StringIndex("1"), Name: "me.json", Provider: "Me", Type: "claude"}}, nil
}

type stubUsage struct {
	err error
}

func (s *stubUsage) Usage(context.Context) (*usage.Dataset, error) {
	if s.err != nil {
		return nil, s.err
	}
	now := time.Now().UTC()
	ds := usage.NewDataset()
	ds.Add("sk-acme-secret", "gpt-4", usage.Detail{Timestamp: now.Add(-time.Hour).Format(time.RFC3339), AuthIndex: "1", Tokens: usage.TokenStats{TotalTokens: 7}})
	ds.Add("sk-acme-secret", "gpt-4", usage.Detail{Timestamp: now.Add(-10 * 24 * time.Hour).Format(time.RFC3339)})
	ds.Add("sk-zeta-000000", "gemini", usage.Detail{Timestamp: now.Add(-2 * time.Hour).Format(time.RFC3339)})
	return ds, nil
}

func newTestServer(t *testing.T, mutate func(*config.Config), u *stubUsage) (*Server, *monitor.Loader) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	loader := monitor.NewLoader(stubProviders{}, u)
	loader.Load(context.Background())
	return NewServer(cfg, loader), loader
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestGetUsage(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubUsage{})
	rec := do(t, s, http.MethodGet, "/monitor/usage")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	r := decode[monitor.Report](t, rec)
	if r.Window != "7d" || r.Totals.TotalRequests != 2 {
		t.Errorf("window %s totals %+v", r.Window, r.Totals)
	}
	if strings.Contains(rec.Body.String(), "sk-acme-secret") {
		t.Error("API key leaked without reveal-keys")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}

	var acme monitor.APIReport
	for _, a := range r.APIs {
		if a.Name == "acme" {
			acme = a
		}
	}
	if len(acme.Models) != 1 || len(acme.Models[0].Details) != 1 || acme.Models[0].Details[0].Account != "Me" {
		t.Errorf("acme = %+v", acme)
	}
}

func TestGetUsageQuery(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubUsage{})

	r := decode[monitor.Report](t, do(t, s, http.MethodGet, "/monitor/usage?window=30d&filter=ACME"))
	if len(r.APIs) != 1 || r.Totals.TotalRequests != 2 {
		t.Errorf("30d ACME: %+v", r.Totals)
	}
	r = decode[monitor.Report](t, do(t, s, http.MethodGet, "/monitor/usage?window=24h&filter=zeta"))
	if len(r.APIs) != 1 || r.APIs[0].Resolved {
		t.Errorf("24h zeta: %+v", r.APIs)
	}

	rec := do(t, s, http.MethodGet, "/monitor/usage?window=3")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid window status = %d", rec.Code)
	}
}

func TestGetSummaryOmitsDetails(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.Monitor.RevealKeys = true }, &stubUsage{})
	rec := do(t, s, http.MethodGet, "/monitor/summary")
	if strings.Contains(rec.Body.String(), `"details"`) {
		t.Error("summary must not carry details")
	}
	if !strings.Contains(rec.Body.String(), "sk-acme-secret") {
		t.Error("reveal-keys must keep keys readable")
	}
}

func TestGetIdentityMasked(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubUsage{})
	snap := decode[identity.Snapshot](t, do(t, s, http.MethodGet, "/monitor/identity"))
	if snap.Names[identity.MaskKey("sk-acme-secret")] != "acme" {
		t.Errorf("names = %v", snap.Names)
	}
	if snap.AuthIndex["1"].Name != "Me" {
		t.Errorf("auth index = %v", snap.AuthIndex)
	}
}

func TestGetStatusAfterUsageFailure(t *testing.T) {
	u := &stubUsage{}
	s, loader := newTestServer(t, nil, u)
	u.err = errors.New("gateway down")
	loader.Load(context.Background())

	st := decode[struct {
		Loaded     bool   `json:"loaded"`
		Error      string `json:"error"`
		Generation uint64 `json:"generation"`
		Records    int    `json:"records"`
	}](t, do(t, s, http.MethodGet, "/monitor/status"))
	if !st.Loaded || st.Records != 3 || st.Error != "gateway down" || st.Generation != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestPostRefreshRateLimited(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.Server.RefreshPerMinute = 1 }, &stubUsage{})

	rec := do(t, s, http.MethodPost, "/monitor/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("first refresh = %d %s", rec.Code, rec.Body)
	}
	res := decode[struct {
		Generation uint64   `json:"generation"`
		Degraded   []string `json:"degraded"`
	}](t, rec)
	if res.Generation != 2 || len(res.Degraded) != 1 || res.Degraded[0] != "gemini-api-key" {
		t.Errorf("refresh = %+v", res)
	}
	if rec := do(t, s, http.MethodPost, "/monitor/refresh"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second refresh = %d", rec.Code)
	}
}

func TestPostRefreshUsageError(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubUsage{err: errors.New("boom")})
	rec := do(t, s, http.MethodPost, "/monitor/refresh")
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("refresh = %d %s", rec.Code, rec.Body)
	}
}

func TestCORSAndNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubUsage{})
	if rec := do(t, s, http.MethodOptions, "/monitor/usage"); rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d", rec.Code)
	}
}
