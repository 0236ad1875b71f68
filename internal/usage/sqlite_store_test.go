package usage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func createUsageDB(t *testing.T, now time.Time) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usage.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
	CREATE TABLE usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		api_key TEXT NOT NULL DEFAULT '',
		auth_id TEXT NOT NULL DEFAULT '',
		auth_index INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		requested_at TIMESTAMP NOT NULL,
		failed BOOLEAN NOT NULL DEFAULT 0,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		reasoning_tokens INTEGER NOT NULL DEFAULT 0,
		cached_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	insert := `INSERT INTO usage_records (
		provider, model, api_key, auth_index, source, requested_at, failed,
		input_tokens, output_tokens, reasoning_tokens, cached_tokens, total_tokens
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	rows := []struct {
		provider, model, apiKey string
		authIndex               int
		source                  string
		age                     time.Duration
		failed                  bool
		total                   int
	}{
		{"openai", "gpt-4", "sk-a", 0, "first", 3 * time.Hour, false, 10},
		{"claude", "claude-sonnet", "sk-a", 2, "second", 2 * time.Hour, true, 5},
		{"openai", "gpt-4", "sk-a", 0, "third", 1 * time.Hour, false, 7},
		{"gemini", "gemini-pro", "", 1, "keyless", 1 * time.Hour, false, 1},
		{"openai", "gpt-4", "sk-a", 0, "too old", 40 * 24 * time.Hour, false, 100},
	}
	for _, r := range rows {
		_, err := db.Exec(insert, r.provider, r.model, r.apiKey, r.authIndex, r.source,
			now.Add(-r.age), r.failed, 0, 0, 0, 0, r.total)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return path
}

func TestSQLiteStoreUsage(t *testing.T) {
	now := time.Now().UTC()
	path := createUsageDB(t, now)

	store, err := OpenStore(context.Background(), StoreConfig{DSN: "sqlite://" + path, LookbackDays: 30})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	ds, err := store.Usage(context.Background())
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}

	if got := sources(ds, "sk-a", "gpt-4"); !reflect.DeepEqual(got, []string{"first", "third"}) {
		t.Errorf("sk-a/gpt-4 = %v", got)
	}
	claude := ds.APIs["sk-a"].Models["claude-sonnet"].Details
	if len(claude) != 1 || !claude[0].Failed || claude[0].AuthIndex != "2" {
		t.Errorf("sk-a/claude-sonnet = %+v", claude)
	}
	if ds.APIs["sk-a"].Models["gpt-4"].Details[0].AuthIndex != "" {
		t.Error("auth index 0 must map to no auth index")
	}
	if got := sources(ds, "gemini", "gemini-pro"); !reflect.DeepEqual(got, []string{"keyless"}) {
		t.Errorf("keyless records are grouped by provider, got %v", ds.APIs)
	}
	if ds.TotalRequests != 4 || ds.FailureCount != 1 || ds.TotalTokens != 23 {
		t.Errorf("counters = %d/%d/%d", ds.TotalRequests, ds.FailureCount, ds.TotalTokens)
	}

	ts, ok := ds.APIs["sk-a"].Models["gpt-4"].Details[0].Time()
	if !ok || ts.Sub(now.Add(-3*time.Hour)).Abs() > time.Second {
		t.Errorf("timestamp round trip = %v, %v", ts, ok)
	}

	week := Filter(ds, Window1d, "SK-", now)
	if week.RecordCount() != 3 {
		t.Errorf("filtered record count = %d", week.RecordCount())
	}
}

func TestSQLiteStoreMissingFile(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missing.db"), StoreConfig{})
	if err == nil {
		t.Fatal("expected error for a missing database file")
	}
}

func TestOpenStoreUnsupported(t *testing.T) {
	for _, dsn := range []string{"", "mysql://root@localhost/usage"} {
		_, err := OpenStore(context.Background(), StoreConfig{DSN: dsn})
		if !errors.Is(err, ErrUnsupportedDSN) {
			t.Errorf("OpenStore(%q) error = %v, want ErrUnsupportedDSN", dsn, err)
		}
	}
}
