package config

import (
	"fmt"
	"strings"
)

// DSN is a parsed usage database location.
type DSN struct {
	// Backend is "sqlite" or "postgres".
	Backend string
	// Path is the sqlite file path.
	Path string
	// URL is the postgres connection string.
	URL string
}

// ParseDSN accepts sqlite://path, postgres:// and postgresql:// URLs.
// An empty string returns nil without error.
func ParseDSN(dsn string) (*DSN, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil
	}
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		path := dsn[len("sqlite://"):]
		if path == "" {
			return nil, fmt.Errorf("sqlite DSN is missing a path")
		}
		return &DSN{Backend: "sqlite", Path: path}, nil
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return &DSN{Backend: "postgres", URL: dsn}, nil
	default:
		return nil, fmt.Errorf("unsupported DSN %q (use sqlite:// or postgres://)", dsn)
	}
}
