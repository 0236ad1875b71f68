// Package util provides small helpers shared by the monitor packages.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath expands a leading ~ and environment references such as
// $XDG_CONFIG_HOME. An unset XDG_CONFIG_HOME falls back to ~/.config.
func ResolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}

	var home string
	homeDir := func() (string, error) {
		if home != "" {
			return home, nil
		}
		h, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		home = h
		return home, nil
	}

	var expandErr error
	path = os.Expand(path, func(name string) string {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if name == "XDG_CONFIG_HOME" {
			h, err := homeDir()
			if err != nil {
				expandErr = err
				return ""
			}
			return filepath.Join(h, ".config")
		}
		return ""
	})
	if expandErr != nil {
		return "", expandErr
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		h, err := homeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(h, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(path), nil
}
