// Package buildinfo holds version metadata injected at link time with
// -ldflags "-X github.com/nghyane/llm-mux-monitor/internal/buildinfo.Version=...".
package buildinfo

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
