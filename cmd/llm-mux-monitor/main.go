package main

import (
	"os"

	"github.com/nghyane/llm-mux-monitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
