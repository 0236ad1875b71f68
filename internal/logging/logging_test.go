package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigureLogOutputWritesToFile(t *testing.T) {
	SetupBaseLogger()
	dir := t.TempDir()

	if err := ConfigureLogOutput(true, dir); err != nil {
		t.Fatalf("ConfigureLogOutput: %v", err)
	}
	t.Cleanup(func() { _ = ConfigureLogOutput(false, "") })

	Infof("hello %s", "file")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file missing message, got %q", string(data))
	}
}

func TestConfigureLogOutputRequiresDir(t *testing.T) {
	if err := ConfigureLogOutput(true, ""); err == nil {
		t.Fatal("expected error for empty log dir")
	}
}

func TestConfigureLogOutputBackToStdout(t *testing.T) {
	if err := ConfigureLogOutput(false, ""); err != nil {
		t.Fatalf("ConfigureLogOutput: %v", err)
	}
	if Output() != os.Stdout {
		t.Errorf("expected stdout output after disabling file logging")
	}
}
