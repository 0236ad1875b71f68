package service

import (
	"strings"
	"testing"
)

func TestRenderUnit(t *testing.T) {
	spec := unitSpec{Exe: "/usr/local/bin/llm-mux-monitor", Home: "/home/u", Args: []string{"serve", "--config", "/etc/m.yaml"}}
	out, err := render(unitTemplate, spec)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "ExecStart=/usr/local/bin/llm-mux-monitor serve --config /etc/m.yaml\n") {
		t.Errorf("unit:\n%s", out)
	}
}

func TestRenderPlist(t *testing.T) {
	spec := unitSpec{Exe: "/bin/m", Home: "/Users/u", LogDir: "/Users/u/.local/var/log", Args: []string{"serve"}}
	out, err := render(plistTemplate, spec)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	for _, want := range []string{"<string>/bin/m</string>", "<string>serve</string>", "/Users/u/.local/var/log/llm-mux-monitor.log", "com.llm-mux-monitor"} {
		if !strings.Contains(s, want) {
			t.Errorf("plist missing %q", want)
		}
	}
}

func TestServiceCommand(t *testing.T) {
	tests := []struct {
		goos, action string
		want         string
		wantErr      bool
	}{
		{"linux", "start", "systemctl --user start llm-mux-monitor", false},
		{"linux", "status", "systemctl --user is-active llm-mux-monitor", false},
		{"darwin", "stop", "launchctl stop com.llm-mux-monitor", false},
		{"linux", "reload", "", true},
		{"windows", "start", "", true},
	}
	for _, tt := range tests {
		cmd, err := serviceCommand(tt.goos, tt.action)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s/%s: expected error", tt.goos, tt.action)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s/%s: %v", tt.goos, tt.action, err)
		}
		if got := strings.Join(cmd.Args, " "); got != tt.want {
			t.Errorf("%s/%s = %q, want %q", tt.goos, tt.action, got, tt.want)
		}
	}
}
