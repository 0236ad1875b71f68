package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/nghyane/llm-mux-monitor/internal/util"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the monitor as a background service running `serve`",
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		spec := unitSpec{Exe: exe, Home: home, Args: []string{"serve"}}
		if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
			path, err := util.ResolvePath(f.Value.String())
			if err != nil {
				return err
			}
			if path, err = filepath.Abs(path); err != nil {
				return err
			}
			spec.Args = append(spec.Args, "--config", path)
		}

		switch runtime.GOOS {
		case "darwin":
			return installMacOS(cmd, spec)
		case "linux":
			return installLinux(cmd, spec)
		default:
			return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
		}
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the background service",
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		switch runtime.GOOS {
		case "darwin":
			path := plistPath(home)
			_ = exec.Command("launchctl", "unload", path).Run()
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove plist: %w", err)
			}
		case "linux":
			_ = exec.Command("systemctl", "--user", "stop", unitName).Run()
			_ = exec.Command("systemctl", "--user", "disable", unitName).Run()
			if err := os.Remove(unitPath(home)); err != nil {
				return fmt.Errorf("failed to remove unit file: %w", err)
			}
			_ = exec.Command("systemctl", "--user", "daemon-reload").Run()
		default:
			return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service uninstalled")
		return nil
	},
}

func init() {
	ServiceCmd.AddCommand(installCmd, uninstallCmd)
}

type unitSpec struct {
	Exe    string
	Args   []string
	Home   string
	LogDir string
}

var plistTemplate = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>` + launchdID + `</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Exe}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <dict>
        <key>SuccessfulExit</key>
        <false/>
    </dict>
    <key>ThrottleInterval</key>
    <integer>5</integer>
    <key>StandardOutPath</key>
    <string>{{.LogDir}}/` + logFileMac + `</string>
    <key>StandardErrorPath</key>
    <string>{{.LogDir}}/` + logFileMac + `</string>
    <key>EnvironmentVariables</key>
    <dict>
        <key>HOME</key>
        <string>{{.Home}}</string>
    </dict>
    <key>WorkingDirectory</key>
    <string>{{.Home}}</string>
</dict>
</plist>
`))

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=llm-mux-monitor - usage monitor for llm-mux gateways
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.Exe}}{{range .Args}} {{.}}{{end}}
WorkingDirectory={{.Home}}
Restart=on-failure
RestartSec=5
Environment=HOME={{.Home}}

[Install]
WantedBy=default.target
`))

func render(t *template.Template, spec unitSpec) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, spec); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.Bytes(), nil
}

func macLogDir(home string) string { return filepath.Join(home, ".local/var/log") }

func plistPath(home string) string {
	return filepath.Join(home, "Library/LaunchAgents", launchdID+".plist")
}

func unitPath(home string) string {
	return filepath.Join(home, ".config/systemd/user", unitName+".service")
}

func installMacOS(cmd *cobra.Command, spec unitSpec) error {
	spec.LogDir = macLogDir(spec.Home)
	if err := os.MkdirAll(spec.LogDir, 0o755); err != nil {
		return err
	}
	data, err := render(plistTemplate, spec)
	if err != nil {
		return err
	}
	path := plistPath(spec.Home)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write plist: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Service installed to %s\n", path)

	_ = exec.Command("launchctl", "unload", path).Run()
	if err := exec.Command("launchctl", "load", path).Run(); err != nil {
		fmt.Fprintf(out, "Warning: failed to load service: %v\nTry running: launchctl load %s\n", err, path)
		return nil
	}
	fmt.Fprintln(out, "Service started")
	return nil
}

func installLinux(cmd *cobra.Command, spec unitSpec) error {
	data, err := render(unitTemplate, spec)
	if err != nil {
		return err
	}
	path := unitPath(spec.Home)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Service installed to %s\n", path)

	_ = exec.Command("systemctl", "--user", "daemon-reload").Run()
	_ = exec.Command("systemctl", "--user", "enable", unitName).Run()
	if err := exec.Command("systemctl", "--user", "start", unitName).Run(); err != nil {
		fmt.Fprintf(out, "Warning: failed to start service: %v\n", err)
		return nil
	}
	fmt.Fprintln(out, "Service started")
	return nil
}
