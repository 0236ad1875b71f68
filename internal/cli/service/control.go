// Package service installs and controls `llm-mux-monitor serve` as a user
// service (launchd on macOS, systemd --user on Linux).
package service

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	unitName   = "llm-mux-monitor"
	launchdID  = "com.llm-mux-monitor"
	logFileMac = "llm-mux-monitor.log"
)

// ServiceCmd groups the service subcommands.
var ServiceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the background monitor service",
}

// serviceCommand returns the platform command for action, or nil when the
// action is unknown.
func serviceCommand(goos, action string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		switch action {
		case "start":
			return exec.Command("launchctl", "start", launchdID), nil
		case "stop":
			return exec.Command("launchctl", "stop", launchdID), nil
		case "status":
			return exec.Command("launchctl", "list", launchdID), nil
		}
	case "linux":
		switch action {
		case "start":
			return exec.Command("systemctl", "--user", "start", unitName), nil
		case "stop":
			return exec.Command("systemctl", "--user", "stop", unitName), nil
		case "status":
			return exec.Command("systemctl", "--user", "is-active", unitName), nil
		}
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
	return nil, fmt.Errorf("unknown action: %s", action)
}

func runServiceCommand(action string) error {
	cmd, err := serviceCommand(runtime.GOOS, action)
	if err != nil {
		return err
	}
	if action == "status" {
		return cmd.Run()
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServiceCommand("start")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServiceCommand("stop")
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = runServiceCommand("stop")
		return runServiceCommand("start")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runServiceCommand("status"); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Service is stopped")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service is running")
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Follow service logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var c *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			home, _ := os.UserHomeDir()
			c = exec.Command("tail", "-f", macLogDir(home)+"/"+logFileMac)
		case "linux":
			c = exec.Command("journalctl", "--user", "-u", unitName, "-f")
		default:
			return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
		}
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	ServiceCmd.AddCommand(startCmd, stopCmd, restartCmd, statusCmd, logsCmd)
}
