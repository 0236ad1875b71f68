// Package cli implements the llm-mux-monitor command line.
package cli

import (
	"github.com/nghyane/llm-mux-monitor/internal/bootstrap"
	"github.com/nghyane/llm-mux-monitor/internal/cli/service"
	"github.com/nghyane/llm-mux-monitor/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "llm-mux-monitor",
	Short: "Usage monitor for llm-mux gateways",
	Long: `llm-mux-monitor reads provider credentials, auth files and per-request
usage from an llm-mux gateway, either through its management API or from the
gateway's own files, and reports usage per API key, model and account.`,
	SilenceUsage: true,
	PersistentPreRun: func(c *cobra.Command, args []string) {
		logging.SetupBaseLogger()
		if debug {
			logging.SetDebug(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/llm-mux-monitor/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(service.ServiceCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// load bootstraps the config and applies the debug settings from it.
func load() (*bootstrap.Result, error) {
	res, err := bootstrap.Bootstrap(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		res.Config.Debug = true
	}
	logging.SetDebug(res.Config.Debug)
	return res, nil
}
