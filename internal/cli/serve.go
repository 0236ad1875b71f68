package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/api"
	"github.com/nghyane/llm-mux-monitor/internal/bootstrap"
	"github.com/nghyane/llm-mux-monitor/internal/config"
	"github.com/nghyane/llm-mux-monitor/internal/local"
	"github.com/nghyane/llm-mux-monitor/internal/logging"
	log "github.com/nghyane/llm-mux-monitor/internal/logging"
	"github.com/nghyane/llm-mux-monitor/internal/monitor"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep usage loaded and serve it over HTTP",
	Long: `Load usage on a fixed interval and serve the filtered reports as JSON
under /monitor. In local mode with watch enabled, changes to the gateway
config or auth directory trigger a reload.`,
	RunE: func(c *cobra.Command, args []string) error {
		res, err := load()
		if err != nil {
			return err
		}
		cfg := res.Config
		if c.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
			log.Fatalf("Failed to configure log output: %v", err)
		}

		ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg)
	},
}

func runServer(ctx context.Context, cfg *config.Config) error {
	srcs, err := bootstrap.OpenSources(ctx, cfg)
	if err != nil {
		return err
	}
	if srcs.Close != nil {
		defer func() { _ = srcs.Close() }()
	}

	loader := monitor.NewLoader(srcs.Providers, srcs.Usage)
	trigger := make(chan struct{}, 1)
	go loader.Run(ctx, cfg.Monitor.RefreshDuration(), trigger)

	if ls, ok := srcs.Providers.(*local.Source); ok && cfg.Local.Watch {
		watcher, err := ls.NewWatcher(local.DefaultDebounce)
		if err != nil {
			log.Warnf("file watching disabled: %v", err)
		} else {
			go watcher.Run(ctx, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		}
	}

	server := api.NewServer(cfg, loader)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultServerPort, "server port")
	rootCmd.AddCommand(serveCmd)
}
