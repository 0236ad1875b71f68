package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/bootstrap"
	"github.com/nghyane/llm-mux-monitor/internal/json"
	"github.com/nghyane/llm-mux-monitor/internal/logging"
	"github.com/nghyane/llm-mux-monitor/internal/monitor"
	"github.com/nghyane/llm-mux-monitor/internal/usage"
	"github.com/spf13/cobra"
)

var (
	showWindow  string
	showFilter  string
	showJSON    bool
	showDetails bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Load usage once and print it",
	Long: `Load providers, auth files and usage once, filter the records to the
chosen window and API key filter, and print a per-key, per-model report.`,
	RunE: func(c *cobra.Command, args []string) error {
		logging.SetOutput(os.Stderr)
		res, err := load()
		if err != nil {
			return err
		}
		cfg := res.Config

		window, err := usage.WindowFromDays(cfg.Monitor.Window)
		if err != nil {
			return err
		}
		if c.Flags().Changed("window") {
			if window, err = usage.ParseWindow(showWindow); err != nil {
				return err
			}
		}
		filter := cfg.Monitor.APIFilter
		if c.Flags().Changed("filter") {
			filter = showFilter
		}

		ctx, cancel := context.WithTimeout(c.Context(), 2*cfg.Management.TimeoutDuration())
		defer cancel()
		srcs, err := bootstrap.OpenSources(ctx, cfg)
		if err != nil {
			return err
		}
		if srcs.Close != nil {
			defer func() { _ = srcs.Close() }()
		}

		loader := monitor.NewLoader(srcs.Providers, srcs.Usage)
		loader.Load(ctx)
		snap := loader.State().Snapshot()
		if snap.Dataset == nil {
			return errors.New("failed to load usage: " + snap.Err)
		}

		report := monitor.BuildReport(snap, usage.FilterNow(snap.Dataset, window, filter), monitor.ReportOptions{
			Window:     window,
			Filter:     filter,
			Details:    showDetails,
			RevealKeys: cfg.Monitor.RevealKeys,
		})
		if showJSON {
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode report: %w", err)
			}
			_, err = fmt.Fprintln(c.OutOrStdout(), string(out))
			return err
		}
		return renderReport(c.OutOrStdout(), report)
	},
}

func init() {
	showCmd.Flags().StringVarP(&showWindow, "window", "w", "", "time window: 24h, 7d, 14d or 30d")
	showCmd.Flags().StringVarP(&showFilter, "filter", "f", "", "only API keys containing this text (case-insensitive)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the report as JSON")
	showCmd.Flags().BoolVar(&showDetails, "details", false, "include individual records in JSON output")
	rootCmd.AddCommand(showCmd)
}

// renderReport prints a report as aligned text tables.
func renderReport(w io.Writer, r monitor.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Window:\t%s\n", r.Label)
	if r.Filter != "" {
		fmt.Fprintf(tw, "Filter:\t%s\n", r.Filter)
	}
	if !r.LoadedAt.IsZero() {
		fmt.Fprintf(tw, "Loaded:\t%s\n", r.LoadedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintf(tw, "Requests:\t%d (%d ok, %d failed)\n", r.Totals.TotalRequests, r.Totals.SuccessCount, r.Totals.FailureCount)
	fmt.Fprintf(tw, "Tokens:\t%s\n", tokenLine(r.Totals.Tokens))
	if r.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", r.Error)
	}

	if len(r.APIs) == 0 {
		fmt.Fprintln(tw, "\nNo usage in this window.")
		return tw.Flush()
	}

	fmt.Fprintln(tw, "\nPROVIDER\tTYPE\tKEY\tMODEL\tREQUESTS\tFAILED\tTOKENS")
	for _, api := range r.APIs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n", api.Name, api.Type, api.APIKey, "*", api.TotalRequests, api.FailureCount, api.Tokens.TotalTokens)
		for _, m := range api.Models {
			model := m.Model
			if !m.Allowed {
				model += " (unlisted)"
			}
			fmt.Fprintf(tw, "\t\t\t%s\t%d\t%d\t%d\n", model, m.TotalRequests, m.FailureCount, m.Tokens.TotalTokens)
		}
	}

	if len(r.Auths) > 0 {
		fmt.Fprintln(tw, "\nAUTH\tACCOUNT\tTYPE\tREQUESTS\tFAILED\tTOKENS")
		for _, a := range r.Auths {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", a.AuthIndex, a.Name, a.Type, a.TotalRequests, a.FailureCount, a.Tokens.TotalTokens)
		}
	}

	if len(r.Daily) > 0 {
		fmt.Fprintln(tw, "\nDAY\tREQUESTS\tTOKENS")
		for _, d := range r.Daily {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", d.Day, d.Requests, d.Tokens)
		}
	}
	return tw.Flush()
}

func tokenLine(t usage.TokenStats) string {
	parts := []string{fmt.Sprintf("%d total", t.TotalTokens)}
	for _, p := range []struct {
		name string
		n    int64
	}{
		{"input", t.InputTokens},
		{"output", t.OutputTokens},
		{"reasoning", t.ReasoningTokens},
		{"cached", t.CachedTokens},
	} {
		if p.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", p.n, p.name))
		}
	}
	return strings.Join(parts, ", ")
}
