package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookscout/internal/catalog"
	"bookscout/internal/preflight"
	"bookscout/internal/search"
)

type statusReport struct {
	Search    search.Status      `json:"search"`
	Discovery bool               `json:"discovery"`
	Checks    []preflight.Result `json:"checks,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which catalogs and features are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := commandCtx(cmd)
			a, err := ctx.ensureApp(runCtx)
			if err != nil {
				return err
			}
			report := statusReport{
				Search:    a.search.Status(),
				Discovery: a.discovery.Available(),
			}
			if check {
				report.Checks = preflight.RunAll(runCtx, a.cfg, a.cache)
			}
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				renderStatus(cmd.OutOrStdout(), report)
			}
			if failed := failedChecks(report.Checks); failed > 0 {
				return fmt.Errorf("%d readiness check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Probe each catalog, the model and the cache")
	return cmd
}

func failedChecks(results []preflight.Result) int {
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}
	return failed
}

func renderStatus(out io.Writer, report statusReport) {
	st := report.Search
	strategies := make([]string, 0, len(st.AvailableStrategies))
	for _, s := range st.AvailableStrategies {
		strategies = append(strategies, s.String())
	}
	fmt.Fprintf(out, "Search strategy: %s\n", st.Strategy)
	fmt.Fprintf(out, "Available:       %s\n", strings.Join(strategies, ", "))
	fmt.Fprintf(out, "Fallback:        %s\n", yesNo(st.Fallback))
	cache := st.CacheBackend
	if st.CacheBreaker != "" {
		cache += " (breaker " + st.CacheBreaker + ")"
	}
	fmt.Fprintf(out, "Cache:           %s\n", cache)
	fmt.Fprintf(out, "Discovery:       %s\n", yesNo(report.Discovery))

	rows := make([][]string, 0, len(st.Sources))
	for _, src := range st.Sources {
		breaker := src.Breaker
		if breaker == "" {
			breaker = "-"
		}
		rows = append(rows, []string{
			string(src.Source),
			yesNo(src.Configured),
			strconv.Itoa(src.MaxResultsCap),
			describeRateLimit(src.RateLimit),
			breaker,
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Source", "Enabled", "Page cap", "Rate limit", "Breaker"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))

	if len(report.Checks) == 0 {
		return
	}
	fmt.Fprintln(out, "Readiness:")
	for _, r := range report.Checks {
		mark := "ok"
		if !r.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(out, "  %-4s %-20s %s\n", mark, r.Name, r.Detail)
	}
}

func describeRateLimit(info catalog.RateLimitInfo) string {
	var parts []string
	switch {
	case info.Unlimited:
		parts = append(parts, "no upstream quota")
	case info.HasKey:
		parts = append(parts, "api key")
	default:
		parts = append(parts, "anonymous quota")
	}
	if info.RequestsPerSecond > 0 {
		parts = append(parts, strconv.FormatFloat(info.RequestsPerSecond, 'g', -1, 64)+" req/s local")
	}
	return strings.Join(parts, ", ")
}
