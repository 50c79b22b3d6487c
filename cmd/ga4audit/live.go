package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ga4skill/internal/audit"
	"ga4skill/internal/contract"
	"ga4skill/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultLivePath = "/docs/chapter-01-agentic-testing-revolution"

var (
	liveBaseURL   string
	livePaths     []string
	liveOutputDir string
	liveParallel  int
	liveEnvFile   string
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Audit chapters of a deployed site",
	Long: `Audits one or more chapter paths under a deployed base URL. The base URL
comes from --base-url or LIVE_BASE_URL, which may be set in a .env file.

Each path is audited in its own browser; up to --parallel run at once. One
report per path is written to --output-dir and a JSON summary is printed to
stdout.

Example:
  LIVE_BASE_URL=https://example.github.io/Book ga4audit live --path /docs/intro --path /docs/setup`,
	RunE: runLive,
}

func init() {
	liveCmd.Flags().StringVar(&liveBaseURL, "base-url", "", "Site base URL (default $LIVE_BASE_URL)")
	liveCmd.Flags().StringSliceVar(&livePaths, "path", []string{defaultLivePath}, "Chapter path to audit (repeatable)")
	liveCmd.Flags().StringVar(&liveOutputDir, "output-dir", "artifacts", "Directory for the reports")
	liveCmd.Flags().IntVar(&liveParallel, "parallel", 2, "Maximum concurrent audits")
	liveCmd.Flags().StringVar(&liveEnvFile, "env-file", ".env", "Environment file to load")
	liveCmd.Flags().IntVar(&timeoutMS, "timeout_ms", 60000, "Navigation timeout in milliseconds")
	liveCmd.Flags().Var(&headless, "headless", "Run Chrome headless (true|false)")
	liveCmd.Flags().StringVar(&historyPath, "history", "", "Record the runs in this SQLite database")
}

// liveRun is one entry of the live summary.
type liveRun struct {
	URL    string `json:"url"`
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type liveSummary struct {
	Status string    `json:"status"`
	Runs   []liveRun `json:"runs"`
}

func runLive(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(liveEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", liveEnvFile, err)
	}
	base := liveBaseURL
	if base == "" {
		base = os.Getenv("LIVE_BASE_URL")
	}
	if base == "" {
		return errors.New("LIVE_BASE_URL is required. Example: https://arvind3.github.io/PlaywriteClikBookWithIDE")
	}
	if len(livePaths) == 0 {
		return errors.New("at least one --path is required")
	}
	if timeoutMS <= 0 {
		return fmt.Errorf("--timeout_ms must be positive (got %d)", timeoutMS)
	}

	var hist *store.History
	if historyPath != "" {
		h, err := store.Open(historyPath)
		if err != nil {
			return err
		}
		defer h.Close()
		hist = h
	}

	timeout := time.Duration(timeoutMS) * time.Millisecond
	runs := make([]liveRun, len(livePaths))
	var histErrs []error
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(cmd.Context())
	if liveParallel > 0 {
		eg.SetLimit(liveParallel)
	}
	for i, p := range livePaths {
		url := joinURL(base, p)
		output := filepath.Join(liveOutputDir, liveReportName(p, len(livePaths)))
		eg.Go(func() error {
			started := time.Now()
			run := liveRun{URL: url}
			defer func() { runs[i] = run }()

			report, err := auditOnce(egCtx, url, timeout, bool(headless))
			if err != nil {
				logger.Error("live audit aborted", zap.String("url", url), zap.Error(err))
				run.Status = "error"
				run.Error = err.Error()
				return nil
			}
			run.Status = report.Status

			data, err := audit.Marshal(report)
			if err != nil {
				return err
			}
			if err := audit.WriteReport(output, data); err != nil {
				return err
			}
			run.Output = output

			if hist != nil {
				if err := recordRun(hist, store.Run{
					URL:       url,
					Source:    "live",
					StartedAt: started,
					Duration:  time.Since(started),
					Report:    report,
				}); err != nil {
					mu.Lock()
					histErrs = append(histErrs, err)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if err := errors.Join(histErrs...); err != nil {
		return err
	}

	summary := liveSummary{Status: contract.StatusPass, Runs: runs}
	for _, r := range runs {
		fmt.Fprintln(cmd.ErrOrStderr(), summaryLine(r.Status, r.URL, r.Error))
		if r.Status != contract.StatusPass {
			summary.Status = contract.StatusFail
		}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if summary.Status != contract.StatusPass {
		return errAuditFailed
	}
	return nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// liveReportName keeps the historical file name for a single path and
// derives one per path otherwise.
func liveReportName(path string, total int) string {
	if total == 1 {
		return "ga4-runtime-live.json"
	}
	slug := strings.ReplaceAll(strings.Trim(path, "/"), "/", "-")
	if slug == "" {
		slug = "root"
	}
	return "ga4-runtime-live-" + slug + ".json"
}
