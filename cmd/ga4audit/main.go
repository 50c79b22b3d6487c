// Command ga4audit audits the analytics event contract of a documentation
// site: it drives a page in headless Chrome, records every dataLayer push
// and reports missing events, consent ordering and duplicate tag loads.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ga4skill/internal/audit"
	"ga4skill/internal/logging"
	"ga4skill/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errAuditFailed is returned when a report was produced with status fail.
// The report itself is the output, so main prints nothing more.
var errAuditFailed = errors.New("audit failed")

var (
	// Global flags
	verbose bool
	logJSON bool

	// Audit flags
	auditURL    string
	outputPath  string
	timeoutMS   int
	headless    = boolArg(true)
	pretty      bool
	historyPath string

	logger = zap.NewNop()
)

// launchBrowser and auditOptions are replaced in tests.
var (
	launchBrowser = func(ctx context.Context, cfg audit.BrowserConfig) (audit.Browser, error) {
		return audit.Launch(ctx, cfg)
	}
	auditOptions = audit.DefaultOptions
)

var rootCmd = &cobra.Command{
	Use:   "ga4audit",
	Short: "Audit the GA4 event contract of a documentation page",
	Long: `Loads a documentation page in Chrome, wraps window.dataLayer before any
page script runs, then scrolls and clicks the way a reader would.

The report lists missing required events (chapter_view, chapter_complete and,
when their controls exist, code_copy and toc_interaction), consent ordering
violations and tag scripts loaded more than once. It is written to --output
and printed to stdout. The exit code is 0 only when the audit passes.

Example:
  ga4audit --url http://localhost:3000/docs/chapter-01-getting-started`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := logging.Config{Level: "info", JSONFormat: logJSON}
		if verbose {
			cfg.Level = "debug"
		}
		var err error
		logger, err = logging.Initialize(cfg)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runAudit,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	rootCmd.Flags().StringVar(&auditURL, "url", "", "Page to audit (required)")
	rootCmd.Flags().StringVar(&outputPath, "output", "artifacts/ga4-runtime-audit.json", "Report path")
	rootCmd.Flags().IntVar(&timeoutMS, "timeout_ms", 60000, "Navigation timeout in milliseconds")
	rootCmd.Flags().Var(&headless, "headless", "Run Chrome headless (true|false)")
	rootCmd.Flags().BoolVar(&pretty, "pretty", false, "Render a summary on stderr")
	rootCmd.Flags().StringVar(&historyPath, "history", "", "Record the run in this SQLite database")

	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(snippetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errAuditFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func runAudit(cmd *cobra.Command, args []string) error {
	if auditURL == "" {
		return errors.New("missing required --url")
	}
	if timeoutMS <= 0 {
		return fmt.Errorf("--timeout_ms must be positive (got %d)", timeoutMS)
	}

	started := time.Now()
	report, err := auditOnce(cmd.Context(), auditURL, time.Duration(timeoutMS)*time.Millisecond, bool(headless))
	if err != nil {
		logger.Error("audit aborted", zap.String("url", auditURL), zap.Error(err))
		return err
	}

	data, err := audit.Marshal(report)
	if err != nil {
		return err
	}
	if err := audit.WriteReport(outputPath, data); err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return err
	}
	if pretty {
		printPretty(cmd.ErrOrStderr(), report)
	}
	if historyPath != "" {
		h, err := store.Open(historyPath)
		if err != nil {
			return err
		}
		err = recordRun(h, store.Run{
			URL:       auditURL,
			Source:    "audit",
			StartedAt: started,
			Duration:  time.Since(started),
			Report:    report,
		})
		h.Close()
		if err != nil {
			return err
		}
	}

	logger.Info("audit finished",
		zap.String("url", auditURL),
		zap.String("status", report.Status),
		zap.String("output", outputPath),
		zap.Duration("took", time.Since(started)))
	if !report.Passed() {
		return errAuditFailed
	}
	return nil
}

// auditOnce launches a browser, audits url and closes the browser.
func auditOnce(ctx context.Context, url string, timeout time.Duration, headless bool) (*audit.Report, error) {
	cfg := audit.DefaultBrowserConfig()
	cfg.Headless = headless
	cfg.NavigationTimeout = timeout
	cfg.Bin = os.Getenv("CHROME_BIN")

	b, err := launchBrowser(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			logger.Debug("close browser", zap.Error(cerr))
		}
	}()

	opts := auditOptions()
	opts.Timeout = timeout
	return audit.New(b, opts).Run(ctx, url)
}

// recordRun appends run to h and warns on a pass-to-fail regression.
func recordRun(h *store.History, run store.Run) error {
	id, err := h.Record(run)
	if err != nil {
		return err
	}
	regressed, err := h.Regressed(run.URL)
	if err != nil {
		return err
	}
	if regressed {
		logger.Warn("audit regressed since the previous run", zap.String("url", run.URL), zap.String("run", id))
	}
	return nil
}
