package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"ga4skill/internal/audit"
	"ga4skill/internal/config"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	validateConfigPath string
	validateSiteDir    string
	validateOutput     string
	validateWatch      bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the analytics configuration and a built site",
	Long: `Checks the analytics configuration: measurement and container ids, book id,
consent mode, restricted regions, required custom events, Enhanced Measurement
overlaps and the PII switch. With --site-dir every built HTML page is scanned
for duplicate GTM or gtag installs.

The JSON report is printed to stdout and, with --output, written to a file.
The exit code is 1 when the report fails.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "", "Analytics config (default: discovered under the working directory)")
	validateCmd.Flags().StringVar(&validateSiteDir, "site-dir", "", "Built site directory to scan for duplicate tags")
	validateCmd.Flags().StringVar(&validateOutput, "output", "", "Write the JSON report to this path")
	validateCmd.Flags().BoolVar(&validateWatch, "watch", false, "Validate again whenever the config changes")
}

// loadFailure is the report printed when the config cannot be read.
type loadFailure struct {
	Status string   `json:"status"`
	Errors []string `json:"errors"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := validateConfigPath
	if path == "" {
		found, err := config.Discover(".")
		if err != nil {
			return err
		}
		path = found
	}

	failed, err := validateOnce(cmd.OutOrStdout(), cmd.ErrOrStderr(), path)
	if err != nil {
		return err
	}
	if validateWatch {
		return watchConfig(cmd.Context(), path, func() {
			if _, err := validateOnce(cmd.OutOrStdout(), cmd.ErrOrStderr(), path); err != nil {
				logger.Error("validate", zap.Error(err))
			}
		})
	}
	if failed {
		return errAuditFailed
	}
	return nil
}

// validateOnce validates path and prints the report. It reports whether the
// report failed; err is set only when the report could not be written.
func validateOnce(stdout, stderr io.Writer, path string) (bool, error) {
	cfg, err := config.Load(path)
	if err != nil {
		data, _ := json.MarshalIndent(loadFailure{Status: "fail", Errors: []string{err.Error()}}, "", "  ")
		fmt.Fprintln(stderr, string(data))
		return true, nil
	}

	report := config.Validate(cfg)
	if validateSiteDir != "" {
		scan, err := config.ScanSite(validateSiteDir)
		if err != nil {
			return true, err
		}
		report.AddScan(scan)
		report.Finalize()
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return true, err
	}
	data = append(data, '\n')
	if validateOutput != "" {
		if err := audit.WriteReport(validateOutput, data); err != nil {
			return true, err
		}
	}
	if _, err := stdout.Write(data); err != nil {
		return true, err
	}
	fmt.Fprintln(stderr, summaryLine(report.Status, path, fmt.Sprintf("%d errors, %d warnings", len(report.Errors), len(report.Warnings))))
	return report.Failed(), nil
}

// watchConfig calls fn after every change to path until ctx is done.
// The directory is watched so that editors replacing the file are seen.
func watchConfig(ctx context.Context, path string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching config", zap.String("path", abs))

	const debounce = 200 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			fn()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		}
	}
}
