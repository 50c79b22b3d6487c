package main

import (
	"encoding/json"
	"fmt"

	"ga4skill/internal/audit"
	"ga4skill/internal/dedup"
	"ga4skill/internal/simulate"
	"ga4skill/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	simScriptPath string
	simSessionDB  string
	simSessionID  string
	simOutput     string
	simEntries    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a reading session through the tracking runtime",
	Long: `Replays a YAML script of navigations, scrolls and clicks through the
tracking runtime and the bootstrap entry point, without a browser, then
classifies the resulting dataLayer like an audit.

With --session-db the once-per-session markers persist in SQLite, so a second
run with the same --session-id sees every chapter as already viewed.

Script:
  measurement_id: G-ABCDEFGH12
  gtm_container_id: GTM-ABC1234
  book_id: my-book
  consent_mode: balanced_by_region
  languages: [de-DE]
  steps:
    - navigate: /docs/chapter-01-intro
      title: "Intro | My Book"
    - scroll: 0.95
    - click: copy`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simScriptPath, "script", "", "Simulation script (required)")
	simulateCmd.Flags().StringVar(&simSessionDB, "session-db", "", "SQLite file for session dedup markers")
	simulateCmd.Flags().StringVar(&simSessionID, "session-id", "", "Session to resume (default: new)")
	simulateCmd.Flags().StringVar(&simOutput, "output", "", "Write the report to this path")
	simulateCmd.Flags().BoolVar(&simEntries, "entries", false, "Print the dataLayer entries instead of the report")
	simulateCmd.Flags().StringVar(&historyPath, "history", "", "Record the run in this SQLite database")
	_ = simulateCmd.MarkFlagRequired("script")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	script, err := simulate.Load(simScriptPath)
	if err != nil {
		return err
	}

	var ds dedup.Store
	if simSessionDB != "" {
		id := simSessionID
		if id == "" {
			id = uuid.NewString()
		}
		s, err := dedup.OpenSQLiteStore(simSessionDB, id)
		if err != nil {
			return err
		}
		defer s.Close()
		ds = s
		logger.Info("simulation session", zap.String("session_id", s.SessionID()), zap.String("db", simSessionDB))
	}

	res, err := simulate.Run(script, ds)
	if err != nil {
		return err
	}

	data, err := audit.Marshal(res.Report)
	if err != nil {
		return err
	}
	if simOutput != "" {
		if err := audit.WriteReport(simOutput, data); err != nil {
			return err
		}
	}
	if historyPath != "" {
		h, err := store.Open(historyPath)
		if err != nil {
			return err
		}
		err = recordRun(h, store.Run{URL: "simulate://" + simScriptPath, Source: "simulate", Report: res.Report})
		h.Close()
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if simEntries {
		entries, err := json.MarshalIndent(res.Entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(entries))
	} else if _, err := out.Write(data); err != nil {
		return err
	}

	if !res.Report.Passed() {
		return errAuditFailed
	}
	return nil
}
