package main

import (
	"fmt"
	"net"

	"ga4skill/internal/bootstrap"
	"ga4skill/internal/config"
	"ga4skill/internal/fixture"

	"github.com/spf13/cobra"
)

var (
	serveAddr       string
	serveConfigPath string
)

// Fixture defaults when no config is given.
var fixtureOptions = bootstrap.Options{
	MeasurementID:     "G-FIXTURE123",
	GTMContainerID:    "GTM-FIXTURE1",
	BookID:            "fixture-book",
	ConsentMode:       bootstrap.ConsentBalancedByRegion,
	RestrictedRegions: []string{"DE", "FR", "GB"},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a fixture documentation site for end-to-end audits",
	Long: `Serves chapter pages under /docs with code blocks, copy buttons, a table of
contents, the tag snippet and a tracking runtime. Audit them with:

  ga4audit --url http://127.0.0.1:3000/docs/chapter-01-getting-started

Append ?consent=off to drop the consent default or ?duplicate_tags=1 to load
the tag scripts twice.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:3000", "Listen address")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Analytics config for the snippet (default: fixture ids)")
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := fixtureOptions
	bookName := "Fixture Book"
	if serveConfigPath != "" {
		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			return err
		}
		if opts, err = cfg.BootstrapOptions(); err != nil {
			return err
		}
		if cfg.BookName != "" {
			bookName = cfg.BookName
		}
	}

	srv, err := fixture.New(opts, bookName, nil)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(cmd.Context(), serveAddr, func(addr net.Addr) {
		fmt.Fprintf(cmd.ErrOrStderr(), "serving %s on http://%s/docs\n", bookName, addr)
	})
}
