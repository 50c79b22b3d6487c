package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ga4skill/internal/bootstrap"
	"ga4skill/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Placeholders used when neither the config nor a flag sets a value.
const (
	placeholderMeasurementID = "G-XXXXXXXXXX"
	placeholderContainerID   = "GTM-XXXXXXX"
	placeholderBookID        = "book-id"
)

var (
	snippetConfigPath    string
	snippetMode          string
	snippetBookID        string
	snippetMeasurementID string
	snippetContainerID   string
	snippetConsentMode   string
	snippetOutputDir     string
)

var snippetCmd = &cobra.Command{
	Use:   "snippet",
	Short: "Render the tag installation snippets",
	Long: `Renders the page snippet that sets the consent default, defines the
tracking entry point and loads the tag scripts. Mode gtm installs the tag
manager container, gtag installs gtag.js directly, plugin installs both the
way the site plugin does, and both renders gtm and gtag separately.

Values come from the analytics config and may be overridden by flags.`,
	RunE: runSnippet,
}

func init() {
	snippetCmd.Flags().StringVar(&snippetConfigPath, "config", "", "Analytics config (default: discovered, optional)")
	snippetCmd.Flags().StringVar(&snippetMode, "mode", "both", "gtm, gtag, plugin or both")
	snippetCmd.Flags().StringVar(&snippetBookID, "book-id", "", "Override book_id")
	snippetCmd.Flags().StringVar(&snippetMeasurementID, "measurement-id", "", "Override ga4.measurement_id")
	snippetCmd.Flags().StringVar(&snippetContainerID, "container-id", "", "Override gtm.container_id")
	snippetCmd.Flags().StringVar(&snippetConsentMode, "consent-mode", "", "Override consent.mode")
	snippetCmd.Flags().StringVar(&snippetOutputDir, "output-dir", "", "Write snippet.<mode>.html files here")
}

func snippetModes(s string) ([]bootstrap.SnippetMode, error) {
	if s == "both" {
		return []bootstrap.SnippetMode{bootstrap.SnippetGTM, bootstrap.SnippetGtag}, nil
	}
	m, err := bootstrap.ParseSnippetMode(s)
	if err != nil {
		return nil, fmt.Errorf("--mode must be one of: gtm, gtag, plugin, both (got %q)", s)
	}
	return []bootstrap.SnippetMode{m}, nil
}

// snippetOptions merges the config, the flag overrides and the placeholders.
func snippetOptions() (bootstrap.Options, error) {
	cfg := &config.Config{}
	path := snippetConfigPath
	if path == "" {
		found, err := config.Discover(".")
		if err != nil && !errors.Is(err, config.ErrNoConfig) {
			return bootstrap.Options{}, err
		}
		path = found
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return bootstrap.Options{}, err
		}
		cfg = loaded
		logger.Debug("snippet config", zap.String("path", path))
	}

	pick := func(values ...string) string {
		for _, v := range values {
			if v != "" {
				return v
			}
		}
		return ""
	}
	mode, err := bootstrap.ParseConsentMode(pick(snippetConsentMode, cfg.Consent.Mode, string(bootstrap.ConsentBalancedByRegion)))
	if err != nil {
		return bootstrap.Options{}, err
	}
	return bootstrap.Options{
		MeasurementID:     pick(snippetMeasurementID, cfg.GA4.MeasurementID, placeholderMeasurementID),
		GTMContainerID:    pick(snippetContainerID, cfg.GTM.ContainerID, placeholderContainerID),
		BookID:            pick(snippetBookID, cfg.BookID, placeholderBookID),
		ConsentMode:       mode,
		RestrictedRegions: cfg.RegionPolicy.RestrictedRegions,
	}, nil
}

func runSnippet(cmd *cobra.Command, args []string) error {
	modes, err := snippetModes(snippetMode)
	if err != nil {
		return err
	}
	opts, err := snippetOptions()
	if err != nil {
		return err
	}

	if snippetOutputDir != "" {
		if err := os.MkdirAll(snippetOutputDir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	for _, m := range modes {
		snippet, err := bootstrap.RenderSnippet(opts, m)
		if err != nil {
			return err
		}
		if snippetOutputDir != "" {
			path := filepath.Join(snippetOutputDir, "snippet."+string(m)+".html")
			if err := os.WriteFile(path, []byte(snippet+"\n"), 0644); err != nil {
				return fmt.Errorf("write snippet: %w", err)
			}
		}
		name := strings.ToUpper(string(m))
		fmt.Fprintf(out, "\n# --- %s SNIPPET START ---\n\n%s\n\n# --- %s SNIPPET END ---\n\n", name, snippet, name)
	}
	return nil
}
