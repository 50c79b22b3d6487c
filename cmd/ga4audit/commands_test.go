package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ga4skill/internal/bootstrap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `{
  // fixture book
  "book_id": "playwright-cli-book",
  "book_name": "Playwright CLI Book",
  "site_url": "https://example.github.io/book/",
  "ga4": { "measurement_id": "G-ABCDEFGH12" },
  "gtm": { "container_id": "GTM-ABC1234" },
  "consent": { "mode": "balanced_by_region" },
  "region_policy": { "restricted_regions": ["DE", "FR"], "default_region": "US" },
  "events": {
    "custom_enabled": true,
    "custom_events": ["chapter_view", "chapter_complete", "code_copy", "toc_interaction"],
    "enhanced_measurement": { "scroll": true }
  },
  "debug": { "enabled": false },
  "privacy": { "allow_pii": false }
}`

const testScript = `
measurement_id: G-ABCDEFGH12
gtm_container_id: GTM-ABC1234
book_id: playwright-cli-book
consent_mode: always_on
steps:
  - navigate: /docs/chapter-01-getting-started
    title: Getting Started
  - scroll: 1
  - click: copy
`

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GA4_MEASUREMENT_ID", "GTM_CONTAINER_ID", "GA4_BOOK_ID", "GA4_CONSENT_MODE"} {
		t.Setenv(k, "")
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidatePasses(t *testing.T) {
	clearConfigEnv(t)
	cfg := writeTemp(t, "analytics.config.json", testConfig)
	out := filepath.Join(t.TempDir(), "contract.json")

	stdout, stderr, err := execute(t, "validate", "--config", cfg, "--output", out)
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "pass", report["status"])
	assert.Equal(t, []any{}, report["errors"])
	assert.FileExists(t, out)
	assert.Contains(t, stderr, "PASS")
}

func TestValidateScansSite(t *testing.T) {
	clearConfigEnv(t)
	cfg := writeTemp(t, "analytics.config.json", testConfig)
	site := t.TempDir()
	page := `<html><head>
<script async src="https://www.googletagmanager.com/gtm.js?id=GTM-ABC1234"></script>
<script async src="https://www.googletagmanager.com/gtm.js?id=GTM-ABC1234"></script>
</head></html>`
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte(page), 0644))

	stdout, _, err := execute(t, "validate", "--config", cfg, "--site-dir", site)
	require.ErrorIs(t, err, errAuditFailed)

	var report struct {
		Status        string   `json:"status"`
		TagLoadIssues []string `json:"tag_load_issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "fail", report.Status)
	assert.Equal(t, []string{filepath.Join(site, "index.html") + ": GTM script appears 2 times"}, report.TagLoadIssues)
}

func TestValidateUnreadableConfig(t *testing.T) {
	clearConfigEnv(t)
	cfg := writeTemp(t, "analytics.config.json", `{"book_id": `)

	stdout, stderr, err := execute(t, "validate", "--config", cfg)
	require.ErrorIs(t, err, errAuditFailed)
	assert.Empty(t, stdout)

	var failure loadFailure
	require.NoError(t, json.Unmarshal([]byte(stderr), &failure))
	assert.Equal(t, "fail", failure.Status)
	require.Len(t, failure.Errors, 1)
}

func TestSnippetBothModes(t *testing.T) {
	clearConfigEnv(t)
	cfg := writeTemp(t, "analytics.config.json", testConfig)
	dir := filepath.Join(t.TempDir(), "snippets")

	stdout, _, err := execute(t, "snippet", "--config", cfg, "--output-dir", dir, "--book-id", "other-book")
	require.NoError(t, err)

	assert.Contains(t, stdout, "# --- GTM SNIPPET START ---")
	assert.Contains(t, stdout, "# --- GTAG SNIPPET END ---")
	assert.NotContains(t, stdout, "PLUGIN")

	gtm, err := os.ReadFile(filepath.Join(dir, "snippet.gtm.html"))
	require.NoError(t, err)
	assert.Contains(t, string(gtm), "GTM-ABC1234")
	assert.Contains(t, string(gtm), "other-book")
	assert.Equal(t, 1, strings.Count(string(gtm), bootstrap.GuardFlag+" = true"))

	gtag, err := os.ReadFile(filepath.Join(dir, "snippet.gtag.html"))
	require.NoError(t, err)
	assert.Contains(t, string(gtag), "G-ABCDEFGH12")
}

func TestSnippetPlaceholders(t *testing.T) {
	clearConfigEnv(t)
	t.Chdir(t.TempDir())

	stdout, _, err := execute(t, "snippet", "--mode", "plugin")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# --- PLUGIN SNIPPET START ---")
	assert.Contains(t, stdout, placeholderMeasurementID)
	assert.Contains(t, stdout, placeholderContainerID)

	_, _, err = execute(t, "snippet", "--mode", "amp")
	assert.ErrorContains(t, err, `--mode must be one of: gtm, gtag, plugin, both (got "amp")`)
}

func TestSimulatePasses(t *testing.T) {
	script := writeTemp(t, "session.yaml", testScript)
	out := filepath.Join(t.TempDir(), "sim.json")

	stdout, _, err := execute(t, "simulate", "--script", script, "--output", out)
	require.NoError(t, err)

	report := decodeReport(t, stdout)
	assert.Equal(t, "pass", report.Status)
	assert.True(t, report.Details.CodeCopyClicked)
	assert.Contains(t, report.ObservedEvents, "code_copy")
	assert.FileExists(t, out)
}

func TestSimulateSessionPersists(t *testing.T) {
	script := writeTemp(t, "session.yaml", testScript)
	db := filepath.Join(t.TempDir(), "session.db")

	_, _, err := execute(t, "simulate", "--script", script, "--session-db", db, "--session-id", "reader-7")
	require.NoError(t, err)

	stdout, _, err := execute(t, "simulate", "--script", script, "--session-db", db, "--session-id", "reader-7")
	require.ErrorIs(t, err, errAuditFailed)
	report := decodeReport(t, stdout)
	assert.Equal(t, []string{"chapter_view", "chapter_complete"}, report.MissingRequiredEvents)

	_, _, err = execute(t, "simulate", "--script", script, "--session-db", db, "--session-id", "reader-8")
	assert.NoError(t, err)
}

func TestSimulateEntries(t *testing.T) {
	script := writeTemp(t, "session.yaml", testScript)

	stdout, _, err := execute(t, "simulate", "--script", script, "--entries")
	require.NoError(t, err)

	var entries []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.NotEmpty(t, entries)
	assert.JSONEq(t, `["consent","default",{"analytics_storage":"granted","ad_storage":"denied","ad_user_data":"denied","ad_personalization":"denied"}]`, string(entries[0]))
}

func TestSimulateRequiresScript(t *testing.T) {
	_, _, err := execute(t, "simulate")
	assert.ErrorContains(t, err, `required flag(s) "script" not set`)
}

func TestHistoryListsRuns(t *testing.T) {
	useFakeBrowser(t, healthyPage)
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")

	stdout, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded.")

	_, _, err = execute(t, "--url", "http://localhost/docs/a", "--output", filepath.Join(dir, "r.json"), "--history", db)
	require.NoError(t, err)

	stdout, _, err = execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "http://localhost/docs/a")
	assert.Contains(t, stdout, "PASS")
	assert.Contains(t, stdout, "audit")
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, stderr, err := executeContext(t, ctx, "serve", "--addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, stderr, "serving Fixture Book on http://127.0.0.1:")
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	clearConfigEnv(t)
	cfg := writeTemp(t, "analytics.config.json", `{"consent": {"mode": "sometimes"}}`)
	_, _, err := execute(t, "serve", "--config", cfg, "--addr", "127.0.0.1:0")
	assert.Error(t, err)
}
