//go:build integration

package audit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ga4skill/internal/audit"
	"ga4skill/internal/bootstrap"
	"ga4skill/internal/contract"
	"ga4skill/internal/fixture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFixture(t *testing.T) *httptest.Server {
	t.Helper()
	site, err := fixture.New(bootstrap.Options{
		MeasurementID:     "G-ABCDEFGH12",
		GTMContainerID:    "GTM-ABC1234",
		BookID:            "fixture-book",
		ConsentMode:       bootstrap.ConsentBalancedByRegion,
		RestrictedRegions: []string{"DE", "FR"},
	}, "Fixture Book", nil)
	require.NoError(t, err)

	ts := httptest.NewServer(site)
	t.Cleanup(ts.Close)
	return ts
}

func runAudit(t *testing.T, url string) *audit.Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	b, err := audit.Launch(ctx, audit.DefaultBrowserConfig())
	require.NoError(t, err, "Failed to start browser")
	defer func() {
		if err := b.Close(); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	}()

	opts := audit.DefaultOptions()
	opts.Timeout = 30 * time.Second
	r, err := audit.New(b, opts).Run(ctx, url)
	require.NoError(t, err)
	return r
}

func TestAudit_HealthyChapter_Integration(t *testing.T) {
	ts := startFixture(t)
	r := runAudit(t, ts.URL+"/docs/chapter-01-getting-started")

	assert.Equal(t, contract.StatusPass, r.Status, "report: %+v", r)
	assert.Contains(t, r.ObservedEvents, contract.EventChapterView)
	assert.Contains(t, r.ObservedEvents, contract.EventChapterComplete)
	assert.Contains(t, r.ObservedEvents, contract.EventConsentDefault)
	assert.True(t, r.Details.CodeCopyClicked)
	assert.True(t, r.Details.TOCClicked)
	assert.Equal(t, 1, r.Details.GTMScriptCount)
	assert.Equal(t, 1, r.Details.GtagScriptCount)
	assert.Equal(t, 1, r.Details.ConsentDefaultsSeen)
	assert.Zero(t, r.Details.EventsMissingFields)
}

func TestAudit_NoConsentDefault_Integration(t *testing.T) {
	ts := startFixture(t)
	r := runAudit(t, ts.URL+"/docs/chapter-01-getting-started?consent=off")

	assert.Equal(t, contract.StatusFail, r.Status)
	assert.Contains(t, r.PrivacyViolations, "No consent_default signal observed before analytics events")
}

func TestAudit_DuplicateTagManager_Integration(t *testing.T) {
	ts := startFixture(t)
	r := runAudit(t, ts.URL+"/docs/chapter-01-getting-started?duplicate_tags=1")

	assert.Equal(t, contract.StatusFail, r.Status)
	assert.Contains(t, r.TagLoadIssues, "GTM script loaded 2 times")
}

func TestAudit_UnreachableURL_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	b, err := audit.Launch(ctx, audit.DefaultBrowserConfig())
	require.NoError(t, err)
	defer b.Close()

	_, err = audit.New(b, audit.Options{Timeout: 10 * time.Second}).Run(ctx, "http://127.0.0.1:1/docs/x")
	assert.Error(t, err)
}

func TestAudit_NavigationTimeout_Integration(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := audit.DefaultBrowserConfig()
	cfg.NavigationTimeout = 500 * time.Millisecond
	b, err := audit.Launch(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()

	_, err = audit.New(b, audit.Options{Timeout: 10 * time.Second}).Run(ctx, ts.URL+"/docs/slow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOMContentLoaded not reached within 500ms")
}
