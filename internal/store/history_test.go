package store

import (
	"path/filepath"
	"testing"
	"time"

	"ga4skill/internal/audit"
	"ga4skill/internal/contract"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(status string) *audit.Report {
	return &audit.Report{
		Status:                status,
		MissingRequiredEvents: []string{},
		DuplicateEventRisks:   []string{},
		PrivacyViolations:     []string{},
		TagLoadIssues:         []string{},
		Recommendations:       []string{},
		ObservedEvents:        []string{contract.EventChapterView},
		Details:               audit.Details{GTMScriptCount: 1},
	}
}

func openTemp(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestRecordAndRecent(t *testing.T) {
	h := openTemp(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := report(contract.StatusPass)
	id, err := h.Record(Run{URL: "http://a/docs/x", StartedAt: base, Duration: 1500 * time.Millisecond, Report: want})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = h.Record(Run{URL: "http://b/docs/y", Source: "live", StartedAt: base.Add(time.Minute), Report: report(contract.StatusFail)})
	require.NoError(t, err)

	all, err := h.Recent("", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "http://b/docs/y", all[0].URL)
	assert.Equal(t, "live", all[0].Source)
	assert.Equal(t, contract.StatusFail, all[0].Status)

	only, err := h.Recent("http://a/docs/x", 10)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, id, only[0].ID)
	assert.Equal(t, "audit", only[0].Source)
	assert.True(t, base.Equal(only[0].StartedAt))
	assert.Equal(t, 1500*time.Millisecond, only[0].Duration)
	if diff := cmp.Diff(want, only[0].Report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestRegressed(t *testing.T) {
	h := openTemp(t)
	url := "http://a/docs/x"
	base := time.Now().Add(-time.Hour)

	regressed, err := h.Regressed(url)
	require.NoError(t, err)
	assert.False(t, regressed)

	_, err = h.Record(Run{URL: url, StartedAt: base, Report: report(contract.StatusPass)})
	require.NoError(t, err)
	_, err = h.Record(Run{URL: url, StartedAt: base.Add(time.Minute), Report: report(contract.StatusFail)})
	require.NoError(t, err)

	regressed, err = h.Regressed(url)
	require.NoError(t, err)
	assert.True(t, regressed)
}

func TestRecordErrors(t *testing.T) {
	h := openTemp(t)
	_, err := h.Record(Run{URL: "x"})
	assert.Error(t, err)

	require.NoError(t, h.Close())
	_, err = h.Record(Run{URL: "x", Report: report(contract.StatusPass)})
	assert.Error(t, err)
	_, err = h.Recent("", 1)
	assert.Error(t, err)
	assert.NoError(t, h.Close())
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := Open(path)
	require.NoError(t, err)
	_, err = h.Record(Run{URL: "u", Report: report(contract.StatusPass)})
	require.NoError(t, err)
	require.NoError(t, h.Close())

	h, err = Open(path)
	require.NoError(t, err)
	defer h.Close()
	runs, err := h.Recent("u", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, path, h.Path())
}
