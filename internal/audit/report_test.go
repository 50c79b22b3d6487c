package audit

import (
	"os"
	"path/filepath"
	"testing"

	"ga4skill/internal/contract"
	"ga4skill/internal/datalayer"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consentDefault() datalayer.Entry {
	return datalayer.Cmd("consent", "default", map[string]any{"analytics_storage": "granted"})
}

func event(name string) datalayer.Entry {
	return datalayer.Msg(datalayer.Params{"event": name})
}

// tracked is a message push carrying every required contract field.
func tracked(name string) datalayer.Entry {
	return datalayer.Msg(datalayer.Params{
		"event":      name,
		"event_name": name,
		"book_id":    "book",
		"page_path":  "/docs/intro",
		"version":    "v2",
	})
}

func healthyObservation() Observation {
	return Observation{
		Pushes: []datalayer.Entry{
			consentDefault(),
			datalayer.Cmd("js", "2026-01-01T00:00:00.000Z"),
			event("gtm.js"),
			datalayer.Cmd("event", contract.EventChapterView, map[string]any{"chapter_id": "intro"}),
			tracked(contract.EventChapterView),
			tracked(contract.EventChapterComplete),
		},
		GTMScriptCount:  1,
		GtagScriptCount: 1,
	}
}

func TestClassifyPass(t *testing.T) {
	r := Classify(healthyObservation())

	assert.Equal(t, contract.StatusPass, r.Status)
	assert.True(t, r.Passed())
	assert.Equal(t, []string{"chapter_complete", "chapter_view", "consent_default", "gtm.js"}, r.ObservedEvents)
	assert.Empty(t, r.MissingRequiredEvents)
	assert.Empty(t, r.PrivacyViolations)
	assert.Equal(t, 1, r.Details.ConsentDefaultsSeen)
	assert.True(t, r.Details.ViewObserved)
	assert.True(t, r.Details.CompleteObserved)
	assert.Zero(t, r.Details.EventsMissingFields)
	assert.Empty(t, r.Recommendations)
}

func TestClassifyEventsMissingFields(t *testing.T) {
	obs := healthyObservation()
	obs.Pushes = append(obs.Pushes,
		datalayer.Msg(datalayer.Params{
			"event":      contract.EventCodeCopy,
			"event_name": contract.EventCodeCopy,
			"page_path":  "/docs/a",
			"version":    "v2",
		}),
		// untracked events and gtag commands are not checked
		event("gtm.click"),
		datalayer.Cmd("event", contract.EventTOCInteraction, map[string]any{"toc_target": "Setup"}),
	)
	r := Classify(obs)

	assert.Equal(t, contract.StatusPass, r.Status)
	assert.Equal(t, 1, r.Details.EventsMissingFields)
	assert.Equal(t, []string{
		"Send tracked events through the book entry point so event_name, book_id, page_path and version are set.",
	}, r.Recommendations)

	obs.Pushes = obs.Pushes[1:]
	r = Classify(obs)
	assert.Equal(t, contract.StatusFail, r.Status)
	assert.Equal(t, []string{
		"Emit consent default state before custom analytics events.",
		"Send tracked events through the book entry point so event_name, book_id, page_path and version are set.",
	}, r.Recommendations)
}

func TestClassifyMissingEvents(t *testing.T) {
	obs := Observation{
		Pushes:          []datalayer.Entry{consentDefault()},
		CodeCopyClicked: true,
		TOCClicked:      true,
	}
	r := Classify(obs)

	assert.Equal(t, contract.StatusFail, r.Status)
	assert.Equal(t, []string{"chapter_view", "chapter_complete", "code_copy", "toc_interaction"}, r.MissingRequiredEvents)
}

func TestClassifyInteractionsNotAttempted(t *testing.T) {
	r := Classify(healthyObservation())
	assert.NotContains(t, r.MissingRequiredEvents, contract.EventCodeCopy)
	assert.False(t, r.Details.CodeCopyClicked)
	assert.False(t, r.Details.TOCClicked)
}

func TestClassifyNoConsentDefault(t *testing.T) {
	obs := healthyObservation()
	obs.Pushes = obs.Pushes[1:]
	r := Classify(obs)

	assert.Equal(t, contract.StatusFail, r.Status)
	assert.Equal(t, []string{"No consent_default signal observed before analytics events"}, r.PrivacyViolations)
	assert.Contains(t, r.Recommendations, "Emit consent default state before custom analytics events.")
	assert.Equal(t, 0, r.Details.ConsentDefaultsSeen)
}

func TestClassifyConsentAfterEvents(t *testing.T) {
	obs := healthyObservation()
	obs.Pushes = append([]datalayer.Entry{event(contract.EventChapterView)}, obs.Pushes...)
	r := Classify(obs)

	assert.Equal(t, contract.StatusFail, r.Status)
	assert.Equal(t, []string{"Event chapter_view observed before the consent_default signal"}, r.PrivacyViolations)
}

func TestClassifyShimEventsOnly(t *testing.T) {
	r := Classify(Observation{Events: []string{"consent_default", "chapter_view", "chapter_complete"}})
	assert.Equal(t, contract.StatusPass, r.Status)
	assert.Equal(t, 1, r.Details.ConsentDefaultsSeen)
}

func TestClassifyTagLoadIssues(t *testing.T) {
	obs := healthyObservation()
	obs.GTMScriptCount = 2
	obs.GtagScriptCount = 3
	r := Classify(obs)

	assert.Equal(t, contract.StatusFail, r.Status)
	assert.Equal(t, []string{"GTM script loaded 2 times", "gtag script loaded 3 times"}, r.TagLoadIssues)
}

func TestClassifyDuplicateRisksDoNotFail(t *testing.T) {
	obs := healthyObservation()
	obs.Pushes = append(obs.Pushes, event("scroll_90"), event("pdf_download"), event("outbound_click"))
	r := Classify(obs)

	assert.Equal(t, contract.StatusPass, r.Status)
	assert.Equal(t, []string{
		"Custom scroll_50/scroll_90 observed while Enhanced Measurement scroll should be preferred",
		"Custom pdf_download observed while Enhanced Measurement file_download should be preferred",
		"Custom outbound_click observed while Enhanced Measurement click should be preferred",
	}, r.DuplicateEventRisks)
	assert.Equal(t, []string{"Remove overlapping custom generic events when Enhanced Measurement is enabled."}, r.Recommendations)
}

func TestReportRoundTrip(t *testing.T) {
	obs := healthyObservation()
	obs.GTMScriptCount = 2
	obs.CodeCopyClicked = true
	want := Classify(obs)

	stdout, err := Marshal(want)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "artifacts", "ga4-runtime-audit.json")
	require.NoError(t, WriteReport(path, stdout))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(stdout), string(onDisk))

	got, err := ReadReport(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalEmptyListsAsArrays(t *testing.T) {
	data, err := Marshal(Classify(healthyObservation()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tag_load_issues": []`)
	assert.NotContains(t, string(data), "null")
}

func TestWriteReportLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	require.NoError(t, WriteReport(path, []byte("{}\n")))
	require.NoError(t, WriteReport(path, []byte("{\"status\":\"pass\"}\n")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "report.json", entries[0].Name())
}

func TestMarkdown(t *testing.T) {
	obs := healthyObservation()
	obs.Pushes = obs.Pushes[1:]
	md := Classify(obs).Markdown()

	assert.Contains(t, md, "# GA4 runtime audit: FAIL")
	assert.Contains(t, md, "## Privacy violations")
	assert.NotContains(t, md, "## Tag load issues")
	assert.Contains(t, md, "| GTM scripts | 1 |")
	assert.Contains(t, md, "| events missing fields | 0 |")
}
