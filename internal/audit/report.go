// Package audit verifies, from outside the page, that a documentation page
// honours the analytics event contract. It drives a browser, records every
// item pushed to the page's dataLayer, performs the interactions a reader
// would and classifies what it saw into a pass/fail Report.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ga4skill/internal/contract"
	"ga4skill/internal/datalayer"
)

// Report is the audit result. Field order is the report contract.
type Report struct {
	Status                string   `json:"status"`
	MissingRequiredEvents []string `json:"missing_required_events"`
	DuplicateEventRisks   []string `json:"duplicate_event_risks"`
	PrivacyViolations     []string `json:"privacy_violations"`
	TagLoadIssues         []string `json:"tag_load_issues"`
	Recommendations       []string `json:"recommendations"`
	ObservedEvents        []string `json:"observed_events"`
	Details               Details  `json:"details"`
}

// Details records what the run attempted and counted.
type Details struct {
	CodeCopyClicked     bool `json:"code_copy_clicked"`
	TOCClicked          bool `json:"toc_clicked"`
	GTMScriptCount      int  `json:"gtm_script_count"`
	GtagScriptCount     int  `json:"gtag_script_count"`
	ConsentDefaultsSeen int  `json:"consent_defaults_seen"`
	ViewObserved        bool `json:"view_observed"`
	CompleteObserved    bool `json:"complete_observed"`
	EventsMissingFields int  `json:"events_missing_fields"`
}

// Passed reports whether the run satisfied the contract.
func (r *Report) Passed() bool {
	return r.Status == contract.StatusPass
}

// Observation is the raw material read back from the page.
type Observation struct {
	// Pushes is every item pushed to the dataLayer, in order.
	Pushes []datalayer.Entry `json:"pushes"`
	// Events holds the names the in-page shim derived while recording.
	Events []string `json:"events"`

	GTMScriptCount  int `json:"gtm"`
	GtagScriptCount int `json:"gtag"`

	CodeCopyClicked  bool `json:"-"`
	TOCClicked       bool `json:"-"`
	ViewObserved     bool `json:"-"`
	CompleteObserved bool `json:"-"`
}

// Ordered returns the event names in push order. Names derived from the
// raw pushes win; the shim's list is used when no push carried a name.
func (o *Observation) Ordered() []string {
	if names := datalayer.EventNames(o.Pushes); len(names) > 0 {
		return names
	}
	return append([]string(nil), o.Events...)
}

// Observed returns every event name seen, sorted and deduplicated.
func (o *Observation) Observed() []string {
	seen := make(map[string]bool)
	for _, n := range datalayer.EventNames(o.Pushes) {
		seen[n] = true
	}
	for _, n := range o.Events {
		seen[n] = true
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

const (
	msgNoConsentDefault = "No consent_default signal observed before analytics events"
	recoDuplicates      = "Remove overlapping custom generic events when Enhanced Measurement is enabled."
	recoConsent         = "Emit consent default state before custom analytics events."
	recoRequiredFields  = "Send tracked events through the book entry point so event_name, book_id, page_path and version are set."
)

var trackedEvents = map[string]bool{
	contract.EventChapterView:     true,
	contract.EventChapterComplete: true,
	contract.EventCodeCopy:        true,
	contract.EventTOCInteraction:  true,
}

// countMissingFields counts tag-manager message pushes for tracked events
// that lack one of the contract's required parameters.
func countMissingFields(pushes []datalayer.Entry) int {
	n := 0
	for _, e := range pushes {
		if e.Message == nil {
			continue
		}
		name, ok := e.EventName()
		if !ok || !trackedEvents[name] {
			continue
		}
		if len(contract.MissingFields(e.Message)) > 0 {
			n++
		}
	}
	return n
}

// Classify turns an observation into a Report. Status is fail exactly when
// a required event is missing, a privacy violation was found or a tag
// script loaded more than once.
func Classify(obs Observation) *Report {
	observed := obs.Observed()
	has := make(map[string]bool, len(observed))
	for _, n := range observed {
		has[n] = true
	}

	r := &Report{
		MissingRequiredEvents: []string{},
		DuplicateEventRisks:   []string{},
		PrivacyViolations:     []string{},
		TagLoadIssues:         []string{},
		Recommendations:       []string{},
		ObservedEvents:        observed,
		Details: Details{
			CodeCopyClicked:     obs.CodeCopyClicked,
			TOCClicked:          obs.TOCClicked,
			GTMScriptCount:      obs.GTMScriptCount,
			GtagScriptCount:     obs.GtagScriptCount,
			ViewObserved:        obs.ViewObserved || has[contract.EventChapterView],
			CompleteObserved:    obs.CompleteObserved || has[contract.EventChapterComplete],
			EventsMissingFields: countMissingFields(obs.Pushes),
		},
	}

	for _, name := range contract.RequiredRuntimeEvents {
		if !has[name] {
			r.MissingRequiredEvents = append(r.MissingRequiredEvents, name)
		}
	}
	if obs.CodeCopyClicked && !has[contract.EventCodeCopy] {
		r.MissingRequiredEvents = append(r.MissingRequiredEvents, contract.EventCodeCopy)
	}
	if obs.TOCClicked && !has[contract.EventTOCInteraction] {
		r.MissingRequiredEvents = append(r.MissingRequiredEvents, contract.EventTOCInteraction)
	}

	for _, c := range contract.BuiltInConflicts {
		if hits := c.ConflictsWith(has); len(hits) > 0 {
			r.DuplicateEventRisks = append(r.DuplicateEventRisks, fmt.Sprintf(
				"Custom %s observed while Enhanced Measurement %s should be preferred",
				strings.Join(c.Custom, "/"), c.Preferred))
		}
	}

	ordered := obs.Ordered()
	for _, n := range ordered {
		if n == contract.EventConsentDefault {
			r.Details.ConsentDefaultsSeen++
		}
	}
	switch {
	case r.Details.ConsentDefaultsSeen == 0:
		r.PrivacyViolations = append(r.PrivacyViolations, msgNoConsentDefault)
	case ordered[0] != contract.EventConsentDefault:
		r.PrivacyViolations = append(r.PrivacyViolations, fmt.Sprintf(
			"Event %s observed before the consent_default signal", ordered[0]))
	}

	if obs.GTMScriptCount > 1 {
		r.TagLoadIssues = append(r.TagLoadIssues, fmt.Sprintf("GTM script loaded %d times", obs.GTMScriptCount))
	}
	if obs.GtagScriptCount > 1 {
		r.TagLoadIssues = append(r.TagLoadIssues, fmt.Sprintf("gtag script loaded %d times", obs.GtagScriptCount))
	}

	if len(r.DuplicateEventRisks) > 0 {
		r.Recommendations = append(r.Recommendations, recoDuplicates)
	}
	if len(r.PrivacyViolations) > 0 {
		r.Recommendations = append(r.Recommendations, recoConsent)
	}
	if r.Details.EventsMissingFields > 0 {
		r.Recommendations = append(r.Recommendations, recoRequiredFields)
	}

	r.Status = contract.StatusPass
	if len(r.MissingRequiredEvents) > 0 || len(r.PrivacyViolations) > 0 || len(r.TagLoadIssues) > 0 {
		r.Status = contract.StatusFail
	}
	return r
}

// Marshal encodes r the way it is written to disk and stdout.
func Marshal(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteReport writes data to path atomically, creating parent directories.
// A failed write leaves no file behind.
func WriteReport(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}
