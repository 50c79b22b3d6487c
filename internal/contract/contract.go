// Package contract defines the analytics event contract: which events a
// documentation page must emit, which fields every event carries, and which
// custom event names overlap a measurement platform's built-in events.
package contract

import "sort"

// Event names emitted by the tracking runtime and the bootstrap script.
const (
	EventChapterView     = "chapter_view"
	EventChapterComplete = "chapter_complete"
	EventCodeCopy        = "code_copy"
	EventTOCInteraction  = "toc_interaction"
	EventConsentDefault  = "consent_default"
)

// Engagement buckets attached to every runtime event.
const (
	BucketViewed      = "viewed"
	BucketCompleted   = "completed"
	BucketInteraction = "interaction"
)

// Payload field names.
const (
	FieldEvent     = "event"
	FieldEventName = "event_name"
	FieldBookID    = "book_id"
	FieldPagePath  = "page_path"
	FieldVersion   = "version"
	FieldChapterID = "chapter_id"
	FieldTitle     = "chapter_title"
	FieldGroup     = "content_group"
	FieldBucket    = "engagement_bucket"
	FieldTOCTarget = "toc_target"
)

const (
	// SchemaVersion is stamped on every event and qualifies dedup keys.
	SchemaVersion = "v2"

	// DedupNamespace prefixes every dedup marker key.
	DedupNamespace = "ga4"

	// CompletionPercent is the scroll depth at which a chapter counts as read.
	CompletionPercent = 90.0

	// DefaultBookID is used when no book context has been configured.
	DefaultBookID = "playwrite-clik-book-with-ide"
)

// Substrings identifying the tag scripts in a page.
const (
	GTMScriptMarker  = "googletagmanager.com/gtm.js"
	GtagScriptMarker = "googletagmanager.com/gtag/js"
)

// Report statuses.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// RequiredRuntimeEvents must be observed on every documentation page.
var RequiredRuntimeEvents = []string{EventChapterView, EventChapterComplete}

// RequiredCustomEvents must be declared by the analytics configuration when
// custom events are enabled.
var RequiredCustomEvents = []string{
	EventChapterComplete,
	EventChapterView,
	EventCodeCopy,
	EventTOCInteraction,
}

// RequiredFields are present on every event forwarded by the entry point.
var RequiredFields = []string{FieldEventName, FieldBookID, FieldPagePath, FieldVersion}

// Conflict links an Enhanced Measurement built-in to the custom event names
// that duplicate it.
type Conflict struct {
	BuiltIn   string
	Custom    []string
	Preferred string
}

// BuiltInConflicts lists the custom events that double count against
// Enhanced Measurement.
var BuiltInConflicts = []Conflict{
	{BuiltIn: "scroll", Custom: []string{"scroll_50", "scroll_90"}, Preferred: "scroll"},
	{BuiltIn: "file_download", Custom: []string{"pdf_download"}, Preferred: "file_download"},
	{BuiltIn: "outbound_click", Custom: []string{"outbound_click"}, Preferred: "click"},
}

// MissingFields returns the required fields absent from params, sorted.
func MissingFields(params map[string]any) []string {
	var missing []string
	for _, f := range RequiredFields {
		v, ok := params[f]
		if !ok || v == nil || v == "" {
			missing = append(missing, f)
		}
	}
	sort.Strings(missing)
	return missing
}

// ConflictsWith returns the custom names from names that overlap c.
func (c Conflict) ConflictsWith(names map[string]bool) []string {
	var hits []string
	for _, n := range c.Custom {
		if names[n] {
			hits = append(hits, n)
		}
	}
	sort.Strings(hits)
	return hits
}
