package audit

import (
	"fmt"
	"strings"
)

// Markdown renders a human summary of r.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# GA4 runtime audit: %s\n\n", strings.ToUpper(r.Status))

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
		b.WriteString("\n")
	}
	section("Missing required events", r.MissingRequiredEvents)
	section("Privacy violations", r.PrivacyViolations)
	section("Tag load issues", r.TagLoadIssues)
	section("Duplicate event risks", r.DuplicateEventRisks)
	section("Recommendations", r.Recommendations)

	b.WriteString("## Observed events\n\n")
	if len(r.ObservedEvents) == 0 {
		b.WriteString("_none_\n\n")
	} else {
		fmt.Fprintf(&b, "`%s`\n\n", strings.Join(r.ObservedEvents, "`, `"))
	}

	d := r.Details
	b.WriteString("| check | value |\n|---|---|\n")
	fmt.Fprintf(&b, "| code copy clicked | %t |\n", d.CodeCopyClicked)
	fmt.Fprintf(&b, "| toc clicked | %t |\n", d.TOCClicked)
	fmt.Fprintf(&b, "| GTM scripts | %d |\n", d.GTMScriptCount)
	fmt.Fprintf(&b, "| gtag scripts | %d |\n", d.GtagScriptCount)
	fmt.Fprintf(&b, "| consent defaults | %d |\n", d.ConsentDefaultsSeen)
	fmt.Fprintf(&b, "| events missing fields | %d |\n", d.EventsMissingFields)
	return b.String()
}
