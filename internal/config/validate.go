package config

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"ga4skill/internal/bootstrap"
	"ga4skill/internal/contract"

	"golang.org/x/text/language"
)

var (
	measurementIDRe = regexp.MustCompile(`^G-[A-Z0-9]{8,12}$`)
	gtmIDRe         = regexp.MustCompile(`^GTM-[A-Z0-9]{6,12}$`)
	bookIDRe        = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)
)

// ValidationReport is the outcome of validating a configuration and,
// optionally, a built site. Field order is the report contract.
type ValidationReport struct {
	Status                string   `json:"status"`
	MissingRequiredEvents []string `json:"missing_required_events"`
	DuplicateEventRisks   []string `json:"duplicate_event_risks"`
	PrivacyViolations     []string `json:"privacy_violations"`
	TagLoadIssues         []string `json:"tag_load_issues"`
	Recommendations       []string `json:"recommendations"`
	Errors                []string `json:"errors"`
	Warnings              []string `json:"warnings"`
}

// NewValidationReport returns a report with every list empty but non-nil.
func NewValidationReport() *ValidationReport {
	return &ValidationReport{
		MissingRequiredEvents: []string{},
		DuplicateEventRisks:   []string{},
		PrivacyViolations:     []string{},
		TagLoadIssues:         []string{},
		Recommendations:       []string{},
		Errors:                []string{},
		Warnings:              []string{},
	}
}

// Failed reports whether any blocking finding is present.
func (r *ValidationReport) Failed() bool {
	return len(r.Errors) > 0 ||
		len(r.MissingRequiredEvents) > 0 ||
		len(r.PrivacyViolations) > 0 ||
		len(r.TagLoadIssues) > 0
}

// Finalize sets Status from the findings.
func (r *ValidationReport) Finalize() {
	r.Status = contract.StatusPass
	if r.Failed() {
		r.Status = contract.StatusFail
	}
}

// AddScan merges a site scan into the report.
func (r *ValidationReport) AddScan(scan *SiteScan) {
	r.TagLoadIssues = append(r.TagLoadIssues, scan.Issues...)
	r.Recommendations = append(r.Recommendations, scan.Recommendations...)
}

// Validate checks cfg against the analytics configuration contract. The
// returned report is finalized.
func Validate(cfg *Config) *ValidationReport {
	r := NewValidationReport()
	errf := func(format string, args ...any) {
		r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	}

	for _, field := range missingFields(cfg) {
		errf("Missing required field: %s", field)
	}

	if cfg.BookID != "" && !bookIDRe.MatchString(cfg.BookID) {
		errf("book_id must be kebab-case with lowercase letters, numbers, and hyphens")
	}
	if cfg.SiteURL != "" && !isAbsoluteHTTPURL(cfg.SiteURL) {
		errf("site_url must be an absolute URL")
	}
	if id := cfg.GA4.MeasurementID; id != "" && !measurementIDRe.MatchString(id) {
		errf("ga4.measurement_id must match G-XXXXXXXXXX format")
	}
	if id := cfg.GTM.ContainerID; id != "" && !gtmIDRe.MatchString(id) {
		errf("gtm.container_id must match GTM-XXXXXXX format")
	}

	mode, modeErr := bootstrap.ParseConsentMode(cfg.Consent.Mode)
	if modeErr != nil {
		errf("consent.mode must be one of: balanced_by_region, strict_by_default, always_on")
	}

	regions := cfg.RegionPolicy.RestrictedRegions
	switch {
	case len(regions) == 0:
		errf("region_policy.restricted_regions must be a non-empty list")
	case !allAlpha2(regions):
		errf("region_policy.restricted_regions must contain ISO-3166 alpha-2 codes")
	default:
		if unknown := unknownRegions(regions); len(unknown) > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf(
				"region_policy.restricted_regions contains unassigned region codes: %s",
				strings.Join(unknown, ", ")))
		}
	}

	if cfg.Events.CustomEnabled != nil && *cfg.Events.CustomEnabled {
		if cfg.Events.CustomEvents == nil {
			errf("events.custom_events must be a list when custom_enabled=true")
		} else {
			r.MissingRequiredEvents = missingCustomEvents(cfg.Events.CustomEvents)
			if len(r.MissingRequiredEvents) > 0 {
				errf("events.custom_events missing required events: %s",
					strings.Join(r.MissingRequiredEvents, ", "))
			}
		}
	}

	enhanced := cfg.Events.EnhancedMeasurement
	if enhanced == nil {
		r.Warnings = append(r.Warnings,
			"events.enhanced_measurement not present; duplicate-risk checks are limited")
	}
	custom := make(map[string]bool, len(cfg.Events.CustomEvents))
	for _, name := range cfg.Events.CustomEvents {
		custom[name] = true
	}
	for _, c := range contract.BuiltInConflicts {
		if !enhanced[c.BuiltIn] {
			continue
		}
		if hits := c.ConflictsWith(custom); len(hits) > 0 {
			r.DuplicateEventRisks = append(r.DuplicateEventRisks, fmt.Sprintf(
				"Enhanced Measurement '%s' may conflict with custom events: %s",
				c.BuiltIn, strings.Join(hits, ", ")))
		}
	}

	if modeErr == nil {
		switch mode {
		case bootstrap.ConsentAlwaysOn:
			r.Warnings = append(r.Warnings,
				"consent.mode=always_on may violate regional privacy obligations")
		default:
			r.Recommendations = append(r.Recommendations,
				"Ensure consent default is set before any analytics events are emitted.")
		}
	}

	if cfg.Privacy.AllowPII {
		r.PrivacyViolations = append(r.PrivacyViolations, "privacy.allow_pii=true is not allowed")
	}

	r.Finalize()
	return r
}

func missingFields(cfg *Config) []string {
	var missing []string
	check := func(name string, absent bool) {
		if absent {
			missing = append(missing, name)
		}
	}
	check("book_id", cfg.BookID == "")
	check("book_name", cfg.BookName == "")
	check("site_url", cfg.SiteURL == "")
	check("ga4.measurement_id", cfg.GA4.MeasurementID == "")
	check("gtm.container_id", cfg.GTM.ContainerID == "")
	check("consent.mode", cfg.Consent.Mode == "")
	check("region_policy.restricted_regions", cfg.RegionPolicy.RestrictedRegions == nil)
	check("region_policy.default_region", cfg.RegionPolicy.DefaultRegion == "")
	check("events.custom_enabled", cfg.Events.CustomEnabled == nil)
	check("debug.enabled", cfg.Debug.Enabled == nil)
	return missing
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func allAlpha2(codes []string) bool {
	for _, c := range codes {
		if len(c) != 2 {
			return false
		}
	}
	return true
}

// unknownRegions returns the codes that are not assigned ISO-3166 regions.
// Browsers never report those, so they never restrict anything.
func unknownRegions(codes []string) []string {
	var unknown []string
	for _, c := range codes {
		if _, err := language.ParseRegion(c); err != nil {
			unknown = append(unknown, c)
		}
	}
	return unknown
}

func missingCustomEvents(declared []string) []string {
	have := make(map[string]bool, len(declared))
	for _, name := range declared {
		have[name] = true
	}
	missing := []string{}
	for _, name := range contract.RequiredCustomEvents {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
