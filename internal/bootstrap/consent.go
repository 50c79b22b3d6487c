package bootstrap

import (
	"fmt"
	"regexp"
	"strings"
)

// ConsentMode selects how the analytics storage default is computed.
type ConsentMode string

const (
	ConsentAlwaysOn         ConsentMode = "always_on"
	ConsentBalancedByRegion ConsentMode = "balanced_by_region"
	ConsentStrictByDefault  ConsentMode = "strict_by_default"
)

// ParseConsentMode validates s.
func ParseConsentMode(s string) (ConsentMode, error) {
	switch m := ConsentMode(strings.TrimSpace(s)); m {
	case ConsentAlwaysOn, ConsentBalancedByRegion, ConsentStrictByDefault:
		return m, nil
	}
	return "", fmt.Errorf("consent mode must be one of: balanced_by_region, strict_by_default, always_on (got %q)", s)
}

// Storage is a consent state value.
type Storage string

const (
	Granted Storage = "granted"
	Denied  Storage = "denied"
)

var trailingRegion = regexp.MustCompile(`-([A-Za-z]{2})$`)

// InferRegion returns the upper-cased trailing two-letter region of the
// first browser language tag, exactly as the page snippet does. Codes are
// not canonicalized: "en-UK" yields UK, and a tag ending in an extension
// ("de-DE-u-co-phonebk") has no region.
func InferRegion(languages []string) (string, bool) {
	if len(languages) == 0 {
		return "", false
	}
	m := trailingRegion.FindStringSubmatch(strings.TrimSpace(languages[0]))
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// ConsentDefault computes the analytics_storage default for mode.
func ConsentDefault(mode ConsentMode, restricted []string, languages []string) Storage {
	switch mode {
	case ConsentStrictByDefault:
		return Denied
	case ConsentBalancedByRegion:
		region, ok := InferRegion(languages)
		if !ok {
			return Granted
		}
		for _, r := range restricted {
			if strings.EqualFold(strings.TrimSpace(r), region) {
				return Denied
			}
		}
		return Granted
	default:
		return Granted
	}
}
