// Package config loads and validates the analytics configuration contract
// (analytics.config.json) and scans built sites for tag installation
// problems.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ga4skill/internal/bootstrap"
	"ga4skill/internal/logging"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the analytics configuration of one book site.
type Config struct {
	BookID       string         `json:"book_id" yaml:"book_id"`
	BookName     string         `json:"book_name" yaml:"book_name"`
	SiteURL      string         `json:"site_url" yaml:"site_url"`
	GA4          GA4Config      `json:"ga4" yaml:"ga4"`
	GTM          GTMConfig      `json:"gtm" yaml:"gtm"`
	Consent      ConsentConfig  `json:"consent" yaml:"consent"`
	RegionPolicy RegionPolicy   `json:"region_policy" yaml:"region_policy"`
	Events       EventsConfig   `json:"events" yaml:"events"`
	Debug        DebugConfig    `json:"debug" yaml:"debug"`
	Privacy      PrivacyConfig  `json:"privacy" yaml:"privacy"`
	Logging      logging.Config `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// GA4Config identifies the measurement property.
type GA4Config struct {
	MeasurementID string `json:"measurement_id" yaml:"measurement_id"`
}

// GTMConfig identifies the tag manager container.
type GTMConfig struct {
	ContainerID string `json:"container_id" yaml:"container_id"`
}

// ConsentConfig selects the consent default policy.
type ConsentConfig struct {
	Mode string `json:"mode" yaml:"mode"` // always_on, balanced_by_region, strict_by_default
}

// RegionPolicy lists regions where analytics storage starts denied.
type RegionPolicy struct {
	RestrictedRegions []string `json:"restricted_regions" yaml:"restricted_regions"`
	DefaultRegion     string   `json:"default_region" yaml:"default_region"`
}

// EventsConfig declares the custom events and Enhanced Measurement settings.
type EventsConfig struct {
	CustomEnabled       *bool           `json:"custom_enabled" yaml:"custom_enabled"`
	CustomEvents        []string        `json:"custom_events" yaml:"custom_events"`
	EnhancedMeasurement map[string]bool `json:"enhanced_measurement" yaml:"enhanced_measurement"`
}

// DebugConfig toggles debug mode in the tag configuration.
type DebugConfig struct {
	Enabled *bool `json:"enabled" yaml:"enabled"`
}

// PrivacyConfig holds privacy switches.
type PrivacyConfig struct {
	AllowPII bool `json:"allow_pii" yaml:"allow_pii"`
}

// Load reads a configuration file. Files ending in .yaml or .yml are YAML;
// anything else is JSON, with comments and trailing commas allowed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Parse decodes data according to ext (".yaml", ".yml" or JSON otherwise).
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return cfg, nil
}

// Save writes the configuration as YAML or JSON depending on the extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if id := os.Getenv("GA4_MEASUREMENT_ID"); id != "" {
		c.GA4.MeasurementID = id
	}
	if id := os.Getenv("GTM_CONTAINER_ID"); id != "" {
		c.GTM.ContainerID = id
	}
	if id := os.Getenv("GA4_BOOK_ID"); id != "" {
		c.BookID = id
	}
	if mode := os.Getenv("GA4_CONSENT_MODE"); mode != "" {
		c.Consent.Mode = mode
	}
}

// BootstrapOptions maps the configuration onto the bootstrap contract.
func (c *Config) BootstrapOptions() (bootstrap.Options, error) {
	mode, err := bootstrap.ParseConsentMode(c.Consent.Mode)
	if err != nil {
		return bootstrap.Options{}, err
	}
	opts := bootstrap.Options{
		MeasurementID:     c.GA4.MeasurementID,
		GTMContainerID:    c.GTM.ContainerID,
		BookID:            c.BookID,
		ConsentMode:       mode,
		RestrictedRegions: append([]string(nil), c.RegionPolicy.RestrictedRegions...),
	}
	if err := opts.Validate(); err != nil {
		return bootstrap.Options{}, err
	}
	return opts, nil
}

// ErrNoConfig is returned by Discover when no configuration file exists.
var ErrNoConfig = errors.New("no analytics config found")

// DefaultPaths are searched, in order, by Discover.
var DefaultPaths = []string{
	"analytics/analytics.config.json",
	"analytics/analytics.config.jsonc",
	"analytics/analytics.config.yaml",
	"analytics.config.json",
}

// Discover returns the first default config path that exists below root.
func Discover(root string) (string, error) {
	for _, p := range DefaultPaths {
		full := filepath.Join(root, p)
		if _, err := os.Stat(full); err == nil {
			return full, nil
		}
	}
	return "", ErrNoConfig
}
