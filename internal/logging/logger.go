// Package logging provides categorized structured logging for ga4skill.
// Every subsystem logs through a named child of one root zap logger so that
// categories can be filtered. Logs go to stderr; stdout is reserved for
// reports.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // CLI startup, config loading
	CategoryAudit   Category = "audit"   // Runtime auditor steps and classification
	CategoryBrowser Category = "browser" // Browser launch, navigation, evaluation
	CategoryTracker Category = "tracker" // Tracking runtime decisions
	CategoryDedup   Category = "dedup"   // Dedup store fallbacks
	CategoryConfig  Category = "config"  // Config validation and site scans
	CategoryStore   Category = "store"   // Audit history
	CategoryFixture Category = "fixture" // Fixture site server
)

// Config controls the root logger.
type Config struct {
	Level      string          `yaml:"level" json:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	enabled map[string]bool
)

// Initialize builds the root logger from cfg and installs it for Get.
// Calling it again replaces the previous root logger.
func Initialize(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !cfg.JSONFormat {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	Install(logger, cfg.Categories)
	return logger, nil
}

// Install sets l as the root logger. A nil categories map enables every
// category; a category missing from a non-nil map is enabled.
func Install(l *zap.Logger, categories map[string]bool) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	enabled = categories
}

// Get returns the logger for category. Disabled categories get a no-op
// logger.
func Get(category Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if on, ok := enabled[string(category)]; ok && !on {
		return zap.NewNop()
	}
	return root.Named(string(category))
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}
