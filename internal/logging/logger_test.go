package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetUsesInstalledRoot(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Install(zap.New(core), nil)
	t.Cleanup(func() { Install(nil, nil) })

	Get(CategoryAudit).Info("step done", zap.String("step", "navigate"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, "step done", entries[0].Message)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Install(zap.New(core), map[string]bool{"tracker": false, "audit": true})
	t.Cleanup(func() { Install(nil, nil) })

	Get(CategoryTracker).Info("hidden")
	Get(CategoryAudit).Info("shown")
	Get(CategoryStore).Info("unlisted categories stay on")

	assert.Equal(t, 2, logs.Len())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zap.AtomicLevel{
		"":        zap.NewAtomicLevelAt(zap.InfoLevel),
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"WARNING": zap.NewAtomicLevelAt(zap.WarnLevel),
		"error":   zap.NewAtomicLevelAt(zap.ErrorLevel),
	} {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want.Level(), got, in)
	}

	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	_, err := Initialize(Config{Level: "verbose-ish"})
	assert.Error(t, err)
}
