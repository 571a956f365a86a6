package hsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRuntimeConfig(t *testing.T) {
	cfg := DefaultRuntimeConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Zero(t, cfg.QueueCapacity)
}

func TestRuntimeConfigValidate(t *testing.T) {
	cfg := RuntimeConfig{LogLevel: "LOUD"}
	assert.Error(t, cfg.Validate())

	cfg = RuntimeConfig{QueueCapacity: -1}
	assert.Error(t, cfg.Validate())

	cfg = RuntimeConfig{LogLevel: "WARN", QueueCapacity: 16}
	assert.NoError(t, cfg.Validate())
}

func TestRuntimeConfigBuildsQueue(t *testing.T) {
	q := RuntimeConfig{QueueCapacity: 1}.NewQueue()
	require.NoError(t, q.Push(Event{ID: evGo}))

	// The bounded queue accepts and holds the single queued event
	assert.Equal(t, 1, q.Len())

	unbounded := RuntimeConfig{}.NewQueue()
	for i := 0; i < 100; i++ {
		require.NoError(t, unbounded.Push(Event{ID: evGo}))
	}
	assert.Equal(t, 100, unbounded.Len())
}

func TestRuntimeConfigBuildsLogger(t *testing.T) {
	logger := RuntimeConfig{LogLevel: "ERROR"}.NewLogger()
	require.NotNil(t, logger)
	logger.Error("boom")
}
