package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENVIRONMENT", "LOG_LEVEL", "REDIS_URL", "DATA_DIR", "SCENARIO_PATH", "ENCOUNTER_ID", "TICK_RATE", "EVENTS_ENABLED", "SNAPSHOT_EVERY", "METRICS_ENABLED", "RNG_SEED"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Empty(t, cfg.EncounterID)
	assert.Equal(t, 20, cfg.TickRate)
	assert.True(t, cfg.EventsEnabled)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("TICK_RATE", "10")
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("RNG_SEED", "42")
	t.Setenv("SNAPSHOT_EVERY", "nope")

	cfg := Load()
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval())
	assert.False(t, cfg.EventsEnabled)
	assert.Equal(t, uint64(42), cfg.RNGSeed)
	assert.Equal(t, 20, cfg.SnapshotEvery, "unparseable values fall back to the default")
}
