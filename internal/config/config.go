package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL     string
	DataDir      string
	ScenarioPath string
	// EncounterID pins the standalone worker to one encounter; empty starts a fresh one.
	EncounterID string
	// TickRate is the number of simulation ticks per second.
	TickRate       int
	EventsEnabled  bool
	SnapshotEvery  int
	MetricsEnabled bool
	RNGSeed        uint64
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		DataDir:        getEnv("DATA_DIR", "data"),
		ScenarioPath:   getEnv("SCENARIO_PATH", "data/scenarios/warehouse.yaml"),
		EncounterID:    getEnv("ENCOUNTER_ID", ""),
		TickRate:       getEnvInt("TICK_RATE", 20),
		EventsEnabled:  getEnvBool("EVENTS_ENABLED", true),
		SnapshotEvery:  getEnvInt("SNAPSHOT_EVERY", 20),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		RNGSeed:        uint64(getEnvInt("RNG_SEED", 0)),
	}
}

// TickInterval is the wall-clock time between ticks.
func (c *Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.TickRate)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
