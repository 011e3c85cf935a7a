package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process-level configuration for the scheduler binaries.
// Per-organization scheduling settings live in each org database; this only
// covers where the databases are and how the worker runs.
type Config struct {
	Env string

	// Redis (asynq backend and run locks)
	RedisURL      string
	RedisPassword string

	// Organization databases the worker schedules, comma separated paths.
	OrgDatabases []string

	// RunCron is the cron spec for the nightly scheduling run.
	RunCron string

	// Scheduling
	HorizonDays             int
	RunBudgetMinutes        int
	CheckpointRetentionDays int

	// Worker
	WorkerConcurrency int
}

var Cfg *Config

// Load reads configuration from the environment (and .env if present).
func Load() (*Config, error) {
	godotenv.Load()

	horizonDays, _ := strconv.Atoi(getEnv("HORIZON_DAYS", "90"))
	runBudget, _ := strconv.Atoi(getEnv("RUN_BUDGET_MINUTES", "0"))
	retention, _ := strconv.Atoi(getEnv("CHECKPOINT_RETENTION_DAYS", "90"))
	concurrency, _ := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "2"))

	Cfg = &Config{
		Env:           getEnv("APP_ENV", "development"),
		RedisURL:      normalizeRedisURL(getEnv("REDIS_URL", "redis://localhost:6379")),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		OrgDatabases: splitPaths(getEnv("ORG_DATABASES", "")),
		RunCron:      getEnv("RUN_CRON", "30 2 * * *"),

		HorizonDays:             horizonDays,
		RunBudgetMinutes:        runBudget,
		CheckpointRetentionDays: retention,

		WorkerConcurrency: concurrency,
	}

	return Cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitPaths(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// normalizeRedisURL ensures the URL has the redis:// prefix for parsing.
// Supports formats: redis://host:port, redis://:pass@host:port, host:port
func normalizeRedisURL(url string) string {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		return url
	}
	return "redis://" + url
}
