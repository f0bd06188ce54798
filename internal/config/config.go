// Package config collects the environment configuration surface. A .env
// file, when present, is loaded first via godotenv; explicit environment
// variables win over file entries.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full configuration surface of the moderation service.
type Config struct {
	// Policy.
	BannedTerms  []string // comma-separated banned-term list
	Authorized   []string // identities permitted to issue commands
	Groups       []string // moderated group names
	Threshold    int      // strikes before removal
	Active       bool     // initial moderation mode
	ResetOnStart bool     // "start moderation" clears all warnings
	CountryCode  string   // default country code for 8-digit numbers

	// Stores.
	WarningsFile     string
	AutosaveInterval time.Duration

	// Dedup ledger.
	DedupTTL          time.Duration
	DedupMax          int
	DedupTrimInterval time.Duration

	// Infrastructure.
	NATSURL     string
	RedisAddr   string // empty disables reply throttling
	PostgresDSN string // empty disables the audit trail
	MetricsAddr string // empty disables the metrics endpoint
}

// Load reads configuration from .env (if present) and the environment.
func Load() Config {
	// Missing .env is the normal case in production; ignore the error.
	_ = godotenv.Load()

	return Config{
		BannedTerms:  csv(os.Getenv("BANNED_TERMS")),
		Authorized:   csv(os.Getenv("AUTHORIZED_NUMBERS")),
		Groups:       csv(os.Getenv("MODERATED_GROUPS")),
		Threshold:    envInt("WARN_THRESHOLD", 3),
		Active:       envBool("MODERATION_ACTIVE", true),
		ResetOnStart: envBool("RESET_ON_START", false),
		CountryCode:  envStr("DEFAULT_COUNTRY_CODE", "65"),

		WarningsFile:     envStr("WARNINGS_FILE", "warnings.json"),
		AutosaveInterval: envDuration("AUTOSAVE_INTERVAL", 5*time.Minute),

		DedupTTL:          envDuration("DEDUP_TTL", 10*time.Minute),
		DedupMax:          envInt("DEDUP_MAX", 5000),
		DedupTrimInterval: envDuration("DEDUP_TRIM_INTERVAL", time.Minute),

		NATSURL:     envStr("NATS_URL", "nats://localhost:4222"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}
}

// csv splits a comma-separated list, trimming whitespace and dropping empty
// entries.
func csv(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
