package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Threshold != 3 {
		t.Errorf("Threshold = %d, want 3", cfg.Threshold)
	}
	if !cfg.Active {
		t.Error("Active should default to true")
	}
	if cfg.ResetOnStart {
		t.Error("ResetOnStart should default to false")
	}
	if cfg.CountryCode != "65" {
		t.Errorf("CountryCode = %q, want %q", cfg.CountryCode, "65")
	}
	if cfg.WarningsFile != "warnings.json" {
		t.Errorf("WarningsFile = %q, want warnings.json", cfg.WarningsFile)
	}
	if cfg.DedupTTL != 10*time.Minute {
		t.Errorf("DedupTTL = %v, want 10m", cfg.DedupTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BANNED_TERMS", "foo, bar ,,baz")
	t.Setenv("AUTHORIZED_NUMBERS", "6590000001")
	t.Setenv("MODERATED_GROUPS", "Family Group, Work")
	t.Setenv("WARN_THRESHOLD", "5")
	t.Setenv("MODERATION_ACTIVE", "false")
	t.Setenv("RESET_ON_START", "true")
	t.Setenv("DEDUP_TTL", "30s")
	t.Setenv("DEDUP_MAX", "100")

	cfg := Load()

	if got := len(cfg.BannedTerms); got != 3 {
		t.Fatalf("BannedTerms = %v, want 3 entries", cfg.BannedTerms)
	}
	if cfg.BannedTerms[2] != "baz" {
		t.Errorf("BannedTerms[2] = %q, want baz", cfg.BannedTerms[2])
	}
	if len(cfg.Groups) != 2 || cfg.Groups[0] != "Family Group" {
		t.Errorf("Groups = %v", cfg.Groups)
	}
	if cfg.Threshold != 5 {
		t.Errorf("Threshold = %d, want 5", cfg.Threshold)
	}
	if cfg.Active {
		t.Error("Active should be false")
	}
	if !cfg.ResetOnStart {
		t.Error("ResetOnStart should be true")
	}
	if cfg.DedupTTL != 30*time.Second {
		t.Errorf("DedupTTL = %v, want 30s", cfg.DedupTTL)
	}
	if cfg.DedupMax != 100 {
		t.Errorf("DedupMax = %d, want 100", cfg.DedupMax)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("WARN_THRESHOLD", "not-a-number")
	t.Setenv("MODERATION_ACTIVE", "maybe")
	t.Setenv("DEDUP_TTL", "-5s")

	cfg := Load()
	if cfg.Threshold != 3 {
		t.Errorf("Threshold = %d, want default 3", cfg.Threshold)
	}
	if !cfg.Active {
		t.Error("Active should fall back to true")
	}
	if cfg.DedupTTL != 10*time.Minute {
		t.Errorf("DedupTTL = %v, want default 10m", cfg.DedupTTL)
	}
}
