package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "API_PORT", "AUDIT_MODE", "MAX_UPLOAD_MB", "PROCESS_CACHE_TTL",
		"ALLOWED_EXTENSIONS", "API_RATE_LIMIT_RPS", "JOURNAL_DEFAULT_LIMIT",
		"API_BACKPRESSURE_MAX_IN_FLIGHT", "API_BACKPRESSURE_WAIT",
		"AUDIT_BUFFER_SIZE", "AUDIT_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AuditMode != AuditModeDirect {
		t.Fatalf("expected direct audit mode, got %q", cfg.AuditMode)
	}
	if cfg.MaxUploadBytes() != 50<<20 {
		t.Fatalf("expected 50MB upload cap, got %d", cfg.MaxUploadBytes())
	}
	if cfg.ProcessCacheTTL != time.Minute {
		t.Fatalf("expected 1m cache ttl, got %v", cfg.ProcessCacheTTL)
	}
	if cfg.JournalDefaultLimit != 100 {
		t.Fatalf("expected journal limit 100, got %d", cfg.JournalDefaultLimit)
	}
	if len(cfg.AllowedExtensions) != 14 || cfg.AllowedExtensions[0] != "pdf" {
		t.Fatalf("unexpected allowed extensions %v", cfg.AllowedExtensions)
	}
	if cfg.APIBackpressureMaxInFlight != 64 || cfg.APIBackpressureWait != 250*time.Millisecond {
		t.Fatalf("unexpected backpressure defaults %d %v", cfg.APIBackpressureMaxInFlight, cfg.APIBackpressureWait)
	}
	if cfg.AuditBufferSize != 1024 || cfg.AuditTimeout != 5*time.Second {
		t.Fatalf("unexpected audit delivery defaults %d %v", cfg.AuditBufferSize, cfg.AuditTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUDIT_MODE", "QUEUE")
	t.Setenv("PROCESS_CACHE_TTL", "90s")
	t.Setenv("ALLOWED_EXTENSIONS", " .PDF, txt ,,")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("AUDIT_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AuditMode != AuditModeQueue {
		t.Fatalf("expected queue audit mode, got %q", cfg.AuditMode)
	}
	if cfg.ProcessCacheTTL != 90*time.Second {
		t.Fatalf("expected 90s ttl, got %v", cfg.ProcessCacheTTL)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[0] != "pdf" || cfg.AllowedExtensions[1] != "txt" {
		t.Fatalf("unexpected allowed extensions %v", cfg.AllowedExtensions)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected 2.5 rps, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.AuditTimeout != 750*time.Millisecond {
		t.Fatalf("expected 750ms audit timeout, got %v", cfg.AuditTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUDIT_MODE", "kafka")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown audit mode")
	}

	clearEnv(t)
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing jwt secret")
	}
}

func TestLoadAppliesYAMLOverlayBelowEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "API_PORT: 9000\nAUDIT_MODE: queue\nallowed_extensions: [pdf, docx]\nJOURNAL_DEFAULT_LIMIT: 250\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "7000" {
		t.Fatalf("expected env to win over file, got %q", cfg.APIPort)
	}
	if cfg.AuditMode != AuditModeQueue || cfg.JournalDefaultLimit != 250 {
		t.Fatalf("expected file values, got mode=%q limit=%d", cfg.AuditMode, cfg.JournalDefaultLimit)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[1] != "docx" {
		t.Fatalf("unexpected allowed extensions %v", cfg.AllowedExtensions)
	}
}

func TestLoadFailsOnUnreadableOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
