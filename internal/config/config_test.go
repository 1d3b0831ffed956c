package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_RATE_LIMIT_RPS", "")
	t.Setenv("API_MAX_IN_FLIGHT", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("ANALYZER_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.NATSSubject != "sessions.queued" {
		t.Fatalf("expected default subject sessions.queued, got %q", cfg.NATSSubject)
	}
	if cfg.NATSProgressSubject != "sessions.progress" {
		t.Fatalf("expected default progress subject sessions.progress, got %q", cfg.NATSProgressSubject)
	}
	if cfg.APIRateLimitRPS != 50 {
		t.Fatalf("expected default rate limit 50 rps, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.APIMaxInFlight != 64 {
		t.Fatalf("expected default in-flight cap 64, got %d", cfg.APIMaxInFlight)
	}
	if cfg.Analyzer.PagesPerPart != 4 {
		t.Fatalf("expected default pages-per-part 4, got %d", cfg.Analyzer.PagesPerPart)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("PROCESS_TIMEOUT_SECONDS", "300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit override 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.ProcessTimeoutSeconds != 300 {
		t.Fatalf("expected process timeout 300, got %d", cfg.ProcessTimeoutSeconds)
	}
}

func TestLoadAnalyzerOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyzer.yaml")
	overlay := "short_doc_max_pages: 3\npages_per_part: 6\n"
	if err := os.WriteFile(path, []byte(overlay), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("ANALYZER_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Analyzer.ShortDocMaxPages != 3 {
		t.Fatalf("expected overlay short-doc pages 3, got %d", cfg.Analyzer.ShortDocMaxPages)
	}
	if cfg.Analyzer.PagesPerPart != 6 {
		t.Fatalf("expected overlay pages-per-part 6, got %d", cfg.Analyzer.PagesPerPart)
	}
	if cfg.Analyzer.HintConfidence != 60 {
		t.Fatalf("expected untouched hint confidence default 60, got %d", cfg.Analyzer.HintConfidence)
	}
}

func TestLoadFailsOnBadAnalyzerOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyzer.yaml")
	if err := os.WriteFile(path, []byte("short_doc_max_pages: [broken"), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("ANALYZER_CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want parse failure")
	}
}
