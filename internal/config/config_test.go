package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.MaxBytes != 16384 {
		t.Errorf("scan.max_bytes = %d, want 16384", cfg.Scan.MaxBytes)
	}
	if cfg.Semantic.Timeout != 10*time.Second {
		t.Errorf("semantic.timeout = %v, want 10s", cfg.Semantic.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mb.yaml")
	content := "scan:\n  max_bytes: 4096\nrate:\n  posts_cooldown_s: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.MaxBytes != 4096 {
		t.Errorf("scan.max_bytes = %d, want 4096", cfg.Scan.MaxBytes)
	}
	if cfg.Scan.DecodeTokenCap != 16 {
		t.Errorf("decode_token_cap = %d, want default 16", cfg.Scan.DecodeTokenCap)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MB_SCAN_MAX_BYTES", "2048")
	t.Setenv("MB_SEMANTIC_TIMEOUT_MS", "500")
	t.Setenv("MB_DECODE_TOKEN_CAP", "garbage")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.MaxBytes != 2048 {
		t.Errorf("scan.max_bytes = %d, want 2048 from env", cfg.Scan.MaxBytes)
	}
	if cfg.Semantic.Timeout != 500*time.Millisecond {
		t.Errorf("semantic.timeout = %v, want 500ms from env", cfg.Semantic.Timeout)
	}
	if cfg.Scan.DecodeTokenCap != 16 {
		t.Errorf("unparseable env should keep default, got %d", cfg.Scan.DecodeTokenCap)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Semantic.MinScore = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("min_score > 1 should fail validation")
	}
	cfg = Defaults()
	cfg.Scan.MaxBytes = 10
	if err := cfg.Validate(); err == nil {
		t.Error("tiny max_bytes should fail validation")
	}
}
