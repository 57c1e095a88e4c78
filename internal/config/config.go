// Package config holds the mb safety-engine configuration: scan cost
// ceilings, rate-limit thresholds, state file locations, and the
// semantic collaborator command. Values come from a YAML file with
// environment-variable overrides for the scan tunables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level mb configuration.
type Config struct {
	Version  string         `yaml:"version"`
	LogLevel string         `yaml:"log_level"`
	Scan     ScanConfig     `yaml:"scan"`
	Rate     RateConfig     `yaml:"rate,omitempty"`
	Semantic SemanticConfig `yaml:"semantic,omitempty"`
	Paths    PathsConfig    `yaml:"paths,omitempty"`
}

// ScanConfig bounds the work a single scan may perform.
type ScanConfig struct {
	MaxBytes       int `yaml:"max_bytes"`        // inbound sample prefix cap
	DecodeTokenCap int `yaml:"decode_token_cap"` // base64/hex candidates per layer
	MatchBudget    int `yaml:"match_budget"`     // total matches before decode loops stop
	PreviewRunes   int `yaml:"preview_runes"`    // audit preview length
}

// RateConfig overrides the built-in per-action thresholds. Zero values
// keep the defaults (requests 100/60s, comments 50/3600s, posts 1/1800s).
type RateConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`
	CommentsPerHour   int `yaml:"comments_per_hour,omitempty"`
	PostCooldownS     int `yaml:"post_cooldown_s,omitempty"`
}

// SemanticConfig configures the out-of-process similarity collaborator.
// An empty Command disables semantic enrichment entirely.
type SemanticConfig struct {
	Command   string        `yaml:"command,omitempty"`
	MaxBytes  int           `yaml:"max_bytes"` // queries longer than this skip the collaborator
	Timeout   time.Duration `yaml:"timeout"`
	MinScore  float64       `yaml:"min_score"`
	DocsDir   string        `yaml:"docs_dir,omitempty"`
}

// PathsConfig locates the persisted stores.
type PathsConfig struct {
	Facts string `yaml:"facts"` // sensitive entries, keyed by profile
	Rate  string `yaml:"rate"`  // rate-governor state
	Audit string `yaml:"audit"` // append-only audit log (JSONL)
}

// Defaults returns a config with safe defaults. State files live under
// ~/.mb by convention.
func Defaults() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".mb")
	return &Config{
		Version:  "1",
		LogLevel: "info",
		Scan: ScanConfig{
			MaxBytes:       16384,
			DecodeTokenCap: 16,
			MatchBudget:    64,
			PreviewRunes:   240,
		},
		Semantic: SemanticConfig{
			MaxBytes: 8192,
			Timeout:  10 * time.Second,
			MinScore: 0.55,
			DocsDir:  filepath.Join(base, "semantic-docs"),
		},
		Paths: PathsConfig{
			Facts: filepath.Join(base, "facts.json"),
			Rate:  filepath.Join(base, "rate.json"),
			Audit: filepath.Join(base, "audit.jsonl"),
		},
	}
}

// Load reads a config file, applies defaults for unset fields, then
// applies environment overrides. A missing file is not an error: the
// defaults are returned so the tool works with zero setup.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Re-apply zero-value defaults after unmarshal
	d := Defaults()
	if cfg.Scan.MaxBytes <= 0 {
		cfg.Scan.MaxBytes = d.Scan.MaxBytes
	}
	if cfg.Scan.DecodeTokenCap <= 0 {
		cfg.Scan.DecodeTokenCap = d.Scan.DecodeTokenCap
	}
	if cfg.Scan.MatchBudget <= 0 {
		cfg.Scan.MatchBudget = d.Scan.MatchBudget
	}
	if cfg.Scan.PreviewRunes <= 0 {
		cfg.Scan.PreviewRunes = d.Scan.PreviewRunes
	}
	if cfg.Semantic.MaxBytes <= 0 {
		cfg.Semantic.MaxBytes = d.Semantic.MaxBytes
	}
	if cfg.Semantic.Timeout <= 0 {
		cfg.Semantic.Timeout = d.Semantic.Timeout
	}
	if cfg.Semantic.MinScore <= 0 {
		cfg.Semantic.MinScore = d.Semantic.MinScore
	}
	if cfg.Paths.Facts == "" {
		cfg.Paths.Facts = d.Paths.Facts
	}
	if cfg.Paths.Rate == "" {
		cfg.Paths.Rate = d.Paths.Rate
	}
	if cfg.Paths.Audit == "" {
		cfg.Paths.Audit = d.Paths.Audit
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides scan tunables from the environment. Unparseable
// values are ignored; the config keeps its previous value.
func (c *Config) applyEnv() {
	if v, ok := envInt("MB_SCAN_MAX_BYTES"); ok {
		c.Scan.MaxBytes = v
	}
	if v, ok := envInt("MB_DECODE_TOKEN_CAP"); ok {
		c.Scan.DecodeTokenCap = v
	}
	if v, ok := envInt("MB_SEMANTIC_MAX_BYTES"); ok {
		c.Semantic.MaxBytes = v
	}
	if v, ok := envInt("MB_SEMANTIC_TIMEOUT_MS"); ok {
		c.Semantic.Timeout = time.Duration(v) * time.Millisecond
	}
	if v := os.Getenv("MB_SEMANTIC_COMMAND"); v != "" {
		c.Semantic.Command = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Save writes the config to a YAML file at the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks that the config is consistent.
func (c *Config) Validate() error {
	if c.Scan.MaxBytes < 256 {
		return fmt.Errorf("scan.max_bytes too small: %d", c.Scan.MaxBytes)
	}
	if c.Semantic.MinScore < 0 || c.Semantic.MinScore > 1 {
		return fmt.Errorf("semantic.min_score out of range: %v", c.Semantic.MinScore)
	}
	if c.Rate.RequestsPerMinute < 0 || c.Rate.CommentsPerHour < 0 || c.Rate.PostCooldownS < 0 {
		return fmt.Errorf("rate thresholds must be non-negative")
	}
	return nil
}
