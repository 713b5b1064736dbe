package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/oddgeir/bedrockusage/pkg/awsauth"
	"github.com/oddgeir/bedrockusage/pkg/metrics"
)

const DefaultFileName = "bua.toml"

// ModelConfig selects one foundation model endpoint to analyze.
// ProfilePrefix is the cross-region endpoint prefix ("us", "eu",
// "global", ...); empty means the base on-demand endpoint.
type ModelConfig struct {
	ModelID       string `toml:"model_id"`
	ProfilePrefix string `toml:"profile_prefix,omitempty"`
}

// Endpoint returns the CloudWatch ModelId dimension value for the
// configured endpoint.
func (m ModelConfig) Endpoint() string {
	if m.ProfilePrefix == "" {
		return m.ModelID
	}
	return m.ProfilePrefix + "." + m.ModelID
}

// QuotaMapperConfig points at an OpenAI-compatible endpoint used for
// the offline quota-code mapping. The API key comes from
// OPENAI_API_KEY, never from the config file.
type QuotaMapperConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
}

type Config struct {
	Region string        `toml:"region"`
	Models []ModelConfig `toml:"models"`
	// GranularitySeconds maps lookback window names to the auxiliary
	// sampling period. Token metrics are always fetched at 1 minute.
	GranularitySeconds map[string]int    `toml:"granularity_seconds"`
	Workers            int               `toml:"workers,omitempty"`
	OutputDir          string            `toml:"output_dir"`
	CacheDir           string            `toml:"cache_dir,omitempty"`
	LogLevel           string            `toml:"loglevel,omitempty"`
	QuotaMapper        QuotaMapperConfig `toml:"quota_mapper"`
}

func NewDefault() Config {
	granularity := make(map[string]int, len(metrics.Windows))
	for _, w := range metrics.Windows {
		granularity[w.Name] = 300
	}
	region := awsauth.RegionFromEnv()
	if region == "" {
		region = "us-east-1"
	}
	return Config{
		Region:             region,
		GranularitySeconds: granularity,
		OutputDir:          "results",
		LogLevel:           "info",
		QuotaMapper: QuotaMapperConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
	}
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := NewDefault()
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var validPeriods = map[int]bool{60: true, 300: true, 3600: true}

// Validate enforces the configuration rules the engine relies on,
// including the monotone granularity constraint: a longer window may
// never use a finer period than a shorter one.
func (c Config) Validate() error {
	if c.Region == "" {
		return errors.New("region must be set")
	}
	if len(c.GranularitySeconds) == 0 {
		return errors.New("at least one lookback window must be configured")
	}
	for name, secs := range c.GranularitySeconds {
		if _, ok := metrics.WindowByName(name); !ok {
			return fmt.Errorf("unknown lookback window %q", name)
		}
		if !validPeriods[secs] {
			return fmt.Errorf("window %q: granularity must be 60, 300 or 3600 seconds, got %d", name, secs)
		}
	}
	prev := 0
	for _, w := range metrics.Windows {
		secs, ok := c.GranularitySeconds[w.Name]
		if !ok {
			continue
		}
		if secs < prev {
			return fmt.Errorf("window %q: granularity %ds is finer than a shorter window's %ds", w.Name, secs, prev)
		}
		prev = secs
	}
	for i, m := range c.Models {
		if m.ModelID == "" {
			return fmt.Errorf("models[%d]: model_id must be set", i)
		}
	}
	return nil
}

// Granularity returns the configured windows as durations, keyed by
// window name.
func (c Config) Granularity() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.GranularitySeconds))
	for name, secs := range c.GranularitySeconds {
		out[name] = time.Duration(secs) * time.Second
	}
	return out
}
