// Package config provides configuration management for boni.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// Defaults for the tunable thresholds. Values that gate trigger and
// acceptance behavior (dwell, idle, scoring) are policy knobs, not constants;
// tests verify the policy, not these numbers.
const (
	DefaultModel             = "gemini-2.0-flash"
	DefaultHTTPAddr          = "127.0.0.1:4807"
	DefaultSampleIntervalSec = 1.0
	DefaultDwellTimeoutSec   = 120.0
	DefaultIdleThresholdSec  = 10.0
	DefaultIdleRearmBelowSec = 2.0
	DefaultAcceptBar         = 5.0
	DefaultMinSpacingSec     = 0.0
	DefaultMaxIntervalSec    = 120.0
	DefaultSuppressWindowSec = 10.0
	DefaultCaptureDelayMin   = 1.0
	DefaultCaptureDelayMax   = 2.0
	DefaultReasonTimeoutSec  = 30.0
	DefaultMemoryTimeoutSec  = 5.0
	DefaultRecallTopK        = 3
	DefaultMoodMinDwellSec   = 45.0

	DefaultHistoryRetentionDays = 30
)

// DefaultReasonWeights is the significance score per trigger reason.
// Structural reasons score lower than behavioral ones, except the full app
// switch which is the strongest single structural signal.
func DefaultReasonWeights() map[models.TriggerReason]float64 {
	return map[models.TriggerReason]float64{
		models.ReasonWindowChanged:      5.0,
		models.ReasonTitleChanged:       0.5,
		models.ReasonDwellTimeout:       3.0,
		models.ReasonIdleThreshold:      2.0,
		models.ReasonFrustrationPattern: 4.0,
		models.ReasonSighDetected:       3.0,
		models.ReasonRapidSwitching:     3.0,
		models.ReasonTypingBurst:        1.0,
	}
}

// Config holds all boni configuration.
type Config struct {
	// Remote collaborators
	GeminiAPIKey string `yaml:"gemini_api_key,omitempty"`
	Model        string `yaml:"model"`
	MemoryURL    string `yaml:"memory_url,omitempty"`
	UserID       string `yaml:"user_id"`

	// Local presentation API
	HTTPAddr string `yaml:"http_addr"`

	// Sampler
	SampleIntervalSec float64 `yaml:"sample_interval_seconds"`

	// Trigger thresholds
	DwellTimeoutSec   float64 `yaml:"dwell_timeout_seconds"`
	IdleThresholdSec  float64 `yaml:"idle_threshold_seconds"`
	IdleRearmBelowSec float64 `yaml:"idle_rearm_below_seconds"`
	BackspaceRatio    float64 `yaml:"backspace_ratio_threshold"`
	ClicksPerMinute   float64 `yaml:"clicks_per_minute_threshold"`
	TypingBurstKPM    float64 `yaml:"typing_burst_kpm_threshold"`
	RapidSwitchCount  int     `yaml:"rapid_switch_count"`
	RapidSwitchSec    float64 `yaml:"rapid_switch_window_seconds"`

	// Accumulator policy
	ReasonWeights     map[models.TriggerReason]float64 `yaml:"reason_weights,omitempty"`
	AcceptBar         float64                          `yaml:"accept_bar"`
	MinSpacingSec     float64                          `yaml:"min_spacing_seconds"`
	MaxIntervalSec    float64                          `yaml:"max_interval_seconds"`
	SuppressWindowSec float64                          `yaml:"suppress_window_seconds"`

	// Capture
	CaptureDelayMinSec float64 `yaml:"capture_delay_min_seconds"`
	CaptureDelayMaxSec float64 `yaml:"capture_delay_max_seconds"`

	// Remote call bounds
	ReasonTimeoutSec float64 `yaml:"reason_timeout_seconds"`
	MemoryTimeoutSec float64 `yaml:"memory_timeout_seconds"`
	RecallTopK       int     `yaml:"recall_top_k"`

	// Mood hysteresis
	MoodMinDwellSec float64 `yaml:"mood_min_dwell_seconds"`

	// History retention; zero disables pruning.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Model:                DefaultModel,
		HTTPAddr:             DefaultHTTPAddr,
		SampleIntervalSec:    DefaultSampleIntervalSec,
		DwellTimeoutSec:      DefaultDwellTimeoutSec,
		IdleThresholdSec:     DefaultIdleThresholdSec,
		IdleRearmBelowSec:    DefaultIdleRearmBelowSec,
		BackspaceRatio:       0.3,
		ClicksPerMinute:      40,
		TypingBurstKPM:       300,
		RapidSwitchCount:     3,
		RapidSwitchSec:       30,
		ReasonWeights:        DefaultReasonWeights(),
		AcceptBar:            DefaultAcceptBar,
		MinSpacingSec:        DefaultMinSpacingSec,
		MaxIntervalSec:       DefaultMaxIntervalSec,
		SuppressWindowSec:    DefaultSuppressWindowSec,
		CaptureDelayMinSec:   DefaultCaptureDelayMin,
		CaptureDelayMaxSec:   DefaultCaptureDelayMax,
		ReasonTimeoutSec:     DefaultReasonTimeoutSec,
		MemoryTimeoutSec:     DefaultMemoryTimeoutSec,
		RecallTopK:           DefaultRecallTopK,
		MoodMinDwellSec:      DefaultMoodMinDwellSec,
		HistoryRetentionDays: DefaultHistoryRetentionDays,
	}
}

// Duration helpers. Config durations live in the file as seconds so the YAML
// stays hand-editable.

func secs(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

func (c *Config) SampleInterval() time.Duration  { return secs(c.SampleIntervalSec) }
func (c *Config) DwellTimeout() time.Duration    { return secs(c.DwellTimeoutSec) }
func (c *Config) IdleThreshold() time.Duration   { return secs(c.IdleThresholdSec) }
func (c *Config) IdleRearmBelow() time.Duration  { return secs(c.IdleRearmBelowSec) }
func (c *Config) RapidSwitchWin() time.Duration  { return secs(c.RapidSwitchSec) }
func (c *Config) MinSpacing() time.Duration      { return secs(c.MinSpacingSec) }
func (c *Config) MaxInterval() time.Duration     { return secs(c.MaxIntervalSec) }
func (c *Config) SuppressWindow() time.Duration  { return secs(c.SuppressWindowSec) }
func (c *Config) CaptureDelayMin() time.Duration { return secs(c.CaptureDelayMinSec) }
func (c *Config) CaptureDelayMax() time.Duration { return secs(c.CaptureDelayMaxSec) }
func (c *Config) ReasonTimeout() time.Duration   { return secs(c.ReasonTimeoutSec) }
func (c *Config) MemoryTimeout() time.Duration   { return secs(c.MemoryTimeoutSec) }
func (c *Config) MoodMinDwell() time.Duration    { return secs(c.MoodMinDwellSec) }

// HistoryRetention returns the reaction-row retention span; zero means keep
// everything.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

// DataDir returns the boni data directory (~/.boni), overridable via BONI_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv("BONI_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".boni")
}

// ConfigPath returns the path to the YAML config file.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// DBPath returns the path to the local history database.
func DBPath() string {
	return filepath.Join(DataDir(), "boni.db")
}

// AppCategoriesPath returns the path to the app category registry file.
func AppCategoriesPath() string {
	return filepath.Join(DataDir(), "app_categories.yaml")
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// Load reads the config file, applies environment overrides, and fills in a
// generated user id on first run. A missing file yields defaults, not an error.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ConfigPath())
	switch {
	case os.IsNotExist(err):
		// First run, keep defaults.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment always wins over the file.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.GeminiAPIKey = key
	}
	if url := os.Getenv("BONI_MEMORY_URL"); url != "" {
		cfg.MemoryURL = url
	}

	if len(cfg.ReasonWeights) == 0 {
		cfg.ReasonWeights = DefaultReasonWeights()
	}
	if cfg.CaptureDelayMaxSec < cfg.CaptureDelayMinSec {
		cfg.CaptureDelayMaxSec = cfg.CaptureDelayMinSec
	}

	if cfg.UserID == "" {
		cfg.UserID = uuid.NewString()
		log.Info().Str("user_id", cfg.UserID).Msg("Generated new user id")
		if err := cfg.Save(); err != nil {
			log.Warn().Err(err).Msg("Failed to persist generated user id")
		}
	}

	return cfg, nil
}

// Save writes the config back to the data directory.
func (c *Config) Save() error {
	if err := EnsureDataDir(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}
