package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/utils"
)

// Config holds every tunable of the analysis pipeline. Values come from the
// environment; a YAML file named by CONFIG_FILE overlays the environment for
// any key it sets.
type Config struct {
	IOConcurrency      int           `yaml:"io_concurrency"`
	AIConcurrency      int           `yaml:"ai_concurrency"`
	CheckpointInterval int           `yaml:"checkpoint_interval"`
	TranscriptWindow   int           `yaml:"transcript_window"`
	ActivityWindowDays int           `yaml:"activity_window_days"`
	Model              string        `yaml:"model"`
	CallTimeout        time.Duration `yaml:"call_timeout"`
	ChunkDelay         time.Duration `yaml:"chunk_delay"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	CacheRevalidate    bool          `yaml:"cache_revalidate"`
	MaxConsecutiveErrs int           `yaml:"max_consecutive_persist_errors"`
}

type fileOverlay struct {
	IOConcurrency      *int    `yaml:"io_concurrency"`
	AIConcurrency      *int    `yaml:"ai_concurrency"`
	CheckpointInterval *int    `yaml:"checkpoint_interval"`
	TranscriptWindow   *int    `yaml:"transcript_window"`
	ActivityWindowDays *int    `yaml:"activity_window_days"`
	Model              *string `yaml:"model"`
	CallTimeoutSecs    *int    `yaml:"call_timeout_seconds"`
	ChunkDelayMs       *int    `yaml:"chunk_delay_ms"`
	CacheTTLHours      *int    `yaml:"cache_ttl_hours"`
	CacheRevalidate    *bool   `yaml:"cache_revalidate"`
	MaxConsecutiveErrs *int    `yaml:"max_consecutive_persist_errors"`
}

// Load assembles the pipeline configuration from the environment plus the
// optional CONFIG_FILE overlay. Returned errors are configuration errors and
// abort the run before any work starts.
func Load(log *logger.Logger) (*Config, error) {
	cfg := &Config{
		IOConcurrency:      utils.GetEnvAsInt("IO_CONCURRENCY", 16, log),
		AIConcurrency:      utils.GetEnvAsInt("AI_CONCURRENCY", 4, log),
		CheckpointInterval: utils.GetEnvAsInt("CHECKPOINT_INTERVAL", 3, log),
		TranscriptWindow:   utils.GetEnvAsInt("TRANSCRIPT_WINDOW", 200, log),
		ActivityWindowDays: utils.GetEnvAsInt("ACTIVITY_WINDOW_DAYS", 90, log),
		Model:              utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini", log),
		CallTimeout:        time.Duration(utils.GetEnvAsInt("CALL_TIMEOUT_SECONDS", 60, log)) * time.Second,
		ChunkDelay:         time.Duration(utils.GetEnvAsInt("CHUNK_DELAY_MS", 0, log)) * time.Millisecond,
		CacheTTL:           time.Duration(utils.GetEnvAsInt("CACHE_TTL_HOURS", 0, log)) * time.Hour,
		CacheRevalidate:    utils.GetEnvAsBool("CACHE_REVALIDATE", true, log),
		MaxConsecutiveErrs: utils.GetEnvAsInt("MAX_CONSECUTIVE_PERSIST_ERRORS", 5, log),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var o fileOverlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if o.IOConcurrency != nil {
		c.IOConcurrency = *o.IOConcurrency
	}
	if o.AIConcurrency != nil {
		c.AIConcurrency = *o.AIConcurrency
	}
	if o.CheckpointInterval != nil {
		c.CheckpointInterval = *o.CheckpointInterval
	}
	if o.TranscriptWindow != nil {
		c.TranscriptWindow = *o.TranscriptWindow
	}
	if o.ActivityWindowDays != nil {
		c.ActivityWindowDays = *o.ActivityWindowDays
	}
	if o.Model != nil {
		c.Model = *o.Model
	}
	if o.CallTimeoutSecs != nil {
		c.CallTimeout = time.Duration(*o.CallTimeoutSecs) * time.Second
	}
	if o.ChunkDelayMs != nil {
		c.ChunkDelay = time.Duration(*o.ChunkDelayMs) * time.Millisecond
	}
	if o.CacheTTLHours != nil {
		c.CacheTTL = time.Duration(*o.CacheTTLHours) * time.Hour
	}
	if o.CacheRevalidate != nil {
		c.CacheRevalidate = *o.CacheRevalidate
	}
	if o.MaxConsecutiveErrs != nil {
		c.MaxConsecutiveErrs = *o.MaxConsecutiveErrs
	}
	return nil
}

func (c *Config) validate() error {
	if c.IOConcurrency < 1 {
		return fmt.Errorf("IO_CONCURRENCY must be >= 1, got %d", c.IOConcurrency)
	}
	if c.AIConcurrency < 1 {
		return fmt.Errorf("AI_CONCURRENCY must be >= 1, got %d", c.AIConcurrency)
	}
	if c.CheckpointInterval < 1 {
		return fmt.Errorf("CHECKPOINT_INTERVAL must be >= 1, got %d", c.CheckpointInterval)
	}
	if c.TranscriptWindow < 1 {
		return fmt.Errorf("TRANSCRIPT_WINDOW must be >= 1, got %d", c.TranscriptWindow)
	}
	if c.ActivityWindowDays < 1 {
		return fmt.Errorf("ACTIVITY_WINDOW_DAYS must be >= 1, got %d", c.ActivityWindowDays)
	}
	if c.Model == "" {
		return fmt.Errorf("OPENAI_MODEL must not be empty")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT_SECONDS must be > 0")
	}
	if c.MaxConsecutiveErrs < 1 {
		return fmt.Errorf("MAX_CONSECUTIVE_PERSIST_ERRORS must be >= 1, got %d", c.MaxConsecutiveErrs)
	}
	return nil
}
