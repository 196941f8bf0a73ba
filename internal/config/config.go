package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML runtime configuration. Everything here can
// also be set from CLI flags; flags win when both are given.
type Config struct {
	Runtime RuntimeConfig `yaml:"runtime"`
	Verify  VerifyConfig  `yaml:"verify"`
	Logging LoggingConfig `yaml:"logging"`
}

type RuntimeConfig struct {
	ReaderIndex  *int   `yaml:"reader_index"`
	ShowProgress *bool  `yaml:"show_progress"`
	DumpFile     string `yaml:"dump_file"`
}

type VerifyConfig struct {
	RetryDelayMs   *int `yaml:"retry_delay_ms"`
	SectorSettleMs *int `yaml:"sector_settle_ms"`
}

type LoggingConfig struct {
	Verbose *bool  `yaml:"verbose"`
	Format  string `yaml:"format"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	readerIndex := 0
	showProgress := true
	retryDelay := 50
	sectorSettle := 50
	verbose := false
	return &Config{
		Runtime: RuntimeConfig{
			ReaderIndex:  &readerIndex,
			ShowProgress: &showProgress,
		},
		Verify: VerifyConfig{
			RetryDelayMs:   &retryDelay,
			SectorSettleMs: &sectorSettle,
		},
		Logging: LoggingConfig{
			Verbose: &verbose,
			Format:  "text",
		},
	}
}

// Load reads, parses and validates a config file. Unknown fields are
// rejected so a typoed key fails loudly instead of silently using a
// default. Relative dump paths resolve against the config file directory.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.applyDefaults()
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Runtime.ShowProgress == nil {
		c.Runtime.ShowProgress = d.Runtime.ShowProgress
	}
	if c.Verify.RetryDelayMs == nil {
		c.Verify.RetryDelayMs = d.Verify.RetryDelayMs
	}
	if c.Verify.SectorSettleMs == nil {
		c.Verify.SectorSettleMs = d.Verify.SectorSettleMs
	}
	if c.Logging.Verbose == nil {
		c.Logging.Verbose = d.Logging.Verbose
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

func (c *Config) Validate() error {
	if c.Runtime.ReaderIndex == nil {
		return fmt.Errorf("config.runtime.reader_index is required")
	}
	if *c.Runtime.ReaderIndex < 0 {
		return fmt.Errorf("config.runtime.reader_index must be >= 0")
	}
	if *c.Verify.RetryDelayMs < 0 {
		return fmt.Errorf("config.verify.retry_delay_ms must be >= 0")
	}
	if *c.Verify.SectorSettleMs < 0 {
		return fmt.Errorf("config.verify.sector_settle_ms must be >= 0")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config.logging.format must be \"text\" or \"json\"")
	}
	if c.Runtime.DumpFile != "" {
		info, err := os.Stat(c.Runtime.DumpFile)
		if err != nil {
			return fmt.Errorf("config.runtime.dump_file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("config.runtime.dump_file must point to a file, got directory")
		}
	}
	return nil
}

// RetryDelay returns the block read retry pause.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(*c.Verify.RetryDelayMs) * time.Millisecond
}

// SectorSettle returns the inter-sector settle pause.
func (c *Config) SectorSettle() time.Duration {
	return time.Duration(*c.Verify.SectorSettleMs) * time.Millisecond
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.Runtime.DumpFile = resolvePath(configDir, c.Runtime.DumpFile)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}
