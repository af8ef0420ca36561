package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/pacing"
)

const envPrefix = "ACTIONPACER_"

// Config holds all configuration options for a run
type Config struct {
	Pacing  PacingConfig  `yaml:"pacing" json:"pacing"`
	Run     RunConfig     `yaml:"run" json:"run"`
	Proxy   ProxyConfig   `yaml:"proxy" json:"proxy"`
	Quota   QuotaConfig   `yaml:"quota" json:"quota"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PacingConfig holds the inter-action delay parameters, in milliseconds
type PacingConfig struct {
	BaseDelayMs int64 `yaml:"base_delay_ms" json:"base_delay_ms"`
	JitterMinMs int64 `yaml:"jitter_min_ms" json:"jitter_min_ms"`
	JitterMaxMs int64 `yaml:"jitter_max_ms" json:"jitter_max_ms"`
}

// Controller converts the millisecond values into a pacing.Config
func (p PacingConfig) Controller() pacing.Config {
	return pacing.FromMillis(p.BaseDelayMs, p.JitterMinMs, p.JitterMaxMs)
}

// RunConfig holds per-run settings
type RunConfig struct {
	// Limit caps successful records; 0 means unlimited
	Limit        int    `yaml:"limit" json:"limit"`
	TargetFilter string `yaml:"target_filter" json:"target_filter"`
	Headless     bool   `yaml:"headless" json:"headless"`
	SessionFile  string `yaml:"session_file" json:"session_file"`
	MaxAttempts  int    `yaml:"max_attempts" json:"max_attempts"`
	Input        string `yaml:"input" json:"input"`
	// RequiredAttributes must be present and non-empty for a record to be complete
	RequiredAttributes []string `yaml:"required_attributes" json:"required_attributes"`
}

// QuotaConfig holds local ceilings on action volume.
// These are operator assumptions about remote limits; zero disables each.
type QuotaConfig struct {
	ActionsPerHour int           `yaml:"actions_per_hour" json:"actions_per_hour"`
	Burst          int           `yaml:"burst" json:"burst"`
	WindowSize     time.Duration `yaml:"window_size" json:"window_size"`
	WindowMax      int           `yaml:"window_max" json:"window_max"`
}

// OutputConfig holds the record sink settings
type OutputConfig struct {
	Path   string `yaml:"path" json:"path"`
	Format string `yaml:"format" json:"format"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pacing: PacingConfig{
			BaseDelayMs: 1500,
			JitterMinMs: 0,
			JitterMaxMs: 1000,
		},
		Run: RunConfig{
			Limit:       0,
			Headless:           true,
			MaxAttempts:        3,
			RequiredAttributes: []string{"name"},
		},
		Quota: QuotaConfig{
			Burst: 1,
		},
		Output: OutputConfig{
			Path:   "records.jsonl",
			Format: "jsonl",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from ACTIONPACER_* environment variables
func (c *Config) LoadFromEnv() error {
	var problems []error

	envInt64 := func(name string, dst *int64) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	envInt := func(name string, dst *int) {
		var n int64 = int64(*dst)
		envInt64(name, &n)
		*dst = int(n)
	}
	envString := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	envInt64("BASE_DELAY_MS", &c.Pacing.BaseDelayMs)
	envInt64("JITTER_MIN_MS", &c.Pacing.JitterMinMs)
	envInt64("JITTER_MAX_MS", &c.Pacing.JitterMaxMs)

	envInt("LIMIT", &c.Run.Limit)
	envInt("MAX_ATTEMPTS", &c.Run.MaxAttempts)
	envString("TARGET_FILTER", &c.Run.TargetFilter)
	envString("SESSION_FILE", &c.Run.SessionFile)
	envString("INPUT", &c.Run.Input)
	if v := os.Getenv(envPrefix + "REQUIRED_ATTRIBUTES"); v != "" {
		c.Run.RequiredAttributes = splitList(v)
	}
	if v := os.Getenv(envPrefix + "HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, fmt.Errorf("%sHEADLESS: %w", envPrefix, err))
		} else {
			c.Run.Headless = b
		}
	}

	envString("PROXY_URL", &c.Proxy.URL)

	envInt("QUOTA_PER_HOUR", &c.Quota.ActionsPerHour)
	envInt("QUOTA_WINDOW_MAX", &c.Quota.WindowMax)
	if v := os.Getenv(envPrefix + "QUOTA_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			problems = append(problems, fmt.Errorf("%sQUOTA_WINDOW: %w", envPrefix, err))
		} else {
			c.Quota.WindowSize = d
		}
	}

	envString("OUTPUT", &c.Output.Path)
	envString("OUTPUT_FORMAT", &c.Output.Format)
	envString("LOG_LEVEL", &c.Logging.Level)
	envString("LOG_FILE", &c.Logging.File)

	if len(problems) > 0 {
		return errs.InvalidConfiguration("malformed environment", errors.Join(problems...))
	}
	return nil
}

// splitList splits a comma separated value, dropping blanks
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errs.InvalidConfiguration("failed to parse config file", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".actionpacer.yaml",
		".actionpacer.yml",
		filepath.Join(home, ".config", "actionpacer", "config.yaml"),
		filepath.Join(home, ".actionpacer.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks the whole configuration, reporting every problem at once
func (c *Config) Validate() error {
	var problems []error

	if err := pacing.ValidateMillis(c.Pacing.BaseDelayMs, c.Pacing.JitterMinMs, c.Pacing.JitterMaxMs); err != nil {
		problems = append(problems, err)
	}

	if c.Run.Limit < 0 {
		problems = append(problems, errors.New("run limit cannot be negative"))
	}
	if c.Run.MaxAttempts < 1 {
		problems = append(problems, errors.New("max attempts must be at least 1"))
	}

	for _, name := range c.Run.RequiredAttributes {
		if strings.TrimSpace(name) == "" {
			problems = append(problems, errors.New("required attribute names cannot be empty"))
			break
		}
	}

	if c.Proxy.URL != "" {
		if _, err := ParseProxyURL(c.Proxy.URL); err != nil {
			problems = append(problems, err)
		}
	}

	if c.Quota.ActionsPerHour < 0 || c.Quota.WindowMax < 0 || c.Quota.WindowSize < 0 {
		problems = append(problems, errors.New("quota values cannot be negative"))
	}
	if c.Quota.ActionsPerHour > 0 && c.Quota.Burst < 1 {
		problems = append(problems, errors.New("quota burst must be at least 1"))
	}
	if c.Quota.WindowMax > 0 && c.Quota.WindowSize == 0 {
		problems = append(problems, errors.New("quota window size is required when window max is set"))
	}

	if c.Output.Path == "" {
		problems = append(problems, errors.New("output path is required"))
	}
	switch strings.ToLower(c.Output.Format) {
	case "jsonl", "csv":
	default:
		problems = append(problems, fmt.Errorf("unsupported output format %q", c.Output.Format))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		problems = append(problems, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	if len(problems) > 0 {
		return errs.InvalidConfiguration("configuration validation failed", errors.Join(problems...))
	}
	return nil
}

// Redacted returns a copy safe to print, with proxy credentials masked
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Proxy.URL != "" {
		cp.Proxy.URL = RedactProxyURL(cp.Proxy.URL)
	}
	return &cp
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the proxy URL may carry credentials
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-delay-ms"].(int64); ok {
		c.Pacing.BaseDelayMs = v
	}
	if v, ok := flags["jitter-min-ms"].(int64); ok {
		c.Pacing.JitterMinMs = v
	}
	if v, ok := flags["jitter-max-ms"].(int64); ok {
		c.Pacing.JitterMaxMs = v
	}
	if v, ok := flags["limit"].(int); ok {
		c.Run.Limit = v
	}
	if v, ok := flags["max-attempts"].(int); ok {
		c.Run.MaxAttempts = v
	}
	if v, ok := flags["target-filter"].(string); ok {
		c.Run.TargetFilter = v
	}
	if v, ok := flags["required-attributes"].([]string); ok {
		c.Run.RequiredAttributes = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Run.Headless = v
	}
	if v, ok := flags["session-file"].(string); ok && v != "" {
		c.Run.SessionFile = v
	}
	if v, ok := flags["input"].(string); ok && v != "" {
		c.Run.Input = v
	}
	if v, ok := flags["proxy"].(string); ok && v != "" {
		c.Proxy.URL = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Path = v
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Output.Format = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: command line flags > environment > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".actionpacer.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
