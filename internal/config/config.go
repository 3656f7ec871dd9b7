// Package config loads capture.Options from an optional YAML file and
// WEBCAPTURE_-prefixed environment variables using viper. This package is
// an outer, optional layer: the core capture package never imports it and
// has no dependency on a config file existing at all.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/viper"

	"github.com/jnd-labs/webcapture/internal/capture"
)

// FileConfig mirrors capture.Options' shape for mapstructure/YAML
// unmarshaling; regex fields are carried as strings here and compiled in
// ToOptions.
type FileConfig struct {
	URL string `mapstructure:"url"`

	MonitorMs int `mapstructure:"monitor_ms"`
	TimeoutMs int `mapstructure:"timeout_ms"`

	OutDir string `mapstructure:"out_dir"`

	IncludeRegex string `mapstructure:"include_regex"`
	ExcludeRegex string `mapstructure:"exclude_regex"`

	MaxBodyBytes    int64 `mapstructure:"max_body_bytes"`
	InlineBodyBytes int64 `mapstructure:"inline_body_bytes"`

	MaxCaptures           int  `mapstructure:"max_captures"`
	MaxConcurrentCaptures int  `mapstructure:"max_concurrent_captures"`
	CaptureAllJSON        bool `mapstructure:"capture_all_json"`

	SaveHAR bool `mapstructure:"save_har"`
	Trace   bool `mapstructure:"trace"`

	UserAgent string `mapstructure:"user_agent"`

	ConsentMode   string `mapstructure:"consent_mode"`
	ConsentAction string `mapstructure:"consent_action"`
	// ConsentHandlers names the handlers to enable by config alone (e.g.
	// "yahoo", "generic"); this package has no handler registry to resolve
	// names against, so ToOptions does not populate capture.Options'
	// ConsentHandlers field. An embedding application resolves these names
	// to concrete models.InterstitialHandler instances itself and sets
	// capture.Options.ConsentHandlers directly.
	ConsentHandlers []string `mapstructure:"consent_handlers"`

	StorageState     string `mapstructure:"storage_state"`
	SaveStorageState string `mapstructure:"save_storage_state"`
	SaveSession      string `mapstructure:"save_session"`

	DisableSummary bool `mapstructure:"disable_summary"`
	WatchMode      bool `mapstructure:"watch_mode"`
}

// Load reads capture configuration from webcapture.yaml and environment
// variables. Environment variables take precedence and must be prefixed
// with WEBCAPTURE_, e.g. WEBCAPTURE_MONITOR_MS=3000. A missing config file
// is not an error; every field can be supplied purely via environment, and
// cmd/capture's -url flag overrides URL after loading.
func Load() (*FileConfig, error) {
	v := viper.New()

	v.SetConfigName("webcapture")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	v.SetEnvPrefix("WEBCAPTURE")
	v.AutomaticEnv()

	v.SetDefault("monitor_ms", 15000)
	v.SetDefault("timeout_ms", 45000)
	v.SetDefault("out_dir", "./captures")
	v.SetDefault("max_body_bytes", 1<<20)
	v.SetDefault("inline_body_bytes", 16<<10)
	v.SetDefault("max_concurrent_captures", 6)
	v.SetDefault("consent_mode", "auto")
	v.SetDefault("consent_action", "reject")

	// AutomaticEnv only reaches Unmarshal for keys viper already knows, so
	// the keys without a default are bound to their env vars explicitly.
	for _, key := range []string{
		"url", "include_regex", "exclude_regex", "max_captures",
		"capture_all_json", "save_har", "trace", "user_agent",
		"consent_handlers", "storage_state", "save_storage_state",
		"save_session", "disable_summary", "watch_mode",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ToOptions compiles the string-valued regex fields and builds the
// capture.Options Validate will check. Compilation errors surface here
// rather than deep inside the orchestrator.
func (c *FileConfig) ToOptions() (capture.Options, error) {
	opts := capture.Options{
		URL:                   c.URL,
		MonitorMs:             c.MonitorMs,
		TimeoutMs:             c.TimeoutMs,
		OutDir:                c.OutDir,
		MaxBodyBytes:          c.MaxBodyBytes,
		InlineBodyBytes:       c.InlineBodyBytes,
		MaxCaptures:           c.MaxCaptures,
		MaxConcurrentCaptures: c.MaxConcurrentCaptures,
		CaptureAllJSON:        c.CaptureAllJSON,
		SaveHAR:               c.SaveHAR,
		Trace:                 c.Trace,
		UserAgent:             c.UserAgent,
		ConsentMode:           c.ConsentMode,
		ConsentAction:         c.ConsentAction,
		SaveStorageState:      c.SaveStorageState,
		SaveSession:           c.SaveSession,
		DisableSummary:        c.DisableSummary,
		WatchMode:             c.WatchMode,
	}

	if c.IncludeRegex != "" {
		re, err := regexp.Compile(c.IncludeRegex)
		if err != nil {
			return opts, fmt.Errorf("invalid include_regex: %w", err)
		}
		opts.IncludeRegex = re
	}
	if c.ExcludeRegex != "" {
		re, err := regexp.Compile(c.ExcludeRegex)
		if err != nil {
			return opts, fmt.Errorf("invalid exclude_regex: %w", err)
		}
		opts.ExcludeRegex = re
	}

	if c.StorageState != "" {
		blob, err := os.ReadFile(c.StorageState)
		if err != nil {
			return opts, fmt.Errorf("failed to read storage_state file: %w", err)
		}
		opts.StorageState = blob
	}

	return opts, nil
}
