package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ========================================
// Configuration
// ========================================

// SelectorConfig controls which selector families are generated and how
// deep structural CSS paths may grow.
type SelectorConfig struct {
	IncludeXPath          bool `json:"includeXPath"`
	IncludeText           bool `json:"includeText"`
	IncludePosition       bool `json:"includePosition"`
	MaxCSSDepth           int  `json:"maxCssDepth"`
	PreferStableSelectors bool `json:"preferStableSelectors"`
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		IncludeXPath:          true,
		IncludeText:           true,
		IncludePosition:       true,
		MaxCSSDepth:           5,
		PreferStableSelectors: true,
	}
}

// RecorderConfig tunes the capture state machine windows. All values are
// milliseconds unless noted.
type RecorderConfig struct {
	ClickSuppressMs      int64 `json:"clickSuppressMs"`
	DoubleClickMergeMs   int64 `json:"doubleClickMergeMs"`
	DoubleClickSpacingMs int64 `json:"doubleClickSpacingMs"`
	SubmitWindowMs       int64 `json:"submitWindowMs"`
	AjaxObserveMs        int64 `json:"ajaxObserveMs"`
	DedupTTLMs           int64 `json:"dedupTtlMs"`
	DropdownLinkageMs    int64 `json:"dropdownLinkageMs"`

	DebounceDefaultMs     int64 `json:"debounceDefaultMs"`
	DebounceSensitiveMs   int64 `json:"debounceSensitiveMs"`
	DebounceConstrainedMs int64 `json:"debounceConstrainedMs"`

	// Carousel click storms bypass suppression but are still throttled.
	CarouselBurstLimit  int   `json:"carouselBurstLimit"`
	CarouselBurstWindow int64 `json:"carouselBurstWindowMs"`
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		ClickSuppressMs:       200,
		DoubleClickMergeMs:    100,
		DoubleClickSpacingMs:  50,
		SubmitWindowMs:        2000,
		AjaxObserveMs:         500,
		DedupTTLMs:            1000,
		DropdownLinkageMs:     60000,
		DebounceDefaultMs:     1200,
		DebounceSensitiveMs:   500,
		DebounceConstrainedMs: 800,
		CarouselBurstLimit:    8,
		CarouselBurstWindow:   5000,
	}
}

// TimingConfig tunes completion estimates for the action timing model.
type TimingConfig struct {
	DefaultKeyDelayMs int64 `json:"defaultKeyDelayMs"`
	ClickCompleteMs   int64 `json:"clickCompleteMs"`
	FormCompleteMs    int64 `json:"formCompleteMs"`
	NavCompleteMs     int64 `json:"navCompleteMs"`
	ScrollMinMs       int64 `json:"scrollMinMs"`
	ScrollMaxMs       int64 `json:"scrollMaxMs"`
	ElementScrollMs   int64 `json:"elementScrollMs"`
}

func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		DefaultKeyDelayMs: 80,
		ClickCompleteMs:   50,
		FormCompleteMs:    100,
		NavCompleteMs:     100,
		ScrollMinMs:       200,
		ScrollMaxMs:       800,
		ElementScrollMs:   200,
	}
}

// AppConfig is the persisted application configuration.
type AppConfig struct {
	DataPath  string         `json:"dataPath"`
	PluginDir string         `json:"pluginDir"`
	LogLevel  string         `json:"logLevel"`
	Selector  SelectorConfig `json:"selector"`
	Recorder  RecorderConfig `json:"recorder"`
	Timing    TimingConfig   `json:"timing"`
}

func DefaultAppConfig(dataPath string) AppConfig {
	return AppConfig{
		DataPath:  dataPath,
		PluginDir: filepath.Join(dataPath, "plugins"),
		LogLevel:  "info",
		Selector:  DefaultSelectorConfig(),
		Recorder:  DefaultRecorderConfig(),
		Timing:    DefaultTimingConfig(),
	}
}

// LoadAppConfig reads config.json from the data directory, falling back to
// defaults when the file is missing. Unknown fields are ignored, zero-value
// windows are backfilled with defaults so older config files stay valid.
func LoadAppConfig(dataPath string) (AppConfig, error) {
	cfg := DefaultAppConfig(dataPath)
	path := filepath.Join(dataPath, "config.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultAppConfig(dataPath), fmt.Errorf("failed to parse config: %w", err)
	}

	defaults := DefaultRecorderConfig()
	if cfg.Recorder.ClickSuppressMs <= 0 {
		cfg.Recorder.ClickSuppressMs = defaults.ClickSuppressMs
	}
	if cfg.Recorder.DoubleClickMergeMs <= 0 {
		cfg.Recorder.DoubleClickMergeMs = defaults.DoubleClickMergeMs
	}
	if cfg.Recorder.DoubleClickSpacingMs <= 0 {
		cfg.Recorder.DoubleClickSpacingMs = defaults.DoubleClickSpacingMs
	}
	if cfg.Recorder.SubmitWindowMs <= 0 {
		cfg.Recorder.SubmitWindowMs = defaults.SubmitWindowMs
	}
	if cfg.Recorder.AjaxObserveMs <= 0 {
		cfg.Recorder.AjaxObserveMs = defaults.AjaxObserveMs
	}
	if cfg.Recorder.DedupTTLMs <= 0 {
		cfg.Recorder.DedupTTLMs = defaults.DedupTTLMs
	}
	if cfg.Recorder.DropdownLinkageMs <= 0 {
		cfg.Recorder.DropdownLinkageMs = defaults.DropdownLinkageMs
	}
	if cfg.Recorder.DebounceDefaultMs <= 0 {
		cfg.Recorder.DebounceDefaultMs = defaults.DebounceDefaultMs
	}
	if cfg.Recorder.DebounceSensitiveMs <= 0 {
		cfg.Recorder.DebounceSensitiveMs = defaults.DebounceSensitiveMs
	}
	if cfg.Recorder.DebounceConstrainedMs <= 0 {
		cfg.Recorder.DebounceConstrainedMs = defaults.DebounceConstrainedMs
	}
	if cfg.Recorder.CarouselBurstLimit <= 0 {
		cfg.Recorder.CarouselBurstLimit = defaults.CarouselBurstLimit
	}
	if cfg.Recorder.CarouselBurstWindow <= 0 {
		cfg.Recorder.CarouselBurstWindow = defaults.CarouselBurstWindow
	}
	if cfg.Selector.MaxCSSDepth <= 0 {
		cfg.Selector.MaxCSSDepth = DefaultSelectorConfig().MaxCSSDepth
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(dataPath, "plugins")
	}

	return cfg, nil
}

// SaveAppConfig writes config.json to the data directory.
func SaveAppConfig(cfg AppConfig) error {
	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(cfg.DataPath, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	LogInfo("config").Str("path", path).Msg("Configuration saved")
	return nil
}
