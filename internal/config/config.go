// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and persists mgchat settings from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/mgchat/internal/offline"
	"github.com/jeranaias/mgchat/internal/util"
)

// Defaults applied by Normalize for unset fields.
const (
	DefaultServerURL    = "https://mgzon-mgzon-app.hf.space"
	DefaultLocalURL     = "http://localhost:11434"
	DefaultTextModel    = "qwen2.5:1.5b"
	DefaultAudioModel   = "whisper-small"
	DefaultTemperature  = 0.7
	DefaultMaxNewTokens = 128000
	DefaultOutputFormat = "text"
	DefaultTTSVoice     = "m1"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the full mgchat configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Local      LocalConfig      `toml:"local"`
	Generation GenerationConfig `toml:"generation"`
	TTS        TTSConfig        `toml:"tts"`
	UI         UIConfig         `toml:"ui"`
	Log        LogConfig        `toml:"log"`
}

// ServerConfig points the client at the chat service.
type ServerConfig struct {
	URL string `toml:"url"`
	// TimeoutSeconds bounds non-streaming requests.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LocalConfig points the offline fallback at a local inference runtime.
type LocalConfig struct {
	URL        string `toml:"url"`
	TextModel  string `toml:"text_model"`
	AudioModel string `toml:"audio_model"`
	// Force skips the reachability probe and always uses the local path.
	Force bool `toml:"force"`
}

// GenerationConfig holds the parameters sent with chat requests.
type GenerationConfig struct {
	Temperature    float64 `toml:"temperature"`
	MaxNewTokens   int     `toml:"max_new_tokens"`
	EnableBrowsing bool    `toml:"enable_browsing"`
	OutputFormat   string  `toml:"output_format"`
	// Language overrides detection when set, e.g. "ar".
	Language string `toml:"language"`
}

// TTSConfig controls spoken replies.
type TTSConfig struct {
	Enabled bool   `toml:"enabled"`
	Voice   string `toml:"voice"`
}

// UIConfig holds presentation options.
type UIConfig struct {
	Theme string `toml:"theme"`
	// Plain disables the TUI in favor of the line-mode client.
	Plain bool `toml:"plain"`
	// SidebarVisible restores the sidebar state across sessions.
	SidebarVisible bool `toml:"sidebar_visible"`
}

// LogConfig controls the debug log file.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills unset fields with defaults so a partial file still yields
// a usable configuration.
func (c *Config) Normalize() {
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.TimeoutSeconds <= 0 {
		c.Server.TimeoutSeconds = 60
	}
	if c.Local.URL == "" {
		c.Local.URL = DefaultLocalURL
	}
	if c.Local.TextModel == "" {
		c.Local.TextModel = DefaultTextModel
	}
	if c.Local.AudioModel == "" {
		c.Local.AudioModel = DefaultAudioModel
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = DefaultTemperature
	}
	if c.Generation.MaxNewTokens <= 0 {
		c.Generation.MaxNewTokens = DefaultMaxNewTokens
	}
	if c.Generation.OutputFormat == "" {
		c.Generation.OutputFormat = DefaultOutputFormat
	}
	if c.TTS.Voice == "" {
		c.TTS.Voice = DefaultTTSVoice
	}
	if c.UI.Theme == "" {
		c.UI.Theme = "auto"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if !offline.ValidateBaseURL(c.Server.URL) {
		return fmt.Errorf("server.url %q is not a valid http(s) URL", c.Server.URL)
	}
	if !offline.ValidateBaseURL(c.Local.URL) {
		return fmt.Errorf("local.url %q is not a valid http(s) URL", c.Local.URL)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature %v out of range [0, 2]", c.Generation.Temperature)
	}
	switch c.Generation.OutputFormat {
	case "text", "markdown", "json":
	default:
		return fmt.Errorf("generation.output_format %q unknown", c.Generation.OutputFormat)
	}
	return nil
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the mgchat config directory, honoring XDG_CONFIG_HOME.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mgchat"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mgchat"), nil
}

// DataDir returns the mgchat data directory for conversations, the token
// keystore, and logs.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mgchat"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "mgchat"), nil
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file at path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.Normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config atomically as TOML.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}
