package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"hfstudio/internal/common/fsutil"
)

// ModelEntry adds a selectable model on top of the built-in catalog.
type ModelEntry struct {
	Label string `json:"label" yaml:"label" toml:"label"`
	Kind  string `json:"kind" yaml:"kind" toml:"kind"`
	Model string `json:"model" yaml:"model" toml:"model"`
	Brief string `json:"brief,omitempty" yaml:"brief,omitempty" toml:"brief,omitempty"`
}

// Config holds runtime parameters. Zero values mean "unspecified" and keep
// the defaults from Default().
type Config struct {
	Endpoint string       `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Token    string       `json:"token" yaml:"token" toml:"token"`
	Device   string       `json:"device" yaml:"device" toml:"device"`
	Addr     string       `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel string       `json:"log_level" yaml:"log_level" toml:"log_level"`
	Models   []ModelEntry `json:"models" yaml:"models" toml:"models"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "info",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Overlay returns base with non-zero fields of over applied on top.
func Overlay(base, over Config) Config {
	out := base
	if over.Endpoint != "" {
		out.Endpoint = over.Endpoint
	}
	if over.Token != "" {
		out.Token = over.Token
	}
	if over.Device != "" {
		out.Device = over.Device
	}
	if over.Addr != "" {
		out.Addr = over.Addr
	}
	if over.LogLevel != "" {
		out.LogLevel = over.LogLevel
	}
	if len(over.Models) > 0 {
		out.Models = over.Models
	}
	return out
}

// FromEnv reads the HFSTUDIO_* environment overrides. HF_API_TOKEN is
// honored as the conventional token variable when HFSTUDIO_TOKEN is unset.
func FromEnv() Config {
	var cfg Config
	cfg.Endpoint = os.Getenv("HFSTUDIO_ENDPOINT")
	cfg.Token = os.Getenv("HFSTUDIO_TOKEN")
	if cfg.Token == "" {
		cfg.Token = os.Getenv("HF_API_TOKEN")
	}
	cfg.Device = os.Getenv("HFSTUDIO_DEVICE")
	cfg.Addr = os.Getenv("HFSTUDIO_ADDR")
	cfg.LogLevel = os.Getenv("HFSTUDIO_LOG_LEVEL")
	return cfg
}
