package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr         = ":8080"
	DefaultContextSize  = 1024
	DefaultThreads      = 4
	DefaultMaxTokens    = 256
	DefaultChunkSize    = 512
	DefaultTopK         = 40
	DefaultTemperature  = 0.8
	DefaultPromptFormat = "raw"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultMaxBodyBytes = 1 << 20
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// ModelPath is loaded at startup when set; a registry id is accepted too.
	ModelPath string `json:"model_path" yaml:"model_path" toml:"model_path"`
	// LibPath is the directory holding the llama.cpp shared libraries.
	LibPath     string `json:"lib_path" yaml:"lib_path" toml:"lib_path"`
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`
	// MaxTokens is nil when unset; an explicit 0 generates nothing.
	MaxTokens    *int    `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	ChunkSize    int     `json:"chunk_size" yaml:"chunk_size" toml:"chunk_size"`
	TopK         int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	Temperature  float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	PromptFormat string  `json:"prompt_format" yaml:"prompt_format" toml:"prompt_format"`
	LogLevel     string  `json:"log_level" yaml:"log_level" toml:"log_level"`
	// LogFormat is json or console.
	LogFormat    string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
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

// WithDefaults returns a copy with every unset field filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ContextSize <= 0 {
		c.ContextSize = DefaultContextSize
	}
	if c.Threads <= 0 {
		c.Threads = DefaultThreads
	}
	if c.MaxTokens == nil {
		c.MaxTokens = Int(DefaultMaxTokens)
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.PromptFormat == "" {
		c.PromptFormat = DefaultPromptFormat
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.CORSEnabled && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	return c
}

// MaxNewTokens returns the generation limit, DefaultMaxTokens when unset.
func (c Config) MaxNewTokens() int {
	if c.MaxTokens == nil {
		return DefaultMaxTokens
	}
	return *c.MaxTokens
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Validate rejects values WithDefaults cannot repair.
func (c Config) Validate() error {
	if c.MaxTokens != nil && *c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens: must not be negative, got %d", *c.MaxTokens)
	}
	switch strings.ToLower(c.PromptFormat) {
	case "", "raw", "chatml":
	default:
		return fmt.Errorf("prompt_format: unknown value %q", c.PromptFormat)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log_format: unknown value %q", c.LogFormat)
	}
	return nil
}
