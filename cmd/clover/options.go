package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"clover/internal/config"
)

// resolveConfig layers explicitly set flags over the config file (if any),
// then fills defaults and validates.
func resolveConfig(path string, fs *pflag.FlagSet, flags config.Config) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	} else {
		cfg = flags
	}
	if path != "" {
		fs.Visit(func(f *pflag.Flag) { applyFlag(&cfg, flags, f.Name) })
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlag copies the field behind one changed flag from src into dst.
func applyFlag(dst *config.Config, src config.Config, name string) {
	switch name {
	case "log-level":
		dst.LogLevel = src.LogLevel
	case "log-format":
		dst.LogFormat = src.LogFormat
	case "lib-path":
		dst.LibPath = src.LibPath
	case "models-dir":
		dst.ModelsDir = src.ModelsDir
	case "model":
		dst.ModelPath = src.ModelPath
	case "addr":
		dst.Addr = src.Addr
	case "context-size":
		dst.ContextSize = src.ContextSize
	case "threads":
		dst.Threads = src.Threads
	case "max-tokens":
		dst.MaxTokens = src.MaxTokens
	case "chunk-size":
		dst.ChunkSize = src.ChunkSize
	case "top-k":
		dst.TopK = src.TopK
	case "temperature":
		dst.Temperature = src.Temperature
	case "prompt-format":
		dst.PromptFormat = src.PromptFormat
	case "max-body-bytes":
		dst.MaxBodyBytes = src.MaxBodyBytes
	case "cors-enabled":
		dst.CORSEnabled = src.CORSEnabled
	case "cors-origins":
		dst.CORSOrigins = src.CORSOrigins
	}
}
