// Package config holds the file-based configuration for the long-running
// modes (serve, watch). One-shot CLI commands configure themselves from
// flags and environment instead.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Whisper WhisperConfig `yaml:"whisper"`
	Paths   PathsConfig   `yaml:"paths"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
}

type EngineConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	FontPath    string `yaml:"font_path"`
}

type WhisperConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ModelPath  string `yaml:"model_path"`
}

type PathsConfig struct {
	Inbox     string `yaml:"inbox"`
	Processed string `yaml:"processed"`
	Failed    string `yaml:"failed"`
	Output    string `yaml:"output"`
	Cache     string `yaml:"cache"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
}

// Load reads the YAML file at path, applies ADCUT_* environment
// overrides, and fills defaults. An empty path skips the file and builds
// the config from environment and defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Server.Addr, "ADCUT_ADDR")
	setFromEnv(&c.Server.DBPath, "ADCUT_DB")
	setFromEnv(&c.Engine.FFmpegPath, "ADCUT_FFMPEG")
	setFromEnv(&c.Engine.FFprobePath, "ADCUT_FFPROBE")
	setFromEnv(&c.Engine.FontPath, "ADCUT_FONT")
	setFromEnv(&c.Whisper.BinaryPath, "ADCUT_WHISPER_BIN")
	setFromEnv(&c.Whisper.ModelPath, "ADCUT_WHISPER_MODEL")
	setFromEnv(&c.Paths.Inbox, "ADCUT_INBOX")
	setFromEnv(&c.Paths.Output, "ADCUT_OUT_DIR")
	setFromEnv(&c.Paths.Cache, "ADCUT_CACHE_DIR")
	setFromEnv(&c.Logging.Level, "ADCUT_LOG_LEVEL")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.Logging.Level != "" {
		switch strings.ToLower(c.Logging.Level) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
		}
	}

	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8787"
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = "adcut.db"
	}
	if c.Engine.FFmpegPath == "" {
		c.Engine.FFmpegPath = "ffmpeg"
	}
	if c.Engine.FFprobePath == "" {
		c.Engine.FFprobePath = "ffprobe"
	}
	if c.Whisper.BinaryPath == "" {
		c.Whisper.BinaryPath = ".cache/bin/whisper.cpp"
	}
	if c.Whisper.ModelPath == "" {
		c.Whisper.ModelPath = ".cache/models/ggml-base.bin"
	}
	if c.Paths.Inbox == "" {
		c.Paths.Inbox = "data/inbox"
	}
	if c.Paths.Processed == "" {
		c.Paths.Processed = "data/processed"
	}
	if c.Paths.Failed == "" {
		c.Paths.Failed = "data/failed"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "out"
	}
	if c.Paths.Cache == "" {
		c.Paths.Cache = ".cache"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}
