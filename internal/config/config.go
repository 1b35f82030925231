// Package config loads player configuration from an optional YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime options.
type Config struct {
	MusicDir      string        `yaml:"music_dir"`
	QueueCapacity int           `yaml:"queue_capacity"`
	BufferSize    int           `yaml:"buffer_size"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryBase     time.Duration `yaml:"retry_base"`
	CacheTTL      time.Duration `yaml:"cache_ttl"` // zero disables the resolver cache

	FFmpegBinary string `yaml:"ffmpeg_binary"`
	FFplayBinary string `yaml:"ffplay_binary"`
	YTDLPBinary  string `yaml:"ytdlp_binary"`

	APIAddr      string `yaml:"api_addr"`      // empty disables the HTTP API
	DiscordToken string `yaml:"discord_token"` // empty disables the bot
	LogLevel     string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MusicDir:      "./music",
		QueueCapacity: 256,
		BufferSize:    80 * 1024,
		MaxAttempts:   3,
		RetryBase:     200 * time.Millisecond,
		CacheTTL:      5 * time.Minute,
		FFmpegBinary:  "ffmpeg",
		FFplayBinary:  "ffplay",
		YTDLPBinary:   "yt-dlp",
		LogLevel:      "info",
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.MusicDir = getEnv("GROOVEBOX_MUSIC_DIR", c.MusicDir)
	c.QueueCapacity = getEnvAsInt("GROOVEBOX_QUEUE_CAPACITY", c.QueueCapacity)
	c.BufferSize = getEnvAsInt("GROOVEBOX_BUFFER_SIZE", c.BufferSize)
	c.CacheTTL = getEnvAsDuration("GROOVEBOX_CACHE_TTL", c.CacheTTL)
	c.FFmpegBinary = getEnv("GROOVEBOX_FFMPEG", c.FFmpegBinary)
	c.FFplayBinary = getEnv("GROOVEBOX_FFPLAY", c.FFplayBinary)
	c.YTDLPBinary = getEnv("GROOVEBOX_YTDLP", c.YTDLPBinary)
	c.APIAddr = getEnv("GROOVEBOX_API_ADDR", c.APIAddr)
	c.DiscordToken = getEnv("DISCORD_TOKEN", c.DiscordToken)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}
