package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creachadair/pipechan/codec/codecutil"
	"github.com/rs/zerolog"
)

// config is the effective configuration of the program.
type config struct {
	Codec        string
	MaxFrameSize int
	LogLevel     zerolog.Level
	Count        int
}

func defaultConfig() config {
	return config{
		Codec:    "json",
		LogLevel: zerolog.InfoLevel,
	}
}

type fileConfig struct {
	Codec        string `toml:"codec"`
	MaxFrameSize int    `toml:"max_frame_size"`
	LogLevel     string `toml:"log_level"`
	Count        int    `toml:"count"`
}

// loadConfig reads a TOML configuration file from path and applies the
// settings it defines to the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	if keys := meta.Undecoded(); len(keys) != 0 {
		return config{}, fmt.Errorf("load config: unknown key %q", keys[0].String())
	}

	if meta.IsDefined("codec") {
		cfg.Codec = strings.TrimSpace(raw.Codec)
	}
	if meta.IsDefined("max_frame_size") {
		cfg.MaxFrameSize = raw.MaxFrameSize
	}
	if meta.IsDefined("log_level") {
		lvl, err := parseLevel(raw.LogLevel)
		if err != nil {
			return config{}, fmt.Errorf("load config: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("count") {
		cfg.Count = raw.Count
	}
	if err := cfg.check(); err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c config) check() error {
	if !slices.Contains(codecutil.Names(), c.Codec) {
		return fmt.Errorf("unknown codec %q (known: %s)", c.Codec, strings.Join(codecutil.Names(), ", "))
	}
	if c.Count < 0 {
		return fmt.Errorf("invalid count %d", c.Count)
	}
	return nil
}

func parseLevel(s string) (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// newLogger returns a human-readable logger on stderr for the named role.
func newLogger(role string, lvl zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("role", role).Logger()
}
