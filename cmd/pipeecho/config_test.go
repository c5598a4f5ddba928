package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeecho.toml")
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name, text string
		want       config
	}{
		{"Empty", "", defaultConfig()},
		{"All", `
codec = "gob"
max_frame_size = 1024
log_level = "DEBUG"
count = 3
`, config{Codec: "gob", MaxFrameSize: 1024, LogLevel: zerolog.DebugLevel, Count: 3}},
		{"Partial", `count = 5`, config{Codec: "json", LogLevel: zerolog.InfoLevel, Count: 5}},
		{"Unlimited", `max_frame_size = -1`, config{Codec: "json", MaxFrameSize: -1, LogLevel: zerolog.InfoLevel}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := loadConfig(writeConfig(t, test.text))
			if err != nil {
				t.Fatalf("loadConfig: unexpected error: %v", err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Config (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name, text, want string
	}{
		{"BadSyntax", `codec = `, "load config"},
		{"UnknownKey", `frobnicate = true`, "unknown key"},
		{"UnknownCodec", `codec = "xml"`, "unknown codec"},
		{"BadLevel", `log_level = "loud"`, "invalid log level"},
		{"BadCount", `count = -2`, "invalid count"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := loadConfig(writeConfig(t, test.text))
			if err == nil {
				t.Fatalf("loadConfig: got %+v, want error", got)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("loadConfig: got error %v, want %q", err, test.want)
			}
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nonesuch.toml")); err == nil {
		t.Error("loadConfig: got nil error for a missing file")
	}
}

func TestOptions(t *testing.T) {
	cfg := config{Codec: "gob", MaxFrameSize: 99}
	opts := cfg.options(zerolog.Nop())
	if opts.Codec == nil {
		t.Fatal("Options: codec is nil")
	}
	if opts.MaxFrameSize != 99 {
		t.Errorf("Options: MaxFrameSize is %d, want 99", opts.MaxFrameSize)
	}
	if opts.Logger == nil {
		t.Error("Options: logger is nil")
	}
}
