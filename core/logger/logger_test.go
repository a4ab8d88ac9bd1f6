package logger

import (
	"log/slog"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/citybot/core/config"
)

func TestResolveSettings(t *testing.T) {
	tests := []struct {
		name    string
		logging coreconfig.LoggingConfig
		check   func(t *testing.T, s settings)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, s settings) {
				if s.level != slog.LevelInfo || s.format != formatJSON || s.sampleD != 50 || s.filePath != "" {
					t.Fatalf("defaults = %+v", s)
				}
			},
		},
		{
			name:    "debug profile picks kv",
			logging: coreconfig.LoggingConfig{Profile: "Debug", Level: "debug"},
			check: func(t *testing.T, s settings) {
				if s.format != formatKV || s.level != slog.LevelDebug || s.profile != "debug" {
					t.Fatalf("settings = %+v", s)
				}
			},
		},
		{
			name:    "explicit json wins over profile",
			logging: coreconfig.LoggingConfig{Profile: "dev", Format: "json", Level: "warning"},
			check: func(t *testing.T, s settings) {
				if s.format != formatJSON || s.level != slog.LevelWarn {
					t.Fatalf("settings = %+v", s)
				}
			},
		},
		{
			name:    "custom order and sampling",
			logging: coreconfig.LoggingConfig{KeysOrder: "ts, event,,rid", DebugSample: "1/5", Dir: "logs", File: "bot.log"},
			check: func(t *testing.T, s settings) {
				if len(s.keyOrder) != 3 || s.keyOrder[1] != "event" {
					t.Fatalf("key order = %v", s.keyOrder)
				}
				if s.sampleN != 1 || s.sampleD != 5 {
					t.Fatalf("sample = %d/%d", s.sampleN, s.sampleD)
				}
				if s.filePath != filepath.Join("logs", "bot.log") {
					t.Fatalf("file = %q", s.filePath)
				}
			},
		},
		{
			name:    "bad level falls back",
			logging: coreconfig.LoggingConfig{Level: "loud"},
			check: func(t *testing.T, s settings) {
				if s.level != slog.LevelInfo {
					t.Fatalf("level = %v", s.level)
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, resolveSettings(&coreconfig.Config{Logging: tc.logging}))
		})
	}
}

func TestComponentCached(t *testing.T) {
	if Component("dialog") != Component(" dialog ") {
		t.Fatal("component loggers should be cached by trimmed name")
	}
	if Component("") != L {
		t.Fatal("empty component should return the base logger")
	}
}
