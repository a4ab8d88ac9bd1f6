package citybot

import (
	"os"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/citybot/core/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("BOT_DEFAULT_CITY", "Lisbon")
	t.Setenv("DB_PATH", "/tmp/from-env.db")
	path := writeConfig(t, `
telegram:
  run_mode: console
storage:
  driver: sqlite3
  cache_size: 128
database:
  path: state.db
bot:
  default_city: Paris
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Telegram.RunMode != coreconfig.RunModeConsole {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Storage.Driver != coreconfig.StorageSQLite || cfg.Storage.CacheSize != 128 {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Bot.DefaultCity != "Lisbon" {
		t.Fatalf("env should override default city, got %q", cfg.Bot.DefaultCity)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Fatalf("db path = %q", cfg.Database.Path)
	}
	if cfg.Bot.SearchURL != DefaultSearchURL {
		t.Fatalf("search url = %q", cfg.Bot.SearchURL)
	}
	if cfg.CoreConfig() != &cfg.Config {
		t.Fatalf("CoreConfig should expose the embedded config")
	}
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "console defaults", cfg: Config{Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: "console"}}}},
		{name: "longpoll without token", cfg: Config{}, wantErr: true},
		{
			name: "relative search url",
			cfg: Config{
				Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: "console"}},
				Bot:    BotConfig{SearchURL: "/search"},
			},
			wantErr: true,
		},
		{
			name: "custom search url",
			cfg: Config{
				Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: "longpoll", Token: "t"}},
				Bot:    BotConfig{SearchURL: "https://duckduckgo.com/?ia=web"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Normalize()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Normalize() err = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && tc.cfg.Bot.DefaultCity == "" {
				t.Fatalf("default city should be filled")
			}
		})
	}
}
