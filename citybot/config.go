package citybot

import (
	"fmt"
	"net/url"
	"strings"

	coreconfig "github.com/m3rciful/citybot/core/config"
	"github.com/m3rciful/citybot/core/database"
)

// BotConfig holds the search behaviour settings.
type BotConfig struct {
	DefaultCity string `yaml:"default_city" envconfig:"BOT_DEFAULT_CITY"`
	SearchURL   string `yaml:"search_url" envconfig:"BOT_SEARCH_URL"`
}

// Config is the application configuration: the shared core sections plus
// the database and bot sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Bot      BotConfig       `yaml:"bot"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the configuration and fills bot defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	c.Bot.DefaultCity = strings.TrimSpace(c.Bot.DefaultCity)
	if c.Bot.DefaultCity == "" {
		c.Bot.DefaultCity = DefaultCity
	}
	c.Bot.SearchURL = strings.TrimSpace(c.Bot.SearchURL)
	if c.Bot.SearchURL == "" {
		c.Bot.SearchURL = DefaultSearchURL
	}
	u, err := url.Parse(c.Bot.SearchURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid bot.search_url %q: want an absolute http(s) URL", c.Bot.SearchURL)
	}
	return nil
}

// Options converts the bot section to Bot options.
func (c *Config) Options() Options {
	return Options{DefaultCity: c.Bot.DefaultCity, SearchURL: c.Bot.SearchURL}
}
