package database

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Driver names accepted by Connect and RunMigrations.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database connection settings for the SQL state store.
type Config struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`

	// Path is the SQLite database file.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// MigrationsDir overrides the embedded migrations with a directory on disk.
	// It must contain one subdirectory per driver.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

func (c Config) postgresDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.sslMode(),
	)
}

func (c Config) postgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.sslMode()),
	}
	return u.String()
}

func (c Config) sslMode() string {
	if strings.TrimSpace(c.SSLMode) == "" {
		return "disable"
	}
	return c.SSLMode
}

func (c Config) sqlitePath() string {
	if strings.TrimSpace(c.Path) == "" {
		return "citybot.db"
	}
	return filepath.Clean(c.Path)
}

func (c Config) sqliteDSN() string {
	return c.sqlitePath() + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (c Config) sqliteURL() string {
	return "sqlite://" + c.sqlitePath()
}
