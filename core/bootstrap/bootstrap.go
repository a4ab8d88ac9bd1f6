package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/citybot/core/config"
	coredatabase "github.com/m3rciful/citybot/core/database"
	"github.com/m3rciful/citybot/core/logger"
	"github.com/m3rciful/citybot/core/storage"
)

const defaultCacheTTL = 5 * time.Minute

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(ctx context.Context, driver string, cfg coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(ctx context.Context, driver string, cfg coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Store storage.Store
}

// Run initializes the logger and opens the state store selected by
// storage.driver. SQL drivers are migrated before the store is returned.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	store, err := openStore(ctx, opts)
	if err != nil {
		return nil, err
	}

	sc := opts.Config.Storage
	if sc.CacheSize > 0 {
		ttl := time.Duration(sc.CacheTTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		store = storage.NewCached(store, sc.CacheSize, ttl)
	}

	logger.Store.LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "store.open"),
		slog.String("status", "ok"),
		slog.String("driver", sc.Driver),
		slog.Int("cache_size", sc.CacheSize),
	)
	return &Result{Store: store}, nil
}

func openStore(ctx context.Context, opts Options) (storage.Store, error) {
	driver := opts.Config.Storage.Driver
	switch driver {
	case "", coreconfig.StorageMemory:
		return storage.NewMemory(), nil
	case coreconfig.StoragePostgres, coreconfig.StorageSQLite:
	default:
		return nil, fmt.Errorf("bootstrap: %w: %q", storage.ErrUnknownDriver, driver)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, driver, opts.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, driver, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	return storage.NewSQL(db), nil
}
