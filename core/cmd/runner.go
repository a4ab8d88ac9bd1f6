package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/citybot/core/config"
	"github.com/m3rciful/citybot/core/logger"
	coretelegram "github.com/m3rciful/citybot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// App is what the runner needs from a bot application.
type App interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
	RunConsole(ctx context.Context) error
	Close() error
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (App, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run loads configuration, bootstraps the app, and runs it in the configured
// mode until SIGINT or SIGTERM.
func Run(opts Options) error {
	if opts.LoadConfig == nil {
		return fmt.Errorf("cmd: LoadConfig is required")
	}
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}
	path, err := configPath(opts)
	if err != nil {
		return err
	}

	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	core := cfg.CoreConfig()
	if core == nil {
		return fmt.Errorf("cmd: loaded config is missing core configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	defer closeApp(ctx, app)

	mode := core.Telegram.RunMode
	if mode == coreconfig.RunModeConsole {
		logReady(ctx, mode, startedAt)
		return app.RunConsole(ctx)
	}

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	runOpts.OnStart = chainStart(runOpts.OnStart, func(ctx context.Context) { logReady(ctx, mode, startedAt) })
	runOpts.OnStop = chainStop(runOpts.OnStop, func(ctx context.Context) {
		logger.LogEvent(ctx, appLog(), slog.LevelInfo, "shutdown")
	})

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

func configPath(opts Options) (string, error) {
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if opts.DefaultConfigPath != "" {
		return opts.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

func appLog() *slog.Logger { return logger.Component("app") }

func logReady(ctx context.Context, mode string, startedAt time.Time) {
	logger.LogEvent(ctx, appLog(), slog.LevelInfo, "ready",
		slog.String("mode", mode),
		slog.Duration("startup_duration", logger.Took(startedAt)),
	)
}

func closeApp(ctx context.Context, app App) {
	if err := app.Close(); err != nil {
		logger.LogEvent(ctx, appLog(), slog.LevelError, "shutdown",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

// chainStart runs the app's own hook first; after runs only if it succeeded.
func chainStart(hook func(context.Context, coretelegram.Runtime) error, after func(context.Context)) func(context.Context, coretelegram.Runtime) error {
	return func(ctx context.Context, rt coretelegram.Runtime) error {
		if hook != nil {
			if err := hook(ctx, rt); err != nil {
				return err
			}
		}
		after(ctx)
		return nil
	}
}

// chainStop runs before ahead of the app's own hook.
func chainStop(hook func(context.Context, coretelegram.Runtime) error, before func(context.Context)) func(context.Context, coretelegram.Runtime) error {
	return func(ctx context.Context, rt coretelegram.Runtime) error {
		before(ctx)
		if hook != nil {
			return hook(ctx, rt)
		}
		return nil
	}
}
