package citybot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/m3rciful/citybot/core/bootstrap"
	"github.com/m3rciful/citybot/core/console"
	"github.com/m3rciful/citybot/core/logger"
	"github.com/m3rciful/citybot/core/session"
	"github.com/m3rciful/citybot/core/storage"
	coretelegram "github.com/m3rciful/citybot/core/telegram"
	tghelpers "github.com/m3rciful/citybot/core/telegram/helpers"
	"github.com/m3rciful/citybot/core/telegram/keyboard"
	"github.com/m3rciful/citybot/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

const (
	msgRateLimited = "Easy there, one message at a time please."
	msgTextOnly    = "I can only read text messages."
)

// App wires the bot to its store and transports.
type App struct {
	cfg   *Config
	store storage.Store
	bot   *Bot
}

// NewApp builds an App around an already opened store.
func NewApp(cfg *Config, store storage.Store) *App {
	return &App{
		cfg:   cfg,
		store: store,
		bot:   New(session.NewManager(store), cfg.Options()),
	}
}

// Bootstrap initializes logging and storage from cfg and returns the App.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("citybot: nil config")
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	app := NewApp(cfg, res.Store)
	app.logTriggers(ctx)
	return app, nil
}

// Bot returns the dialog engine.
func (a *App) Bot() *Bot { return a.bot }

// Close releases the store.
func (a *App) Close() error { return a.store.Close() }

// RunConsole talks to the bot over stdin and stdout.
func (a *App) RunConsole(ctx context.Context) error {
	return console.Run(ctx, a.bot, os.Stdin, os.Stdout, console.Options{Prompt: "> "})
}

// TelegramRunOptions builds the Telegram runtime configuration.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := a.Registry()
	routes := router.CommandRoutes(reg)
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{
		UnknownMedia: func(c tele.Context) error {
			return tghelpers.SendText(c, msgTextOnly)
		},
	})...)

	onLimited := func(c tele.Context) error {
		return tghelpers.SendText(c, msgRateLimited)
	}

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), onLimited),
		Routes:      routes,
	}, nil
}

// Registry registers the bot commands and the plain text handler.
func (a *App) Registry() *coretelegram.Registry {
	reg := coretelegram.NewRegistry()
	menu := keyboard.ReplyButtons([]string{"current city"})

	reg.RegisterCommand("/start", coretelegram.Command{
		Description: "Start talking to the bot",
		Handler: func(c tele.Context) error {
			return a.bot.Start(tghelpers.BuildContext(c), tghelpers.Address(c), tghelpers.Replier(c, menu))
		},
	})
	reg.RegisterCommand("/help", coretelegram.Command{
		Description: "Show what the bot understands",
		Handler: func(c tele.Context) error {
			return a.bot.Help(tghelpers.BuildContext(c), tghelpers.Address(c), tghelpers.Replier(c, menu))
		},
	})
	reg.RegisterCommand("/reset", coretelegram.Command{
		Description: "Forget your name and cities",
		Handler: func(c tele.Context) error {
			return a.bot.Reset(tghelpers.BuildContext(c), tghelpers.Address(c), tghelpers.Replier(c, keyboard.RemoveKeyboard()))
		},
	})
	reg.SetTextFallback(func(c tele.Context) error {
		msg := session.Message{Address: tghelpers.Address(c), Text: c.Text()}
		return a.bot.HandleMessage(tghelpers.BuildContext(c), msg, tghelpers.Replier(c, nil))
	})
	return reg
}

func (a *App) logTriggers(ctx context.Context) {
	names := make([]string, 0, len(Triggers()))
	for _, tr := range Triggers() {
		names = append(names, string(tr.Dialog))
	}
	summary, _ := logger.SummarizeStrings(names, 8)
	logger.Component("dialog").LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "router.ready"),
		slog.Int("count", len(names)),
		slog.String("trigger", summary),
		slog.String("city", a.cfg.Bot.DefaultCity),
		slog.String("payload", strings.TrimSpace(a.cfg.Bot.SearchURL)),
	)
}
