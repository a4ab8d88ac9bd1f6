package citybot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/citybot/core/logger"
	"github.com/m3rciful/citybot/core/session"
)

// Defaults for Options.
const (
	DefaultCity      = "Seattle"
	DefaultSearchURL = "https://www.bing.com/search"
)

// Options configures a Bot.
type Options struct {
	DefaultCity string
	SearchURL   string
}

// Bot answers messages for every transport. It keeps no state of its own;
// everything lives in the session scopes.
type Bot struct {
	sessions    *session.Manager
	defaultCity string
	searchURL   string
	log         *slog.Logger
}

// New constructs a Bot that runs its turns through sessions.
func New(sessions *session.Manager, opts Options) *Bot {
	if strings.TrimSpace(opts.DefaultCity) == "" {
		opts.DefaultCity = DefaultCity
	}
	if strings.TrimSpace(opts.SearchURL) == "" {
		opts.SearchURL = DefaultSearchURL
	}
	return &Bot{
		sessions:    sessions,
		defaultCity: opts.DefaultCity,
		searchURL:   opts.SearchURL,
		log:         logger.Component("dialog"),
	}
}

// HandleMessage routes a text message and runs the selected dialog.
func (b *Bot) HandleMessage(ctx context.Context, msg session.Message, r session.Replier) error {
	return b.sessions.Process(ctx, msg, r, b.handleTurn)
}

// Start greets users without a name and shows the help text to everyone else.
func (b *Bot) Start(ctx context.Context, addr session.Address, r session.Replier) error {
	return b.sessions.Process(ctx, session.Message{Address: addr}, r, func(ctx context.Context, t *session.Turn) error {
		if err := b.ensureCity(ctx, t); err != nil {
			return err
		}
		if !t.Scopes().User.Has(KeyUserName) {
			return b.run(ctx, t, Selection{Dialog: DialogGreet})
		}
		return t.End(ctx, HelpMessage)
	})
}

// Help replies with the help text.
func (b *Bot) Help(ctx context.Context, addr session.Address, r session.Replier) error {
	return b.sessions.Process(ctx, session.Message{Address: addr}, r, func(ctx context.Context, t *session.Turn) error {
		if err := b.ensureCity(ctx, t); err != nil {
			return err
		}
		return t.End(ctx, HelpMessage)
	})
}

// Reset forgets everything the bot knows about the user and the conversation.
func (b *Bot) Reset(ctx context.Context, addr session.Address, r session.Replier) error {
	return b.sessions.Process(ctx, session.Message{Address: addr}, r, func(ctx context.Context, t *session.Turn) error {
		return b.run(ctx, t, Selection{Dialog: DialogReset})
	})
}

func (b *Bot) handleTurn(ctx context.Context, t *session.Turn) error {
	if err := b.ensureCity(ctx, t); err != nil {
		return err
	}
	scopes := t.Scopes()
	hasName := scopes.User.Has(KeyUserName)

	if t.ActiveDialog() == string(DialogGreet) {
		if !hasName {
			return b.run(ctx, t, Selection{Dialog: DialogGreet})
		}
		// The name was set from another conversation meanwhile.
		t.EndDialog()
	}

	welcomed, _ := scopes.Private.Bool(KeyUserWelcomed)
	sel := Route(Input{HasUserName: hasName, Welcomed: welcomed, Text: t.RawText()})
	return b.run(ctx, t, sel)
}

// ensureCity gives the conversation its default city on its first turn.
func (b *Bot) ensureCity(ctx context.Context, t *session.Turn) error {
	conv := t.Scopes().Conversation
	if city, ok := conv.String(KeyCity); ok && city != "" {
		return nil
	}
	conv.Set(KeyCity, b.defaultCity)
	logger.LogEvent(ctx, b.log, slog.LevelDebug, "city.init", slog.String("city", b.defaultCity))
	return t.Send(ctx, fmt.Sprintf(msgCityInitialized, b.defaultCity))
}
