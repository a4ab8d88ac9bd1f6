package citybot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/citybot/core/logger"
	"github.com/m3rciful/citybot/core/session"
)

type action func(b *Bot, ctx context.Context, t *session.Turn, sel Selection) error

var actions = map[Dialog]action{
	DialogGreet:               (*Bot).greet,
	DialogReset:               (*Bot).reset,
	DialogPrintCurrentCity:    (*Bot).printCurrentCity,
	DialogChangeCurrentCity:   (*Bot).changeCurrentCity,
	DialogChangeMyCurrentCity: (*Bot).changeMyCurrentCity,
	DialogSearch:              (*Bot).search,
}

func (b *Bot) run(ctx context.Context, t *session.Turn, sel Selection) error {
	act, ok := actions[sel.Dialog]
	if !ok {
		return fmt.Errorf("citybot: no action for dialog %q", sel.Dialog)
	}
	ctx = logger.WithDialog(ctx, string(sel.Dialog))
	start := time.Now()

	if sel.WelcomeBack {
		if err := b.welcomeBack(ctx, t); err != nil {
			return err
		}
	}
	err := act(b, ctx, t, sel)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "fail"
	case t.ActiveDialog() != "":
		outcome = "suspended"
	}
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("outcome", outcome),
		slog.Int("messages", len(t.Replies())),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.LogEvent(ctx, b.log, slog.LevelDebug, "dialog.run", attrs...)
	return err
}

// greet asks for the user's name and stays suspended until a non-blank answer arrives.
func (b *Bot) greet(ctx context.Context, t *session.Turn, _ Selection) error {
	if t.ActiveDialog() != string(DialogGreet) {
		t.BeginDialog(string(DialogGreet))
		return t.End(ctx, msgGreetPrompt)
	}
	name := t.Text()
	if name == "" {
		return t.End(ctx, msgGreetPrompt)
	}
	scopes := t.Scopes()
	scopes.User.Set(KeyUserName, name)
	scopes.Private.Set(KeyUserWelcomed, true)
	t.EndDialog()
	return t.End(ctx, fmt.Sprintf(msgGreetDone, name, HelpMessage))
}

func (b *Bot) welcomeBack(ctx context.Context, t *session.Turn) error {
	scopes := t.Scopes()
	name, _ := scopes.User.String(KeyUserName)
	scopes.Private.Set(KeyUserWelcomed, true)
	return t.Send(ctx, fmt.Sprintf(msgWelcomeBack, name, HelpMessage))
}

func (b *Bot) search(ctx context.Context, t *session.Turn, _ Selection) error {
	scopes := t.Scopes()
	city := effectiveCity(scopes)
	name, _ := scopes.User.String(KeyUserName)
	query := t.Text()

	if err := t.Send(ctx, fmt.Sprintf(msgSearching, name, query, city)); err != nil {
		return err
	}
	return t.End(ctx, SearchURL(b.searchURL, query, city))
}

func (b *Bot) reset(ctx context.Context, t *session.Turn, _ Selection) error {
	scopes := t.Scopes()
	scopes.User.Delete(KeyUserName)
	scopes.Conversation.Delete(KeyCity)
	scopes.Private.Delete(KeyCity)
	scopes.Private.Delete(KeyUserWelcomed)
	t.EndDialog()
	return t.End(ctx, msgReset)
}

func (b *Bot) printCurrentCity(ctx context.Context, t *session.Turn, _ Selection) error {
	scopes := t.Scopes()
	name, _ := scopes.User.String(KeyUserName)
	defaultCity, _ := scopes.Conversation.String(KeyCity)
	if userCity, ok := scopes.Private.String(KeyCity); ok && userCity != "" {
		return t.End(ctx, fmt.Sprintf(msgCityOverridden, name, userCity, defaultCity))
	}
	return t.End(ctx, fmt.Sprintf(msgCurrentCity, name, defaultCity))
}

func (b *Bot) changeCurrentCity(ctx context.Context, t *session.Turn, sel Selection) error {
	name, _ := t.Scopes().User.String(KeyUserName)
	if sel.City == "" {
		return t.End(ctx, fmt.Sprintf(msgCityMissing, name, "change city to"))
	}
	t.Scopes().Conversation.Set(KeyCity, sel.City)
	return t.End(ctx, fmt.Sprintf(msgCityChanged, name, sel.City))
}

func (b *Bot) changeMyCurrentCity(ctx context.Context, t *session.Turn, sel Selection) error {
	name, _ := t.Scopes().User.String(KeyUserName)
	if sel.City == "" {
		return t.End(ctx, fmt.Sprintf(msgCityMissing, name, "change my city to"))
	}
	t.Scopes().Private.Set(KeyCity, sel.City)
	return t.End(ctx, fmt.Sprintf(msgMyCityChanged, name, sel.City))
}

// effectiveCity prefers the user's override over the conversation city.
func effectiveCity(s session.Scopes) string {
	if city, ok := s.Private.String(KeyCity); ok && city != "" {
		return city
	}
	city, _ := s.Conversation.String(KeyCity)
	return city
}
