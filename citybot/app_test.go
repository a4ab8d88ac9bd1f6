package citybot

import (
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/citybot/core/config"
	"github.com/m3rciful/citybot/core/storage"

	tele "gopkg.in/telebot.v4"
)

func TestAppTelegramRunOptions(t *testing.T) {
	cfg := &Config{Config: coreconfig.Config{
		Telegram:  coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll, Token: "t"},
		RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500, Burst: 2},
	}}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	app := NewApp(cfg, storage.NewMemory())
	defer app.Close()

	opts, err := app.TelegramRunOptions()
	if err != nil {
		t.Fatalf("TelegramRunOptions: %v", err)
	}
	if opts.Config != cfg.CoreConfig() {
		t.Fatal("run options should carry the core config")
	}

	cmds := opts.Registry.ListCommands(true)
	if len(cmds) != 3 {
		t.Fatalf("commands = %+v", cmds)
	}
	if opts.Registry.TextFallback() == nil {
		t.Fatal("text fallback not registered")
	}

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/start", "/help", "/reset", tele.OnText, tele.OnPhoto} {
		if !endpoints[want] {
			t.Fatalf("missing route %v", want)
		}
	}

	names := map[string]bool{}
	for _, mw := range opts.Middlewares {
		names[mw.Name] = true
	}
	for _, want := range []string{"recover", "rate_limit", "logger", "metrics"} {
		if !names[want] {
			t.Fatalf("missing middleware %s", want)
		}
	}
}

func TestAppBotSharesStore(t *testing.T) {
	cfg := &Config{Bot: BotConfig{DefaultCity: "Oslo", SearchURL: DefaultSearchURL}}
	store := storage.NewMemory()
	app := NewApp(cfg, store)

	h := &harness{t: t, store: store, bot: app.Bot()}
	got := h.say(alice, "hi")
	if len(got) == 0 || !strings.Contains(got[0], "Oslo") {
		t.Fatalf("replies = %q", got)
	}
	if v, ok := h.get(alice.ConversationRef(), KeyCity); !ok || v != "Oslo" {
		t.Fatalf("city = %v, %v", v, ok)
	}
}
