package middleware

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/citybot/core/config"
	"github.com/m3rciful/citybot/core/logger"
	tghelpers "github.com/m3rciful/citybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func newTestContext(t *testing.T, updateID int, userID int64, text string) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	return bot.NewContext(tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		},
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Burst:     2,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	for i := 0; i < 4; i++ {
		if err := h(newTestContext(t, i, 42, "hello")); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if handled != 2 || limited != 2 {
		t.Fatalf("handled=%d limited=%d, want 2/2", handled, limited)
	}

	// Another user has its own bucket.
	if err := h(newTestContext(t, 10, 7, "hello")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if handled != 3 {
		t.Fatalf("handled = %d, want 3", handled)
	}
}

func TestUserLimitersConcurrentFirstUpdates(t *testing.T) {
	l := newUserLimiters(time.Hour, 1)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.allow(42) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := allowed.Load(); n != 1 {
		t.Fatalf("allowed = %d, want 1", n)
	}
}

func TestRateLimitExclusions(t *testing.T) {
	var handled int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{coreconfig.UpdateCommand: {}},
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	for i := 0; i < 3; i++ {
		_ = h(newTestContext(t, i, 1, "/help"))
	}
	_ = h(newTestContext(t, 3, 1, "coffee"))
	_ = h(newTestContext(t, 4, 1, "coffee"))
	if handled != 4 {
		t.Fatalf("handled = %d, want 4", handled)
	}
}

func TestAlreadyLogged(t *testing.T) {
	if alreadyLogged(-1) {
		t.Fatal("first sighting reported as logged")
	}
	if !alreadyLogged(-1) {
		t.Fatal("second sighting not deduplicated")
	}
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(newTestContext(t, 1, 1, "x")); err == nil {
		t.Fatal("expected error from recovered panic")
	}

	want := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return want })
	if err := h(newTestContext(t, 2, 1, "x")); !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := newTestContext(t, 5, 99, "hi")
	h := LoggerMiddleware(MessageMetricsMiddleware(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		if !ok {
			t.Fatal("context not stored")
		}
		if rid := logger.RIDFrom(ctx); rid != "5:99:99" {
			t.Fatalf("rid = %q", rid)
		}
		if conv := logger.ConversationIDFrom(ctx); conv != "99" {
			t.Fatalf("conversation_id = %q", conv)
		}
		if msgs, kb := GetCounters(c); msgs != 0 || kb {
			t.Fatalf("counters = %d/%v", msgs, kb)
		}
		return nil
	}))
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
}
