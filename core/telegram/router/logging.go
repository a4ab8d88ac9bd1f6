package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/citybot/core/logger"
	tghelpers "github.com/m3rciful/citybot/core/telegram/helpers"
	"github.com/m3rciful/citybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// run executes fn under the handler name and logs one summary line for the update.
func run(c tele.Context, handler string, fn func() error) error {
	start := time.Now()
	tghelpers.WithHandler(c, handler)
	err := fn()
	summarize(c, handler, start, logger.Status(err), err)
	return err
}

// summarize writes the handler.handled line: what ran, how it ended and how
// many replies it queued.
func summarize(c tele.Context, handler string, start time.Time, status string, err error) {
	ctx := tghelpers.WithHandler(c, handler)
	msgs, kb := middleware.GetCounters(c)

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
			slog.String("cause", handler),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}

// handlerName turns a command or endpoint into a log-friendly name.
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers an explicit Code() from any error in the chain and falls
// back to the type name of the innermost error.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(err) {
		err = inner
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
