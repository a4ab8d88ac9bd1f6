package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/citybot/core/telegram"
	"github.com/m3rciful/citybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for updates nobody handles.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

var mediaEndpoints = []string{tele.OnDocument, tele.OnPhoto, tele.OnSticker, tele.OnVoice}

// TextRoutes builds the handlers for plain text and for media the bot cannot read.
// Text starting with "/" is looked up as a command, which covers aliases and
// "/cmd@bot" forms; everything else goes to the registry's text fallback.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		if reg != nil && strings.HasPrefix(c.Text(), "/") {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return run(c, handlerName(key), func() error { return cmd.Handler(c) })
			}
		}
		if reg != nil && reg.TextFallback() != nil {
			return run(c, "text", func() error { return reg.TextFallback()(c) })
		}
		return fallback(c, "unknown_text", opts.UnknownText)
	}
	media := func(c tele.Context) error {
		return fallback(c, "unexpected_media", opts.UnknownMedia)
	}

	routes := []tg.Route{{Endpoint: tele.OnText, Handler: middleware.RecoverMiddleware(text)}}
	for _, endpoint := range mediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: middleware.RecoverMiddleware(media)})
	}
	return routes
}

func fallback(c tele.Context, name string, h tele.HandlerFunc) error {
	if h == nil {
		summarize(c, name, time.Now(), "skip", nil)
		return nil
	}
	return run(c, name, func() error { return h(c) })
}
