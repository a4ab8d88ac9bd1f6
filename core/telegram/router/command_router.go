package router

import (
	"log/slog"

	"github.com/m3rciful/citybot/core/logger"
	tg "github.com/m3rciful/citybot/core/telegram"
	"github.com/m3rciful/citybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes binds every registered command to its endpoint, wrapped with
// panic recovery and the handler summary.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for endpoint, cmd := range cmds {
		name, h := handlerName(endpoint), cmd.Handler
		routes = append(routes, tg.Route{
			Endpoint: endpoint,
			Handler: middleware.RecoverMiddleware(func(c tele.Context) error {
				return run(c, name, func() error { return h(c) })
			}),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "routes.commands"),
		slog.Int("count", len(routes)),
	)
	return routes
}
