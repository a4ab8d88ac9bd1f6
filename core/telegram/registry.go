package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/citybot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
}

// Registry holds bot commands and the handler for plain text.
type Registry struct {
	commands     map[string]Command
	aliases      map[string]string
	textFallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command), aliases: make(map[string]string)}
}

// RegisterCommand adds a new command. Invalid and duplicate registrations are logged and skipped.
// Aliases are accepted with or without the leading slash.
func (r *Registry) RegisterCommand(name string, cmd Command) {
	switch {
	case r == nil || name == "" || cmd.Handler == nil || cmd.Description == "":
		skipCommand(name, "invalid")
		return
	case name[0] != '/':
		skipCommand(name, "no_slash_prefix")
		return
	}
	if _, exists := r.commands[name]; exists {
		skipCommand(name, "duplicate")
		return
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		alias = "/" + strings.TrimPrefix(alias, "/")
		if _, taken := r.commands[alias]; taken {
			skipCommand(alias, "alias_shadows_command")
			continue
		}
		r.aliases[alias] = name
	}
}

func skipCommand(name, cause string) {
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, "register.command.skip",
		slog.String("cause", cause),
		slog.String("payload", name),
	)
}

// ListCommands returns the commands sorted by name, optionally without hidden ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for cmd, meta := range r.commands {
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(cmd, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand finds a command by name or alias. A "@botname" suffix is ignored.
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	name, _, _ = strings.Cut(strings.TrimSpace(name), " ")
	name, _, _ = strings.Cut(name, "@")
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if _, direct := r.commands[name]; !direct {
		if target, ok := r.aliases[name]; ok {
			name = target
		}
	}
	cmd, ok := r.commands[name]
	if !ok {
		return "", Command{}, false
	}
	return name, cmd, true
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]Command {
	return r.commands
}

// SetTextFallback sets the handler for text that is not a command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// InitBotCommands publishes the visible commands as the Telegram command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	commands := reg.ListCommands(true)
	if len(commands) == 0 {
		return
	}
	ctx := context.Background()
	if err := bot.SetCommands(commands); err != nil {
		logger.LogEvent(ctx, logger.TWire, slog.LevelError, "register.commands",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	logger.LogEvent(ctx, logger.TWire, slog.LevelInfo, "register.commands",
		slog.String("status", "ok"),
		slog.Int("count", len(commands)),
	)
}
