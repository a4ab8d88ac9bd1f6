// Package console runs a bot against a line-oriented terminal session.
// Every line is one message from a single local user in a conversation
// that lives as long as the process.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/citybot/core/logger"
	"github.com/m3rciful/citybot/core/session"
)

// Channel is the session channel name of console conversations.
const Channel = "console"

const (
	cmdHelp  = "/help"
	cmdReset = "/reset"
	cmdQuit  = "/quit"
)

// Bot is what the console needs from the application.
type Bot interface {
	HandleMessage(ctx context.Context, msg session.Message, r session.Replier) error
	Help(ctx context.Context, addr session.Address, r session.Replier) error
	Reset(ctx context.Context, addr session.Address, r session.Replier) error
}

// Options controls Run. Zero values select stdin-like defaults.
type Options struct {
	UserID         string
	ConversationID string
	Prompt         string
	ReplyPrefix    string
}

// Run reads lines from in until EOF, "/quit" or ctx cancellation and writes
// the bot replies to out.
func Run(ctx context.Context, bot Bot, in io.Reader, out io.Writer, opts Options) error {
	if bot == nil {
		return errors.New("console: nil bot")
	}
	if opts.UserID == "" {
		opts.UserID = "local"
	}
	if opts.ConversationID == "" {
		opts.ConversationID = uuid.NewString()
	}
	if opts.ReplyPrefix == "" {
		opts.ReplyPrefix = "bot> "
	}

	addr := session.Address{Channel: Channel, UserID: opts.UserID, ConversationID: opts.ConversationID}
	log := logger.Component("console")
	w := &writer{out: out}
	replier := session.ReplierFunc(func(_ context.Context, text string) error {
		return w.line(opts.ReplyPrefix + text)
	})

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	log.LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "console.start"),
		slog.String("conversation_id", addr.ConversationID),
	)

	var turns int
	for {
		if err := w.prompt(opts.Prompt); err != nil {
			return err
		}
		var text string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case text, ok = <-lines:
		}
		if !ok {
			err := <-readErr
			log.LogAttrs(ctx, slog.LevelInfo, "",
				slog.String("event", "console.stop"),
				slog.String("cause", "eof"),
				slog.Int("count", turns),
			)
			if err != nil {
				return fmt.Errorf("console: read: %w", err)
			}
			return nil
		}
		turns++

		turnCtx := logger.WithRID(ctx, uuid.NewString())
		turnCtx = logger.WithAddress(turnCtx, addr.Channel, addr.UserID, addr.ConversationID)
		start := time.Now()

		var handler string
		var err error
		switch cmd := strings.ToLower(strings.TrimSpace(text)); cmd {
		case cmdQuit:
			log.LogAttrs(turnCtx, slog.LevelInfo, "",
				slog.String("event", "console.stop"),
				slog.String("cause", "quit"),
				slog.Int("count", turns-1),
			)
			return nil
		case cmdHelp:
			handler = "help"
			err = bot.Help(turnCtx, addr, replier)
		case cmdReset:
			handler = "reset"
			err = bot.Reset(turnCtx, addr, replier)
		default:
			handler = "text"
			err = bot.HandleMessage(turnCtx, session.Message{Address: addr, Text: text}, replier)
		}

		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		}
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.String("err", err.Error()))
		}
		logger.LogEvent(logger.WithHandler(turnCtx, handler), log, level, "console.turn", attrs...)
		if err != nil {
			if werr := w.line(opts.ReplyPrefix + "Something went wrong, please try again."); werr != nil {
				return werr
			}
		}
	}
}

type writer struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *writer) line(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.out, s)
	return err
}

func (w *writer) prompt(p string) error {
	if p == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.out, p)
	return err
}
