package helpers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/m3rciful/citybot/core/logger"
	"github.com/m3rciful/citybot/core/session"
	"github.com/m3rciful/citybot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// enqueueWait bounds how long a reply waits for room in a full chat queue.
const enqueueWait = 5 * time.Second

// sendAsync queues run on the chat's worker so replies keep their order. A
// full queue is waited on; only a closed dispatcher falls back to a direct send.
func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	var key string
	if chat := c.Chat(); chat != nil {
		key = strconv.FormatInt(chat.ID, 10)
	}
	err := disp.Enqueue(ctx, key, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) {
		waitCtx, cancel := context.WithTimeout(ctx, enqueueWait)
		err = disp.EnqueueWait(waitCtx, key, action, endpoint, run)
		cancel()
	}
	if errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	countMessage(c, sendOpts != nil && sendOpts.ReplyMarkup != nil)
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// Replier adapts the update's chat to a session.Replier. Every reply carries
// markup when it is not nil.
func Replier(c tele.Context, markup *tele.ReplyMarkup) session.Replier {
	return session.ReplierFunc(func(_ context.Context, text string) error {
		if markup != nil {
			return SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
		}
		return SendText(c, text)
	})
}
