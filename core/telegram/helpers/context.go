package helpers

import (
	"context"
	"strconv"

	"github.com/m3rciful/citybot/core/logger"
	"github.com/m3rciful/citybot/core/session"

	tele "gopkg.in/telebot.v4"
)

// Channel is the session channel name of Telegram conversations.
const Channel = "telegram"

const (
	contextKey = "logger_ctx"
	ridKey     = "rid"
)

// StoreContext caches ctx on c so later helpers reuse the same correlation fields.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(contextKey, ctx)
	}
}

// ContextFrom returns the context stored by middleware, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok
}

// SetRID pins the correlation id for the update handled by c.
func SetRID(c tele.Context, rid string) {
	c.Set(ridKey, rid)
}

// RID returns the update's correlation id, building updateID:chatID:userID when none was set.
func RID(c tele.Context) string {
	if rid, _ := c.Get(ridKey).(string); rid != "" {
		return rid
	}
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return logger.BuildRID(c.Update().ID, chatID, userID)
}

// Address maps the update's sender and chat onto a session address.
func Address(c tele.Context) session.Address {
	addr := session.Address{Channel: Channel}
	if user := c.Sender(); user != nil {
		addr.UserID = strconv.FormatInt(user.ID, 10)
	}
	if chat := c.Chat(); chat != nil {
		addr.ConversationID = strconv.FormatInt(chat.ID, 10)
	}
	return addr
}

// BuildContext returns the context cached on c, creating one with the rid,
// update id and session address on first use.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	addr := Address(c)
	ctx := logger.WithRID(context.Background(), RID(c))
	ctx = logger.WithUpdateID(ctx, c.Update().ID)
	ctx = logger.WithAddress(ctx, addr.Channel, addr.UserID, addr.ConversationID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler adds the handler name to the cached context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
