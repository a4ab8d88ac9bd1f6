package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// contextKey is a private type to avoid collisions in context.
type contextKey string

const (
	ctxRID          contextKey = "rid"
	ctxUpdateID     contextKey = "update_id"
	ctxChannel      contextKey = "channel"
	ctxUserID       contextKey = "user_id"
	ctxConversation contextKey = "conversation_id"
	ctxLogger       contextKey = "logger"
	ctxHandler      contextKey = "handler"
	ctxDialog       contextKey = "dialog"
)

// WithLogger stores the provided slog.Logger in context for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, log)
}

// FromContext extracts slog.Logger from context or returns global default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if l, ok := ctx.Value(ctxLogger).(*slog.Logger); ok {
		return l
	}
	return L
}

// WithRID attaches request correlation id into context.
func WithRID(ctx context.Context, rid string) context.Context {
	return withString(ctx, ctxRID, rid)
}

// RIDFrom extracts rid from context if present.
func RIDFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxRID)
}

// WithUpdateID attaches the transport update identifier to context.
func WithUpdateID(ctx context.Context, updateID int) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if updateID == 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxUpdateID, updateID)
}

// UpdateIDFrom extracts update identifier from context.
func UpdateIDFrom(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	id, _ := ctx.Value(ctxUpdateID).(int)
	return id
}

// WithAddress attaches the channel, user and conversation identities of a turn.
func WithAddress(ctx context.Context, channel, userID, conversationID string) context.Context {
	ctx = withString(ctx, ctxChannel, channel)
	ctx = withString(ctx, ctxUserID, userID)
	return withString(ctx, ctxConversation, conversationID)
}

// ChannelFrom returns the transport channel name stored in context.
func ChannelFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxChannel)
}

// UserIDFrom extracts the user identity from context.
func UserIDFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxUserID)
}

// ConversationIDFrom extracts the conversation identity from context.
func ConversationIDFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxConversation)
}

// WithHandler stores handler identifier in context for downstream logs.
func WithHandler(ctx context.Context, handler string) context.Context {
	return withString(ctx, ctxHandler, handler)
}

// HandlerFrom returns handler identifier from context if present.
func HandlerFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxHandler)
}

// WithDialog stores the dialog selected for the current turn.
func WithDialog(ctx context.Context, dialog string) context.Context {
	return withString(ctx, ctxDialog, dialog)
}

// DialogFrom returns the dialog selected for the current turn.
func DialogFrom(ctx context.Context) string {
	return stringFrom(ctx, ctxDialog)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

// Sanitize drops control and format runes from s, keeping tabs and newlines.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r)) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit applies Sanitize and keeps at most max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	s = Sanitize(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// BuildRID returns a correlation identifier in the format updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a numeric updateID:chatID:userID rid as dot-separated
// base36 segments. Anything else is returned trimmed but otherwise unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
