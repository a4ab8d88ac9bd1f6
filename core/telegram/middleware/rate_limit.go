package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	coreconfig "github.com/m3rciful/citybot/core/config"
	"github.com/m3rciful/citybot/core/logger"
	tghelpers "github.com/m3rciful/citybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const (
	limiterCacheSize = 10000
	limiterIdleTTL   = 10 * time.Minute
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the sustained minimum spacing between updates of one user.
	Interval time.Duration
	// Burst is how many updates may arrive back to back; 0 means 1.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// userLimiters keeps one token bucket per user; idle users are evicted.
type userLimiters struct {
	mu    sync.Mutex
	every rate.Limit
	burst int
	cache *expirable.LRU[int64, *rate.Limiter]
}

func newUserLimiters(interval time.Duration, burst int) *userLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &userLimiters{
		every: rate.Every(interval),
		burst: burst,
		cache: expirable.NewLRU[int64, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
	}
}

func (l *userLimiters) allow(userID int64) bool {
	l.mu.Lock()
	lim, ok := l.cache.Get(userID)
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.cache.Add(userID, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

// updateKind classifies an update for rate limit exclusions.
func updateKind(c tele.Context) string {
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		if strings.HasPrefix(upd.Message.Text, "/") {
			return coreconfig.UpdateCommand
		}
		return coreconfig.UpdateMessage
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that throttles updates per user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limiters := newUserLimiters(opts.Interval, opts.Burst)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c)]; skip {
				return next(c)
			}
			if limiters.allow(user.ID) {
				return next(c)
			}

			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("status", "rate_limited"),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
