package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/dispatch"
)

// RateLimitOptions configures the rate limit middleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds ("callback", "message") that bypass the limit.
	Exclude map[string]struct{}
	// OnLimited runs for dropped updates, e.g. to acknowledge a callback.
	OnLimited dispatch.HandlerFunc
	Now       func() time.Time
}

// RateLimit drops updates arriving within Interval of the previous accepted
// update from the same chat.
func RateLimit(opts RateLimitOptions) dispatch.Middleware {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var (
		mu       sync.Mutex
		lastSeen = make(map[int64]time.Time)
	)
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx context.Context, upd tele.Update) error {
			chatID, userID := dispatch.UpdateMeta(upd)
			if chatID == 0 || opts.Interval <= 0 {
				return next(ctx, upd)
			}
			if _, skip := opts.Exclude[dispatch.UpdateKind(upd)]; skip {
				return next(ctx, upd)
			}

			now := opts.Now()
			mu.Lock()
			if last, ok := lastSeen[chatID]; ok && now.Sub(last) < opts.Interval {
				mu.Unlock()
				logger.LogEvent(ctx, logger.Component("tg"), slog.LevelWarn, "tg.rate_limit",
					slog.Int64("chat_id", chatID),
					slog.Int64("user_id", userID),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(ctx, upd)
				}
				return nil
			}
			lastSeen[chatID] = now
			if len(lastSeen) > 4096 {
				for id, ts := range lastSeen {
					if now.Sub(ts) >= opts.Interval {
						delete(lastSeen, id)
					}
				}
			}
			mu.Unlock()
			return next(ctx, upd)
		}
	}
}

// ExcludeSet converts configured update kinds to a lookup set.
func ExcludeSet(kinds []string) map[string]struct{} {
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}
