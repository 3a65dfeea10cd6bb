package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/callbacks"
	"github.com/m3rciful/menubot/core/telegram/dispatch"
)

const keepFor = 10 * time.Second

// recentUpdates remembers update ids for a short while so redelivered
// updates are logged once.
type recentUpdates struct {
	mu   sync.Mutex
	seen map[int]time.Time
}

func (r *recentUpdates) alreadyLogged(updateID int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ts := range r.seen {
		if now.Sub(ts) > keepFor {
			delete(r.seen, id)
		}
	}
	if _, ok := r.seen[updateID]; ok {
		return true
	}
	r.seen[updateID] = now
	return false
}

// Logging attaches a request id, update metadata and a scoped logger to ctx
// and logs a sampled receipt line per update. An rid already on ctx is kept.
func Logging() dispatch.Middleware {
	recent := &recentUpdates{seen: make(map[int]time.Time)}
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx context.Context, upd tele.Update) error {
			chatID, userID := dispatch.UpdateMeta(upd)
			rid := logger.RIDFrom(ctx)
			if rid == "" {
				rid = logger.BuildRID(upd.ID, chatID, userID)
				ctx = logger.WithRID(ctx, rid)
			}
			ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
			ctx = logger.WithLogger(ctx, logger.Component("tg"))

			if logger.ShouldSampleDebug() && !recent.alreadyLogged(upd.ID, time.Now()) {
				logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received",
					receiptAttrs(upd, rid, chatID, userID)...)
			}
			return next(ctx, upd)
		}
	}
}

func receiptAttrs(upd tele.Update, rid string, chatID, userID int64) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("rid", rid),
		slog.Int("update_id", upd.ID),
		slog.String("kind", dispatch.UpdateKind(upd)),
	}
	if chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	if userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Key(upd.Callback), callbacks.Payload(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := upd.Message.Text; t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}
