package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/dispatch"
)

// Recover turns a handler panic into an error so one bad update cannot stop the process.
func Recover(next dispatch.HandlerFunc) dispatch.HandlerFunc {
	return func(ctx context.Context, upd tele.Update) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogEvent(ctx, logger.Component("tg"), slog.LevelError, "tg.panic",
					slog.String("status", "fail"),
					slog.Int("update_id", upd.ID),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return next(ctx, upd)
	}
}
