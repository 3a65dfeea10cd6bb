package dispatch

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/lifecycle"
)

func (d *Dispatcher) logSummary(ctx context.Context, handler string, req lifecycle.Request, res lifecycle.Result, err error, took time.Duration) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "fail"
	case res.SendErr != nil:
		outcome = "send_failed"
	case len(res.Failed) > 0:
		outcome = "partial"
	}
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("handler", handler),
		slog.String("mode", string(req.Mode)),
		slog.String("outcome", outcome),
		slog.Int("deleted", len(res.Deleted)),
		slog.Int("tracked", len(res.Tracked)),
		slog.Int64("duration_ms", logger.RoundMS(took).Milliseconds()),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, d.log, level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	if c, ok := err.(coder); ok {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
