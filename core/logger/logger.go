package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/menubot/core/buildinfo"
	coreconfig "github.com/m3rciful/menubot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdowned bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger. It discards output until InitLogger runs.
	L = slog.New(slog.NewTextHandler(io.Discard, nil))

	// TG logs Telegram transport events.
	TG = L
	// TWire logs startup wiring steps.
	TWire = L
	// HTTP logs webhook listener events.
	HTTP = L
	// DB logs database-related events.
	DB = L
	// MIG logs database migration events.
	MIG = L
)

// InitLogger configures the global structured logger. It may be called only once.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		format := selectFormat(cfg)
		order := selectKeyOrder(cfg)
		levelVar.Set(selectLevel(cfg))

		num, den := parseDebugSample(cfg)
		debugSampler.Set(num, den)
		traceOverride = detectTraceFlag()

		outputs, closers, err := buildOutputs(cfg)
		if err != nil {
			initErr = err
			return
		}
		logClosers = closers
		logWriter = newAsyncWriter(outputs, 64*1024)

		handler := newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   format,
			keyOrder: order,
		})

		L = slog.New(handler)
		slog.SetDefault(L)

		wireComponents()
		logStartup(cfg)
	})
	return initErr
}

func wireComponents() {
	TG = L.With("component", "tg")
	TWire = L.With("component", "tg.wire")
	HTTP = L.With("component", "http")
	DB = L.With("component", "db")
	MIG = L.With("component", "db.migrate")
}

func logStartup(cfg *coreconfig.Config) {
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
	}
	if cfg != nil {
		attrs = append(attrs,
			slog.String("cfg_profile", selectProfile(cfg)),
			slog.String("mode", cfg.Telegram.RunMode),
			slog.String("session_backend", cfg.Session.Backend),
		)
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdowned {
		return nil
	}
	shutdowned = true

	var errs []error
	if logWriter != nil {
		if err := logWriter.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := logWriter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range logClosers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func selectFormat(cfg *coreconfig.Config) logFormat {
	if cfg == nil {
		return formatJSON
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if strings.EqualFold(cfg.Logging.Profile, "debug") || strings.EqualFold(cfg.Logging.Profile, "dev") {
		return formatKV
	}
	return formatJSON
}

func selectKeyOrder(cfg *coreconfig.Config) []string {
	if cfg == nil {
		return append([]string(nil), defaultKeyOrder...)
	}
	raw := strings.TrimSpace(cfg.Logging.KeysOrder)
	if raw == "" || raw == "default" {
		return append([]string(nil), defaultKeyOrder...)
	}
	var order []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			order = append(order, trimmed)
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultKeyOrder...)
	}
	return order
}

func selectLevel(cfg *coreconfig.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func selectProfile(cfg *coreconfig.Config) string {
	if profile := strings.TrimSpace(cfg.Logging.Profile); profile != "" {
		return strings.ToLower(profile)
	}
	return "prod"
}

// LogEvent writes a record with the event attribute placed first.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component constructs a logger scoped to the provided component attribute.
func Component(name string) *slog.Logger {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return L
	}
	return L.With("component", trimmed)
}

// Event logs with component scope resolved automatically.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func parseDebugSample(cfg *coreconfig.Config) (int, int) {
	if cfg == nil {
		return 1, 50
	}
	spec := strings.TrimSpace(cfg.Logging.DebugSample)
	if spec == "" {
		return 1, 50
	}
	num, den := parseRatioSpec(spec)
	if num == 0 && den == 0 {
		return 0, 0
	}
	if num <= 0 || den <= 0 {
		return 1, 50
	}
	return num, den
}

func detectTraceFlag() bool {
	return isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether debug-level details should be logged for high-volume events.
func ShouldSampleDebug() bool {
	if traceOverride {
		return true
	}
	return debugSampler.Allow()
}
