package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

// Gateway call outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeAPIRejected    = "api_rejected"
	OutcomeTransportError = "transport_error"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedStatus = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"skip":         "skip",
	"rate_limited": "rate_limited",
	"forbidden":    "forbidden",
	"cancelled":    "cancelled",
}

var allowedOutcome = map[string]string{
	OutcomeOK:             OutcomeOK,
	"fail":                "fail",
	OutcomeAPIRejected:    OutcomeAPIRejected,
	OutcomeTransportError: OutcomeTransportError,
	"rate_limited":        "rate_limited",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "", false
	}
	if mapped, ok := allowedStatus[status]; ok {
		return mapped, true
	}
	return status, false
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	if outcome == "" {
		return "", false
	}
	val, ok := allowedOutcome[outcome]
	return val, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"mode",
	"menu",
	"seq",
	"method",
	"outcome",
	"message_id",
	"duration_ms",
	"elapsed_ms",
	"tracked",
	"evicted",
	"deleted",
	"delete_failed",
	"payload",
	"cb_key",
	"http_method",
	"path",
	"http_code",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"err",
	"err_kind",
	"err_code",
	"cause",
	"attempts",
}
