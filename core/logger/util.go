package logger

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Status maps error to a unified status string for logs.
func Status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// Took returns rounded duration since start for compact logging.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds duration to the nearest millisecond for consistent logging.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// RedactError renders err with Bot API tokens masked.
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

// SummarizeIDs renders message ids as a short preview for logs.
func SummarizeIDs(ids []int, limit int) (string, bool) {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, strconv.Itoa(id))
	}
	return SummarizeStrings(values, limit)
}

// SummarizeStrings joins up to limit elements and reports whether truncation happened.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}
