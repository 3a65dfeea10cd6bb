package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseData splits callback data into key and payload.
// It accepts plain "key" data as well as telebot's "\f<unique>|<payload>" encoding.
func ParseData(raw string) (string, string) {
	raw = strings.TrimPrefix(raw, "\f")
	key, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(key), payload
}

// Key returns the routing key of a callback query.
func Key(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseData(cb.Data)
	return k
}

// Payload returns the part of the callback data after '|'.
func Payload(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	_, p := ParseData(cb.Data)
	return p
}
