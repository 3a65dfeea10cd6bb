// Package netutil classifies Bot API call failures for logging.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/logger"
)

// ErrCallTimeout marks a call abandoned after its bounded wait.
var ErrCallTimeout = errors.New("telegram: call timed out")

// Outcome maps err to ok, api_rejected or transport_error.
// A response carrying an error code is an API rejection; everything else is transport.
func Outcome(err error) string {
	switch {
	case err == nil:
		return logger.OutcomeOK
	case HTTPStatus(err) > 0:
		return logger.OutcomeAPIRejected
	default:
		return logger.OutcomeTransportError
	}
}

// Kind returns a short failure kind: timeout, dns, dial, tls, http_4xx, http_5xx or unknown.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCallTimeout) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return "dial"
		}
		if opErr.Op == "read" || opErr.Op == "write" {
			if kind := Kind(opErr.Err); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		if kind := Kind(urlErr.Err); kind != "" && kind != "unknown" {
			return kind
		}
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	status := HTTPStatus(err)
	switch {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// HTTPStatus extracts the Bot API error code from err, or 0 when there is none.
func HTTPStatus(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}

	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	// telebot renders unlisted API errors as "telegram: <description> (<code>)".
	msg := err.Error()
	if !strings.HasPrefix(msg, "telegram: ") {
		return 0
	}
	lastOpen := strings.LastIndex(msg, "(")
	lastClose := strings.LastIndex(msg, ")")
	if lastOpen >= 0 && lastClose > lastOpen+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[lastOpen+1 : lastClose])); convErr == nil {
			return code
		}
	}
	return 0
}
