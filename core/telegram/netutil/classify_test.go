package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/logger"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, logger.OutcomeOK, Outcome(nil))
	assert.Equal(t, logger.OutcomeAPIRejected, Outcome(tele.ErrNotFoundToDelete))
	assert.Equal(t, logger.OutcomeAPIRejected, Outcome(fmt.Errorf("telegram: Bad Request: chat not found (400)")))
	assert.Equal(t, logger.OutcomeTransportError, Outcome(ErrCallTimeout))
	assert.Equal(t, logger.OutcomeTransportError, Outcome(errors.New("connection reset (by peer)")))
}

func TestKind(t *testing.T) {
	dial := &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}}
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"call timeout", ErrCallTimeout, "timeout"},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), "timeout"},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.telegram.org"}, "dns"},
		{"dial", dial, "dial"},
		{"api 4xx", tele.ErrNotFoundToDelete, "http_4xx"},
		{"api 5xx", fmt.Errorf("telegram: Internal Server Error (500)"), "http_5xx"},
		{"other", errors.New("boom"), "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Kind(tc.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, HTTPStatus(tele.ErrNotFoundToDelete))
	assert.Equal(t, 403, HTTPStatus(fmt.Errorf("telegram: Forbidden: bot was blocked by the user (403)")))
	assert.Zero(t, HTTPStatus(errors.New("dial tcp (x)")))
	assert.Zero(t, HTTPStatus(nil))
}
