package telegram

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultClientTimeout     = 30 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// Calls are never retried here; a failed call is reported to its caller once.
// The client timeout must exceed the long-poll timeout.
func BuildHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
