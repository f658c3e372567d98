package httpclient

import (
	"net/http"
	"time"
)

// defaultTimeout is used when New is called with a non-positive timeout.
const defaultTimeout = 30 * time.Second

// New creates an HTTP client with sensible pooling defaults for API calls.
// timeout bounds the whole request (dial through body read); callers that
// don't need a specific value can pass 0 to get defaultTimeout.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewStreaming creates an HTTP client for streaming (no timeout - movies can be hours)
func NewStreaming() *http.Client {
	return &http.Client{
		Timeout: 0, // No timeout for streaming
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
