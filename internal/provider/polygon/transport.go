package polygon

import (
	"net/http"
	"time"
)

// baseTransportConfig returns the HTTP transport used by the Polygon REST client.
// Keep-alives stay on: a backfill issues many sequential requests to one host.
func baseTransportConfig(timeout time.Duration) *http.Transport {
	return &http.Transport{
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   4,
	}
}

// newHTTPClient creates an HTTP client configured for Polygon requests.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{
		Transport: baseTransportConfig(timeout),
		Timeout:   timeout,
	}
}
