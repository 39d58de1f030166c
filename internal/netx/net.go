// Package netx builds the outbound HTTP clients used for the identity
// service and avatar downloads.
package netx

import (
	"io"
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a pooled client with dial, TLS and header timeouts.
// timeout bounds the whole request including the body read.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// DrainAndClose discards up to limit bytes of the body so the connection can
// be reused, then closes it.
func DrainAndClose(resp *http.Response, limit int64) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, limit)
	_ = resp.Body.Close()
}
