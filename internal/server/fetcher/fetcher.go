// Package fetcher downloads remote avatar images.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/netx"
)

const userAgent = "usersvc-avatar-fetcher/1.0"

// Fetcher performs a single GET per call. It never retries.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func New(client *http.Client, maxBytes int64) *Fetcher {
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch returns the complete body at url. Transport errors, non-2xx
// statuses, empty bodies and bodies above the size limit all wrap
// common.ErrUpstreamUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", common.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", common.ErrUpstreamUnavailable, url, err)
	}
	defer netx.DrainAndClose(resp, 4<<10)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: get %s: status %d", common.ErrUpstreamUnavailable, url, resp.StatusCode)
	}

	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: image too large: %d bytes", common.ErrUpstreamUnavailable, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", common.ErrUpstreamUnavailable, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: image too large: more than %d bytes", common.ErrUpstreamUnavailable, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image body", common.ErrUpstreamUnavailable)
	}
	return data, nil
}
