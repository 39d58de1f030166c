// Package identity talks to the external identity service, the system of
// record for users (a reqres-compatible REST API).
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/netx"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

const maxResponseBytes = 1 << 20

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// RateLimit is the sustained request rate per second; Burst the bucket size.
	RateLimit float64
	Burst     int
}

// Client calls the identity service. Outbound requests share one token
// bucket so bursts of avatar misses cannot flood the upstream.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func New(httpClient *http.Client, cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
}

type createResponse struct {
	ID json.RawMessage `json:"id"`
}

type getResponse struct {
	Data *models.User `json:"data"`
}

// Create registers u upstream and returns the assigned id. Anything other
// than 201 Created wraps common.ErrUpstreamUnavailable. Not retried.
func (c *Client) Create(ctx context.Context, u models.NewUser) (int64, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return 0, fmt.Errorf("marshal user: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/users", body)
	if err != nil {
		return 0, fmt.Errorf("%w: create user: %v", common.ErrUpstreamUnavailable, err)
	}
	defer netx.DrainAndClose(resp, maxResponseBytes)

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("%w: create user: status %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var cr createResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&cr); err != nil {
		return 0, fmt.Errorf("%w: decode create response: %v", common.ErrUpstreamUnavailable, err)
	}
	id, err := parseID(cr.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	return id, nil
}

// FetchByID returns the upstream user. 404 maps to common.ErrNotFound, other
// non-200 statuses to common.ErrUpstreamUnavailable. Transport errors are
// returned wrapped but otherwise unchanged.
func (c *Client) FetchByID(ctx context.Context, id int64) (*models.User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/users/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch user %d: %w", id, err)
	}
	defer netx.DrainAndClose(resp, maxResponseBytes)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("user %d: %w", id, common.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: fetch user %d: status %d", common.ErrUpstreamUnavailable, id, resp.StatusCode)
	}

	var gr getResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&gr); err != nil {
		return nil, fmt.Errorf("%w: decode user %d: %v", common.ErrUpstreamUnavailable, id, err)
	}
	if gr.Data == nil {
		return nil, fmt.Errorf("%w: user %d: response without data", common.ErrUpstreamUnavailable, id)
	}
	return gr.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	return c.http.Do(req)
}

// parseID accepts a JSON number or a numeric string.
func parseID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("response without id")
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("bad id %s: %w", raw, err)
		}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad id %s", raw)
	}
	return id, nil
}
