// Package client queries a running ledger node over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fileledger/api/server"
	"fileledger/core/chain"
)

// DefaultAddr is the node address used when none is given.
const DefaultAddr = "http://localhost:5000"

// ErrUnexpectedStatus is returned for responses outside the accepted codes.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

type Client struct {
	base  string
	http  *http.Client
	token string
}

type Option func(*Client)

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(addr string, opts ...Option) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	c := &Client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Health fetches the /nodehealth summary.
func (c *Client) Health(ctx context.Context) (server.NodeHealthResponse, error) {
	var out server.NodeHealthResponse
	err := c.getJSON(ctx, "/nodehealth", &out, http.StatusOK)
	return out, err
}

func (c *Client) Status(ctx context.Context) (server.StatusResponse, error) {
	var out server.StatusResponse
	err := c.getJSON(ctx, "/status", &out, http.StatusOK)
	return out, err
}

func (c *Client) Liveness(ctx context.Context) (bool, error) {
	var out server.LivenessResponse
	err := c.getJSON(ctx, "/health/liveness", &out, http.StatusOK)
	return out.Alive, err
}

// Readiness reports the node's readiness. A 503 answer is a valid "not
// ready", not an error.
func (c *Client) Readiness(ctx context.Context) (bool, error) {
	var out server.ReadinessResponse
	err := c.getJSON(ctx, "/health/readiness", &out, http.StatusOK, http.StatusServiceUnavailable)
	return out.Ready, err
}

// Stats fetches chain statistics. The route requires a token when the node
// has authentication enabled.
func (c *Client) Stats(ctx context.Context) (chain.Stats, error) {
	var out chain.Stats
	err := c.getJSON(ctx, "/stats", &out, http.StatusOK)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}, accept ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %w %d: %s", path, ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}
