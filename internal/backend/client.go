package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/boardsync/pkg/syncdto"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

var (
	// ErrTransmission wraps every failed outbound send. Nothing is queued
	// for retry; the next changed state is sent fresh.
	ErrTransmission = errors.New("transmission failed")
	// ErrChannelDisconnected means the streaming channel is not up.
	ErrChannelDisconnected = errors.New("streaming channel disconnected")
	// ErrRateLimited is returned when the one-shot fallback is throttled.
	ErrRateLimited = errors.New("fallback rate limited")
)

const (
	pathBoard   = "/fen"
	pathNewGame = "/new-game"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// Client is the one-shot HTTP fallback.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	limiter *rate.Limiter

	defaultTimeout time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRateLimit caps fallback requests per second. Requests over the limit
// are dropped, not delayed.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 4},
		defaultTimeout: 5 * time.Second,
		limiter:        rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostBoard sends one board snapshot.
func (c *Client) PostBoard(ctx context.Context, data *syncdto.BoardData) error {
	return c.doJSON(ctx, fasthttp.MethodPost, pathBoard, data)
}

// PostNewGame announces a new game.
func (c *Client) PostNewGame(ctx context.Context, msg *syncdto.NewGame) error {
	return c.doJSON(ctx, fasthttp.MethodPost, pathNewGame, msg)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any) error {
	if c.limiter != nil && !c.limiter.Allow() {
		return ErrRateLimited
	}
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("backend error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
	}
	return nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
