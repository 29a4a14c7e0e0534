// Package http is the outbound HTTP client shared by source adapters and
// integrations. Every call goes through the endpoint's circuit breaker and
// the retry policy, and non-2xx answers are classified into error kinds.
package http

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/resilience"
)

type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Retry        resilience.RetryPolicy
	Breakers     *resilience.Breakers
	Transport    http.RoundTripper
}

// Response is a fully-read HTTP answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	httpClient *http.Client
	retry      resilience.RetryPolicy
	breakers   *resilience.Breakers
	maxBody    int64
	userAgent  string
	logger     logger.Logger
}

func NewClient(opts Options, log logger.Logger) *Client {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if opts.Breakers == nil {
		opts.Breakers = resilience.NewBreakers(5, time.Minute, nil)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		retry:      opts.Retry,
		breakers:   opts.Breakers,
		maxBody:    opts.MaxBodyBytes,
		userAgent:  opts.UserAgent,
		logger:     log.With(map[string]interface{}{"component": "http-client"}),
	}
}

// Get fetches rawURL and returns the body of a 2xx answer.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, rawURL, nil, headers)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Do sends one logical request, retried and breaker-guarded per endpoint.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, apperrors.NewInvalidFormatError("URL", fmt.Errorf("%q: %v", rawURL, err))
	}
	endpoint := u.Host

	var out *Response
	err = resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		return c.breakers.Execute(endpoint, func() error {
			resp, err := c.attempt(ctx, method, rawURL, endpoint, body, headers)
			if err != nil {
				return err
			}
			out = resp
			return nil
		})
	}, func(n uint, err error) {
		c.logger.Warn("HTTP call failed", map[string]interface{}{
			"endpoint": endpoint,
			"attempt":  n + 1,
			"kind":     string(apperrors.KindOf(err)),
			"error":    err.Error(),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) attempt(ctx context.Context, method, rawURL, endpoint string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, apperrors.NewInvalidFormatError("request", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, classifyTransport(ctx, endpoint, err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, apperrors.NewUpstreamError(endpoint, resp.StatusCode, fmt.Sprintf("response exceeds %d bytes", c.maxBody))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitedError(endpoint, resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, apperrors.NewUpstreamError(endpoint, resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(data)))
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func classifyTransport(ctx context.Context, endpoint string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", endpoint, ctxErr)
	}
	if apperrors.KindOf(err) == apperrors.KindTimeout {
		return apperrors.NewTimeoutError(endpoint, err)
	}
	var ue *url.Error
	if stderrors.As(err, &ue) && ue.Timeout() {
		return apperrors.NewTimeoutError(endpoint, err)
	}
	return apperrors.NewNetworkError(endpoint, err)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
