// Package slack delivers alert messages to an incoming webhook.
package slack

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mosajjal/iamwatch/pkg/models"
)

const maxResponseBody = 64 << 10

var (
	// ErrDeliveryUnreachable is returned when the webhook could not be
	// reached at all: DNS, connection or TLS failures
	ErrDeliveryUnreachable = errors.New("webhook unreachable")
	// ErrDeliveryRejected is returned in strict mode for non-2xx responses
	ErrDeliveryRejected = errors.New("webhook rejected message")
	// ErrDeliveryTimeout is returned when the POST outlives its deadline
	ErrDeliveryTimeout = errors.New("webhook delivery timed out")
)

// Config holds webhook client configuration
type Config struct {
	URL           string
	TLSSkipVerify bool
	Proxy         string
	Timeout       time.Duration
	// Strict turns non-2xx responses into ErrDeliveryRejected
	Strict bool
	Logger *slog.Logger
}

// Response is what the webhook answered
type Response struct {
	StatusCode int
	Body       string
}

// Client posts messages to one webhook
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new webhook client
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}

	rt := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		rt.Proxy = http.ProxyURL(proxyURL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Transport: rt},
		logger:     logger,
	}, nil
}

// Post sends msg once. Any HTTP response is returned, and only counts as an
// error in strict mode. Transport failures wrap ErrDeliveryUnreachable, and
// running past the configured timeout wraps ErrDeliveryTimeout.
func (c *Client) Post(ctx context.Context, msg *models.AlertBatchMessage) (*Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrDeliveryTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDeliveryUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.logger.Warn("failed to read webhook response", "error", err)
	}
	out := &Response{StatusCode: resp.StatusCode, Body: string(respBody)}

	if c.config.Strict && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return out, fmt.Errorf("%w: HTTP %d: %s", ErrDeliveryRejected, resp.StatusCode, out.Body)
	}
	return out, nil
}
