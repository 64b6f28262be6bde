// Package hec mirrors classified alerts to Splunk HTTP Event Collectors.
package hec

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mosajjal/Go-Splunk-HTTP/splunk/v2"

	"github.com/mosajjal/iamwatch/pkg/models"
)

// Config holds HEC client configuration
type Config struct {
	Endpoints     []string
	TLSSkipVerify bool
	Proxy         string
	Token         string
	ChannelID     string
	Index         string
	Source        string
	SourceType    string
	Host          string
	Timeout       time.Duration
	Logger        *slog.Logger
}

// Client sends alerts to the first HEC endpoint that accepts them, starting
// from a rotating offset
type Client struct {
	config      Config
	connections []*connection
	next        atomic.Uint32
	logger      *slog.Logger
}

type connection struct {
	endpoint string
	client   *splunk.Client
}

// NewClient creates a new HEC client
func NewClient(cfg Config) (*Client, error) {
	client := &Client{config: cfg, logger: cfg.Logger}
	if client.logger == nil {
		client.logger = slog.Default()
	}

	for _, endpoint := range cfg.Endpoints {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" {
			continue
		}
		conn, err := newConnection(endpoint, cfg)
		if err != nil {
			client.logger.Warn("failed to create HEC connection", "endpoint", endpoint, "error", err)
			continue
		}
		client.connections = append(client.connections, conn)
	}

	if len(client.connections) == 0 {
		return nil, fmt.Errorf("no valid HEC endpoints configured")
	}
	return client, nil
}

func newConnection(endpoint string, cfg Config) (*connection, error) {
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
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: rt,
	}

	if !strings.HasSuffix(endpoint, "/services/collector") {
		endpoint = strings.TrimSuffix(endpoint, "/") + "/services/collector"
	}

	channelID := cfg.ChannelID
	if _, err := uuid.Parse(channelID); err != nil {
		channelID = uuid.New().String()
	}

	return &connection{
		endpoint: endpoint,
		client: splunk.NewClient(
			httpClient,
			endpoint,
			cfg.Token,
			channelID,
			cfg.Source,
			cfg.SourceType,
			cfg.Index,
		),
	}, nil
}

// SendAlerts sends one HEC event per alert. Endpoints are tried in turn
// until one accepts the batch.
func (c *Client) SendAlerts(ctx context.Context, alerts []*models.ClassifiedAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	now := time.Now()
	events := make([]*splunk.Event, 0, len(alerts))
	for _, alert := range alerts {
		events = append(events, &splunk.Event{
			Time:       splunk.EventTime{Time: eventTime(alert.EventTime, now)},
			Host:       c.config.Host,
			Source:     c.config.Source,
			SourceType: c.config.SourceType,
			Index:      c.config.Index,
			Event:      alert,
		})
	}

	start := int(c.next.Add(1)-1) % len(c.connections)
	var errs []error
	for i := range c.connections {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn := c.connections[(start+i)%len(c.connections)]
		err := conn.client.LogEvents(events)
		if err == nil {
			return nil
		}
		c.logger.Warn("HEC endpoint rejected alerts", "endpoint", conn.endpoint, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", conn.endpoint, err))
	}
	return errors.Join(errs...)
}

func eventTime(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return fallback
}

// Close closes all connections
func (c *Client) Close() error {
	// Connections are closed automatically
	return nil
}
