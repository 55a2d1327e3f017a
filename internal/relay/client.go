package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/logger"
)

// Interface is the relay surface consumed by the admin API client and the bootstrap.
type Interface interface {
	Relay(ctx context.Context, env Envelope, opts ...Option) (*Response, error)
	Ping(ctx context.Context) error
}

// Client posts envelopes to the relay's fetch endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the transport used to reach the relay.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every relayed call.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewClient creates a relay client for the relay rooted at baseURL.
func NewClient(baseURL string, log *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Relay sends env through the relay and classifies the upstream response.
// Any status outside 2xx that is not whitelisted with AllowStatus yields a REMOTE_CALL_FAILED error.
func (c *Client) Relay(ctx context.Context, env Envelope, opts ...Option) (*Response, error) {
	reqLogger := logger.DeriveRequestLogger(ctx, c.logger)

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	fetchURL, err := url.JoinPath(c.baseURL, constants.RelayFetchPath)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fetchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(constants.ContentTypeHeader, constants.JSONContentType)
	httpReq.Header.Set(constants.CacheControlHeader, constants.NoCache)
	httpReq.Header.Set(constants.PragmaHeader, constants.NoCache)

	logArgs := []any{
		"operation", "Relay.Fetch",
		"method", env.EffectiveMethod(),
		"url", env.URL,
		"bodySize", len(env.Body),
	}
	logArgs = append(logArgs, logger.GetDeadlineInfo(ctx)...)
	reqLogger.Debug("calling external service", "context", logger.SliceToMap(logArgs))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, appErrors.ErrRemoteCallFailed(http.StatusBadGateway, "relay unreachable", err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	reqLogger.Debug("received relayed response",
		"status", resp.StatusCode,
		"bodySize", len(body),
		"url", env.URL)

	out := &Response{StatusCode: resp.StatusCode, Body: body}
	if err := CheckResponse(out, opts...); err != nil {
		return out, err
	}
	return out, nil
}

// Ping checks that the relay answers its health probe.
func (c *Client) Ping(ctx context.Context) error {
	pingURL, err := url.JoinPath(c.baseURL, constants.RelayPingPath)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(constants.CacheControlHeader, constants.NoCache)

	c.logger.Debug("calling external service", "operation", "Relay.Ping", "url", pingURL)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return appErrors.ErrRemoteCallFailed(http.StatusBadGateway, "service machine unreachable", err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := CheckResponse(&Response{StatusCode: resp.StatusCode, Body: body},
		WithMessage("service machine health check failed")); err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) != constants.RelayPong {
		return appErrors.ErrRemoteCallFailed(resp.StatusCode, "service machine health check failed",
			fmt.Sprintf("unexpected ping reply %q", string(body)))
	}
	return nil
}

var _ Interface = (*Client)(nil)
