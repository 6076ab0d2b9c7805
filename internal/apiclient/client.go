// Package apiclient is the authenticated request pipeline for the reservation service.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spacebook/client/internal/session"
)

// Config holds the settings for talking to the reservation service.
type Config struct {
	// BaseURL is the service root, e.g. http://localhost:8080/api/v1
	BaseURL string

	// Timeout for a single HTTP exchange
	Timeout time.Duration

	// RequestsPerSecond caps outbound calls; zero disables the limiter
	RequestsPerSecond float64
}

// DefaultConfig returns the configuration used when nothing else is provided.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api/v1",
		Timeout: 30 * time.Second,
	}
}

// Options describes one call through the pipeline.
type Options struct {
	Method  string
	Query   url.Values
	Body    any
	Headers map[string]string

	// NoRefresh surfaces a 401 as a plain failure instead of renewing credentials.
	NoRefresh bool
}

// Client attaches credentials to outbound calls, renews them on expiry and
// retries the original call once.
type Client struct {
	config     Config
	httpClient *http.Client
	store      session.CredentialStore
	refresher  *session.Refresher
	observer   *session.Observer
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New creates a pipeline backed by store.
func New(config Config, store session.CredentialStore, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		store:    store,
		observer: session.NewObserver(),
		logger:   logger.Named("apiclient"),
	}
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	c.refresher = session.NewRefresher(store, c.reissue, c.logger)
	c.refresher.SetTimeout(config.Timeout)
	return c
}

// Store returns the credential store the pipeline reads from.
func (c *Client) Store() session.CredentialStore {
	return c.store
}

// RegisterSessionObserver installs the callback run when the session is lost.
// Passing nil removes it.
func (c *Client) RegisterSessionObserver(fn func()) {
	c.observer.Register(fn)
}

// Call sends one request through the pipeline and decodes the envelope's data as T.
func Call[T any](ctx context.Context, c *Client, endpoint string, opts Options) (*Envelope[T], error) {
	raw, err := c.Do(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[T](raw)
}

// Do sends one request through the pipeline and returns the undecoded envelope.
func (c *Client) Do(ctx context.Context, endpoint string, opts Options) (*RawEnvelope, error) {
	used, err := session.AccessToken(ctx, c.store)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	resp, err := c.send(ctx, endpoint, opts, used)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusUnauthorized && endpoint != ReissueEndpoint && !opts.NoRefresh {
		if !c.refresher.EnsureRenewed(ctx, used) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.expireSession(ctx)
			return nil, sessionExpiredError(endpoint)
		}

		token, err := session.AccessToken(ctx, c.store)
		if err != nil {
			return nil, fmt.Errorf("reading renewed credentials: %w", err)
		}
		// The retry's result is final, whatever it is.
		resp, err = c.send(ctx, endpoint, opts, token)
		if err != nil {
			return nil, err
		}
	}

	return interpret(endpoint, resp)
}

// expireSession clears credentials and tells the observer the session is gone.
func (c *Client) expireSession(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("clearing credentials after failed renewal", zap.Error(err))
	}
	c.logger.Info("session expired")
	c.observer.Notify()
}

type response struct {
	status int
	body   []byte
}

// send performs a single HTTP exchange.
func (c *Client) send(ctx context.Context, endpoint string, opts Options, accessToken string) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := c.newRequest(ctx, endpoint, opts, accessToken)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return nil, transportError(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(endpoint, fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	return &response{status: resp.StatusCode, body: body}, nil
}

// newRequest creates a new HTTP request with JSON defaults and authentication.
func (c *Client) newRequest(ctx context.Context, endpoint string, opts Options, accessToken string) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.config.BaseURL + endpoint
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return req, nil
}

// interpret turns an HTTP response into an envelope or a business failure.
func interpret(endpoint string, resp *response) (*RawEnvelope, error) {
	var env RawEnvelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return nil, &Error{
			Kind:     KindBusiness,
			Endpoint: endpoint,
			Status:   resp.status,
			Message:  MessageFallback,
			Err:      fmt.Errorf("decoding envelope (status %d): %w", resp.status, err),
		}
	}
	if !env.Success {
		return nil, businessError(endpoint, resp.status, strings.TrimSpace(env.Message))
	}
	return &env, nil
}
