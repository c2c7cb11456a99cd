package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"RecipeChat/internal/session"
	"RecipeChat/internal/telemetry"
)

var (
	// ErrUnauthorized is returned for any 401 response; the session has already been cleared
	ErrUnauthorized = errors.New("authentication failed")
	// ErrInvalidRequest is returned when a request fails validation before being sent
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTransport wraps network failures and unexpected HTTP statuses
	ErrTransport = errors.New("backend request failed")
	// ErrConflict is returned when the backend reports a 409 (e.g. email already registered)
	ErrConflict = errors.New("resource already exists")
)

// APIError represents a non-2xx response other than 401
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Status, e.Body)
}

// Unwrap lets callers match any APIError with errors.Is(err, ErrTransport)
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusConflict {
		return ErrConflict
	}
	return ErrTransport
}

// Client is the typed gateway over the backend HTTP API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	session        *session.State
	logger         *slog.Logger
	tracer         trace.Tracer
	duration       metric.Float64Histogram
	validate       *validator.Validate
	onUnauthorized func()
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTelemetry instruments every call with spans and a duration histogram
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(c *Client) {
		c.tracer = tracer
		histogram, err := meter.Float64Histogram(
			"http.client.request.duration",
			metric.WithDescription("HTTP request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			c.logger.Warn("failed to create duration histogram", "error", err)
			return
		}
		c.duration = histogram
	}
}

// WithUnauthorizedHandler sets the hook fired after a 401 cleared the session.
// The CLI uses it to send the user back to the login entry point.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// NewClient creates a gateway for baseURL bound to the given session state
func NewClient(baseURL string, sess *session.State, logger *slog.Logger, opts ...Option) *Client {
	tracer, _ := telemetry.Noop()
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		session:    sess,
		logger:     logger,
		tracer:     tracer,
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// response is a fully read HTTP response
type response struct {
	status int
	header http.Header
	body   []byte
}

// request describes one outbound call
type request struct {
	span        string
	method      string
	path        string
	body        io.Reader
	contentType string
}

func (c *Client) check(v any) error {
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func jsonRequest(span, method, path string, payload any) (request, error) {
	r := request{span: span, method: method, path: path}
	if payload == nil {
		return r, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return r, fmt.Errorf("failed to marshal request: %w", err)
	}
	r.body = bytes.NewReader(data)
	r.contentType = "application/json"
	return r, nil
}

// do sends the request with the bearer token attached when one exists
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	ctx, span := c.tracer.Start(ctx, r.span, trace.WithAttributes(
		attribute.String("http.method", r.method),
		attribute.String("http.route", r.path),
	))
	defer span.End()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: failed to send request: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	if c.duration != nil {
		c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("http.route", r.span)))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		span.SetStatus(codes.Error, "unauthorized")
		c.handleUnauthorized(r.path)
		return nil, ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// handleUnauthorized clears the session and sends the user back to login.
// There is no refresh-token flow.
func (c *Client) handleUnauthorized(path string) {
	c.logger.Warn("authentication failure, clearing session", "path", path)
	c.session.Clear()
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
