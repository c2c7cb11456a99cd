// Package messaging maintains the single persistent broker connection used
// for chat delivery.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"RecipeChat/internal/session"
	"RecipeChat/internal/telemetry"
)

// State is the connection state of a Channel
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultReconnectDelay is how long the channel waits before reconnecting after an unexpected closure
const DefaultReconnectDelay = 5 * time.Second

// Listener receives inbound payloads. Listeners are compared by identity,
// so implementations should be pointer types.
type Listener interface {
	OnMessage(Payload)
}

// LossListener is optionally implemented by a Listener that wants to know when
// an established connection ends unexpectedly. reconnecting reports whether an
// automatic reconnect is scheduled.
type LossListener interface {
	OnConnectionLost(cause error, reconnecting bool)
}

// Channel is the persistent broker connection. Construct one per process and inject it.
type Channel struct {
	dialer         Dialer
	tokens         TokenSource
	logger         *slog.Logger
	reconnectDelay time.Duration
	messages       metric.Int64Counter

	mu        sync.Mutex
	state     State
	gen       uint64
	conn      Conn
	sub       Subscription
	listeners []Listener
	retry     *time.Timer

	// last callbacks, reused by the automatic reconnect
	lastCtx     context.Context
	onConnected func()
	onError     func(error)
}

// Option configures a Channel
type Option func(*Channel)

// WithLogger sets the channel logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}

// WithReconnectDelay sets the automatic reconnect delay; zero disables automatic reconnects
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) { c.reconnectDelay = d }
}

// WithMeter counts inbound, outbound and dropped messages
func WithMeter(meter metric.Meter) Option {
	return func(c *Channel) {
		counter, err := meter.Int64Counter(
			"chat.messages",
			metric.WithDescription("Chat messages by direction"),
		)
		if err != nil {
			c.logger.Warn("failed to create message counter", "error", err)
			return
		}
		c.messages = counter
	}
}

// New creates a disconnected channel
func New(dialer Dialer, tokens TokenSource, opts ...Option) *Channel {
	_, meter := telemetry.Noop()
	c := &Channel{
		dialer:         dialer,
		tokens:         tokens,
		logger:         telemetry.DiscardLogger(),
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.messages == nil {
		WithMeter(meter)(c)
	}
	return c
}

// Connect opens the connection and subscribes to the user queue.
// If already connected onConnected runs at once; if an attempt is in flight the call is ignored.
// A manual Connect cancels any pending automatic reconnect.
func (c *Channel) Connect(ctx context.Context, onConnected func(), onError func(error)) {
	c.mu.Lock()
	c.stopRetryLocked()

	switch c.state {
	case Connected:
		c.mu.Unlock()
		c.logger.Debug("already connected")
		if onConnected != nil {
			onConnected()
		}
		return
	case Connecting:
		c.mu.Unlock()
		c.logger.Debug("connection already in progress")
		return
	}

	token := c.tokens.Token()
	if token == "" {
		c.mu.Unlock()
		c.logger.Error("cannot connect without an authentication token")
		if onError != nil {
			onError(session.ErrMissingToken)
		}
		return
	}

	c.lastCtx = context.WithoutCancel(ctx)
	c.onConnected, c.onError = onConnected, onError

	c.gen++
	gen := c.gen
	oldConn, oldSub := c.conn, c.sub
	c.conn, c.sub = nil, nil
	c.state = Connecting
	c.mu.Unlock()

	c.logger.Info("connecting to broker", "generation", gen)
	go c.teardown(oldConn, oldSub)
	go c.dial(ctx, gen, token, onConnected, onError)
}

// Disconnect closes the connection. Teardown runs in the background; completions
// from the closed connection are ignored.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.stopRetryLocked()
	c.gen++
	oldConn, oldSub := c.conn, c.sub
	c.conn, c.sub = nil, nil
	c.state = Disconnected
	c.mu.Unlock()

	c.logger.Info("disconnecting from broker")
	go c.teardown(oldConn, oldSub)
}

// RegisterListener adds l; registering the same listener twice is a no-op
func (c *Channel) RegisterListener(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if slices.Contains(c.listeners, l) {
		c.logger.Warn("listener already registered")
		return
	}
	c.listeners = append(c.listeners, l)
	c.logger.Debug("listener registered", "count", len(c.listeners))
}

// UnregisterListener removes l; unknown listeners are ignored
func (c *Channel) UnregisterListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.listeners)
	c.listeners = slices.DeleteFunc(c.listeners, func(x Listener) bool { return x == l })
	c.logger.Debug("listener unregistered", "before", before, "after", len(c.listeners))
}

// Send publishes text to the chat destination. It returns false when not connected
// or when the publish fails. Images are not transmitted.
func (c *Channel) Send(text string, image []byte) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected && conn != nil
	c.mu.Unlock()

	if !connected {
		c.logger.Error("cannot send, broker is not connected")
		return false
	}

	if len(image) > 0 {
		c.logger.Warn("image attachments are not sent over the broker, sending text only", "image_bytes", len(image))
	}

	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		c.logger.Error("failed to marshal message", "error", err)
		return false
	}

	headers := map[string]string{"content-type": "application/json"}
	if token := c.tokens.Token(); token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	if err := conn.Send(SendDestination, body, headers); err != nil {
		c.logger.Error("failed to send message", "error", err)
		return false
	}

	c.count("outbound")
	return true
}

// State returns the current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the channel is connected
func (c *Channel) IsConnected() bool {
	return c.State() == Connected
}

// IsAuthenticated reports whether a token is available for connecting
func (c *Channel) IsAuthenticated() bool {
	return c.tokens.Token() != ""
}

func (c *Channel) dial(ctx context.Context, gen uint64, token string, onConnected func(), onError func(error)) {
	conn, err := c.dialer.Dial(ctx, token)
	var sub Subscription
	if err == nil {
		var subErr error
		if sub, subErr = conn.Subscribe(QueueDestination); subErr != nil {
			// the connection stays usable for sending
			sub = nil
			c.logger.Warn("failed to subscribe, continuing without inbound messages",
				"generation", gen, "destination", QueueDestination, "error", subErr)
		}
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("ignoring stale connection attempt", "generation", gen)
		go c.teardown(conn, sub)
		return
	}

	if err != nil {
		c.state = Errored
		c.mu.Unlock()
		c.logger.Error("failed to connect to broker", "generation", gen, "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}

	c.conn, c.sub = conn, sub
	c.state = Connected
	c.mu.Unlock()

	c.logger.Info("connected to broker", "generation", gen, "subscribed", sub != nil)
	if sub != nil {
		go c.readLoop(gen, sub)
	}
	if onConnected != nil {
		onConnected()
	}
}

func (c *Channel) readLoop(gen uint64, sub Subscription) {
	for {
		body, err := sub.Next()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		c.dispatch(body)
	}
}

// handleClosed reacts to the end of a subscription. Only an unexpected end of
// the current connection schedules a reconnect.
func (c *Channel) handleClosed(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.state != Connected {
		c.mu.Unlock()
		return
	}

	oldConn, oldSub := c.conn, c.sub
	c.conn, c.sub = nil, nil
	c.state = Disconnected
	reconnecting := c.reconnectDelay > 0
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	c.logger.Warn("broker connection closed", "generation", gen, "error", cause, "reconnect_in", c.reconnectDelay)
	go c.teardown(oldConn, oldSub)

	// listeners hear about the loss before any reconnect can complete
	for _, l := range listeners {
		if ll, ok := l.(LossListener); ok {
			c.notifyLoss(ll, cause, reconnecting)
		}
	}
	if !reconnecting {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen && c.state == Disconnected && c.retry == nil {
		c.retry = time.AfterFunc(c.reconnectDelay, c.autoReconnect)
	}
}

func (c *Channel) notifyLoss(l LossListener, cause error, reconnecting bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked", "panic", r)
		}
	}()
	l.OnConnectionLost(cause, reconnecting)
}

func (c *Channel) autoReconnect() {
	c.mu.Lock()
	c.retry = nil
	ctx, onConnected, onError := c.lastCtx, c.onConnected, c.onError
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	c.logger.Info("attempting automatic reconnect")
	c.Connect(ctx, onConnected, onError)
}

func (c *Channel) stopRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

func (c *Channel) dispatch(body []byte) {
	payload, ok := ParsePayload(body)
	if !ok {
		c.logger.Warn("dropping malformed message", "bytes", len(body))
		c.count("dropped")
		return
	}
	c.count("inbound")

	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	if len(listeners) == 0 {
		c.logger.Warn("no listeners registered, message discarded")
		return
	}
	for _, l := range listeners {
		c.deliver(l, payload)
	}
}

func (c *Channel) deliver(l Listener, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked", "panic", r)
		}
	}()
	l.OnMessage(p)
}

// teardown releases a replaced connection; errors are logged and ignored
func (c *Channel) teardown(conn Conn, sub Subscription) {
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Debug("unsubscribe failed", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("connection close failed", "error", err)
		}
	}
}

func (c *Channel) count(direction string) {
	c.messages.Add(context.Background(), 1, metric.WithAttributes(attribute.String("direction", direction)))
}
