// Package chat turns the broker connection, the session and the upload
// handoff into the ordered message sequence shown on the chat page.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"RecipeChat/internal/backend"
	"RecipeChat/internal/handoff"
	"RecipeChat/internal/messaging"
	"RecipeChat/internal/recipe"
	"RecipeChat/internal/store"
)

var (
	// ErrEmptyMessage is returned when there is neither text nor an image to send
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNotConnected is returned when sending while the channel is not connected
	ErrNotConnected = errors.New("not connected to the chat server")
	// ErrNotAuthenticated is returned when sending without a session token
	ErrNotAuthenticated = errors.New("login required")
	// ErrSendFailed is returned when the channel refused the message
	ErrSendFailed = errors.New("failed to send message")
)

// Notices appended as system messages
const (
	noticeConnecting      = "Connecting to the chat server..."
	noticeConnected       = "Connected to the chat server. Ask anything about your recipes!"
	noticeLoginAdvice     = "Log in to get personalized answers."
	noticeConnectFailed   = "Could not connect to the chat server. Please try again shortly."
	noticeReconnecting    = "Reconnecting to the chat server..."
	noticeConnectionLost  = "Lost the connection to the chat server. Reconnecting shortly..."
	noticeConnectionDrop  = "Lost the connection to the chat server. Use /retry to reconnect."
	noticeReconnected     = "Reconnected to the chat server."
	noticeReconnectFailed = "Could not reconnect to the chat server. Please try again shortly."
	noticeRecipeCreated   = "A new recipe has been generated!"
	noticeSendFailed      = "Failed to send the message. Please check your connection."
)

// Channel is the broker connection the controller drives
type Channel interface {
	Connect(ctx context.Context, onConnected func(), onError func(error))
	Disconnect()
	RegisterListener(l messaging.Listener)
	UnregisterListener(l messaging.Listener)
	Send(text string, image []byte) bool
	IsConnected() bool
	IsAuthenticated() bool
}

// Session is the part of the session state the controller reads
type Session interface {
	Authenticated() bool
	Username() string
}

// Archive stores finished transcripts
type Archive interface {
	Save(ctx context.Context, t *store.Transcript) error
}

// Image is an attachment offered with an outgoing message
type Image struct {
	// Ref is shown in the local message, e.g. the file path
	Ref  string
	Data []byte
}

// Controller owns the chat message sequence for one chat page
type Controller struct {
	channel Channel
	session Session
	slot    *handoff.Slot
	archive Archive
	logger  *slog.Logger

	mu              sync.Mutex
	messages        []ChatMessage
	hooks           []func(ChatMessage)
	state           messaging.State
	mounted         bool
	handoffConsumed bool
	startedAt       time.Time

	teardown    sync.Once
	teardownErr error
}

// Option configures a Controller
type Option func(*Controller)

// WithArchive saves the transcript on Teardown
func WithArchive(a Archive) Option {
	return func(c *Controller) { c.archive = a }
}

// NewController creates a controller; nothing happens until Mount
func NewController(ch Channel, sess Session, slot *handoff.Slot, logger *slog.Logger, opts ...Option) *Controller {
	if slot == nil {
		slot = &handoff.Slot{}
	}
	c := &Controller{
		channel:  ch,
		session:  sess,
		slot:     slot,
		logger:   logger,
		messages: []ChatMessage{},
		state:    messaging.Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers a hook called for every appended message, in order.
// Hooks run with the controller locked and must not call back into it.
func (c *Controller) Subscribe(fn func(ChatMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Mount starts the chat session. The first call seeds the sequence, registers
// the listener and connects; every call ingests a pending handoff if one exists.
func (c *Controller) Mount(ctx context.Context) {
	c.mu.Lock()
	first := !c.mounted
	if first {
		c.mounted = true
		c.startedAt = time.Now()
		c.state = messaging.Connecting
		c.appendLocked(system(noticeConnecting))
	}
	c.mu.Unlock()

	if first {
		c.channel.RegisterListener(c)
		c.channel.Connect(ctx, c.onConnected, c.onConnectError)
	}

	c.ingestHandoff()
}

// OnMessage implements messaging.Listener
func (c *Controller) OnMessage(p messaging.Payload) {
	m, ok := FromPayload(p)
	if !ok {
		c.logger.Warn("dropping payload that is not a chat message", "keys", len(p))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(m)
}

// OnConnectionLost implements messaging.LossListener
func (c *Controller) OnConnectionLost(cause error, reconnecting bool) {
	c.logger.Warn("chat connection lost", "error", cause, "reconnecting", reconnecting)

	c.mu.Lock()
	defer c.mu.Unlock()
	if reconnecting {
		c.state = messaging.Connecting
		c.appendLocked(system(noticeConnectionLost))
		return
	}
	c.state = messaging.Disconnected
	c.appendLocked(system(noticeConnectionDrop))
}

// Send appends the message optimistically and publishes it
func (c *Controller) Send(text string, image *Image) error {
	if strings.TrimSpace(text) == "" && image == nil {
		return ErrEmptyMessage
	}
	if !c.channel.IsConnected() {
		return ErrNotConnected
	}
	if !c.session.Authenticated() {
		return ErrNotAuthenticated
	}

	local := ChatMessage{
		Sender:            c.session.Username(),
		Text:              text,
		SentByCurrentUser: true,
	}
	var data []byte
	if image != nil {
		local.ImageRef = image.Ref
		data = image.Data
	}

	c.mu.Lock()
	c.appendLocked(local)
	c.mu.Unlock()

	if !c.channel.Send(text, data) {
		c.mu.Lock()
		c.appendLocked(system(noticeSendFailed))
		c.mu.Unlock()
		return ErrSendFailed
	}
	return nil
}

// Reconnect is the manual retry offered after a connection failure
func (c *Controller) Reconnect(ctx context.Context) {
	c.mu.Lock()
	c.state = messaging.Connecting
	c.appendLocked(system(noticeReconnecting))
	c.mu.Unlock()

	c.channel.Connect(ctx, c.onReconnected, c.onReconnectError)
}

// AddSubstitution appends the outcome of an ingredient substitution
func (c *Controller) AddSubstitution(res backend.SubstituteResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !res.Success {
		c.appendLocked(system(res.Message))
		return
	}

	r := recipe.Normalize(res.Recipe)
	c.appendLocked(ChatMessage{
		Sender:   SenderAssistant,
		Text:     fmt.Sprintf("A substitute recipe has been created: %s", r.Name),
		Recipe:   &r,
		RecipeID: res.Recipe.ID(),
	})
}

// Teardown unregisters, disconnects and archives the transcript. Only the first call has any effect.
func (c *Controller) Teardown(ctx context.Context) error {
	c.teardown.Do(func() {
		c.channel.UnregisterListener(c)
		c.channel.Disconnect()

		c.mu.Lock()
		c.state = messaging.Disconnected
		mounted := c.mounted
		t := &store.Transcript{
			StartedAt: c.startedAt,
			Username:  c.session.Username(),
			Entries:   make([]store.Entry, 0, len(c.messages)),
		}
		for _, m := range c.messages {
			t.Entries = append(t.Entries, toEntry(m))
		}
		c.mu.Unlock()

		if c.archive == nil || !mounted {
			return
		}
		if err := c.archive.Save(ctx, t); err != nil {
			c.teardownErr = fmt.Errorf("failed to archive transcript: %w", err)
			return
		}
		c.logger.Info("transcript archived", "transcript_id", t.ID, "messages", len(t.Entries))
	})
	return c.teardownErr
}

// Messages returns a snapshot of the sequence
func (c *Controller) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatMessage(nil), c.messages...)
}

// State returns the controller's view of the connection
func (c *Controller) State() messaging.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RecipeMessages returns the messages carrying a recipe, oldest first
func (c *Controller) RecipeMessages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ChatMessage
	for _, m := range c.messages {
		if m.Recipe != nil {
			out = append(out, m)
		}
	}
	return out
}

// LatestRecipe returns the most recent message carrying a recipe
func (c *Controller) LatestRecipe() (ChatMessage, bool) {
	recipes := c.RecipeMessages()
	if len(recipes) == 0 {
		return ChatMessage{}, false
	}
	return recipes[len(recipes)-1], true
}

func (c *Controller) ingestHandoff() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handoffConsumed {
		return
	}
	p, ok := c.slot.Take()
	if !ok {
		return
	}
	c.handoffConsumed = true

	r := recipe.Normalize(p.Recipe)
	c.appendLocked(system(noticeRecipeCreated))
	c.appendLocked(ChatMessage{
		Sender:   SenderAssistant,
		Text:     fmt.Sprintf("Here is the recipe you asked for: %s", r.Name),
		Recipe:   &r,
		RecipeID: p.Recipe.ID(),
	})
	c.logger.Info("handoff recipe ingested", "origin", p.Origin, "recipe_id", p.Recipe.ID())
}

func (c *Controller) onConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = messaging.Connected
	c.appendLocked(system(noticeConnected))
	if !c.channel.IsAuthenticated() {
		c.appendLocked(system(noticeLoginAdvice))
	}
}

func (c *Controller) onConnectError(err error) {
	c.logger.Error("chat connection failed", "error", err)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = messaging.Errored
	c.appendLocked(system(noticeConnectFailed))
}

func (c *Controller) onReconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = messaging.Connected
	c.appendLocked(system(noticeReconnected))
}

func (c *Controller) onReconnectError(err error) {
	c.logger.Error("chat reconnect failed", "error", err)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = messaging.Errored
	c.appendLocked(system(noticeReconnectFailed))
}

func (c *Controller) appendLocked(m ChatMessage) {
	c.messages = append(c.messages, m)
	for _, hook := range c.hooks {
		hook(m)
	}
}

func system(text string) ChatMessage {
	return ChatMessage{Sender: SenderSystem, Text: text}
}
