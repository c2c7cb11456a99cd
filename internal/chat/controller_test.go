package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecipeChat/internal/backend"
	"RecipeChat/internal/handoff"
	"RecipeChat/internal/messaging"
	"RecipeChat/internal/recipe"
	"RecipeChat/internal/store"
	"RecipeChat/internal/telemetry"
)

// fakeChannel connects synchronously unless told to fail
type fakeChannel struct {
	mu           sync.Mutex
	connectErr   error
	connected    bool
	token        bool
	sendOK       bool
	connects     int
	disconnects  int
	listeners    []messaging.Listener
	unregistered int
	sent         []string
	images       [][]byte
}

func (f *fakeChannel) Connect(ctx context.Context, onConnected func(), onError func(error)) {
	f.mu.Lock()
	f.connects++
	err := f.connectErr
	if err == nil {
		f.connected = true
	}
	f.mu.Unlock()

	if err != nil {
		onError(err)
		return
	}
	onConnected()
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
}

func (f *fakeChannel) RegisterListener(l messaging.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.listeners {
		if x == l {
			return
		}
	}
	f.listeners = append(f.listeners, l)
}

func (f *fakeChannel) UnregisterListener(l messaging.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregistered++
	for i, x := range f.listeners {
		if x == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

func (f *fakeChannel) Send(text string, image []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sendOK {
		return false
	}
	f.sent = append(f.sent, text)
	f.images = append(f.images, image)
	return true
}

func (f *fakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) IsAuthenticated() bool { return f.token }

type fakeSession struct {
	authenticated bool
	username      string
}

func (s fakeSession) Authenticated() bool { return s.authenticated }
func (s fakeSession) Username() string    { return s.username }

type fakeArchive struct {
	saved []*store.Transcript
	err   error
}

func (a *fakeArchive) Save(ctx context.Context, t *store.Transcript) error {
	a.saved = append(a.saved, t)
	return a.err
}

func newController(ch *fakeChannel, slot *handoff.Slot, opts ...Option) *Controller {
	return NewController(ch, fakeSession{authenticated: true, username: "chef"}, slot, telemetry.DiscardLogger(), opts...)
}

func texts(msgs []ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestMount_Connects(t *testing.T) {
	ch := &fakeChannel{token: true}
	c := newController(ch, nil)

	c.Mount(context.Background())

	assert.Equal(t, []string{noticeConnecting, noticeConnected}, texts(c.Messages()))
	assert.Equal(t, messaging.Connected, c.State())
	assert.Len(t, ch.listeners, 1)
}

func TestMount_AdvisesLoginWithoutToken(t *testing.T) {
	ch := &fakeChannel{}
	c := newController(ch, nil)

	c.Mount(context.Background())

	assert.Equal(t, []string{noticeConnecting, noticeConnected, noticeLoginAdvice}, texts(c.Messages()))
}

func TestMount_ConnectFailure(t *testing.T) {
	ch := &fakeChannel{connectErr: errors.New("refused")}
	c := newController(ch, nil)

	c.Mount(context.Background())

	assert.Equal(t, messaging.Errored, c.State())
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsSystem())
	assert.Equal(t, noticeConnectFailed, msgs[1].Text)
}

func TestMount_TwiceIngestsHandoffOnce(t *testing.T) {
	slot := &handoff.Slot{}
	slot.Put(handoff.Pending{
		Recipe: recipe.Raw{"id": 7.0, "name": "Bulgogi", "instructions": []any{map[string]any{"step": 1.0, "text": "Grill"}}},
		Origin: handoff.OriginUpload,
	})
	ch := &fakeChannel{token: true}
	c := newController(ch, slot)

	c.Mount(context.Background())
	c.Mount(context.Background())

	var recipes []ChatMessage
	for _, m := range c.Messages() {
		if m.Sender == SenderAssistant && m.Recipe != nil {
			recipes = append(recipes, m)
		}
	}
	require.Len(t, recipes, 1)
	assert.Equal(t, "Bulgogi", recipes[0].Recipe.Name)
	assert.Equal(t, "7", recipes[0].RecipeID)
	assert.Equal(t, 5, recipes[0].Recipe.TotalTimeMinutes)
	assert.Equal(t, 1, ch.connects)
	assert.Len(t, ch.listeners, 1)
}

func TestMount_LaterHandoffIsPickedUpOnce(t *testing.T) {
	slot := &handoff.Slot{}
	ch := &fakeChannel{token: true}
	c := newController(ch, slot)
	c.Mount(context.Background())

	slot.Put(handoff.Pending{Recipe: recipe.Raw{"name": "Japchae"}, Origin: handoff.OriginUpload})
	c.Mount(context.Background())
	slot.Put(handoff.Pending{Recipe: recipe.Raw{"name": "Second"}, Origin: handoff.OriginUpload})
	c.Mount(context.Background())

	assert.Len(t, c.RecipeMessages(), 1)
	latest, ok := c.LatestRecipe()
	require.True(t, ok)
	assert.Equal(t, "Japchae", latest.Recipe.Name)
	assert.Equal(t, []string{
		noticeConnecting,
		noticeConnected,
		noticeRecipeCreated,
		"Here is the recipe you asked for: Japchae",
	}, texts(c.Messages()))
}

func TestOnMessage(t *testing.T) {
	ch := &fakeChannel{token: true}
	c := newController(ch, nil)
	c.Mount(context.Background())

	c.OnMessage(messaging.Payload{"sender": "assistant", "text": "Try adding garlic"})
	c.OnMessage(messaging.Payload{"unrelated": true})
	c.OnMessage(messaging.Payload{"username": "AI chef", "message": "Here you go", "recipe": map[string]any{"id": "r-1", "name": "Kimbap"}})
	c.OnMessage(messaging.Payload{"sender": "assistant"})

	msgs := c.Messages()[2:]
	require.Len(t, msgs, 3)
	assert.Equal(t, "Try adding garlic", msgs[0].Text)
	assert.Equal(t, "AI chef", msgs[1].Sender)
	require.NotNil(t, msgs[1].Recipe)
	assert.Equal(t, "Kimbap", msgs[1].Recipe.Name)
	assert.Equal(t, "r-1", msgs[1].RecipeID)
	assert.True(t, msgs[2].Empty())
}

func TestOnMessage_ConcurrentAppendsAreKept(t *testing.T) {
	slot := &handoff.Slot{}
	ch := &fakeChannel{token: true}
	c := newController(ch, slot)
	c.Mount(context.Background())
	slot.Put(handoff.Pending{Recipe: recipe.Raw{"name": "Stew"}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.OnMessage(messaging.Payload{"text": fmt.Sprintf("m%d", i)})
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Mount(context.Background())
	}()
	wg.Wait()

	// connecting + connected + 50 inbound + 2 handoff messages
	assert.Len(t, c.Messages(), 54)
}

func TestSend(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c := newController(&fakeChannel{connected: true, sendOK: true}, nil)
		assert.ErrorIs(t, c.Send("   ", nil), ErrEmptyMessage)
		assert.Empty(t, c.Messages())
	})

	t.Run("not connected", func(t *testing.T) {
		ch := &fakeChannel{sendOK: true}
		c := newController(ch, nil)
		assert.ErrorIs(t, c.Send("hello", nil), ErrNotConnected)
		assert.Empty(t, c.Messages())
		assert.Empty(t, ch.sent)
	})

	t.Run("not authenticated", func(t *testing.T) {
		ch := &fakeChannel{connected: true, sendOK: true}
		c := NewController(ch, fakeSession{}, nil, telemetry.DiscardLogger())
		assert.ErrorIs(t, c.Send("hello", nil), ErrNotAuthenticated)
		assert.Empty(t, c.Messages())
	})

	t.Run("optimistic append", func(t *testing.T) {
		ch := &fakeChannel{connected: true, sendOK: true}
		c := newController(ch, nil)

		require.NoError(t, c.Send("what can I cook?", &Image{Ref: "fridge.jpg", Data: []byte{1, 2}}))

		msgs := c.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, ChatMessage{Sender: "chef", Text: "what can I cook?", ImageRef: "fridge.jpg", SentByCurrentUser: true}, msgs[0])
		assert.Equal(t, []string{"what can I cook?"}, ch.sent)
		assert.Equal(t, []byte{1, 2}, ch.images[0])
	})

	t.Run("channel refuses", func(t *testing.T) {
		ch := &fakeChannel{connected: true}
		c := newController(ch, nil)

		assert.ErrorIs(t, c.Send("hello", nil), ErrSendFailed)
		assert.Equal(t, []string{"hello", noticeSendFailed}, texts(c.Messages()))
	})
}

func TestReconnect(t *testing.T) {
	ch := &fakeChannel{connectErr: errors.New("refused"), token: true}
	c := newController(ch, nil)
	c.Mount(context.Background())

	c.Reconnect(context.Background())
	assert.Equal(t, messaging.Errored, c.State())

	ch.mu.Lock()
	ch.connectErr = nil
	ch.mu.Unlock()
	c.Reconnect(context.Background())

	assert.Equal(t, messaging.Connected, c.State())
	assert.Equal(t, []string{
		noticeConnecting,
		noticeConnectFailed,
		noticeReconnecting,
		noticeReconnectFailed,
		noticeReconnecting,
		noticeReconnected,
	}, texts(c.Messages()))
}

func TestOnConnectionLost(t *testing.T) {
	ch := &fakeChannel{token: true}
	c := newController(ch, nil)
	c.Mount(context.Background())
	require.Equal(t, messaging.Connected, c.State())

	var _ messaging.LossListener = c

	c.OnConnectionLost(errors.New("broker went away"), true)
	assert.Equal(t, messaging.Connecting, c.State())

	c.onConnected()
	assert.Equal(t, messaging.Connected, c.State())

	c.OnConnectionLost(errors.New("broker went away"), false)
	assert.Equal(t, messaging.Disconnected, c.State())

	assert.Equal(t, []string{
		noticeConnecting,
		noticeConnected,
		noticeConnectionLost,
		noticeConnected,
		noticeConnectionDrop,
	}, texts(c.Messages()))
}

func TestAddSubstitution(t *testing.T) {
	c := newController(&fakeChannel{}, nil)

	c.AddSubstitution(backend.SubstituteResult{Message: "Tofu cannot replace eggs here."})
	c.AddSubstitution(backend.SubstituteResult{Success: true, Recipe: recipe.Raw{"id": 3.0, "name": "Tofu scramble"}})

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsSystem())
	assert.Equal(t, "Tofu cannot replace eggs here.", msgs[0].Text)
	assert.Equal(t, SenderAssistant, msgs[1].Sender)
	assert.Equal(t, "Tofu scramble", msgs[1].Recipe.Name)
	assert.Equal(t, "3", msgs[1].RecipeID)
}

func TestSubscribe_SeesAppendsInOrder(t *testing.T) {
	c := newController(&fakeChannel{token: true}, nil)
	var seen []string
	c.Subscribe(func(m ChatMessage) { seen = append(seen, m.Text) })

	c.Mount(context.Background())
	c.OnMessage(messaging.Payload{"text": "hi"})

	assert.Equal(t, []string{noticeConnecting, noticeConnected, "hi"}, seen)
}

func TestTeardown_RunsOnce(t *testing.T) {
	ch := &fakeChannel{token: true}
	archive := &fakeArchive{}
	c := newController(ch, nil, WithArchive(archive))
	c.Mount(context.Background())

	require.NoError(t, c.Teardown(context.Background()))
	require.NoError(t, c.Teardown(context.Background()))

	assert.Equal(t, 1, ch.disconnects)
	assert.Equal(t, 1, ch.unregistered)
	assert.Empty(t, ch.listeners)
	require.Len(t, archive.saved, 1)
	assert.Equal(t, "chef", archive.saved[0].Username)
	assert.Len(t, archive.saved[0].Entries, 2)
	assert.Equal(t, messaging.Disconnected, c.State())
}

func TestTeardown_ArchiveError(t *testing.T) {
	archive := &fakeArchive{err: errors.New("disk full")}
	c := newController(&fakeChannel{token: true}, nil, WithArchive(archive))
	c.Mount(context.Background())

	err := c.Teardown(context.Background())
	assert.Error(t, err)
	assert.Equal(t, err, c.Teardown(context.Background()))
}

func TestTeardown_NeverMountedSkipsArchive(t *testing.T) {
	archive := &fakeArchive{}
	c := newController(&fakeChannel{}, nil, WithArchive(archive))

	require.NoError(t, c.Teardown(context.Background()))
	assert.Empty(t, archive.saved)
}

func TestFromPayload(t *testing.T) {
	tests := []struct {
		name   string
		in     messaging.Payload
		want   ChatMessage
		wantOK bool
	}{
		{name: "nil", in: nil},
		{name: "no chat fields", in: messaging.Payload{"type": "PING"}},
		{
			name:   "primary names",
			in:     messaging.Payload{"sender": "assistant", "text": "hi", "imageRef": "a.png"},
			want:   ChatMessage{Sender: "assistant", Text: "hi", ImageRef: "a.png"},
			wantOK: true,
		},
		{
			name:   "alternate names",
			in:     messaging.Payload{"username": "bob", "message": "yo", "imageUrl": "b.png", "sentByMe": true},
			want:   ChatMessage{Sender: "bob", Text: "yo", ImageRef: "b.png", SentByCurrentUser: true},
			wantOK: true,
		},
		{
			name:   "missing sender",
			in:     messaging.Payload{"text": "plain"},
			want:   ChatMessage{Sender: SenderAssistant, Text: "plain"},
			wantOK: true,
		},
		{
			name:   "recipe id from field",
			in:     messaging.Payload{"text": "x", "recipeId": 12.0, "recipe": "not an object"},
			want:   ChatMessage{Sender: SenderAssistant, Text: "x", RecipeID: "12"},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromPayload(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntryRoundTrip(t *testing.T) {
	r := recipe.Normalize(recipe.Raw{"name": "Soup"})
	m := ChatMessage{Sender: "chef", Text: "t", ImageRef: "i", Recipe: &r, RecipeID: "1", SentByCurrentUser: true}

	assert.Equal(t, m, FromEntry(toEntry(m)))
}
