package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecipeChat/internal/session"
	"RecipeChat/internal/telemetry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *session.State) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := telemetry.DiscardLogger()
	state := session.NewState(&session.MemoryStore{}, logger)
	return NewClient(srv.URL, state, logger, opts...), state
}

func TestLogin_TokenExtractionOrder(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		body       string
		wantToken  string
		wantSource string
	}{
		{
			name:       "header wins over body",
			header:     "Bearer header-token",
			body:       `{"accessToken":"body-token"}`,
			wantToken:  "header-token",
			wantSource: "header",
		},
		{
			name:       "structured body",
			body:       `{"accessToken":"body-token","tokenType":"Bearer"}`,
			wantToken:  "body-token",
			wantSource: "body",
		},
		{
			name:       "text blob fallback",
			body:       "grantType: Bearer\naccessToken: text-token\nrefreshToken: ignored",
			wantToken:  "text-token",
			wantSource: "text",
		},
		{
			name:       "text blob at end of body",
			body:       "accessToken: tail-token",
			wantToken:  "tail-token",
			wantSource: "text",
		},
		{
			name:       "non bearer header falls through",
			header:     "Basic abc",
			body:       `{"accessToken":"body-token"}`,
			wantToken:  "body-token",
			wantSource: "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, state := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/auth/login", r.URL.Path)
				if tt.header != "" {
					w.Header().Set("Authorization", tt.header)
				}
				_, _ = io.WriteString(w, tt.body)
			})

			res, err := client.Login(context.Background(), "cook@example.com", "secret")
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, res.Token)
			assert.Equal(t, tt.wantSource, res.Source)
			assert.Equal(t, tt.wantToken, state.Token())
		})
	}
}

func TestLogin_NoTokenFails(t *testing.T) {
	client, state := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	})

	_, err := client.Login(context.Background(), "cook@example.com", "secret")
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrMissingToken))
	assert.False(t, state.Authenticated())
}

func TestLogin_BodyTokenUsedOnLaterCalls(t *testing.T) {
	var seen atomic.Value
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			assert.Empty(t, r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"accessToken":"tok-123"}`)
		case "/api/mypage":
			seen.Store(r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"username":"chef","email":"cook@example.com"}`)
		}
	})

	_, err := client.Login(context.Background(), "cook@example.com", "secret")
	require.NoError(t, err)

	user, err := client.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chef", user.Username)
	assert.Equal(t, "Bearer tok-123", seen.Load())
}

func TestLogin_ValidationSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.Login(context.Background(), "not-an-email", "secret")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = client.Login(context.Background(), "cook@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, int32(0), calls.Load())
}

func TestUnauthorized_ClearsSessionAndFiresHook(t *testing.T) {
	var fired atomic.Int32
	client, state := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, WithUnauthorizedHandler(func() { fired.Add(1) }))

	require.NoError(t, state.Begin("stale"))
	state.SetProfile(session.User{Username: "chef"})

	_, err := client.FetchProfile(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, state.Authenticated())
	_, ok := state.Profile()
	assert.False(t, ok)
	assert.Equal(t, int32(1), fired.Load())
}

func TestAnonymousRequestHasNoAuthorization(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
	})

	err := client.Register(context.Background(), RegisterRequest{
		Username: "chef",
		Email:    "cook@example.com",
		Password: "secret",
	})
	assert.NoError(t, err)
}

func TestRegister_Errors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, "email in use")
	})

	err := client.Register(context.Background(), RegisterRequest{Email: "cook@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = client.Register(context.Background(), RegisterRequest{
		Username: "chef",
		Email:    "cook@example.com",
		Password: "secret",
	})
	assert.ErrorIs(t, err, ErrConflict)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestUpdateProfile(t *testing.T) {
	t.Run("uses returned user", func(t *testing.T) {
		client, state := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, hasPassword := body["password"]
			assert.False(t, hasPassword)
			_, _ = io.WriteString(w, `{"username":"new-chef","email":"cook@example.com","age":30}`)
		})
		require.NoError(t, state.Begin("tok"))

		user, err := client.UpdateProfile(context.Background(), ProfileUpdate{Username: "new-chef", Age: 30})
		require.NoError(t, err)
		assert.Equal(t, "new-chef", user.Username)
		assert.Equal(t, "new-chef", state.Username())
	})

	t.Run("empty body echoes the update", func(t *testing.T) {
		client, state := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		require.NoError(t, state.Begin("tok"))

		user, err := client.UpdateProfile(context.Background(), ProfileUpdate{Username: "chef", Height: 180})
		require.NoError(t, err)
		assert.Equal(t, "chef", user.Username)
		assert.Equal(t, 180.0, user.Height)
	})

	t.Run("username required", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("unexpected request")
		})
		_, err := client.UpdateProfile(context.Background(), ProfileUpdate{})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestTransportFailure(t *testing.T) {
	logger := telemetry.DiscardLogger()
	state := session.NewState(nil, logger)
	client := NewClient("http://127.0.0.1:1", state, logger)

	_, err := client.FetchProfile(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, strings.Contains(err.Error(), "failed to fetch profile"))
}

func TestWithTelemetry(t *testing.T) {
	tracer, meter := telemetry.Noop()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"username":"chef"}`)
	}, WithTelemetry(tracer, meter))

	require.NotNil(t, client.duration)
	_, err := client.FetchProfile(context.Background())
	assert.NoError(t, err)
}
