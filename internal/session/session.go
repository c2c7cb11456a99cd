package session

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrMissingToken is returned when an operation needs credentials and none are stored
var ErrMissingToken = errors.New("authentication token is missing")

// TokenKey is the fixed storage key the bearer token lives under
const TokenKey = "accessToken"

// User represents the profile returned by the backend
type User struct {
	Username   string  `json:"username"`
	Email      string  `json:"email,omitempty"`
	Age        int     `json:"age,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Weight     float64 `json:"weight,omitempty"`
	Habit      string  `json:"habit,omitempty"`
	Preference string  `json:"preference,omitempty"`
}

// Store persists the bearer token between runs
type Store interface {
	LoadToken() (string, error)
	SaveToken(token string) error
	ClearToken() error
}

// State holds the current authentication token and user profile.
// A profile is only ever held together with a token.
type State struct {
	mu      sync.RWMutex
	store   Store
	logger  *slog.Logger
	token   string
	profile *User
}

// NewState creates a session state seeded from the store's persisted token
func NewState(store Store, logger *slog.Logger) *State {
	s := &State{store: store, logger: logger}
	if store == nil {
		return s
	}
	token, err := store.LoadToken()
	if err != nil {
		logger.Warn("failed to load persisted token", "error", err)
		return s
	}
	s.token = token
	return s
}

// Token returns the current bearer token, or "" when logged out
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is present
func (s *State) Authenticated() bool {
	return s.Token() != ""
}

// Profile returns the cached profile, if one is loaded
func (s *State) Profile() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return User{}, false
	}
	return *s.profile, true
}

// Username returns the profile's username, falling back to "me"
func (s *State) Username() string {
	if u, ok := s.Profile(); ok && u.Username != "" {
		return u.Username
	}
	return "me"
}

// Begin starts a new session with token, dropping any previous profile
func (s *State) Begin(token string) error {
	if token == "" {
		return ErrMissingToken
	}

	s.mu.Lock()
	s.token = token
	s.profile = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveToken(token); err != nil {
			return err
		}
	}
	s.logger.Info("session started")
	return nil
}

// SetProfile records the user profile. It is refused when no token is present.
func (s *State) SetProfile(u User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return false
	}
	s.profile = &u
	return true
}

// Clear destroys the session and removes the persisted token
func (s *State) Clear() {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.profile = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ClearToken(); err != nil {
			s.logger.Warn("failed to clear persisted token", "error", err)
		}
	}
	if had {
		s.logger.Info("session cleared")
	}
}

// MemoryStore is a Store that keeps the token in process memory only
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// LoadToken implements Store
func (m *MemoryStore) LoadToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

// SaveToken implements Store
func (m *MemoryStore) SaveToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// ClearToken implements Store
func (m *MemoryStore) ClearToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
