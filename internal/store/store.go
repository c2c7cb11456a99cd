// Package store persists client state in SQLite: the session token and
// archived chat transcripts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"RecipeChat/internal/recipe"
	"RecipeChat/internal/session"
)

// ErrTranscriptNotFound is returned by Load for an unknown id
var ErrTranscriptNotFound = errors.New("transcript not found")

// TokenStore keeps the bearer token in the kv table under session.TokenKey
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a token store on an initialized database
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// LoadToken implements session.Store
func (s *TokenStore) LoadToken() (string, error) {
	var token string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", session.TokenKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// SaveToken implements session.Store
func (s *TokenStore) SaveToken(token string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", session.TokenKey, token)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// ClearToken implements session.Store
func (s *TokenStore) ClearToken() error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", session.TokenKey); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// Entry is one archived chat message
type Entry struct {
	Sender   string         `json:"sender"`
	Text     string         `json:"text,omitempty"`
	ImageRef string         `json:"imageRef,omitempty"`
	RecipeID string         `json:"recipeId,omitempty"`
	Recipe   *recipe.Recipe `json:"recipe,omitempty"`
	Mine     bool           `json:"sentByCurrentUser"`
}

// Transcript is an archived chat session
type Transcript struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	Username  string    `json:"username"`
	Entries   []Entry   `json:"messages"`
}

// Summary describes a transcript without its messages
type Summary struct {
	ID        string
	StartedAt time.Time
	Username  string
	Messages  int
}

// TranscriptStore archives chat transcripts
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore creates a transcript store on an initialized database
func NewTranscriptStore(db *sql.DB) *TranscriptStore {
	return &TranscriptStore{db: db}
}

// Save writes t, assigning a new id when it has none. Saving an existing id replaces it.
func (s *TranscriptStore) Save(ctx context.Context, t *Transcript) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO transcripts (id, start_time, username) VALUES (?, ?, ?)",
		t.ID, t.StartedAt, t.Username,
	)
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transcript_messages WHERE transcript_id = ?", t.ID); err != nil {
		return fmt.Errorf("failed to reset transcript messages: %w", err)
	}

	for i, e := range t.Entries {
		var recipeJSON sql.NullString
		if e.Recipe != nil {
			data, err := json.Marshal(e.Recipe)
			if err != nil {
				return fmt.Errorf("failed to marshal recipe: %w", err)
			}
			recipeJSON = sql.NullString{String: string(data), Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO transcript_messages
				(transcript_id, position, sender, content, image_ref, recipe_id, recipe, mine)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, i, e.Sender, e.Text, e.ImageRef, e.RecipeID, recipeJSON, e.Mine,
		)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	return tx.Commit()
}

// Load reads a transcript with its messages in display order
func (s *TranscriptStore) Load(ctx context.Context, id string) (*Transcript, error) {
	t := &Transcript{ID: id}
	err := s.db.QueryRowContext(ctx, "SELECT start_time, username FROM transcripts WHERE id = ?", id).
		Scan(&t.StartedAt, &t.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTranscriptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sender, content, image_ref, recipe_id, recipe, mine
		FROM transcript_messages WHERE transcript_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	t.Entries = []Entry{}
	for rows.Next() {
		var (
			e          Entry
			recipeJSON sql.NullString
		)
		if err := rows.Scan(&e.Sender, &e.Text, &e.ImageRef, &e.RecipeID, &recipeJSON, &e.Mine); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if recipeJSON.Valid {
			var r recipe.Recipe
			if err := json.Unmarshal([]byte(recipeJSON.String), &r); err != nil {
				return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
			}
			e.Recipe = &r
		}
		t.Entries = append(t.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return t, nil
}

// List returns the most recent transcripts first, at most limit of them
func (s *TranscriptStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.start_time, t.username, COUNT(m.id)
		FROM transcripts t
		LEFT JOIN transcript_messages m ON m.transcript_id = t.id
		GROUP BY t.id
		ORDER BY t.start_time DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.StartedAt, &sum.Username, &sum.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
