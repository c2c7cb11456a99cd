// Package handoff carries a freshly generated recipe from the upload flow to
// the chat flow. The value is in memory only and can be taken once.
package handoff

import (
	"sync"

	"RecipeChat/internal/recipe"
)

// OriginUpload marks a handoff produced by the recipe upload flow
const OriginUpload = "upload"

// Pending is a one-shot recipe payload
type Pending struct {
	Recipe recipe.Raw
	Origin string
}

// Slot holds at most one pending handoff
type Slot struct {
	mu      sync.Mutex
	pending *Pending
}

// Put stores p, replacing any handoff not yet taken
func (s *Slot) Put(p Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &p
}

// Take returns the pending handoff and clears the slot.
// Only the first caller after a Put gets it.
func (s *Slot) Take() (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Pending{}, false
	}
	p := *s.pending
	s.pending = nil
	return p, true
}
