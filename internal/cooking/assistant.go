// Package cooking walks a recipe step by step with a countdown per step.
package cooking

import (
	"fmt"
	"sync"
	"time"

	"RecipeChat/internal/recipe"
)

// Assistant tracks the current step of a recipe and owns at most one running timer
type Assistant struct {
	steps []recipe.Step
	tick  time.Duration

	mu     sync.Mutex
	index  int
	timer  *countdown
	closed bool
}

type countdown struct {
	stop chan struct{}
}

// Option configures an Assistant
type Option func(*Assistant)

// WithTickInterval sets the wall time between one-second countdown ticks
func WithTickInterval(d time.Duration) Option {
	return func(a *Assistant) {
		if d > 0 {
			a.tick = d
		}
	}
}

// New creates an assistant positioned on the first step
func New(r recipe.Recipe, opts ...Option) *Assistant {
	a := &Assistant{
		steps: append([]recipe.Step(nil), r.Steps...),
		tick:  time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Current returns the step being cooked
func (a *Assistant) Current() (recipe.Step, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.steps) == 0 {
		return recipe.Step{}, false
	}
	return a.steps[a.index], true
}

// Next moves to the following step, cancelling a running timer.
// It returns false on the last step.
func (a *Assistant) Next() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.index+1 >= len(a.steps) {
		return false
	}
	a.stopLocked()
	a.index++
	return true
}

// Prev moves to the preceding step, cancelling a running timer.
// It returns false on the first step.
func (a *Assistant) Prev() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.index == 0 {
		return false
	}
	a.stopLocked()
	a.index--
	return true
}

// Progress returns the position as "current/total"
func (a *Assistant) Progress() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.steps) == 0 {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d", a.index+1, len(a.steps))
}

// Running reports whether a countdown is active
func (a *Assistant) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// StartTimer counts down the current step's cooking time. onTick receives the
// remaining time after every second; onDone runs once when it reaches zero.
// It returns false if a timer is already running, there is no step, or the
// assistant is closed. Callbacks run on the timer goroutine.
func (a *Assistant) StartTimer(onTick func(remaining time.Duration), onDone func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.timer != nil || len(a.steps) == 0 {
		return false
	}

	cd := &countdown{stop: make(chan struct{})}
	a.timer = cd
	remaining := time.Duration(a.steps[a.index].CookingTimeMinutes) * time.Minute
	go a.run(cd, remaining, onTick, onDone)
	return true
}

// StopTimer cancels a running countdown without calling onDone
func (a *Assistant) StopTimer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Close cancels any running countdown; later StartTimer calls are refused
func (a *Assistant) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.stopLocked()
}

func (a *Assistant) run(cd *countdown, remaining time.Duration, onTick func(time.Duration), onDone func()) {
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for remaining > 0 {
		select {
		case <-cd.stop:
			return
		case <-ticker.C:
		}

		select {
		case <-cd.stop:
			return
		default:
		}

		remaining -= time.Second
		if onTick != nil {
			onTick(remaining)
		}
	}

	a.mu.Lock()
	current := a.timer == cd
	if current {
		a.timer = nil
	}
	a.mu.Unlock()

	if current && onDone != nil {
		onDone()
	}
}

func (a *Assistant) stopLocked() {
	if a.timer == nil {
		return
	}
	close(a.timer.stop)
	a.timer = nil
}

// FormatRemaining renders a countdown as m:ss
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
