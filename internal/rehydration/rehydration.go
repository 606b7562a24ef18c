// Package rehydration tracks which sessions are being loaded from storage
// so that writes for a session never race the read that restores it.
package rehydration

import "sync"

type State int

const (
	Idle State = iota
	Rehydrating
	Active
)

func (s State) String() string {
	switch s {
	case Rehydrating:
		return "rehydrating"
	case Active:
		return "active"
	default:
		return "idle"
	}
}

type entry struct {
	state State
	err   error
}

// Tracker holds the rehydration state of every known session id. Unknown
// ids are Idle.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*entry)}
}

// Start marks id as loading. Saves for id are suppressed until Complete or
// Fail is called.
func (t *Tracker) Start(id string) {
	t.mu.Lock()
	t.sessions[id] = &entry{state: Rehydrating}
	t.mu.Unlock()
}

// Complete marks the load of id as finished and clears any stored error.
func (t *Tracker) Complete(id string) {
	t.finish(id, nil)
}

// Fail marks the load of id as finished with err. The session is usable
// afterwards.
func (t *Tracker) Fail(id string, err error) {
	t.finish(id, err)
}

func (t *Tracker) finish(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.sessions[id]
	if !ok || e.state != Rehydrating {
		return
	}
	e.state = Active
	e.err = err
}

// Reset returns id to Idle so it can be loaded again from scratch.
func (t *Tracker) Reset(id string) {
	t.mu.Lock()
	delete(t.sessions, id)
	t.mu.Unlock()
}

func (t *Tracker) IsRehydrating(id string) bool {
	return t.State(id) == Rehydrating
}

func (t *Tracker) State(id string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if e, ok := t.sessions[id]; ok {
		return e.state
	}
	return Idle
}

// Err returns the error recorded by the last failed load of id.
func (t *Tracker) Err(id string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if e, ok := t.sessions[id]; ok {
		return e.err
	}
	return nil
}

// Len returns the number of tracked sessions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Cleanup forgets every session.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	clear(t.sessions)
	t.mu.Unlock()
}
