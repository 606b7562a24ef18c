// Package persistence schedules session writes. Bursts of changes to one
// session collapse into a single delayed write; a forced write cancels the
// pending one and reports failures to the caller.
package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/rehydration"
)

//go:generate go tool mockgen -destination=./mocks/repository_mock.go -package=mocks . Repository

// Repository is the durable session storage.
type Repository interface {
	Save(ctx context.Context, id string, state *cluequiz.PersistedGameState) error
	// Load returns nil and no error when the session does not exist.
	Load(ctx context.Context, id string) (*cluequiz.PersistedGameState, error)
}

type Options struct {
	Delay       time.Duration
	SaveTimeout time.Duration
}

type pending struct {
	timer *time.Timer
}

// version orders writes per session. issued is taken under Service.mu when
// a save is requested; written is only touched under Service.writeMu.
type version struct {
	issued  uint64
	written uint64
}

type Service struct {
	repo    Repository
	tracker *rehydration.Tracker
	opts    Options
	logger  *slog.Logger

	mu       sync.Mutex
	timers   map[string]*pending
	versions map[string]*version
	closed   bool
	inflight sync.WaitGroup

	// serializes repository writes; a write older than the last one stored
	// for its session is dropped
	writeMu sync.Mutex
}

func NewService(repo Repository, tracker *rehydration.Tracker, logger *slog.Logger, opts Options) *Service {
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	return &Service{
		repo:    repo,
		tracker: tracker,
		opts:    opts,
		logger:  logger,
		timers:   make(map[string]*pending),
		versions: make(map[string]*version),
	}
}

// DebouncedSave schedules a write of state after the configured delay,
// replacing any write already scheduled for id. It does nothing while id
// is being rehydrated.
func (s *Service) DebouncedSave(ctx context.Context, id string, state *cluequiz.PersistedGameState) {
	if s.tracker.IsRehydrating(id) {
		s.logger.Debug("save skipped during rehydration", "session", id)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if p, ok := s.timers[id]; ok {
		p.timer.Stop()
	}
	ctx = context.WithoutCancel(ctx)
	seq := s.nextLocked(id)
	p := &pending{}
	p.timer = time.AfterFunc(s.opts.Delay, func() { s.fire(ctx, id, seq, state, p) })
	s.timers[id] = p
}

func (s *Service) fire(ctx context.Context, id string, seq uint64, state *cluequiz.PersistedGameState, p *pending) {
	s.mu.Lock()
	if s.closed || s.timers[id] != p {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	defer func() {
		s.mu.Lock()
		if s.timers[id] == p {
			delete(s.timers, id)
		}
		s.mu.Unlock()
	}()

	if s.tracker.IsRehydrating(id) {
		return
	}
	if err := s.write(ctx, id, seq, state); err != nil {
		s.logger.Error("debounced save failed", "session", id, "error", err)
		return
	}
	s.logger.Debug("session saved", "session", id)
}

// ForceSave cancels any scheduled write for id and writes state now. It
// does nothing while id is being rehydrated.
func (s *Service) ForceSave(ctx context.Context, id string, state *cluequiz.PersistedGameState) error {
	if s.tracker.IsRehydrating(id) {
		s.logger.Debug("forced save skipped during rehydration", "session", id)
		return nil
	}

	s.mu.Lock()
	if p, ok := s.timers[id]; ok {
		p.timer.Stop()
		delete(s.timers, id)
	}
	seq := s.nextLocked(id)
	s.mu.Unlock()

	if err := s.write(ctx, id, seq, state); err != nil {
		return cluequiz.SaveFailed(id, err)
	}
	return nil
}

func (s *Service) nextLocked(id string) uint64 {
	v, ok := s.versions[id]
	if !ok {
		v = &version{}
		s.versions[id] = v
	}
	v.issued++
	return v.issued
}

func (s *Service) write(ctx context.Context, id string, seq uint64, state *cluequiz.PersistedGameState) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	v := s.versions[id]
	s.mu.Unlock()
	if seq <= v.written {
		s.logger.Debug("stale save dropped", "session", id)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.SaveTimeout)
	defer cancel()
	if err := s.repo.Save(ctx, id, state); err != nil {
		return err
	}
	v.written = seq
	return nil
}

// Load reads a session from the repository.
func (s *Service) Load(ctx context.Context, id string) (*cluequiz.PersistedGameState, error) {
	return s.repo.Load(ctx, id)
}

// ClearTimers cancels every scheduled write.
func (s *Service) ClearTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.timers {
		p.timer.Stop()
		delete(s.timers, id)
	}
}

// PendingSaveCount returns the number of sessions with a scheduled write.
func (s *Service) PendingSaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels scheduled writes and waits for writes already running.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.ClearTimers()
	s.inflight.Wait()
}
