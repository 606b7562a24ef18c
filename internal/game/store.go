// Package game is the authoritative in-memory store for one game session.
// Every action runs against a copy of the session and commits the copy
// only when it succeeds, then schedules the session for persistence.
package game

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/clueshuffle"
	"github.com/playperu/cluequiz/internal/distribution"
	"github.com/playperu/cluequiz/internal/persistence"
	"github.com/playperu/cluequiz/internal/rehydration"
	"github.com/playperu/cluequiz/internal/shuffle"
	"github.com/playperu/cluequiz/internal/telemetry"
	"github.com/playperu/cluequiz/internal/turn"
)

// ProfileSource resolves category selections into profile records.
type ProfileSource interface {
	// LoadCategories returns every profile of the categories. Each
	// returned profile's Category equals the requested category string.
	LoadCategories(ctx context.Context, categories []string, locale string) ([]cluequiz.Profile, error)
	LoadProfilesByIDs(ctx context.Context, ids []string, locale string) ([]cluequiz.Profile, error)
}

type Options struct {
	MinPlayers      int
	MaxPlayers      int
	CluesPerProfile int
	DefaultLocale   string
}

type Deps struct {
	Source      ProfileSource
	Persistence *persistence.Service
	Tracker     *rehydration.Tracker
	Sink        telemetry.Sink
	Rand        shuffle.Rand
	Logger      *slog.Logger
	NewID       func() string
}

type Store struct {
	opts    Options
	rules   turn.Rules
	source  ProfileSource
	persist *persistence.Service
	tracker *rehydration.Tracker
	sink    telemetry.Sink
	rng     shuffle.Rand
	logger  *slog.Logger
	newID   func() string

	mu      sync.Mutex
	session *cluequiz.GameSession
	err     *cluequiz.SessionError
	rev     uint64
	views   viewCache
}

func New(opts Options, deps Deps) *Store {
	if deps.Sink == nil {
		deps.Sink = telemetry.Discard{}
	}
	if deps.Rand == nil {
		deps.Rand = shuffle.Default()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}
	return &Store{
		opts:    opts,
		rules:   turn.Rules{CluesPerProfile: opts.CluesPerProfile},
		source:  deps.Source,
		persist: deps.Persistence,
		tracker: deps.Tracker,
		sink:    deps.Sink,
		rng:     deps.Rand,
		logger:  deps.Logger,
		newID:   deps.NewID,
	}
}

// CreateGame starts a new pending session for the roster and writes it to
// storage before returning.
func (s *Store) CreateGame(ctx context.Context, names []string) (string, error) {
	roster, err := s.validateRoster(names)
	if err != nil {
		return "", err
	}

	id := s.newID()
	players := make([]cluequiz.Player, len(roster))
	for i, name := range roster {
		players[i] = cluequiz.Player{ID: s.newID(), Name: name}
	}
	sess := newSession(id, players, s.opts.DefaultLocale)

	s.tracker.Reset(id)

	s.mu.Lock()
	s.session = sess
	s.err = nil
	s.bumpLocked()
	st := cluequiz.ToPersisted(sess)
	s.mu.Unlock()

	s.sink.SetContext("session", id)
	s.logger.Info("game created", "session", id, "players", len(players))

	if err := s.persist.ForceSave(ctx, id, st); err != nil {
		s.sink.CaptureError(ctx, err)
		return id, err
	}
	return id, nil
}

func (s *Store) validateRoster(names []string) ([]string, error) {
	roster := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, cluequiz.Validation("Player names cannot be empty")
		}
		roster = append(roster, n)
	}
	if len(roster) > s.opts.MaxPlayers {
		return nil, cluequiz.Validation("A game allows a maximum of %d players, got %d", s.opts.MaxPlayers, len(roster))
	}
	if len(roster) < s.opts.MinPlayers {
		return nil, cluequiz.Validation("A game needs a minimum of %d players, got %d", s.opts.MinPlayers, len(roster))
	}
	return roster, nil
}

func newSession(id string, players []cluequiz.Player, locale string) *cluequiz.GameSession {
	return &cluequiz.GameSession{
		ID:                  id,
		Players:             players,
		Profiles:            []cluequiz.Profile{},
		SelectedProfiles:    []string{},
		SelectedCategories:  []string{},
		RevealedClueHistory: []string{},
		RevealedClueIndices: []int{},
		ClueShuffleMap:      clueshuffle.NewTable(),
		Status:              cluequiz.StatusPending,
		Locale:              locale,
	}
}

// StartGame loads the categories, picks the profiles for the rounds and
// makes the first one current.
func (s *Store) StartGame(ctx context.Context, categories []string, rounds int, locale string) error {
	if len(categories) == 0 {
		return cluequiz.Validation("Select at least one category")
	}
	if rounds < 1 {
		return cluequiz.Validation("Number of rounds must be at least 1, got %d", rounds)
	}
	if locale == "" {
		locale = s.opts.DefaultLocale
	}
	if err := s.requireStartable(); err != nil {
		return err
	}

	pool, err := s.source.LoadCategories(ctx, categories, locale)
	if err != nil {
		return err
	}
	if !distribution.HasEnoughProfiles(pool, categories, rounds) {
		return cluequiz.InsufficientProfiles(distribution.AvailableProfileCount(pool, categories), rounds)
	}

	return s.apply(ctx, func(next *cluequiz.GameSession) (bool, error) {
		if next.Status == cluequiz.StatusActive {
			return false, cluequiz.InvalidState("Game already started")
		}
		ids, err := distribution.Select(s.rng, pool, categories, rounds)
		if err != nil {
			return false, err
		}

		picked := make(map[string]bool, len(ids))
		for _, id := range ids {
			picked[id] = true
		}
		next.Profiles = slices.DeleteFunc(slices.Clone(pool), func(p cluequiz.Profile) bool {
			if !picked[p.ID] {
				return true
			}
			delete(picked, p.ID)
			return false
		})
		next.SelectedCategories = slices.Clone(categories)
		next.NumberOfRounds = rounds
		next.Locale = locale
		next.ClueShuffleMap = clueshuffle.NewTable()
		if err := turn.Start(next, s.rng, ids); err != nil {
			return false, err
		}

		s.logger.Info("game started", "session", next.ID, "rounds", rounds, "categories", categories, "locale", locale)
		return true, nil
	})
}

func (s *Store) requireStartable() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return cluequiz.InvalidState("No game in progress")
	}
	if s.session.Status == cluequiz.StatusActive {
		return cluequiz.InvalidState("Game already started")
	}
	return nil
}

// LoadProfiles replaces the loaded profiles. The current profile is
// refreshed by id and the revealed clues are rebuilt from their indices,
// so swapping content (for example after a language change) keeps the
// progress and the clue order.
func (s *Store) LoadProfiles(ctx context.Context, profiles []cluequiz.Profile) error {
	return s.apply(ctx, func(next *cluequiz.GameSession) (bool, error) {
		s.replaceProfiles(next, profiles)
		return true, nil
	})
}

func (s *Store) replaceProfiles(next *cluequiz.GameSession, profiles []cluequiz.Profile) {
	// keep the category labels the game was started with
	labels := make(map[string]string, len(next.Profiles))
	for _, p := range next.Profiles {
		labels[p.ID] = p.Category
	}
	next.Profiles = slices.Clone(profiles)
	for i, p := range next.Profiles {
		if label, ok := labels[p.ID]; ok && label != "" {
			next.Profiles[i].Category = label
		}
	}
	if next.CurrentProfile == nil {
		return
	}

	refreshed, ok := next.FindProfile(next.CurrentProfile.ID)
	if !ok {
		s.logger.Warn("current profile missing from reloaded profiles", "session", next.ID, "profile", next.CurrentProfile.ID)
		next.Profiles = append(next.Profiles, *next.CurrentProfile)
		return
	}
	next.CurrentProfile = refreshed

	history := make([]string, 0, len(next.RevealedClueIndices))
	for i, idx := range next.RevealedClueIndices {
		switch {
		case idx >= 0 && idx < len(refreshed.Clues):
			history = append(history, refreshed.Clues[idx])
		case i < len(next.RevealedClueHistory):
			history = append(history, next.RevealedClueHistory[i])
		}
	}
	next.RevealedClueHistory = history
}

// ChangeLocale reloads the session's profiles in another language.
func (s *Store) ChangeLocale(ctx context.Context, locale string) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return cluequiz.InvalidState("No game in progress")
	}
	ids := make([]string, 0, len(s.session.Profiles))
	for _, p := range s.session.Profiles {
		ids = append(ids, p.ID)
	}
	s.mu.Unlock()

	var profiles []cluequiz.Profile
	if len(ids) > 0 {
		var err error
		profiles, err = s.source.LoadProfilesByIDs(ctx, ids, locale)
		if err != nil {
			return err
		}
	}

	return s.apply(ctx, func(next *cluequiz.GameSession) (bool, error) {
		if next.Locale == locale && len(ids) == 0 {
			return false, nil
		}
		next.Locale = locale
		if len(ids) > 0 {
			s.replaceProfiles(next, profiles)
		}
		return true, nil
	})
}

// NextClue reveals the next clue of the current profile.
func (s *Store) NextClue(ctx context.Context) error {
	return s.apply(ctx, func(next *cluequiz.GameSession) (bool, error) {
		return true, turn.NextClue(next, s.rng, s.rules)
	})
}

// RevealAnswer marks the current profile's answer as shown.
func (s *Store) RevealAnswer(ctx context.Context) error {
	return s.apply(ctx, func(next *cluequiz.GameSession) (bool, error) {
		return true, turn.Reveal(next)
	})
}

// AwardPoints credits the player for a correct guess and moves to the next
// profile. It returns the points awarded.
func (s *Store) AwardPoints(ctx context.Context, playerID string) (int, error) {
	var pts int
	err := s.apply(ctx, func(next *cluequiz.GameSession) (bool, error) {
		var err error
		pts, err = turn.Award(next, s.rng, s.rules, playerID)
		return true, err
	})
	return pts, err
}

// RemovePoints takes amount points from the player. Removing zero points
// changes nothing and schedules no save.
func (s *Store) RemovePoints(ctx context.Context, playerID string, amount int) error {
	return s.apply(ctx, func(next *cluequiz.GameSession) (bool, error) {
		return turn.RemovePoints(next, playerID, amount)
	})
}

func (s *Store) SkipProfile(ctx context.Context) error {
	return s.apply(ctx, func(next *cluequiz.GameSession) (bool, error) {
		return true, turn.Skip(next, s.rng)
	})
}

// EndGame completes the session early.
func (s *Store) EndGame(ctx context.Context) error {
	var id string
	err := s.apply(ctx, func(next *cluequiz.GameSession) (bool, error) {
		id = next.ID
		return true, turn.End(next)
	})
	if err != nil {
		return err
	}
	s.tracker.Reset(id)
	s.logger.Info("game ended", "session", id)
	return nil
}

// ResetGame clears the round plan and scores but keeps the session id and
// roster, then writes the session to storage before returning.
func (s *Store) ResetGame(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return cluequiz.InvalidState("No game in progress")
	}
	players := slices.Clone(s.session.Players)
	for i := range players {
		players[i].Score = 0
	}
	sess := newSession(s.session.ID, players, s.session.Locale)
	s.session = sess
	s.err = nil
	s.bumpLocked()
	st := cluequiz.ToPersisted(sess)
	s.mu.Unlock()

	s.tracker.Reset(sess.ID)
	s.logger.Info("game reset", "session", sess.ID)

	if err := s.persist.ForceSave(ctx, sess.ID, st); err != nil {
		s.sink.CaptureError(ctx, err)
		return err
	}
	return nil
}

// LoadFromStorage restores session id. It reports false and stores a
// session error when the session is missing or cannot be restored.
func (s *Store) LoadFromStorage(ctx context.Context, id string) bool {
	s.tracker.Start(id)

	st, err := s.persist.Load(ctx, id)
	if err != nil {
		s.failLoad(ctx, id, cluequiz.SessionCorrupted(id, err))
		return false
	}
	if st == nil {
		s.failLoad(ctx, id, cluequiz.SessionNotFound(id))
		return false
	}

	sess, err := cluequiz.FromPersisted(st)
	if err != nil {
		s.failLoad(ctx, id, cluequiz.SessionCorrupted(id, err))
		return false
	}

	s.mu.Lock()
	if sess.CurrentProfile != nil {
		sess.ClueShuffleMap.Ensure(s.rng, sess.CurrentProfile.ID, len(sess.CurrentProfile.Clues))
	}
	s.session = sess
	s.err = nil
	s.bumpLocked()
	// Suppressed by the rehydration guard: the record just read must not
	// be written back while the load is still in flight.
	s.persist.DebouncedSave(ctx, id, cluequiz.ToPersisted(sess))
	s.mu.Unlock()

	s.tracker.Complete(id)
	s.sink.SetContext("session", id)
	s.logger.Info("game restored", "session", id, "status", sess.Status)
	return true
}

func (s *Store) failLoad(ctx context.Context, id string, err *cluequiz.Error) {
	s.tracker.Fail(id, err)
	s.logger.Warn("game restore failed", "session", id, "error", err)
	s.SetError(ctx, err)
}

// SetError stores err as the session error and reports it.
func (s *Store) SetError(ctx context.Context, err error) {
	if err == nil {
		s.ClearError()
		return
	}
	s.mu.Lock()
	s.err = cluequiz.ToSessionError(err)
	s.bumpLocked()
	s.mu.Unlock()

	s.sink.CaptureError(ctx, err)
}

// SetErrorMessage stores a plain message as the session error.
func (s *Store) SetErrorMessage(ctx context.Context, msg string, informative bool) {
	s.mu.Lock()
	s.err = &cluequiz.SessionError{Code: cluequiz.CodeUnknown, Message: msg, Informative: informative}
	s.bumpLocked()
	s.mu.Unlock()

	s.sink.CaptureMessage(ctx, msg, slog.LevelWarn)
}

func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		s.err = nil
		s.bumpLocked()
	}
}

// Close writes the current session, stops scheduled writes and forgets
// rehydration state.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	var (
		id string
		st *cluequiz.PersistedGameState
	)
	if s.session != nil {
		id = s.session.ID
		st = cluequiz.ToPersisted(s.session)
	}
	s.mu.Unlock()

	var err error
	if st != nil {
		err = s.persist.ForceSave(ctx, id, st)
	}
	s.persist.Close()
	s.tracker.Cleanup()
	return err
}

// apply runs fn on a copy of the session and commits the copy when fn
// succeeds and reports a change.
func (s *Store) apply(ctx context.Context, fn func(next *cluequiz.GameSession) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return cluequiz.InvalidState("No game in progress")
	}
	next := s.session.Clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.session = next
	s.bumpLocked()
	s.persist.DebouncedSave(ctx, next.ID, cluequiz.ToPersisted(next))
	return nil
}

func (s *Store) bumpLocked() {
	s.rev++
	s.views = viewCache{}
}
