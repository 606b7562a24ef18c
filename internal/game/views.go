package game

import (
	"cmp"
	"slices"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/turn"
)

// Progress summarizes where the session stands.
type Progress struct {
	Status          cluequiz.Status
	Round           int
	Rounds          int
	Remaining       int
	CluesRead       int
	MaxClues        int
	PointsAvailable int
}

// viewCache holds the derived views of one revision. Views are computed on
// first use and dropped on every commit.
type viewCache struct {
	session     *cluequiz.GameSession
	leaderboard []cluequiz.Player
	byCategory  map[string][]cluequiz.Profile
	clues       []string
}

// Revision increases with every committed change.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

// Session returns a snapshot of the session, or nil when there is none.
// The snapshot is shared by every caller until the next change and must
// not be modified.
func (s *Store) Session() *cluequiz.GameSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	if s.views.session == nil {
		snap := s.session.Clone()
		if s.err != nil {
			e := *s.err
			snap.Error = &e
		}
		s.views.session = snap
	}
	return s.views.session
}

// Error returns the stored session error.
func (s *Store) Error() *cluequiz.SessionError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil {
		return nil
	}
	e := *s.err
	return &e
}

// Leaderboard returns the players ordered by score, highest first. Ties
// keep roster order.
func (s *Store) Leaderboard() []cluequiz.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	if s.views.leaderboard == nil {
		board := slices.Clone(s.session.Players)
		slices.SortStableFunc(board, func(a, b cluequiz.Player) int {
			return cmp.Compare(b.Score, a.Score)
		})
		s.views.leaderboard = board
	}
	return s.views.leaderboard
}

// ProfilesByCategory groups the loaded profiles by category, each group
// sorted by name.
func (s *Store) ProfilesByCategory() map[string][]cluequiz.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	if s.views.byCategory == nil {
		groups := make(map[string][]cluequiz.Profile)
		for _, p := range s.session.Profiles {
			groups[p.Category] = append(groups[p.Category], p)
		}
		for _, g := range groups {
			slices.SortFunc(g, func(a, b cluequiz.Profile) int {
				return cmp.Compare(a.Name, b.Name)
			})
		}
		s.views.byCategory = groups
	}
	return s.views.byCategory
}

// CurrentClues returns the revealed clues of the current profile, most
// recent first.
func (s *Store) CurrentClues() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	if s.views.clues == nil {
		s.views.clues = slices.Clone(s.session.RevealedClueHistory)
		if s.views.clues == nil {
			s.views.clues = []string{}
		}
	}
	return s.views.clues
}

func (s *Store) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return Progress{}
	}
	sess := s.session
	p := Progress{
		Status:    sess.Status,
		Round:     sess.CurrentRound,
		Rounds:    sess.TotalProfilesCount,
		Remaining: len(sess.SelectedProfiles),
	}
	if sess.CurrentTurn != nil && sess.CurrentProfile != nil {
		p.CluesRead = sess.CurrentTurn.CluesRead
		p.MaxClues = turn.MaxClues(s.rules, sess.CurrentProfile)
		if p.CluesRead > 0 {
			p.PointsAvailable = turn.Points(s.rules, p.CluesRead)
		}
	}
	return p
}
