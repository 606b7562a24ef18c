// Package turn implements the clue-reveal and scoring rules. Every function
// mutates the session it is given; callers pass a clone and discard it when
// an error is returned.
package turn

import (
	"slices"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/shuffle"
)

// Rules are the scoring parameters of a game.
type Rules struct {
	CluesPerProfile int
}

// Points is the score for a correct guess after cluesRead clues: the full
// CluesPerProfile for a first-clue guess, one less per extra clue, never
// below 1.
func Points(rules Rules, cluesRead int) int {
	return max(1, rules.CluesPerProfile-(cluesRead-1))
}

// MaxClues is how many clues the profile's turn can reveal.
func MaxClues(rules Rules, p *cluequiz.Profile) int {
	return min(rules.CluesPerProfile, len(p.Clues))
}

// Start queues ids and makes the first one current.
func Start(s *cluequiz.GameSession, r shuffle.Rand, ids []string) error {
	if len(ids) == 0 {
		return cluequiz.Validation("No profiles selected")
	}
	first, ok := s.FindProfile(ids[0])
	if !ok {
		return cluequiz.NextProfileNotFound(ids[0])
	}
	s.SelectedProfiles = slices.Clone(ids)
	s.TotalProfilesCount = len(ids)
	s.CurrentRound = 1
	s.Status = cluequiz.StatusActive
	setCurrent(s, r, first)
	return nil
}

// NextClue reveals one more clue of the current profile.
func NextClue(s *cluequiz.GameSession, r shuffle.Rand, rules Rules) error {
	t, p, err := active(s)
	if err != nil {
		return err
	}
	if t.CluesRead >= MaxClues(rules, p) {
		return cluequiz.InvalidState("Maximum clues reached")
	}

	order := revealOrder(s.ClueShuffleMap.Ensure(r, p.ID, len(p.Clues)), len(p.Clues))
	idx := order[t.CluesRead]
	t.CluesRead++
	s.RevealedClueHistory = slices.Insert(s.RevealedClueHistory, 0, p.Clues[idx])
	s.RevealedClueIndices = slices.Insert(s.RevealedClueIndices, 0, idx)
	return nil
}

// revealOrder fits a stored permutation to a profile with n clues. The
// stored entry outlives content swaps, so indices past n are dropped and
// indices it never covered follow in ascending order.
func revealOrder(stored []int, n int) []int {
	order := make([]int, 0, n)
	seen := make([]bool, n)
	for _, i := range stored {
		if i >= 0 && i < n && !seen[i] {
			seen[i] = true
			order = append(order, i)
		}
	}
	for i := range n {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}

// Reveal marks the current profile's answer as shown.
func Reveal(s *cluequiz.GameSession) error {
	t, _, err := active(s)
	if err != nil {
		return err
	}
	t.Revealed = true
	return nil
}

// Award gives playerID the points for the current turn and advances.
func Award(s *cluequiz.GameSession, r shuffle.Rand, rules Rules, playerID string) (int, error) {
	t, _, err := active(s)
	if err != nil {
		return 0, err
	}
	if t.CluesRead < 1 {
		return 0, cluequiz.InvalidState("Cannot award points before reading any clues")
	}
	i := s.PlayerIndex(playerID)
	if i < 0 {
		return 0, cluequiz.PlayerNotFound(playerID)
	}

	pts := Points(rules, t.CluesRead)
	s.Players[i].Score += pts
	t.Revealed = true
	return pts, Advance(s, r)
}

// RemovePoints subtracts amount from the player's score. It reports
// whether anything changed; removing zero points is a no-op.
func RemovePoints(s *cluequiz.GameSession, playerID string, amount int) (bool, error) {
	if amount < 0 {
		return false, cluequiz.Validation("Amount must be a non-negative integer, got %d", amount)
	}
	if amount == 0 {
		return false, nil
	}
	i := s.PlayerIndex(playerID)
	if i < 0 {
		return false, cluequiz.PlayerNotFound(playerID)
	}
	if amount > s.Players[i].Score {
		return false, cluequiz.InsufficientScore(s.Players[i], amount)
	}
	s.Players[i].Score -= amount
	return true, nil
}

// Skip moves on without scoring.
func Skip(s *cluequiz.GameSession, r shuffle.Rand) error {
	if _, _, err := active(s); err != nil {
		return err
	}
	return Advance(s, r)
}

// Advance drops the current profile and makes the next one current, or
// completes the game when the queue is empty.
func Advance(s *cluequiz.GameSession, r shuffle.Rand) error {
	if len(s.SelectedProfiles) > 0 {
		s.SelectedProfiles = slices.Clone(s.SelectedProfiles[1:])
	}
	if len(s.SelectedProfiles) == 0 {
		Complete(s)
		return nil
	}

	next, ok := s.FindProfile(s.SelectedProfiles[0])
	if !ok {
		return cluequiz.NextProfileNotFound(s.SelectedProfiles[0])
	}
	s.CurrentRound++
	setCurrent(s, r, next)
	return nil
}

// End finishes the game early.
func End(s *cluequiz.GameSession) error {
	if s.Status == cluequiz.StatusCompleted {
		return cluequiz.InvalidState("Game already completed")
	}
	Complete(s)
	return nil
}

// Complete marks the session finished and clears the round state.
func Complete(s *cluequiz.GameSession) {
	s.Status = cluequiz.StatusCompleted
	s.SelectedProfiles = []string{}
	s.CurrentProfile = nil
	s.CurrentTurn = nil
	s.RevealedClueHistory = []string{}
	s.RevealedClueIndices = []int{}
}

func setCurrent(s *cluequiz.GameSession, r shuffle.Rand, p *cluequiz.Profile) {
	s.CurrentProfile = p
	s.CurrentTurn = &cluequiz.Turn{ProfileID: p.ID}
	s.ClueShuffleMap.Ensure(r, p.ID, len(p.Clues))
	s.RevealedClueHistory = []string{}
	s.RevealedClueIndices = []int{}
}

func active(s *cluequiz.GameSession) (*cluequiz.Turn, *cluequiz.Profile, error) {
	if s.Status != cluequiz.StatusActive || s.CurrentTurn == nil || s.CurrentProfile == nil {
		return nil, nil, cluequiz.InvalidState("No active turn")
	}
	return s.CurrentTurn, s.CurrentProfile, nil
}
