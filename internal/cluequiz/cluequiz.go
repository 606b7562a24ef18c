// Package cluequiz defines the core domain types of the clue quiz game.
package cluequiz

import (
	"slices"

	"github.com/playperu/cluequiz/internal/clueshuffle"
)

// Profile is a quiz subject. Profiles are immutable once loaded.
type Profile struct {
	ID       string            `json:"id"`
	Category string            `json:"category"`
	Name     string            `json:"name"`
	Clues    []string          `json:"clues"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Turn is the round currently being played.
type Turn struct {
	ProfileID string `json:"profileId"`
	CluesRead int    `json:"cluesRead"`
	Revealed  bool   `json:"revealed"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// SessionError is the user-facing error stored on a session. Informative
// errors let the player go back; the others send them home.
type SessionError struct {
	Code        Code   `json:"code"`
	Message     string `json:"message"`
	Informative bool   `json:"informative"`
}

// GameSession is the aggregate root. SelectedProfiles[0] is always the
// current profile while the session is active.
type GameSession struct {
	ID                  string
	Players             []Player
	CurrentTurn         *Turn
	Profiles            []Profile
	SelectedProfiles    []string
	CurrentProfile      *Profile
	TotalProfilesCount  int
	NumberOfRounds      int
	CurrentRound        int
	SelectedCategories  []string
	RevealedClueHistory []string
	RevealedClueIndices []int
	ClueShuffleMap      clueshuffle.Table
	Status              Status
	Error               *SessionError
	Locale              string
}

// Clone returns a deep copy. Profiles are shared: they are never modified
// in place, only replaced.
func (s *GameSession) Clone() *GameSession {
	c := *s
	c.Players = slices.Clone(s.Players)
	c.Profiles = slices.Clip(s.Profiles)
	c.SelectedProfiles = slices.Clone(s.SelectedProfiles)
	c.SelectedCategories = slices.Clone(s.SelectedCategories)
	c.RevealedClueHistory = slices.Clone(s.RevealedClueHistory)
	c.RevealedClueIndices = slices.Clone(s.RevealedClueIndices)
	c.ClueShuffleMap = s.ClueShuffleMap.Clone()
	if s.CurrentTurn != nil {
		t := *s.CurrentTurn
		c.CurrentTurn = &t
	}
	if s.CurrentProfile != nil {
		p := *s.CurrentProfile
		c.CurrentProfile = &p
	}
	if s.Error != nil {
		e := *s.Error
		c.Error = &e
	}
	return &c
}

// FindProfile returns the loaded profile with the given id.
func (s *GameSession) FindProfile(id string) (*Profile, bool) {
	for i := range s.Profiles {
		if s.Profiles[i].ID == id {
			p := s.Profiles[i]
			return &p, true
		}
	}
	return nil, false
}

// PlayerIndex returns the roster position of the player, or -1.
func (s *GameSession) PlayerIndex(id string) int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
}
