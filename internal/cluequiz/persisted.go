package cluequiz

import (
	"errors"
	"fmt"
	"slices"

	"github.com/playperu/cluequiz/internal/clueshuffle"
)

// PersistedGameState is the plain-data projection of a GameSession written
// to storage. Fields added after the first release are optional so older
// records still decode.
type PersistedGameState struct {
	ID                  string           `json:"id"`
	Players             []Player         `json:"players"`
	CurrentTurn         *Turn            `json:"currentTurn"`
	Profiles            []Profile        `json:"profiles"`
	SelectedProfiles    []string         `json:"selectedProfiles"`
	CurrentProfile      *Profile         `json:"currentProfile"`
	TotalProfilesCount  int              `json:"totalProfilesCount"`
	NumberOfRounds      int              `json:"numberOfRounds,omitempty"`
	CurrentRound        int              `json:"currentRound"`
	SelectedCategories  []string         `json:"selectedCategories,omitempty"`
	RevealedClueHistory []string         `json:"revealedClueHistory,omitempty"`
	RevealedClueIndices []int            `json:"revealedClueIndices,omitempty"`
	ClueShuffleMap      map[string][]int `json:"clueShuffleMap,omitempty"`
	Status              Status           `json:"status"`
	Locale              string           `json:"locale,omitempty"`
}

// ToPersisted projects s into its storage form.
func ToPersisted(s *GameSession) *PersistedGameState {
	st := &PersistedGameState{
		ID:                  s.ID,
		Players:             slices.Clone(s.Players),
		Profiles:            slices.Clone(s.Profiles),
		SelectedProfiles:    slices.Clone(s.SelectedProfiles),
		TotalProfilesCount:  s.TotalProfilesCount,
		NumberOfRounds:      s.NumberOfRounds,
		CurrentRound:        s.CurrentRound,
		SelectedCategories:  slices.Clone(s.SelectedCategories),
		RevealedClueHistory: slices.Clone(s.RevealedClueHistory),
		RevealedClueIndices: slices.Clone(s.RevealedClueIndices),
		ClueShuffleMap:      s.ClueShuffleMap.Serialize(),
		Status:              s.Status,
		Locale:              s.Locale,
	}
	if s.CurrentTurn != nil {
		t := *s.CurrentTurn
		st.CurrentTurn = &t
	}
	if s.CurrentProfile != nil {
		p := *s.CurrentProfile
		st.CurrentProfile = &p
	}
	return st
}

// FromPersisted rebuilds a session from storage, filling defaults for
// fields older records lack. It fails when the record cannot describe a
// playable session.
func FromPersisted(st *PersistedGameState) (*GameSession, error) {
	if st == nil {
		return nil, errors.New("empty record")
	}
	if st.ID == "" {
		return nil, errors.New("record has no session id")
	}

	table, err := clueshuffle.Deserialize(st.ClueShuffleMap)
	if err != nil {
		return nil, err
	}

	s := &GameSession{
		ID:                  st.ID,
		Players:             orEmpty(st.Players),
		Profiles:            orEmpty(st.Profiles),
		SelectedProfiles:    orEmpty(st.SelectedProfiles),
		TotalProfilesCount:  st.TotalProfilesCount,
		NumberOfRounds:      st.NumberOfRounds,
		CurrentRound:        st.CurrentRound,
		SelectedCategories:  orEmpty(st.SelectedCategories),
		RevealedClueHistory: orEmpty(st.RevealedClueHistory),
		RevealedClueIndices: orEmpty(st.RevealedClueIndices),
		ClueShuffleMap:      table,
		Status:              st.Status,
		Locale:              st.Locale,
	}

	switch s.Status {
	case "":
		s.Status = StatusPending
	case StatusPending, StatusActive, StatusCompleted:
	default:
		return nil, fmt.Errorf("unknown status %q", st.Status)
	}

	for _, p := range s.Players {
		if p.Score < 0 {
			return nil, fmt.Errorf("player %s has negative score %d", p.ID, p.Score)
		}
	}

	if s.Status != StatusActive {
		return s, nil
	}

	if len(s.SelectedProfiles) == 0 {
		return nil, errors.New("active session has no profiles queued")
	}
	current, ok := s.FindProfile(s.SelectedProfiles[0])
	if !ok {
		return nil, fmt.Errorf("current profile %s is not loaded", s.SelectedProfiles[0])
	}
	s.CurrentProfile = current

	if st.CurrentTurn == nil {
		s.CurrentTurn = &Turn{ProfileID: current.ID}
	} else {
		t := *st.CurrentTurn
		if t.ProfileID != current.ID {
			return nil, fmt.Errorf("turn profile %s does not match current profile %s", t.ProfileID, current.ID)
		}
		if t.CluesRead < 0 || t.CluesRead > len(current.Clues) {
			return nil, fmt.Errorf("turn has %d clues read, profile has %d", t.CluesRead, len(current.Clues))
		}
		s.CurrentTurn = &t
	}
	return s, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}
