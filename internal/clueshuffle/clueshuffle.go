// Package clueshuffle keeps the per-profile order in which clues are
// revealed. An entry is created the first time a profile becomes current
// and is never regenerated for that profile afterwards.
package clueshuffle

import (
	"fmt"
	"slices"

	"github.com/playperu/cluequiz/internal/shuffle"
)

// GenerateIndices returns a random permutation of [0, clueCount).
func GenerateIndices(r shuffle.Rand, clueCount int) []int {
	if clueCount <= 0 {
		return []int{}
	}
	idx := make([]int, clueCount)
	for i := range idx {
		idx[i] = i
	}
	return shuffle.Shuffle(r, idx)
}

// Table maps profile ids to their reveal permutation. The zero value is an
// empty table ready to use.
type Table struct {
	entries map[string][]int
}

func NewTable() Table {
	return Table{entries: make(map[string][]int)}
}

// Get returns the permutation for profileID.
func (t Table) Get(profileID string) ([]int, bool) {
	idx, ok := t.entries[profileID]
	return idx, ok
}

// Ensure returns the existing permutation for profileID or creates one.
func (t *Table) Ensure(r shuffle.Rand, profileID string, clueCount int) []int {
	if idx, ok := t.entries[profileID]; ok {
		return idx
	}
	if t.entries == nil {
		t.entries = make(map[string][]int)
	}
	idx := GenerateIndices(r, clueCount)
	t.entries[profileID] = idx
	return idx
}

func (t Table) Len() int { return len(t.entries) }

// Clone returns a deep copy.
func (t Table) Clone() Table {
	out := Table{entries: make(map[string][]int, len(t.entries))}
	for id, idx := range t.entries {
		out.entries[id] = slices.Clone(idx)
	}
	return out
}

// Serialize converts the table into plain data for storage.
func (t Table) Serialize() map[string][]int {
	out := make(map[string][]int, len(t.entries))
	for id, idx := range t.entries {
		out[id] = slices.Clone(idx)
	}
	return out
}

// Deserialize rebuilds a table from stored data. A nil map, as written by
// sessions saved before shuffles were persisted, yields an empty table.
func Deserialize(plain map[string][]int) (Table, error) {
	t := NewTable()
	for id, idx := range plain {
		if err := checkPermutation(idx); err != nil {
			return Table{}, fmt.Errorf("clue order for %q: %w", id, err)
		}
		t.entries[id] = slices.Clone(idx)
	}
	return t, nil
}

func checkPermutation(idx []int) error {
	seen := make([]bool, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(idx) {
			return fmt.Errorf("index %d out of range [0,%d)", i, len(idx))
		}
		if seen[i] {
			return fmt.Errorf("duplicate index %d", i)
		}
		seen[i] = true
	}
	return nil
}
