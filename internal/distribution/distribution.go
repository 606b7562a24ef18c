// Package distribution picks the profiles a game will play, spreading the
// rounds as evenly as possible over the selected categories.
package distribution

import (
	"strings"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/shuffle"
)

// Select returns exactly rounds unique profile ids drawn from the selected
// categories. Each category gets rounds/len(categories) slots, and the
// remainder goes to randomly chosen categories. Slots a category cannot
// fill are taken from the unused profiles of all selected categories. The
// result order is shuffled.
func Select(r shuffle.Rand, all []cluequiz.Profile, categories []string, rounds int) ([]string, error) {
	if rounds < 1 {
		return nil, cluequiz.Validation("Number of rounds must be at least 1, got %d", rounds)
	}
	cats := uniqueCategories(categories)
	if len(cats) == 0 {
		return nil, cluequiz.NotFound("No categories selected")
	}

	groups := group(all, cats)
	available := 0
	for _, ids := range groups {
		available += len(ids)
	}
	if available == 0 {
		return nil, cluequiz.NotFound("No profiles found for categories: %s", strings.Join(cats, ", "))
	}
	if available < rounds {
		return nil, cluequiz.InsufficientProfiles(available, rounds)
	}

	base := rounds / len(cats)
	extra := rounds % len(cats)

	used := make(map[string]bool, rounds)
	picked := make([]string, 0, rounds)
	shortfall := 0
	for i, cat := range shuffle.Shuffle(r, cats) {
		want := base
		if i < extra {
			want++
		}
		pool := shuffle.Shuffle(r, groups[cat])
		take := min(want, len(pool))
		for _, id := range pool[:take] {
			used[id] = true
			picked = append(picked, id)
		}
		shortfall += want - take
	}

	if shortfall > 0 {
		var rest []string
		for _, cat := range cats {
			for _, id := range groups[cat] {
				if !used[id] {
					rest = append(rest, id)
				}
			}
		}
		rest = shuffle.Shuffle(r, rest)
		picked = append(picked, rest[:shortfall]...)
	}

	return shuffle.Shuffle(r, picked), nil
}

// AvailableProfileCount reports how many unique profiles belong to the
// categories.
func AvailableProfileCount(all []cluequiz.Profile, categories []string) int {
	n := 0
	for _, ids := range group(all, uniqueCategories(categories)) {
		n += len(ids)
	}
	return n
}

// HasEnoughProfiles reports whether Select would succeed for rounds.
func HasEnoughProfiles(all []cluequiz.Profile, categories []string, rounds int) bool {
	return rounds > 0 && AvailableProfileCount(all, categories) >= rounds
}

// group buckets profile ids by category. An id is counted once even if the
// pool lists it twice.
func group(all []cluequiz.Profile, cats []string) map[string][]string {
	selected := make(map[string]bool, len(cats))
	for _, c := range cats {
		selected[c] = true
	}
	seen := make(map[string]bool)
	groups := make(map[string][]string, len(cats))
	for _, p := range all {
		if !selected[p.Category] || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		groups[p.Category] = append(groups[p.Category], p.ID)
	}
	return groups
}

func uniqueCategories(categories []string) []string {
	seen := make(map[string]bool, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
