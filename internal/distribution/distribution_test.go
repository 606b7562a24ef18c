package distribution_test

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/distribution"
	"github.com/playperu/cluequiz/internal/shuffle"
)

func pool(counts map[string]int) []cluequiz.Profile {
	var out []cluequiz.Profile
	for _, cat := range slices.Sorted(maps.Keys(counts)) {
		for i := range counts[cat] {
			out = append(out, cluequiz.Profile{
				ID:       fmt.Sprintf("%s-%03d", strings.ToLower(cat), i),
				Category: cat,
				Name:     fmt.Sprintf("%s %d", cat, i),
				Clues:    []string{"clue"},
			})
		}
	}
	return out
}

func categoryOf(all []cluequiz.Profile) map[string]string {
	m := make(map[string]string, len(all))
	for _, p := range all {
		m[p.ID] = p.Category
	}
	return m
}

func TestSelectProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := []string{"Movies", "Sports", "Music", "History"}
		ncat := rapid.IntRange(1, len(names)).Draw(t, "categories")
		counts := make(map[string]int, ncat)
		total := 0
		for _, c := range names[:ncat] {
			n := rapid.IntRange(0, 8).Draw(t, c)
			counts[c] = n
			total += n
		}
		if total == 0 {
			counts[names[0]] = 1
			total = 1
		}
		rounds := rapid.IntRange(1, total).Draw(t, "rounds")
		seed := rapid.Uint64().Draw(t, "seed")

		// Noise category that must never be picked.
		all := append(pool(counts), cluequiz.Profile{ID: "noise", Category: "Other"})

		ids, err := distribution.Select(shuffle.New(seed), all, names[:ncat], rounds)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if len(ids) != rounds {
			t.Fatalf("len = %d, want %d", len(ids), rounds)
		}
		cats := categoryOf(all)
		seen := map[string]bool{}
		for _, id := range ids {
			if seen[id] {
				t.Fatalf("duplicate id %s in %v", id, ids)
			}
			seen[id] = true
			if !slices.Contains(names[:ncat], cats[id]) {
				t.Fatalf("id %s from unselected category %q", id, cats[id])
			}
		}
	})
}

func TestSelectInsufficient(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(0, 5).Draw(t, "a")
		b := rapid.IntRange(1, 5).Draw(t, "b")
		extra := rapid.IntRange(1, 5).Draw(t, "extra")
		all := pool(map[string]int{"A": a, "B": b})

		ids, err := distribution.Select(shuffle.New(1), all, []string{"A", "B"}, a+b+extra)
		if !errors.Is(err, cluequiz.ErrInsufficientProfiles) {
			t.Fatalf("err = %v, want ErrInsufficientProfiles", err)
		}
		if ids != nil {
			t.Fatalf("returned partial result %v", ids)
		}
	})
}

func TestSelectInsufficientMessage(t *testing.T) {
	all := pool(map[string]int{"Movies": 2})
	_, err := distribution.Select(shuffle.New(1), all, []string{"Movies"}, 5)
	if err == nil || !strings.Contains(err.Error(), "2 available, 5 requested") {
		t.Errorf("err = %v, want available vs requested counts", err)
	}
}

func TestSelectEvenDistribution(t *testing.T) {
	tests := []struct {
		name   string
		rounds int
		want   []int
	}{
		{"exact multiple", 9, []int{3, 3, 3}},
		{"one extra", 10, []int{3, 3, 4}},
		{"two extra", 11, []int{3, 4, 4}},
		{"fewer rounds than categories", 2, []int{0, 1, 1}},
	}
	all := pool(map[string]int{"A": 10, "B": 10, "C": 10})
	cats := categoryOf(all)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seed := range uint64(25) {
				ids, err := distribution.Select(shuffle.New(seed), all, []string{"A", "B", "C"}, tt.rounds)
				if err != nil {
					t.Fatalf("Select: %v", err)
				}
				per := map[string]int{}
				for _, id := range ids {
					per[cats[id]]++
				}
				got := []int{per["A"], per["B"], per["C"]}
				slices.Sort(got)
				if !slices.Equal(got, tt.want) {
					t.Fatalf("seed %d: per-category counts %v, want %v", seed, got, tt.want)
				}
			}
		})
	}
}

func TestSelectRedistributesShortCategory(t *testing.T) {
	all := pool(map[string]int{"A": 1, "B": 10})
	cats := categoryOf(all)

	ids, err := distribution.Select(shuffle.New(9), all, []string{"A", "B"}, 6)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	per := map[string]int{}
	for _, id := range ids {
		per[cats[id]]++
	}
	if per["A"] != 1 || per["B"] != 5 {
		t.Errorf("counts = %v, want A:1 B:5", per)
	}
}

func TestSelectRandomizesOrder(t *testing.T) {
	all := pool(map[string]int{"A": 1, "B": 1, "C": 1})
	r := shuffle.Default()
	firsts := map[string]bool{}
	for range 15 {
		ids, err := distribution.Select(r, all, []string{"A", "B", "C"}, 3)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		firsts[ids[0]] = true
	}
	if len(firsts) < 2 {
		t.Errorf("first profile was always %v", firsts)
	}
}

func TestSelectErrors(t *testing.T) {
	all := pool(map[string]int{"Movies": 3})
	tests := []struct {
		name       string
		categories []string
		rounds     int
		want       error
	}{
		{"no categories", nil, 1, cluequiz.ErrNotFound},
		{"unknown category", []string{"Sports"}, 1, cluequiz.ErrNotFound},
		{"zero rounds", []string{"Movies"}, 0, cluequiz.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := distribution.Select(shuffle.New(1), all, tt.categories, tt.rounds)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSelectIgnoresDuplicateIDs(t *testing.T) {
	all := pool(map[string]int{"A": 2})
	all = append(all, all[0])

	if n := distribution.AvailableProfileCount(all, []string{"A"}); n != 2 {
		t.Errorf("AvailableProfileCount = %d, want 2", n)
	}
	if _, err := distribution.Select(shuffle.New(1), all, []string{"A"}, 3); !errors.Is(err, cluequiz.ErrInsufficientProfiles) {
		t.Errorf("err = %v, want ErrInsufficientProfiles", err)
	}
}

func TestHasEnoughProfiles(t *testing.T) {
	all := pool(map[string]int{"A": 2, "B": 3})
	tests := []struct {
		cats   []string
		rounds int
		want   bool
	}{
		{[]string{"A", "B"}, 5, true},
		{[]string{"A", "B"}, 6, false},
		{[]string{"A"}, 2, true},
		{[]string{"A"}, 3, false},
		{[]string{"A"}, 0, false},
	}
	for _, tt := range tests {
		if got := distribution.HasEnoughProfiles(all, tt.cats, tt.rounds); got != tt.want {
			t.Errorf("HasEnoughProfiles(%v, %d) = %v, want %v", tt.cats, tt.rounds, got, tt.want)
		}
	}
}
