package game_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/game"
	"github.com/playperu/cluequiz/internal/persistence"
	"github.com/playperu/cluequiz/internal/rehydration"
	"github.com/playperu/cluequiz/internal/shuffle"
)

// memRepo stores sessions as JSON, the way the database does.
type memRepo struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
}

func newMemRepo() *memRepo {
	return &memRepo{data: make(map[string][]byte)}
}

func (r *memRepo) Save(_ context.Context, id string, st *cluequiz.PersistedGameState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[id] = b
	r.saves++
	return nil
}

func (r *memRepo) Load(_ context.Context, id string) (*cluequiz.PersistedGameState, error) {
	r.mu.Lock()
	b, ok := r.data[id]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var st cluequiz.PersistedGameState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *memRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// fakeSource serves generated profiles. Clue text carries the locale so
// relocalization is visible.
type fakeSource struct {
	perCategory int
	clues       int
}

func (f fakeSource) profile(category string, n int, locale string) cluequiz.Profile {
	p := cluequiz.Profile{
		ID:       fmt.Sprintf("profile-%s-%03d", strings.ToLower(category), n),
		Category: category,
		Name:     fmt.Sprintf("%s %d", category, n),
	}
	for i := range f.clues {
		p.Clues = append(p.Clues, fmt.Sprintf("%s clue %d (%s)", p.ID, i, locale))
	}
	return p
}

func (f fakeSource) LoadCategories(_ context.Context, categories []string, locale string) ([]cluequiz.Profile, error) {
	var out []cluequiz.Profile
	for _, c := range categories {
		for n := 1; n <= f.perCategory; n++ {
			out = append(out, f.profile(c, n, locale))
		}
	}
	return out, nil
}

func (f fakeSource) LoadProfilesByIDs(_ context.Context, ids []string, locale string) ([]cluequiz.Profile, error) {
	out := make([]cluequiz.Profile, 0, len(ids))
	for _, id := range ids {
		rest := strings.TrimPrefix(id, "profile-")
		i := strings.LastIndex(rest, "-")
		var n int
		fmt.Sscanf(rest[i+1:], "%d", &n)
		p := f.profile(rest[:i], n, locale)
		p.ID = id
		out = append(out, p)
	}
	return out, nil
}

type harness struct {
	store   *game.Store
	repo    *memRepo
	tracker *rehydration.Tracker
}

func newHarness(t *testing.T, repo *memRepo, delay time.Duration) harness {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	tracker := rehydration.NewTracker()
	svc := persistence.NewService(repo, tracker, logger, persistence.Options{Delay: delay})
	store := game.New(
		game.Options{MinPlayers: 2, MaxPlayers: 8, CluesPerProfile: 20},
		game.Deps{
			Source:      fakeSource{perCategory: 10, clues: 20},
			Persistence: svc,
			Tracker:     tracker,
			Rand:        shuffle.New(7),
			Logger:      logger,
		},
	)
	t.Cleanup(func() { store.Close(context.Background()) })
	return harness{store: store, repo: repo, tracker: tracker}
}

func TestCreateGameValidatesRoster(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{"too few", []string{"Ana"}, "minimum of 2"},
		{"too many", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}, "maximum of 8"},
		{"blank name", []string{"Ana", "  "}, "cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, newMemRepo(), time.Hour)
			_, err := h.store.CreateGame(context.Background(), tt.names)
			if !errors.Is(err, cluequiz.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to contain %q", err, tt.want)
			}
			if h.store.Session() != nil {
				t.Error("session created despite validation error")
			}
		})
	}
}

func TestCreateGameForceSaves(t *testing.T) {
	h := newHarness(t, newMemRepo(), time.Hour)

	id, err := h.store.CreateGame(context.Background(), []string{" Ana ", "Bo"})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if n := h.repo.saveCount(); n != 1 {
		t.Errorf("saves = %d, want 1", n)
	}

	sess := h.store.Session()
	if sess.ID != id {
		t.Errorf("id = %q, want %q", sess.ID, id)
	}
	if sess.Status != cluequiz.StatusPending {
		t.Errorf("status = %q, want pending", sess.Status)
	}
	if sess.Players[0].Name != "Ana" {
		t.Errorf("player name = %q, want trimmed", sess.Players[0].Name)
	}
	if sess.Players[0].ID == sess.Players[1].ID {
		t.Error("players share an id")
	}
}

func TestSingleRoundGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemRepo(), time.Hour)

	if _, err := h.store.CreateGame(ctx, []string{"Ana", "Bo"}); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if err := h.store.StartGame(ctx, []string{"Movies"}, 1, ""); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	sess := h.store.Session()
	if sess.Status != cluequiz.StatusActive {
		t.Fatalf("status = %q, want active", sess.Status)
	}
	if len(sess.SelectedProfiles) != 1 || len(sess.Profiles) != 1 {
		t.Fatalf("selected %d, loaded %d, want 1 and 1", len(sess.SelectedProfiles), len(sess.Profiles))
	}
	if sess.Locale != "en" {
		t.Errorf("locale = %q, want default en", sess.Locale)
	}

	if err := h.store.NextClue(ctx); err != nil {
		t.Fatalf("NextClue: %v", err)
	}
	if got := h.store.Progress(); got.CluesRead != 1 || got.PointsAvailable != 20 {
		t.Errorf("progress = %+v, want 1 clue read worth 20", got)
	}

	ana := sess.Players[0].ID
	pts, err := h.store.AwardPoints(ctx, ana)
	if err != nil {
		t.Fatalf("AwardPoints: %v", err)
	}
	if pts != 20 {
		t.Errorf("points = %d, want 20", pts)
	}

	sess = h.store.Session()
	if sess.Status != cluequiz.StatusCompleted {
		t.Errorf("status = %q, want completed", sess.Status)
	}
	if sess.Players[0].Score != 20 {
		t.Errorf("score = %d, want 20", sess.Players[0].Score)
	}
	if sess.CurrentTurn != nil {
		t.Error("turn not cleared")
	}
	if len(sess.SelectedProfiles) != 0 {
		t.Errorf("queue = %v, want empty", sess.SelectedProfiles)
	}
}

func TestStartGameRejectsActiveGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemRepo(), time.Hour)
	h.store.CreateGame(ctx, []string{"Ana", "Bo"})
	if err := h.store.StartGame(ctx, []string{"Movies"}, 2, "en"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	err := h.store.StartGame(ctx, []string{"Movies"}, 2, "en")
	if !errors.Is(err, cluequiz.ErrInvalidState) {
		t.Errorf("err = %v, want invalid state", err)
	}
}

func TestStartGameInsufficientProfiles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemRepo(), time.Hour)
	h.store.CreateGame(ctx, []string{"Ana", "Bo"})
	rev := h.store.Revision()

	err := h.store.StartGame(ctx, []string{"Movies"}, 11, "en")
	if !errors.Is(err, cluequiz.ErrInsufficientProfiles) {
		t.Fatalf("err = %v, want insufficient profiles", err)
	}
	if !strings.Contains(err.Error(), "10 available, 11 requested") {
		t.Errorf("err = %q, want available and requested counts", err)
	}
	if h.store.Revision() != rev {
		t.Error("failed start changed the session")
	}
	if h.store.Session().Status != cluequiz.StatusPending {
		t.Error("failed start left the session active")
	}
}

func TestActionsWithoutGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemRepo(), time.Hour)

	if err := h.store.NextClue(ctx); !errors.Is(err, cluequiz.ErrInvalidState) {
		t.Errorf("NextClue err = %v, want invalid state", err)
	}
	if err := h.store.EndGame(ctx); !errors.Is(err, cluequiz.ErrInvalidState) {
		t.Errorf("EndGame err = %v, want invalid state", err)
	}
	if err := h.store.ResetGame(ctx); !errors.Is(err, cluequiz.ErrInvalidState) {
		t.Errorf("ResetGame err = %v, want invalid state", err)
	}
}

func TestRemovePoints(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemRepo(), time.Hour)
	h.store.CreateGame(ctx, []string{"Ana", "Bo"})
	h.store.StartGame(ctx, []string{"Movies"}, 3, "en")
	h.store.NextClue(ctx)
	h.store.NextClue(ctx)
	ana := h.store.Session().Players[0].ID
	if _, err := h.store.AwardPoints(ctx, ana); err != nil {
		t.Fatalf("AwardPoints: %v", err)
	}

	rev := h.store.Revision()
	if err := h.store.RemovePoints(ctx, ana, 0); err != nil {
		t.Fatalf("RemovePoints(0): %v", err)
	}
	if h.store.Revision() != rev {
		t.Error("removing zero points changed the session")
	}

	err := h.store.RemovePoints(ctx, ana, 100)
	if !errors.Is(err, cluequiz.ErrInsufficientScore) {
		t.Fatalf("err = %v, want insufficient score", err)
	}
	if !strings.Contains(err.Error(), "current score is 19") {
		t.Errorf("err = %q, want current score in message", err)
	}

	if err := h.store.RemovePoints(ctx, "nobody", 1); !errors.Is(err, cluequiz.ErrPlayerNotFound) {
		t.Errorf("err = %v, want player not found", err)
	}

	if err := h.store.RemovePoints(ctx, ana, 9); err != nil {
		t.Fatalf("RemovePoints: %v", err)
	}
	if got := h.store.Session().Players[0].Score; got != 10 {
		t.Errorf("score = %d, want 10", got)
	}
}

func TestEndAndResetGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemRepo(), time.Hour)
	id, _ := h.store.CreateGame(ctx, []string{"Ana", "Bo"})
	h.store.StartGame(ctx, []string{"Movies", "Sports"}, 4, "en")
	h.store.NextClue(ctx)
	h.store.AwardPoints(ctx, h.store.Session().Players[1].ID)

	if err := h.store.EndGame(ctx); err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	if err := h.store.EndGame(ctx); !errors.Is(err, cluequiz.ErrInvalidState) {
		t.Errorf("second EndGame err = %v, want invalid state", err)
	}
	if got := h.tracker.State(id); got != rehydration.Idle {
		t.Errorf("rehydration state = %v, want idle", got)
	}

	saves := h.repo.saveCount()
	if err := h.store.ResetGame(ctx); err != nil {
		t.Fatalf("ResetGame: %v", err)
	}
	if h.repo.saveCount() != saves+1 {
		t.Error("ResetGame did not write the session")
	}

	sess := h.store.Session()
	if sess.ID != id {
		t.Errorf("id = %q, want %q", sess.ID, id)
	}
	if sess.Status != cluequiz.StatusPending || len(sess.Profiles) != 0 || sess.CurrentRound != 0 {
		t.Errorf("session not reset: %+v", sess)
	}
	for _, p := range sess.Players {
		if p.Score != 0 {
			t.Errorf("%s score = %d, want 0", p.Name, p.Score)
		}
	}
	if len(sess.Players) != 2 {
		t.Errorf("players = %d, want roster kept", len(sess.Players))
	}
}

func TestLoadFromStorageRestoresProgress(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	first := newHarness(t, repo, time.Hour)
	id, _ := first.store.CreateGame(ctx, []string{"Ana", "Bo"})
	first.store.StartGame(ctx, []string{"Movies"}, 2, "en")
	for range 3 {
		first.store.NextClue(ctx)
	}
	want := first.store.Session()
	if err := first.store.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := newHarness(t, repo, time.Hour)
	saves := repo.saveCount()
	if !second.store.LoadFromStorage(ctx, id) {
		t.Fatalf("LoadFromStorage failed: %+v", second.store.Error())
	}
	if repo.saveCount() != saves {
		t.Error("restoring wrote the session back")
	}
	if got := second.tracker.State(id); got != rehydration.Active {
		t.Errorf("rehydration state = %v, want active", got)
	}

	got := second.store.Session()
	if !slices.Equal(got.RevealedClueHistory, want.RevealedClueHistory) {
		t.Errorf("history = %v, want %v", got.RevealedClueHistory, want.RevealedClueHistory)
	}
	pid := got.CurrentProfile.ID
	wantOrder, _ := want.ClueShuffleMap.Get(pid)
	gotOrder, _ := got.ClueShuffleMap.Get(pid)
	if !slices.Equal(gotOrder, wantOrder) {
		t.Errorf("clue order = %v, want %v", gotOrder, wantOrder)
	}

	if err := second.store.NextClue(ctx); err != nil {
		t.Fatalf("NextClue: %v", err)
	}
	next := second.store.Session()
	if next.RevealedClueIndices[0] != wantOrder[3] {
		t.Errorf("fourth clue index = %d, want %d", next.RevealedClueIndices[0], wantOrder[3])
	}
}

func TestLoadFromStorageFailures(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	repo.data["broken"] = []byte(`{"id":"broken","status":"bogus","players":[]}`)
	repo.data["garbage"] = []byte(`{`)

	tests := []struct {
		id   string
		code cluequiz.Code
	}{
		{"missing", cluequiz.CodeSessionNotFound},
		{"broken", cluequiz.CodeSessionCorrupted},
		{"garbage", cluequiz.CodeSessionCorrupted},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			h := newHarness(t, repo, time.Hour)
			if h.store.LoadFromStorage(ctx, tt.id) {
				t.Fatal("LoadFromStorage succeeded")
			}
			e := h.store.Error()
			if e == nil || e.Code != tt.code {
				t.Fatalf("error = %+v, want code %s", e, tt.code)
			}
			if e.Informative {
				t.Error("restore failure marked informative")
			}
			if got := h.tracker.State(tt.id); got != rehydration.Active {
				t.Errorf("rehydration state = %v, want active", got)
			}
			if h.tracker.Err(tt.id) == nil {
				t.Error("tracker did not record the failure")
			}
		})
	}
}

func TestLoadFromStorageClearsPriorError(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	first := newHarness(t, repo, time.Hour)
	id, _ := first.store.CreateGame(ctx, []string{"Ana", "Bo"})
	if err := first.store.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h := newHarness(t, repo, time.Hour)
	if h.store.LoadFromStorage(ctx, "missing") {
		t.Fatal("loading a missing session succeeded")
	}
	if h.store.Error() == nil {
		t.Fatal("failed load stored no error")
	}

	if !h.store.LoadFromStorage(ctx, id) {
		t.Fatalf("LoadFromStorage(%s) failed: %+v", id, h.store.Error())
	}
	if e := h.store.Error(); e != nil {
		t.Errorf("Error() = %+v, want nil", e)
	}
	if e := h.store.Session().Error; e != nil {
		t.Errorf("session error = %+v, want nil", e)
	}
}

func TestChangeLocaleKeepsProgressAndOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemRepo(), time.Hour)
	h.store.CreateGame(ctx, []string{"Ana", "Bo"})
	h.store.StartGame(ctx, []string{"Movies"}, 3, "en")
	h.store.NextClue(ctx)
	h.store.NextClue(ctx)
	before := h.store.Session()
	pid := before.CurrentProfile.ID
	order, _ := before.ClueShuffleMap.Get(pid)

	if err := h.store.ChangeLocale(ctx, "es"); err != nil {
		t.Fatalf("ChangeLocale: %v", err)
	}

	after := h.store.Session()
	if after.Locale != "es" {
		t.Errorf("locale = %q, want es", after.Locale)
	}
	if after.CurrentTurn.CluesRead != 2 {
		t.Errorf("clues read = %d, want 2", after.CurrentTurn.CluesRead)
	}
	gotOrder, _ := after.ClueShuffleMap.Get(pid)
	if !slices.Equal(gotOrder, order) {
		t.Errorf("clue order changed: %v, want %v", gotOrder, order)
	}
	if !slices.Equal(after.RevealedClueIndices, before.RevealedClueIndices) {
		t.Errorf("indices = %v, want %v", after.RevealedClueIndices, before.RevealedClueIndices)
	}
	for _, c := range after.RevealedClueHistory {
		if !strings.HasSuffix(c, "(es)") {
			t.Errorf("clue %q not relocalized", c)
		}
	}
	if !slices.Equal(after.SelectedProfiles, before.SelectedProfiles) {
		t.Errorf("queue = %v, want %v", after.SelectedProfiles, before.SelectedProfiles)
	}
}

func TestDebouncedSaveAfterAction(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	h := newHarness(t, repo, 10*time.Millisecond)
	id, _ := h.store.CreateGame(ctx, []string{"Ana", "Bo"})
	h.store.StartGame(ctx, []string{"Movies"}, 1, "en")
	h.store.NextClue(ctx)

	deadline := time.Now().Add(time.Second)
	for {
		st, _ := repo.Load(ctx, id)
		if st != nil && st.CurrentTurn != nil && st.CurrentTurn.CluesRead == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced save never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemRepo(), time.Hour)
	h.store.CreateGame(ctx, []string{"Ana", "Bo"})

	h.store.SetError(ctx, errors.New("boom"))
	e := h.store.Error()
	if e == nil || e.Code != cluequiz.CodeUnknown || !e.Informative {
		t.Errorf("error = %+v, want informative unknown", e)
	}
	if got := h.store.Session().Error; got == nil || got.Message != "boom" {
		t.Errorf("session error = %+v, want boom", got)
	}

	h.store.SetErrorMessage(ctx, "offline", false)
	if e := h.store.Error(); e.Message != "offline" || e.Informative {
		t.Errorf("error = %+v, want non-informative offline", e)
	}

	h.store.ClearError()
	if h.store.Error() != nil {
		t.Error("error not cleared")
	}
}

func TestViewsStableUntilChange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemRepo(), time.Hour)
	h.store.CreateGame(ctx, []string{"Ana", "Bo", "Cy"})
	h.store.StartGame(ctx, []string{"Movies", "Sports"}, 4, "en")
	h.store.NextClue(ctx)

	a, b := h.store.Session(), h.store.Session()
	if a != b {
		t.Error("Session snapshot rebuilt without a change")
	}
	groups := h.store.ProfilesByCategory()
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != 4 {
		t.Errorf("grouped %d profiles, want 4", total)
	}

	bo := a.Players[1].ID
	h.store.AwardPoints(ctx, bo)
	if h.store.Session() == a {
		t.Error("Session snapshot not refreshed after a change")
	}

	board := h.store.Leaderboard()
	if board[0].Name != "Bo" || board[0].Score != 20 {
		t.Errorf("leader = %+v, want Bo with 20", board[0])
	}
	if board[1].Name != "Ana" || board[2].Name != "Cy" {
		t.Errorf("ties reordered: %v", board)
	}
	if len(h.store.CurrentClues()) != 0 {
		t.Error("clues not cleared for the next profile")
	}
}
