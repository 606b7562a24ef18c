// Package console is a line-oriented terminal front end for a game store.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/game"
	"github.com/playperu/cluequiz/internal/profiles"
)

// Catalog lists the categories players can pick.
type Catalog interface {
	Categories(ctx context.Context, locale string) ([]profiles.CategoryInfo, error)
}

type Console struct {
	store         *game.Store
	catalog       Catalog
	defaultLocale string
	in            io.Reader
	out           io.Writer
	logger        *slog.Logger
	st            styles

	// set while the store holds a fetch failure reported by this console
	fetchErr bool
}

func New(store *game.Store, catalog Catalog, defaultLocale string, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{
		store:         store,
		catalog:       catalog,
		defaultLocale: defaultLocale,
		in:            in,
		out:           out,
		logger:        logger,
		st:            newStyles(out),
	}
}

// Run reads commands until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	c.println(c.st.title.Render("Clue Quiz") + c.st.muted.Render("  type help for commands"))
	for {
		c.print(c.st.prompt.Render("> "))
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				return nil
			}
			if c.Exec(ctx, line) {
				return nil
			}
		}
	}
}

// Exec runs one command line and reports whether the console should quit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		c.help()
	case "new":
		err = c.newGame(ctx, args)
	case "categories":
		err = c.categories(ctx)
	case "start":
		err = c.start(ctx, args)
	case "clue":
		err = c.clue(ctx)
	case "answer":
		err = c.answer(ctx)
	case "award":
		err = c.award(ctx, args)
	case "remove":
		err = c.remove(ctx, args)
	case "skip":
		err = c.skip(ctx)
	case "end":
		err = c.store.EndGame(ctx)
		if err == nil {
			c.println(c.st.ok.Render("Game over."))
			c.board()
		}
	case "reset":
		err = c.store.ResetGame(ctx)
		if err == nil {
			c.println(c.st.ok.Render("Game reset. Scores cleared."))
		}
	case "load":
		err = c.load(ctx, args)
	case "lang":
		err = c.lang(ctx, args)
	case "board":
		c.board()
	case "status":
		c.status()
	default:
		err = cluequiz.Validation("Unknown command %q", cmd)
	}

	if err != nil {
		c.fail(ctx, err)
		return false
	}
	if c.fetchErr {
		c.fetchErr = false
		c.store.ClearError()
	}
	return false
}

// fail prints err. Only fetch failures are kept on the store; input and
// game rule errors are the caller's to fix and are not recorded.
func (c *Console) fail(ctx context.Context, err error) {
	if errors.Is(err, cluequiz.ErrNetwork) {
		c.store.SetError(ctx, err)
		c.fetchErr = true
		c.showError()
		return
	}
	c.logger.Debug("command rejected", "error", err)
	c.println(c.st.err.Render("Error: " + cluequiz.ToSessionError(err).Message))
}

func (c *Console) help() {
	c.println(c.st.title.Render("Commands"))
	for _, l := range [][2]string{
		{"new NAME...", "create a game for the players"},
		{"categories", "list categories"},
		{"start CATS ROUNDS [LOCALE]", "start with comma separated categories"},
		{"clue", "reveal the next clue"},
		{"answer", "show who the profile is"},
		{"award PLAYER", "give the current points to a player (number or name)"},
		{"remove PLAYER N", "take N points from a player"},
		{"skip", "move on without scoring"},
		{"end", "finish the game now"},
		{"reset", "clear scores and start over with the same players"},
		{"load ID", "resume a saved game"},
		{"lang LOCALE", "switch the profile language"},
		{"board", "show the scores"},
		{"status", "show the current round"},
		{"quit", "leave"},
	} {
		c.println(fmt.Sprintf("  %-28s %s", l[0], c.st.muted.Render(l[1])))
	}
}

func (c *Console) newGame(ctx context.Context, names []string) error {
	id, err := c.store.CreateGame(ctx, names)
	if err != nil {
		return err
	}
	c.println(c.st.ok.Render("Game created: ") + id)
	return nil
}

func (c *Console) locale() string {
	if s := c.store.Session(); s != nil && s.Locale != "" {
		return s.Locale
	}
	return c.defaultLocale
}

func (c *Console) categories(ctx context.Context) error {
	cats, err := c.catalog.Categories(ctx, c.locale())
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		c.println(c.st.muted.Render("No categories available."))
		return nil
	}
	for _, cat := range cats {
		c.println(fmt.Sprintf("  %-16s %s %s", cat.Slug, cat.Name, c.st.muted.Render(fmt.Sprintf("(%d profiles, %s)", cat.ProfileAmount, cat.Locale))))
	}
	return nil
}

func (c *Console) start(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return cluequiz.Validation("Usage: start CATS ROUNDS [LOCALE]")
	}
	var cats []string
	for _, s := range strings.Split(args[0], ",") {
		if s = strings.TrimSpace(s); s != "" {
			cats = append(cats, s)
		}
	}
	rounds, err := strconv.Atoi(args[1])
	if err != nil {
		return cluequiz.Validation("Rounds must be a number, got %q", args[1])
	}
	locale := c.locale()
	if len(args) > 2 {
		locale = args[2]
	}

	if err := c.store.StartGame(ctx, cats, rounds, locale); err != nil {
		return err
	}
	c.println(c.st.ok.Render(fmt.Sprintf("Game started: %d rounds.", rounds)))
	c.status()
	return nil
}

func (c *Console) clue(ctx context.Context) error {
	if err := c.store.NextClue(ctx); err != nil {
		return err
	}
	clues := c.store.CurrentClues()
	p := c.store.Progress()
	c.println(c.st.clue.Render(fmt.Sprintf("Clue %d/%d: %s", p.CluesRead, p.MaxClues, clues[0])))
	c.println(c.st.muted.Render(fmt.Sprintf("Worth %d points", p.PointsAvailable)))
	return nil
}

func (c *Console) answer(ctx context.Context) error {
	if err := c.store.RevealAnswer(ctx); err != nil {
		return err
	}
	c.println(c.st.title.Render("It was " + c.store.Session().CurrentProfile.Name))
	return nil
}

// player resolves a 1-based roster number or a player name.
func (c *Console) player(arg string) (cluequiz.Player, error) {
	s := c.store.Session()
	if s == nil {
		return cluequiz.Player{}, cluequiz.InvalidState("No game in progress")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(s.Players) {
			return cluequiz.Player{}, cluequiz.PlayerNotFound(arg)
		}
		return s.Players[n-1], nil
	}
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, arg) {
			return p, nil
		}
	}
	return cluequiz.Player{}, cluequiz.PlayerNotFound(arg)
}

func (c *Console) award(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return cluequiz.Validation("Usage: award PLAYER")
	}
	p, err := c.player(args[0])
	if err != nil {
		return err
	}
	var name string
	if s := c.store.Session(); s.CurrentProfile != nil {
		name = s.CurrentProfile.Name
	}
	pts, err := c.store.AwardPoints(ctx, p.ID)
	if err != nil {
		return err
	}
	c.println(c.st.ok.Render(fmt.Sprintf("%s guessed %s: +%d", p.Name, name, pts)))
	c.afterRound()
	return nil
}

func (c *Console) remove(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return cluequiz.Validation("Usage: remove PLAYER N")
	}
	p, err := c.player(args[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return cluequiz.Validation("Amount must be a whole number, got %q", args[1])
	}
	if err := c.store.RemovePoints(ctx, p.ID, n); err != nil {
		return err
	}
	c.println(c.st.ok.Render(fmt.Sprintf("%s: -%d", p.Name, n)))
	return nil
}

func (c *Console) skip(ctx context.Context) error {
	var name string
	if s := c.store.Session(); s != nil && s.CurrentProfile != nil {
		name = s.CurrentProfile.Name
	}
	if err := c.store.SkipProfile(ctx); err != nil {
		return err
	}
	c.println(c.st.muted.Render("Skipped. It was " + name + "."))
	c.afterRound()
	return nil
}

func (c *Console) afterRound() {
	if c.store.Progress().Status == cluequiz.StatusCompleted {
		c.println(c.st.title.Render("Game over."))
		c.board()
		return
	}
	c.status()
}

func (c *Console) load(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return cluequiz.Validation("Usage: load ID")
	}
	if !c.store.LoadFromStorage(ctx, args[0]) {
		// the store keeps the error until a game is created or loaded
		c.fetchErr = false
		c.showError()
		return nil
	}
	c.println(c.st.ok.Render("Game restored."))
	c.status()
	return nil
}

func (c *Console) lang(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return cluequiz.Validation("Usage: lang LOCALE")
	}
	if err := c.store.ChangeLocale(ctx, args[0]); err != nil {
		return err
	}
	c.println(c.st.ok.Render("Language: " + args[0]))
	return nil
}

func (c *Console) board() {
	players := c.store.Leaderboard()
	if len(players) == 0 {
		c.println(c.st.muted.Render("No players."))
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("#", "Player", "Score")
	for i, p := range players {
		t.Row(strconv.Itoa(i+1), p.Name, strconv.Itoa(p.Score))
	}
	c.println(t.String())
}

func (c *Console) status() {
	c.showError()
	s := c.store.Session()
	if s == nil {
		c.println(c.st.muted.Render("No game. Use: new NAME..."))
		return
	}
	p := c.store.Progress()
	switch p.Status {
	case cluequiz.StatusPending:
		c.println(fmt.Sprintf("Waiting to start with %d players.", len(s.Players)))
	case cluequiz.StatusCompleted:
		c.println("Game over.")
	default:
		c.println(c.st.title.Render(fmt.Sprintf("Round %d of %d", p.Round, p.Rounds)) +
			c.st.muted.Render(fmt.Sprintf("  %d clues read, %d left", p.CluesRead, p.MaxClues-p.CluesRead)))
		clues := c.store.CurrentClues()
		for i := len(clues) - 1; i >= 0; i-- {
			c.println(c.st.clue.Render(fmt.Sprintf("  %d. %s", len(clues)-i, clues[i])))
		}
	}
}

func (c *Console) showError() {
	e := c.store.Error()
	if e == nil {
		return
	}
	msg := e.Message
	if !e.Informative {
		msg += " (start a new game or load another)"
	}
	c.println(c.st.err.Render("Error: " + msg))
}

func (c *Console) print(s string) {
	io.WriteString(c.out, s)
}

func (c *Console) println(s string) {
	io.WriteString(c.out, s+"\n")
}
