// Package profiles loads quiz profiles from a data directory or a static
// HTTP data server laid out as manifest.json plus
// {slug}/{locale}/data-N.json files.
package profiles

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/distribution"
	"github.com/playperu/cluequiz/internal/shuffle"
)

const (
	manifestFile = "manifest.json"
	fetchLimit   = 4
)

// Loader reads and caches manifest and data files. It is safe for
// concurrent use.
type Loader struct {
	src           fetcher
	defaultLocale string
	logger        *slog.Logger

	mu       sync.Mutex
	manifest *Manifest
	files    map[string][]cluequiz.Profile
}

// NewDirLoader reads profile data from fsys, typically os.DirFS(dir).
func NewDirLoader(fsys fs.FS, defaultLocale string, logger *slog.Logger) *Loader {
	return newLoader(fsFetcher{fsys: fsys}, defaultLocale, logger)
}

// NewHTTPLoader reads profile data from baseURL.
func NewHTTPLoader(baseURL string, client *http.Client, defaultLocale string, logger *slog.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return newLoader(httpFetcher{base: baseURL, client: client}, defaultLocale, logger)
}

func newLoader(src fetcher, defaultLocale string, logger *slog.Logger) *Loader {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	return &Loader{
		src:           src,
		defaultLocale: defaultLocale,
		logger:        logger,
		files:         make(map[string][]cluequiz.Profile),
	}
}

// Manifest returns the data manifest, fetching it on first use.
func (l *Loader) Manifest(ctx context.Context) (*Manifest, error) {
	l.mu.Lock()
	m := l.manifest
	l.mu.Unlock()
	if m != nil {
		return m, nil
	}

	b, err := l.src.fetch(ctx, manifestFile)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	m = &Manifest{}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	l.mu.Lock()
	l.manifest = m
	l.mu.Unlock()
	return m, nil
}

// Categories lists the categories in locale, sorted by name.
func (l *Loader) Categories(ctx context.Context, locale string) ([]CategoryInfo, error) {
	m, err := l.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryInfo, 0, len(m.Categories))
	for i := range m.Categories {
		c := &m.Categories[i]
		loc, ok := c.MatchLocale(locale, l.defaultLocale)
		if !ok {
			continue
		}
		out = append(out, CategoryInfo{
			Slug:          c.Slug,
			Name:          c.Locales[loc].Name,
			Locale:        loc,
			ProfileAmount: c.Locales[loc].ProfileAmount,
		})
	}
	slices.SortFunc(out, func(a, b CategoryInfo) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

// LoadCategories returns every profile of the categories in locale. Each
// profile's Category is set to the category string the caller asked for.
func (l *Loader) LoadCategories(ctx context.Context, categories []string, locale string) ([]cluequiz.Profile, error) {
	m, err := l.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	type job struct {
		label string
		files []string
	}
	var jobs []job
	for _, name := range categories {
		c, ok := m.Find(name)
		if !ok {
			return nil, cluequiz.NotFound("Category not found: %s", name)
		}
		loc, ok := c.MatchLocale(locale, l.defaultLocale)
		if !ok {
			return nil, cluequiz.NotFound("Category %s has no locales", name)
		}
		var files []string
		for _, f := range c.Locales[loc].files() {
			files = append(files, path.Join(c.Slug, loc, f))
		}
		jobs = append(jobs, job{label: name, files: files})
	}

	results := make([][]cluequiz.Profile, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, j := range jobs {
		g.Go(func() error {
			var out []cluequiz.Profile
			for _, f := range j.files {
				ps, err := l.file(gctx, f)
				if err != nil {
					return err
				}
				for _, p := range ps {
					p.Category = j.label
					out = append(out, p)
				}
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []cluequiz.Profile
	for _, r := range results {
		all = append(all, r...)
	}
	l.logger.Debug("profiles loaded", "categories", categories, "locale", locale, "count", len(all))
	return all, nil
}

// LoadProfilesByIDs returns the profiles with the given ids in locale, in
// the order of ids. Profiles missing from locale are taken from the
// default locale.
func (l *Loader) LoadProfilesByIDs(ctx context.Context, ids []string, locale string) ([]cluequiz.Profile, error) {
	if len(ids) == 0 {
		return []cluequiz.Profile{}, nil
	}
	m, err := l.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, len(m.Categories))
	for i, c := range m.Categories {
		slugs[i] = c.Slug
	}

	index, err := l.index(ctx, slugs, locale)
	if err != nil {
		return nil, err
	}
	if locale != l.defaultLocale && !containsAll(index, ids) {
		fallback, err := l.index(ctx, slugs, l.defaultLocale)
		if err != nil {
			return nil, err
		}
		for id, p := range fallback {
			if _, ok := index[id]; !ok {
				index[id] = p
			}
		}
	}

	out := make([]cluequiz.Profile, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := index[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		return nil, cluequiz.NotFound("Profiles not found: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// ResolveCategoriesToProfileIDs picks the profile ids for a game of rounds
// rounds over categories.
func (l *Loader) ResolveCategoriesToProfileIDs(ctx context.Context, r shuffle.Rand, categories []string, rounds int, locale string) ([]string, error) {
	all, err := l.LoadCategories(ctx, categories, locale)
	if err != nil {
		return nil, err
	}
	return distribution.Select(r, all, categories, rounds)
}

func (l *Loader) index(ctx context.Context, slugs []string, locale string) (map[string]cluequiz.Profile, error) {
	all, err := l.LoadCategories(ctx, slugs, locale)
	if err != nil {
		return nil, err
	}
	index := make(map[string]cluequiz.Profile, len(all))
	for _, p := range all {
		if _, dup := index[p.ID]; !dup {
			index[p.ID] = p
		}
	}
	return index, nil
}

func containsAll(index map[string]cluequiz.Profile, ids []string) bool {
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			return false
		}
	}
	return true
}

func (l *Loader) file(ctx context.Context, name string) ([]cluequiz.Profile, error) {
	l.mu.Lock()
	cached, ok := l.files[name]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	b, err := l.src.fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	var df DataFile
	if err := json.Unmarshal(b, &df); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}

	l.mu.Lock()
	l.files[name] = df.Profiles
	l.mu.Unlock()
	return df.Profiles, nil
}
