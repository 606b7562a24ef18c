// Package importer turns numbered markdown profile lists into category
// data files.
//
// The markdown format is one numbered title per profile followed by its
// clues as list items:
//
//	1. The Godfather
//	- Released in 1972
//	- ...
//
//	2. Casablanca
//	- ...
package importer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/playperu/cluequiz/internal/cluequiz"
	"github.com/playperu/cluequiz/internal/profiles"
)

// ExpectedClues is the clue count every imported profile should have.
const ExpectedClues = 20

// DefaultLanguages are imported when no languages are given.
var DefaultLanguages = []string{"en", "es", "pt-BR"}

var titleRe = regexp.MustCompile(`^\d+\.\s+(.+)$`)

type Entry struct {
	Title string
	Clues []string
}

// ParseMarkdown reads the profiles in r. Titles without clues are dropped;
// profiles with a clue count other than ExpectedClues are kept with a
// warning.
func ParseMarkdown(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	var (
		entries []Entry
		cur     *Entry
	)
	flush := func() {
		if cur == nil {
			return
		}
		if len(cur.Clues) != ExpectedClues {
			logger.Warn("unexpected clue count", "profile", cur.Title, "clues", len(cur.Clues), "expected", ExpectedClues)
		}
		if len(cur.Clues) > 0 {
			entries = append(entries, *cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if m := titleRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Entry{Title: strings.TrimSpace(m[1])}
			continue
		}
		if cur != nil && strings.HasPrefix(line, "- ") {
			cur.Clues = append(cur.Clues, strings.TrimSpace(line[2:]))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading markdown: %w", err)
	}
	flush()
	return entries, nil
}

// Updater appends imported profiles of one category to its data files.
type Updater struct {
	Category    string
	IDPrefix    string
	MarkdownDir string
	JSONDir     string
	StartID     int
	Logger      *slog.Logger
}

func (u *Updater) slug() string {
	return strings.ToLower(u.Category)
}

func (u *Updater) prefix() string {
	if u.IDPrefix != "" {
		return u.IDPrefix
	}
	return u.slug()
}

// MarkdownFile finds the markdown file for lang. Accepted names are
// {slug}.md, {slug}_{lang}.md, {slug}-{lang}.md and the same with a _md.md
// suffix.
func (u *Updater) MarkdownFile(lang string) (string, error) {
	for _, suffix := range []string{"", "_" + lang, "-" + lang} {
		for _, ext := range []string{".md", "_md.md"} {
			p := filepath.Join(u.MarkdownDir, u.slug()+suffix+ext)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("no markdown file for %s in %s: %w", lang, u.MarkdownDir, fs.ErrNotExist)
}

// DataFile is the data file profiles for lang are appended to.
func (u *Updater) DataFile(lang string) string {
	return filepath.Join(u.JSONDir, u.slug(), lang, "data-1.json")
}

// UpdateLanguage imports the markdown for lang and returns the number of
// profiles added.
func (u *Updater) UpdateLanguage(lang string) (int, error) {
	mdPath, err := u.MarkdownFile(lang)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(mdPath)
	if err != nil {
		return 0, fmt.Errorf("opening markdown: %w", err)
	}
	entries, err := ParseMarkdown(f, u.Logger)
	f.Close()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		u.Logger.Warn("no profiles found", "file", mdPath)
		return 0, nil
	}

	dataPath := u.DataFile(lang)
	df, err := readDataFile(dataPath)
	if err != nil {
		return 0, err
	}

	for i, e := range entries {
		df.Profiles = append(df.Profiles, cluequiz.Profile{
			ID:       fmt.Sprintf("profile-%s-%03d", u.prefix(), u.StartID+i),
			Category: u.Category,
			Name:     e.Title,
			Clues:    e.Clues,
			Metadata: map[string]string{
				"language":   lang,
				"difficulty": "medium",
				"source":     "entertainment",
			},
		})
	}

	if err := writeJSON(dataPath, df); err != nil {
		return 0, err
	}
	u.Logger.Info("profiles imported", "language", lang, "file", dataPath, "added", len(entries), "total", len(df.Profiles))
	return len(entries), nil
}

// UpdateAll imports every language. A failing language is logged and
// counted as zero; the others still run.
func (u *Updater) UpdateAll(langs []string) map[string]int {
	results := make(map[string]int, len(langs))
	for _, lang := range langs {
		n, err := u.UpdateLanguage(lang)
		if err != nil {
			u.Logger.Error("import failed", "language", lang, "error", err)
		}
		results[lang] = n
	}
	return results
}

// UpdateManifest sets the profile count of each language of the category
// in the manifest at path. Languages the manifest does not list are left
// alone.
func (u *Updater) UpdateManifest(path string, langs []string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	var m profiles.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("decoding manifest: %w", err)
	}

	found := false
	for i := range m.Categories {
		c := &m.Categories[i]
		if c.Slug != u.slug() {
			continue
		}
		found = true
		for _, lang := range langs {
			loc, ok := c.Locales[lang]
			if !ok {
				continue
			}
			df, err := readDataFile(u.DataFile(lang))
			if err != nil {
				return err
			}
			loc.ProfileAmount = len(df.Profiles)
			c.Locales[lang] = loc
			u.Logger.Info("manifest updated", "category", c.Slug, "language", lang, "profiles", loc.ProfileAmount)
		}
	}
	if !found {
		return fmt.Errorf("category %s not in manifest: %w", u.slug(), fs.ErrNotExist)
	}
	return writeJSON(path, &m)
}

// readDataFile returns an empty data file when path does not exist yet.
func readDataFile(path string) (*profiles.DataFile, error) {
	df := &profiles.DataFile{Profiles: []cluequiz.Profile{}}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return df, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}
	if err := json.Unmarshal(b, df); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return df, nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
