package profiles

import (
	"slices"
	"strings"

	"golang.org/x/text/language"

	"github.com/playperu/cluequiz/internal/cluequiz"
)

// Manifest lists the categories available to the game and the locales
// each one is published in.
type Manifest struct {
	Version    string     `json:"version,omitempty"`
	Categories []Category `json:"categories"`
}

type Category struct {
	Slug    string                    `json:"slug"`
	Locales map[string]CategoryLocale `json:"locales"`
}

// CategoryLocale is one translation of a category. Files are relative to
// {slug}/{locale}/ and default to data-1.json.
type CategoryLocale struct {
	Name          string   `json:"name"`
	ProfileAmount int      `json:"profileAmount"`
	Files         []string `json:"files,omitempty"`
}

// CategoryInfo is a category as shown to players in one locale.
type CategoryInfo struct {
	Slug          string
	Name          string
	Locale        string
	ProfileAmount int
}

// DataFile is the content of one category data file.
type DataFile struct {
	Profiles []cluequiz.Profile `json:"profiles"`
}

// Find returns the category whose slug or localized name is name, ignoring
// case.
func (m *Manifest) Find(name string) (*Category, bool) {
	for i := range m.Categories {
		c := &m.Categories[i]
		if strings.EqualFold(c.Slug, name) {
			return c, true
		}
		for _, loc := range c.Locales {
			if strings.EqualFold(loc.Name, name) {
				return c, true
			}
		}
	}
	return nil, false
}

// locales returns the category's locale keys in a stable order.
func (c *Category) locales() []string {
	keys := make([]string, 0, len(c.Locales))
	for k := range c.Locales {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MatchLocale picks the category locale closest to want. When nothing
// matches it falls back to fallback, then to the first available locale.
func (c *Category) MatchLocale(want, fallback string) (string, bool) {
	keys := c.locales()
	if len(keys) == 0 {
		return "", false
	}
	if _, ok := c.Locales[want]; ok {
		return want, true
	}

	tags := make([]language.Tag, len(keys))
	for i, k := range keys {
		tags[i] = language.Make(k)
	}
	if tag, err := language.Parse(want); err == nil {
		_, idx, conf := language.NewMatcher(tags).Match(tag)
		if conf != language.No {
			return keys[idx], true
		}
	}

	if _, ok := c.Locales[fallback]; ok {
		return fallback, true
	}
	return keys[0], true
}

func (l CategoryLocale) files() []string {
	if len(l.Files) == 0 {
		return []string{"data-1.json"}
	}
	return l.Files
}
