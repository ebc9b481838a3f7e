// Package catalog serves the read-only document rules photos are processed against.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"snapfixer/internal/photo"
)

// ErrRuleNotFound is returned by Lookup for unknown slugs.
var ErrRuleNotFound = errors.New("rule not found")

const (
	fallbackWidthMM  = 35
	fallbackHeightMM = 45
	fallbackColor    = "white"
	pixelsPerMM      = photo.OutputDPI / 25.4
)

// Entry is one catalog record as written in the rules file.
type Entry struct {
	Slug       string  `mapstructure:"slug" json:"slug"`
	Name       string  `mapstructure:"name" json:"name"`
	WidthMM    float64 `mapstructure:"width_mm" json:"width_mm"`
	HeightMM   float64 `mapstructure:"height_mm" json:"height_mm"`
	WidthPX    int     `mapstructure:"width_px" json:"width_px,omitempty"`
	HeightPX   int     `mapstructure:"height_px" json:"height_px,omitempty"`
	Background string  `mapstructure:"bg_color" json:"bg_color"`
	Signature  bool    `mapstructure:"signature" json:"signature"`
}

// Rule converts the entry into the pipeline's rule. Request-level flags stay false.
func (e Entry) Rule() photo.DocumentRule {
	return photo.DocumentRule{
		TargetWidthMM:   e.WidthMM,
		TargetHeightMM:  e.HeightMM,
		BackgroundColor: e.Background,
		IsSignature:     e.Signature,
	}
}

// Catalog is immutable after construction and safe for concurrent reads.
type Catalog struct {
	entries map[string]Entry
}

// Default returns the built-in rules.
func Default() *Catalog {
	c, _ := New(builtinEntries())
	return c
}

// New normalizes entries and indexes them by slug.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		e = normalize(e)
		if e.Slug == "" {
			return nil, fmt.Errorf("rule %q has no slug", e.Name)
		}
		if _, dup := c.entries[e.Slug]; dup {
			return nil, fmt.Errorf("duplicate rule slug %q", e.Slug)
		}
		c.entries[e.Slug] = e
	}
	return c, nil
}

// Load reads a YAML or JSON rules file of the form `rules: [...]`. An empty path
// yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rule catalog %s: %w", path, err)
	}
	var entries []Entry
	if err := v.UnmarshalKey("rules", &entries); err != nil {
		return nil, fmt.Errorf("decode rule catalog %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("rule catalog %s is empty", path)
	}
	return New(entries)
}

// Lookup returns the entry for slug.
func (c *Catalog) Lookup(slug string) (Entry, error) {
	e, ok := c.entries[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return Entry{}, ErrRuleNotFound
	}
	return e, nil
}

// Entries returns all rules sorted by slug.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// normalize fills missing fields: millimetres are derived from pixel sizes at the
// output DPI, otherwise fall back to the common 35x45 mm passport format.
func normalize(e Entry) Entry {
	e.Name = strings.TrimSpace(e.Name)
	e.Slug = strings.TrimSpace(e.Slug)
	if e.Slug == "" {
		e.Slug = Slugify(e.Name)
	}
	e.Slug = strings.ToLower(e.Slug)
	if e.WidthMM <= 0 && e.WidthPX > 0 {
		e.WidthMM = float64(int(float64(e.WidthPX) / pixelsPerMM))
	}
	if e.HeightMM <= 0 && e.HeightPX > 0 {
		e.HeightMM = float64(int(float64(e.HeightPX) / pixelsPerMM))
	}
	if e.WidthMM <= 0 {
		e.WidthMM = fallbackWidthMM
	}
	if e.HeightMM <= 0 {
		e.HeightMM = fallbackHeightMM
	}
	if strings.TrimSpace(e.Background) == "" {
		e.Background = fallbackColor
	}
	return e
}

// Slugify lowercases s and collapses every run of non-alphanumerics into one dash.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func builtinEntries() []Entry {
	return []Entry{
		{Name: "US Passport", Slug: "us-passport", WidthMM: 51, HeightMM: 51, Background: "white"},
		{Name: "India Passport", Slug: "india-passport", WidthMM: 35, HeightMM: 45, Background: "white"},
		{Name: "UK Passport", Slug: "uk-passport", WidthMM: 35, HeightMM: 45, Background: "#eeeeee"},
		{Name: "Schengen Visa", Slug: "schengen-visa", WidthMM: 35, HeightMM: 45, Background: "#f0f0f0"},
		{Name: "Canada Passport", Slug: "canada-passport", WidthMM: 50, HeightMM: 70, Background: "white"},
		{Name: "China Visa", Slug: "china-visa", WidthMM: 33, HeightMM: 48, Background: "white"},
		{Name: "Signature Resizer", Slug: "signature-resizer", WidthMM: 35, HeightMM: 45, Background: "white", Signature: true},
	}
}
