// Package templates implements the static pattern table that answers
// trivial messages instantly. Template hits cost nothing and are never
// written to the cache hierarchy.
package templates

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mindroute-ai/mindroute/src/models"
)

// Table is the versioned pattern table loaded from YAML. Reloadable via
// config, but versioned so a routing decision can name what answered.
type Table struct {
	Version int     `yaml:"version"`
	Entries []Entry `yaml:"templates"`
}

type Entry struct {
	Pattern  string `yaml:"pattern"`
	Response string `yaml:"response"`
}

// Matcher performs exact and token-overlap fuzzy lookup against the
// table.
type Matcher struct {
	version int
	entries []preparedEntry
}

type preparedEntry struct {
	pattern    string
	normalized string
	tokens     map[string]bool
	response   string
}

// LoadTable reads a pattern table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template table: %w", err)
	}
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse template table: %w", err)
	}
	return &table, nil
}

func NewMatcher(table *Table) *Matcher {
	m := &Matcher{version: table.Version}
	for _, e := range table.Entries {
		norm := normalize(e.Pattern)
		if norm == "" {
			continue
		}
		m.entries = append(m.entries, preparedEntry{
			pattern:    e.Pattern,
			normalized: norm,
			tokens:     tokenSet(norm),
			response:   e.Response,
		})
	}
	return m
}

func (m *Matcher) Version() int {
	return m.version
}

// Match returns the best template hit at or above the confidence floor,
// or (nil, false). Exact normalized matches score 1.0; otherwise the
// confidence is the token-set Jaccard overlap.
func (m *Matcher) Match(message string, confidenceFloor float64) (*models.TemplateMatch, bool) {
	norm := normalize(message)
	if norm == "" {
		return nil, false
	}
	msgTokens := tokenSet(norm)

	var best *models.TemplateMatch
	for i := range m.entries {
		e := &m.entries[i]

		confidence := 0.0
		if norm == e.normalized {
			confidence = 1.0
		} else {
			confidence = jaccard(msgTokens, e.tokens)
		}

		if confidence < confidenceFloor {
			continue
		}
		if best == nil || confidence > best.Confidence {
			best = &models.TemplateMatch{
				Pattern:    e.pattern,
				Text:       e.response,
				Confidence: confidence,
			}
		}
	}

	return best, best != nil
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(normalized string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		set[tok] = true
	}
	return set
}

func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
