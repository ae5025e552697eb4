// Package safety implements the crisis scanner. It runs on every
// request before anything else, uses only in-process pattern matching,
// and is never tuned at runtime: a bad verdict here is a deploy
// blocker, not a recoverable error.
package safety

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mindroute-ai/mindroute/src/models"
)

// PatternTable is the versioned crisis pattern set. Changing it
// requires an explicit deploy; there is no hot reload.
type PatternTable struct {
	Version   int      `yaml:"version"`
	Immediate []string `yaml:"immediate"`
	Elevated  []string `yaml:"elevated"`
	// Allow lists known false-positive contexts (idioms, game and
	// media references). An allow phrase only suppresses a pattern
	// occurrence it fully covers; any uncovered occurrence triggers.
	Allow []string `yaml:"allow"`
}

// Responses returned when the pipeline short-circuits. Pre-validated
// fixed text, never model-generated, never cached.
const (
	ImmediateResponse = "It sounds like you are going through something very painful right now. " +
		"You deserve immediate support: please reach out to a crisis line such as 988 " +
		"(call or text, US) or your local emergency number. You are not alone, and " +
		"trained counselors are available right now."
	ElevatedResponse = "I hear that things feel really heavy at the moment. It can help to talk " +
		"this through with someone trained for it: the 988 lifeline (US) or your local " +
		"support line is available any time. Would you like to keep talking here as well?"
)

// Scanner classifies raw message text as clear or crisis. It has no
// external dependencies and cannot fail at runtime.
type Scanner struct {
	table     *PatternTable
	immediate []string
	elevated  []string
	allow     []string
}

// DefaultTable is the built-in pattern set used when no table file is
// configured. Kept deliberately recall-heavy.
func DefaultTable() *PatternTable {
	return &PatternTable{
		Version: 1,
		Immediate: []string{
			"kill myself",
			"end my life",
			"end it all",
			"want to die",
			"suicide",
			"suicidal",
			"take my own life",
			"no reason to live",
			"better off dead",
			"hurt myself",
			"harm myself",
			"self harm",
			"overdose",
		},
		Elevated: []string{
			"dying",
			"can't go on",
			"cant go on",
			"give up on everything",
			"hopeless",
			"worthless",
			"nothing matters anymore",
			"nobody would miss me",
			"disappear forever",
		},
		Allow: []string{
			"dying of laughter",
			"dying to see",
			"dying to know",
			"dying to try",
			"killing it",
			"killed it",
			"my phone died",
			"battery died",
			"died in the game",
			"kill myself laughing",
			"deadline",
		},
	}
}

// LoadTable reads a versioned pattern table from a YAML file.
func LoadTable(path string) (*PatternTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read safety pattern table: %w", err)
	}
	var table PatternTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse safety pattern table: %w", err)
	}
	if len(table.Immediate) == 0 {
		return nil, fmt.Errorf("safety pattern table %s has no immediate patterns", path)
	}
	return &table, nil
}

// NewScanner builds a scanner from a pattern table. Patterns are
// normalized once here so Scan stays allocation-light.
func NewScanner(table *PatternTable) *Scanner {
	if table == nil {
		table = DefaultTable()
	}
	return &Scanner{
		table:     table,
		immediate: normalizeAll(table.Immediate),
		elevated:  normalizeAll(table.Elevated),
		allow:     normalizeAll(table.Allow),
	}
}

// TableVersion reports the loaded pattern table version.
func (s *Scanner) TableVersion() int {
	return s.table.Version
}

// Scan classifies message text. Biased toward recall: the allow list
// only suppresses a match when an allow phrase fully covers it, and a
// tie is resolved by triggering.
func (s *Scanner) Scan(text string) models.Verdict {
	norm := normalize(text)
	if norm == "" {
		return models.VerdictClear
	}

	allowSpans := findSpans(norm, s.allow)

	if s.anyUncovered(norm, s.immediate, allowSpans) {
		return models.VerdictCrisisImmediate
	}
	if s.anyUncovered(norm, s.elevated, allowSpans) {
		return models.VerdictCrisisElevated
	}
	return models.VerdictClear
}

// ResponseFor returns the fixed short-circuit response for a crisis
// verdict.
func ResponseFor(v models.Verdict) string {
	if v == models.VerdictCrisisImmediate {
		return ImmediateResponse
	}
	return ElevatedResponse
}

// anyUncovered reports whether any pattern occurs in text outside every
// allow-phrase span.
func (s *Scanner) anyUncovered(text string, patterns []string, allowSpans []span) bool {
	for _, pattern := range patterns {
		for _, occ := range occurrences(text, pattern) {
			if !covered(occ, allowSpans) {
				return true
			}
		}
	}
	return false
}

type span struct {
	start, end int
}

func findSpans(text string, phrases []string) []span {
	var spans []span
	for _, phrase := range phrases {
		spans = append(spans, occurrences(text, phrase)...)
	}
	return spans
}

func occurrences(text, sub string) []span {
	if sub == "" {
		return nil
	}
	var spans []span
	for from := 0; ; {
		idx := strings.Index(text[from:], sub)
		if idx < 0 {
			return spans
		}
		start := from + idx
		spans = append(spans, span{start: start, end: start + len(sub)})
		from = start + 1
	}
}

func covered(occ span, allowSpans []span) bool {
	for _, a := range allowSpans {
		if a.start <= occ.start && occ.end <= a.end {
			return true
		}
	}
	return false
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if n := normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
