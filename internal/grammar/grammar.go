// Package grammar compiles the identifier lexicon shared by every subsystem.
// The scanner, the classifier, and the conflict detector all match through the
// same compiled patterns; a second pattern set elsewhere is a defect.
package grammar

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Config declares the identifier families a Grammar recognizes. It is passed
// explicitly at construction so multiple grammars can coexist; there is no
// process-wide registry.
type Config struct {
	// Prefixes maps each identifier prefix to its human-readable type name,
	// e.g. "FT" -> "Feature".
	Prefixes map[string]string
}

// DefaultConfig returns the standard prefix registry.
func DefaultConfig() Config {
	return Config{
		Prefixes: map[string]string{
			"FT":   "Feature",
			"US":   "User Story",
			"EP":   "Epic",
			"RISK": "Risk",
			"RC":   "Risk Cluster",
			"DC":   "Design Control",
			"GR":   "Guidance Reference",
			"ADR":  "Architecture Decision Record",
		},
	}
}

// Match is one identifier occurrence within a scanned string.
type Match struct {
	ID    string
	Start int
	End   int
}

// Grammar matches identifiers of the form PREFIX-DIGITS or
// PREFIX-CLUSTER-DIGITS, where CLUSTER is upper-case letters and DIGITS is one
// or more decimal digits. Matches are bounded by word boundaries, so an
// identifier embedded in a longer token never matches.
type Grammar struct {
	prefixes  []string
	typeNames map[string]string

	idPat   *regexp.Regexp // occurrences inside arbitrary text
	defPat  *regexp.Regexp // definition-line shape, identifier captured
	fullPat *regexp.Regexp // whole-string identifier
}

var validPrefix = regexp.MustCompile(`^[A-Z]+$`)

// New compiles a Grammar from cfg. Prefixes must be non-empty upper-case
// ASCII; anything else is a configuration error.
func New(cfg Config) (*Grammar, error) {
	if len(cfg.Prefixes) == 0 {
		return nil, fmt.Errorf("grammar: no prefixes registered")
	}

	prefixes := make([]string, 0, len(cfg.Prefixes))
	typeNames := make(map[string]string, len(cfg.Prefixes))
	for p, name := range cfg.Prefixes {
		if !validPrefix.MatchString(p) {
			return nil, fmt.Errorf("grammar: invalid prefix %q: prefixes are upper-case ASCII letters", p)
		}
		prefixes = append(prefixes, p)
		typeNames[p] = name
	}

	// Longest prefix first in the alternation so a short prefix cannot eat
	// the head of a longer one (RISK must be tried before RC). Length ties
	// break lexically to keep the compiled pattern stable.
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})

	core := fmt.Sprintf(`(%s)-(?:[A-Z]+-)?\d+`, strings.Join(prefixes, "|"))
	return &Grammar{
		prefixes:  prefixes,
		typeNames: typeNames,
		idPat:     regexp.MustCompile(`\b` + core + `\b`),
		defPat:    regexp.MustCompile(`^(?:-\s+)?(?i:id):\s*(` + core + `)\b`),
		fullPat:   regexp.MustCompile(`^` + core + `$`),
	}, nil
}

// Default returns a Grammar over the standard prefix registry.
func Default() *Grammar {
	g, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return g
}

// Matches returns every non-overlapping identifier occurrence in text, in
// left-to-right order.
func (g *Grammar) Matches(text string) []Match {
	idx := g.idPat.FindAllStringIndex(text, -1)
	if idx == nil {
		return nil
	}
	out := make([]Match, 0, len(idx))
	for _, p := range idx {
		out = append(out, Match{ID: text[p[0]:p[1]], Start: p[0], End: p[1]})
	}
	return out
}

// MatchString reports whether s in its entirety is a recognized identifier.
func (g *Grammar) MatchString(s string) bool {
	return g.fullPat.MatchString(s)
}

// IsDefinitionLine reports whether line is the authoritative definition of id.
// The line, after trimming surrounding whitespace and an optional leading "- "
// list marker, must read `id: <identifier>` with the literal id keyword
// matched case-insensitively and the captured identifier equal to id exactly.
// Suffixed keys (epic_id:, feature_id:, parent_task_id:) never qualify, and a
// definition of a different identifier sharing the prefix never qualifies.
// Trailing commentary after the identifier is allowed.
func (g *Grammar) IsDefinitionLine(line, id string) bool {
	m := g.defPat.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return false
	}
	return m[1] == id
}

// DefinitionID returns the identifier a line defines, if it is a definition
// line at all.
func (g *Grammar) DefinitionID(line string) (string, bool) {
	m := g.defPat.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// PrefixOf returns the registered prefix of id, or false when id is not a
// recognized identifier.
func (g *Grammar) PrefixOf(id string) (string, bool) {
	m := g.fullPat.FindStringSubmatch(id)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// TypeNameOf returns the human-readable type name for id's family.
func (g *Grammar) TypeNameOf(id string) (string, bool) {
	p, ok := g.PrefixOf(id)
	if !ok {
		return "", false
	}
	return g.typeNames[p], true
}

// Prefixes returns the registered prefixes in alternation order.
func (g *Grammar) Prefixes() []string {
	out := make([]string, len(g.prefixes))
	copy(out, g.prefixes)
	return out
}
