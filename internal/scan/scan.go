// Package scan reads candidate files and emits identifier occurrences.
// Scanning is best-effort: an unreadable file contributes zero occurrences
// and a stderr warning, never an aborted audit.
package scan

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/storytrace/internal/grammar"
	"github.com/dshills/storytrace/internal/schema"
)

const (
	// maxSnippetLen caps stored context snippets so one pathological line
	// cannot balloon memory. Display truncation is the renderer's concern.
	maxSnippetLen = 500

	// DefaultTestMarker is the file-level substring marking a test file that
	// participates in traceability even without inline identifiers.
	DefaultTestMarker = "@allure"

	// DefaultTraceMarker is the decorator marker for source files.
	DefaultTraceMarker = "@trace"
)

// tracePat captures the payload of @trace("...") / @trace('...') decorators.
var tracePat = regexp.MustCompile(`@trace\(["']([^"']+)["']`)

// Scanner turns files into occurrence lists using a shared Grammar.
type Scanner struct {
	Grammar *grammar.Grammar

	// Warn receives per-file read warnings. Defaults to os.Stderr.
	Warn io.Writer

	// TestMarker and TraceMarker are the file-level traceability markers
	// consulted by the orphan checks.
	TestMarker  string
	TraceMarker string
}

// New returns a Scanner over g with default markers and stderr warnings.
func New(g *grammar.Grammar) *Scanner {
	return &Scanner{
		Grammar:     g,
		Warn:        os.Stderr,
		TestMarker:  DefaultTestMarker,
		TraceMarker: DefaultTraceMarker,
	}
}

func (s *Scanner) warnWriter() io.Writer {
	if s.Warn != nil {
		return s.Warn
	}
	return io.Discard
}

// ReadText reads path with lenient decoding: invalid UTF-8 sequences are
// replaced with U+FFFD and never raise. On read failure it writes a warning
// and reports ok=false; the audit carries on without the file.
func (s *Scanner) ReadText(path string) (content string, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(s.warnWriter(), "Warning: could not read %s: %v\n", path, err)
		return "", false
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), true
}

// ScanFile reads path and returns one Occurrence per identifier match.
// Line numbers are 1-indexed.
func (s *Scanner) ScanFile(path string, category schema.Category) []schema.Occurrence {
	content, ok := s.ReadText(path)
	if !ok {
		return nil
	}
	return s.ScanContent(path, content, category)
}

// ScanContent scans already-read content. Every grammar match on a line
// yields one Occurrence whose snippet is the raw line (capped for storage).
// For source-category content, @trace decorator captures are emitted as
// additional occurrences when the captured string is a whole identifier.
func (s *Scanner) ScanContent(path, content string, category schema.Category) []schema.Occurrence {
	var occs []schema.Occurrence
	for i, line := range SplitLines(content) {
		lineNo := i + 1
		snippet := capSnippet(line)
		for _, m := range s.Grammar.Matches(line) {
			occs = append(occs, schema.Occurrence{
				ID:       m.ID,
				File:     path,
				Line:     lineNo,
				Category: category,
				Snippet:  snippet,
			})
		}
		if category != schema.CategorySource {
			continue
		}
		for _, cap := range tracePat.FindAllStringSubmatch(line, -1) {
			if s.Grammar.MatchString(cap[1]) {
				occs = append(occs, schema.Occurrence{
					ID:       cap[1],
					File:     path,
					Line:     lineNo,
					Category: category,
					Snippet:  snippet,
				})
			}
		}
	}
	return occs
}

// HasTestMarker reports whether content carries the story-decorator marker
// anywhere. This is a file-level substring check, not a per-line match.
func (s *Scanner) HasTestMarker(content string) bool {
	return strings.Contains(content, s.TestMarker)
}

// HasTraceMarker reports whether content carries the trace decorator marker.
func (s *Scanner) HasTraceMarker(content string) bool {
	return strings.Contains(content, s.TraceMarker)
}

// SplitLines splits content into lines without the line terminators.
// A trailing newline does not produce a final empty line.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// CountLines returns the number of lines in content, counting the way
// SplitLines splits.
func CountLines(content string) int {
	return len(SplitLines(content))
}

func capSnippet(line string) string {
	if len(line) <= maxSnippetLen {
		return line
	}
	r := []rune(line)
	if len(r) <= maxSnippetLen {
		return line
	}
	return string(r[:maxSnippetLen])
}
