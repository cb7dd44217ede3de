// Package render formats audit results for output.
package render

import (
	"fmt"
	"strings"

	"github.com/dshills/storytrace/internal/redact"
	"github.com/dshills/storytrace/internal/schema"
)

// snippetDisplayLen caps context snippets shown in human-readable output.
// The cap is cosmetic; stored snippets and classification are unaffected.
const snippetDisplayLen = 80

// Renderer formats an audit snapshot and its coverage report into bytes.
type Renderer interface {
	Render(result *schema.AggregateResult, coverage *schema.CoverageReport) ([]byte, error)
}

// NewRenderer returns a Renderer for the given format string.
// Supported formats: "text" (default), "json".
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &textRenderer{}, nil
	case "json":
		return &jsonRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: supported formats are text, json", format)
	}
}

// DisplaySnippet normalizes a stored context snippet for display: trims
// surrounding whitespace, masks secrets, and truncates long lines.
func DisplaySnippet(s string) string {
	return truncate(redact.Redact(strings.TrimSpace(s)), snippetDisplayLen)
}

// truncate limits a string to maxLen runes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
