// Package redact masks credential-shaped text before it reaches a report.
// Context snippets come straight from scanned requirement, test, and source
// lines, so anything a developer left inline (keys, tokens, passwords) would
// otherwise be reprinted verbatim in audit output.
package redact

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// pemPattern matches PEM key blocks across multiple lines.
var pemPattern = regexp.MustCompile(`(?s)-----BEGIN [A-Z ]+KEY-----.*?-----END [A-Z ]+KEY-----`)

// patterns holds single-line secret-detection regexes in priority order.
var patterns = []*regexp.Regexp{
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// sk- style API secret keys, preceded by a boundary
	regexp.MustCompile(`(?:^|\s|["'])sk-[a-zA-Z0-9]{20,}`),
	// JWT tokens (three base64url segments)
	regexp.MustCompile(`eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`),
	// Bearer tokens, minimum 20 chars to avoid false positives
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]{20,}=*`),
	// Inline password assignments
	regexp.MustCompile(`(?i)password\s*[:=]\s*\S+`),
	// Inline api_key / api-key assignments, common in requirement YAML
	regexp.MustCompile(`(?i)\bapi[_-]?key\s*[:=]\s*\S+`),
}

// Redact replaces known secret patterns in input with [REDACTED].
// Line structure is preserved: the output has the same number of
// newlines as the input.
func Redact(input string) string {
	// Replace each line of a PEM block individually so line count holds.
	input = pemPattern.ReplaceAllStringFunc(input, func(match string) string {
		lines := strings.Split(match, "\n")
		for i := range lines {
			lines[i] = redacted
		}
		return strings.Join(lines, "\n")
	})

	for _, re := range patterns {
		input = re.ReplaceAllString(input, redacted)
	}
	return input
}
