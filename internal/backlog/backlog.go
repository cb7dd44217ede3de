// Package backlog parses Backlog.md-style markdown artifacts: task files
// with YAML frontmatter, risk-cluster documents, and decision records.
package backlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Task is one task-*.md file.
type Task struct {
	ID           string
	Title        string
	Status       string
	Priority     string
	Dependencies []string
	Labels       []string
	Description  string
	Criteria     []AcceptanceCriterion
	SourceFile   string
}

// AcceptanceCriterion is one `- [x] #N text` checklist line.
type AcceptanceCriterion struct {
	Number    int
	Text      string
	Completed bool
}

// Risk is one `## RISK-XXX-NNN: Title` entry inside a risk-cluster doc.
// Attrs holds the `| **Attribute** | Value |` table rows keyed by
// lower-snake attribute name (severity, likelihood, mitigation, ...).
type Risk struct {
	ID      string
	Title   string
	Cluster string
	Attrs   map[string]string
	Line    int
}

// Decision is one decision-*.md / ADR-*.md record.
type Decision struct {
	ID         string
	Title      string
	Status     string
	Date       string
	SourceFile string

	body string
}

var (
	fmClosePat     = regexp.MustCompile(`\n---[ \t]*\n`)
	acPat          = regexp.MustCompile(`(?m)^-\s*\[([ xX])\]\s*#(\d+)\s+(.+)$`)
	acSectionPat   = regexp.MustCompile(`(?s)<!-- AC:BEGIN -->(.*?)<!-- AC:END -->`)
	riskHeadPat    = regexp.MustCompile(`(?m)^##\s+(RISK-[A-Z]+-\d+):\s*(.+)$`)
	attrRowPat     = regexp.MustCompile(`\|\s*\*\*([^*]+)\*\*\s*\|\s*([^|]+)\|`)
	clusterNamePat = regexp.MustCompile(`RC-([A-Z]+)`)
	nextHeadPat    = regexp.MustCompile(`(?m)^##\s`)
)

// SplitFrontmatter separates the leading `---` delimited YAML block from
// the markdown body. bodyStart is the 1-indexed line number of the first
// body line. Content without a complete, parseable frontmatter block is
// an error; the raw content comes back unchanged so callers can still
// show it.
func SplitFrontmatter(content string) (fm map[string]any, body string, bodyStart int, err error) {
	if !strings.HasPrefix(content, "---") {
		return nil, content, 1, errors.New("missing frontmatter")
	}
	loc := fmClosePat.FindStringIndex(content[3:])
	if loc == nil {
		return nil, content, 1, errors.New("unterminated frontmatter")
	}

	raw := content[3 : 3+loc[0]]
	head := content[:3+loc[1]]
	body = content[3+loc[1]:]

	fm = map[string]any{}
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, content, 1, fmt.Errorf("invalid frontmatter: %w", err)
	}
	return fm, body, strings.Count(head, "\n") + 1, nil
}

// ExtractSection returns the content under `## <heading>` up to the next
// `## ` heading or end of body, trimmed. Missing headings yield "".
func ExtractSection(body, heading string) string {
	headPat := regexp.MustCompile(`(?m)^##[ \t]+` + regexp.QuoteMeta(heading) + `[ \t]*\r?$`)
	loc := headPat.FindStringIndex(body)
	if loc == nil {
		return ""
	}
	rest := body[loc[1]:]
	if next := nextHeadPat.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	return strings.TrimSpace(rest)
}

// ParseAcceptanceCriteria reads `- [x] #N text` lines. When the body has
// <!-- AC:BEGIN --> / <!-- AC:END --> markers only that span is read,
// otherwise the whole body is.
func ParseAcceptanceCriteria(body string) []AcceptanceCriterion {
	section := body
	if m := acSectionPat.FindStringSubmatch(body); m != nil {
		section = m[1]
	}

	var criteria []AcceptanceCriterion
	for _, m := range acPat.FindAllStringSubmatch(section, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		criteria = append(criteria, AcceptanceCriterion{
			Number:    n,
			Text:      strings.TrimSpace(m[3]),
			Completed: strings.EqualFold(m[1], "x"),
		})
	}
	return criteria
}

// ParseTask reads a task markdown file.
func ParseTask(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fm, body, _, err := SplitFrontmatter(string(data))
	if err != nil {
		return nil, err
	}
	return &Task{
		ID:           fmString(fm, "id"),
		Title:        fmString(fm, "title"),
		Status:       fmString(fm, "status"),
		Priority:     fmString(fm, "priority"),
		Dependencies: fmStrings(fm, "dependencies"),
		Labels:       fmStrings(fm, "labels"),
		Description:  ExtractSection(body, "Description"),
		Criteria:     ParseAcceptanceCriteria(body),
		SourceFile:   filepath.Base(path),
	}, nil
}

// ParseRiskCluster reads a risk-cluster document and returns its risk
// entries. The cluster name comes from the RC-<CLUSTER> portion of the
// file name; files without one yield risks with an empty Cluster.
func ParseRiskCluster(path string) ([]Risk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	_, body, bodyStart, err := SplitFrontmatter(string(data))
	if err != nil {
		return nil, err
	}

	cluster := ""
	if m := clusterNamePat.FindStringSubmatch(filepath.Base(path)); m != nil {
		cluster = m[1]
	}

	matches := riskHeadPat.FindAllStringSubmatchIndex(body, -1)
	risks := make([]Risk, 0, len(matches))
	for i, m := range matches {
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		section := body[m[1]:end]
		risks = append(risks, Risk{
			ID:      body[m[2]:m[3]],
			Title:   strings.TrimSpace(body[m[4]:m[5]]),
			Cluster: cluster,
			Attrs:   parseAttrTable(section),
			Line:    bodyStart + strings.Count(body[:m[0]], "\n"),
		})
	}
	return risks, nil
}

// ParseDecision reads a decision/ADR markdown file.
func ParseDecision(path string) (*Decision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fm, body, _, err := SplitFrontmatter(string(data))
	if err != nil {
		return nil, err
	}
	return &Decision{
		ID:         fmString(fm, "id"),
		Title:      fmString(fm, "title"),
		Status:     fmString(fm, "status"),
		Date:       fmString(fm, "date"),
		SourceFile: filepath.Base(path),
		body:       body,
	}, nil
}

func parseAttrTable(section string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRowPat.FindAllStringSubmatch(section, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		key = strings.ReplaceAll(key, " ", "_")
		attrs[key] = strings.TrimSpace(m[2])
	}
	return attrs
}

func fmString(fm map[string]any, key string) string {
	v, ok := fm[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func fmStrings(fm map[string]any, key string) []string {
	items, ok := fm[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
