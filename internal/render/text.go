package render

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/dshills/storytrace/internal/schema"
)

// Display caps for the uncovered and orphan lists. Cosmetic only; the
// section headers always carry the full counts.
const (
	uncoveredCap = 20
	orphanCap    = 10
)

type textRenderer struct{}

var textTemplate = template.Must(template.New("report").Parse(`{{.Banner}}
         STORY AUDIT: TRACEABILITY REPORT
{{.Banner}}

Repository: {{.RepoPath}}

## Summary

| Metric | Count |
|--------|-------|
{{range .Summary -}}
| {{.Label}} | {{.Count}} |
{{end -}}
{{if .Conflicts}}
## ID Conflicts Found

| ID | Files |
|----|-------|
{{range .Conflicts -}}
| {{.ID}} | {{.Files}} |
{{end -}}
{{end -}}
{{range .Lists}}
{{.Title}}

{{if .Note -}}
{{.Note}}
{{end -}}
{{range .Items -}}
- {{.}}
{{end -}}
{{if .More -}}
- ... and {{.More}} more
{{end -}}
{{end}}
## Coverage by Prefix

| Prefix | Total | Tested | Traced | Coverage |
|--------|-------|--------|--------|----------|
{{range .Prefixes -}}
| {{.Prefix}} | {{.Total}} | {{.Tested}} | {{.Traced}} | {{.Coverage}} |
{{end}}
## Traceability Score

{{range .ScoreLines -}}
{{.}}
{{end}}
**Total Score: {{.Total}}/100**
**Grade: {{.Grade}}**

{{.Banner}}
`))

type summaryRow struct {
	Label string
	Count int
}

type conflictRow struct {
	ID    string
	Files string
}

type cappedList struct {
	Title string
	Note  string
	Items []string
	More  int
}

type prefixRow struct {
	Prefix   string
	Total    int
	Tested   int
	Traced   int
	Coverage string
}

type textView struct {
	Banner     string
	RepoPath   string
	Summary    []summaryRow
	Conflicts  []conflictRow
	Lists      []cappedList
	Prefixes   []prefixRow
	ScoreLines []string
	Total      int
	Grade      string
}

func (r *textRenderer) Render(result *schema.AggregateResult, cov *schema.CoverageReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, buildView(result, cov)); err != nil {
		return nil, fmt.Errorf("rendering text report: %w", err)
	}
	return buf.Bytes(), nil
}

func buildView(result *schema.AggregateResult, cov *schema.CoverageReport) textView {
	view := textView{
		Banner:   strings.Repeat("=", 60),
		RepoPath: result.RepoPath,
		Summary: []summaryRow{
			{"Total unique IDs", cov.TotalIDs},
			{"In requirements", cov.InRequirements},
			{"In tests", cov.InTests},
			{"In source (@trace)", cov.InSources},
			{"ID conflicts", cov.ConflictCount},
			{"Orphan test files", cov.OrphanTests},
			{"Orphan source files", cov.OrphanSources},
		},
		Total: cov.Score.Total,
		Grade: cov.Score.Grade,
	}

	for _, c := range result.Conflicts {
		names := make([]string, len(c.Files))
		for i, f := range c.Files {
			names[i] = path.Base(f)
		}
		view.Conflicts = append(view.Conflicts, conflictRow{
			ID:    c.ID,
			Files: strings.Join(names, ", "),
		})
	}

	addList := func(title, note string, items []string, limit int) {
		if len(items) == 0 {
			return
		}
		list := cappedList{Title: title, Note: note, Items: items}
		if len(items) > limit {
			list.Items = items[:limit]
			list.More = len(items) - limit
		}
		view.Lists = append(view.Lists, list)
	}
	addList(fmt.Sprintf("## Stories Without Coverage (%d)", len(cov.Uncovered)), "", cov.Uncovered, uncoveredCap)
	addList(fmt.Sprintf("## Orphan Test Files (%d)", len(result.OrphanTests)),
		"Tests without @allure story reference:", result.OrphanTests, orphanCap)
	addList(fmt.Sprintf("## Orphan Source Files (%d)", len(result.OrphanSources)),
		"Source files without traceability:", result.OrphanSources, orphanCap)

	for _, row := range cov.Prefixes {
		view.Prefixes = append(view.Prefixes, prefixRow{
			Prefix:   row.Prefix,
			Total:    row.Total,
			Tested:   row.Tested,
			Traced:   row.Traced,
			Coverage: fmt.Sprintf("%.0f%% %s", row.Pct, row.Status),
		})
	}

	for _, c := range cov.Score.Components {
		mark := " "
		if c.Met() {
			mark = "x"
		}
		view.ScoreLines = append(view.ScoreLines, fmt.Sprintf("- [%s] %s (+%d)", mark, c.Detail, c.Earned))
	}
	return view
}
