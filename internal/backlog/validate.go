package backlog

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/storytrace/internal/grammar"
	"github.com/dshills/storytrace/internal/schema"
)

// Issue is one validation finding. Codes are stable: Exxx are errors,
// Wxxx are warnings (promoted to errors under strict).
type Issue struct {
	File    string
	Line    int
	Code    string
	Message string
}

func (i Issue) String() string {
	loc := i.File
	if i.Line > 0 {
		loc = fmt.Sprintf("%s:%d", i.File, i.Line)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Code, loc, i.Message)
}

// Result aggregates the findings of one backlog validation run.
type Result struct {
	Errors   []Issue
	Warnings []Issue

	FilesChecked int
	Tasks        int
	Risks        int
	Decisions    int
}

// Valid reports whether no errors were found.
func (r *Result) Valid() bool { return len(r.Errors) == 0 }

func (r *Result) errorf(file string, line int, code, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{File: file, Line: line, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(file string, line int, code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{File: file, Line: line, Code: code, Message: fmt.Sprintf(format, args...)})
}

var (
	taskIDPat     = regexp.MustCompile(`^[a-zA-Z0-9-]+(?:\.\d+)?$`)
	decisionIDPat = regexp.MustCompile(`^decision-\d+$`)
)

var validTaskStatuses = map[string]bool{
	"To Do":       true,
	"In Progress": true,
	"Done":        true,
	"Blocked":     true,
	"Cancelled":   true,
}

var validDecisionStatuses = map[string]bool{
	"proposed":   true,
	"accepted":   true,
	"deprecated": true,
	"superseded": true,
}

var validPriorities = map[string]bool{
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

// Validate checks every backlog artifact under dir: task files in
// tasks/ and completed/, decision records in decisions/, and risk
// clusters under docs/. Task IDs are collected in a first pass so
// dependency references resolve regardless of file order. Under strict,
// warnings count as errors.
func Validate(dir string, g *grammar.Grammar, strict bool) *Result {
	r := &Result{}

	type parsedTask struct {
		file string
		task *Task
	}
	var tasks []parsedTask
	known := make(map[string]bool)

	for _, sub := range []string{"tasks", "completed"} {
		paths, _ := filepath.Glob(filepath.Join(dir, sub, "task-*.md"))
		for _, path := range paths {
			r.FilesChecked++
			task, err := ParseTask(path)
			if err != nil {
				r.errorf(path, 0, "E010", "%v", err)
				continue
			}
			tasks = append(tasks, parsedTask{path, task})
			if task.ID != "" {
				known[task.ID] = true
			}
		}
	}

	seen := make(map[string]string)
	for _, pt := range tasks {
		r.validateTask(pt.file, pt.task, seen, known)
	}

	decisionPaths, _ := filepath.Glob(filepath.Join(dir, "decisions", "*.md"))
	for _, path := range decisionPaths {
		r.FilesChecked++
		dec, err := ParseDecision(path)
		if err != nil {
			r.errorf(path, 0, "E030", "%v", err)
			continue
		}
		r.validateDecision(path, g, dec)
	}

	riskPaths, _ := doublestar.FilepathGlob(filepath.Join(dir, "docs", "**", "*RC-*.md"))
	sort.Strings(riskPaths)
	for _, path := range riskPaths {
		r.FilesChecked++
		r.validateRiskDoc(path, g)
	}

	if strict {
		r.Errors = append(r.Errors, r.Warnings...)
		r.Warnings = nil
	}
	return r
}

func (r *Result) validateTask(file string, t *Task, seen map[string]string, known map[string]bool) {
	r.Tasks++

	for _, req := range []struct{ name, value string }{
		{"id", t.ID}, {"title", t.Title}, {"status", t.Status},
	} {
		if req.value == "" {
			r.errorf(file, 0, "E011", "Missing required field: %s", req.name)
		}
	}
	if t.ID != "" {
		if !taskIDPat.MatchString(t.ID) {
			r.errorf(file, 0, "E012", "Invalid task ID %q: must be alphanumeric with hyphens", t.ID)
		}
		if prev, dup := seen[t.ID]; dup {
			r.errorf(file, 0, "E050", "Duplicate task ID %q (also in %s)", t.ID, prev)
		} else {
			seen[t.ID] = file
		}
	}
	if t.Status != "" && !validTaskStatuses[t.Status] {
		r.errorf(file, 0, "E013", "Invalid status %q: must be one of %s", t.Status, enumList(validTaskStatuses))
	}
	if t.Priority != "" && !validPriorities[t.Priority] {
		r.warnf(file, 0, "W013", "Invalid priority %q: should be one of %s", t.Priority, enumList(validPriorities))
	}
	for _, dep := range t.Dependencies {
		if !known[dep] {
			r.warnf(file, 0, "W012", "Dependency %q not found", dep)
		}
	}
	if nums := criteriaNumbers(t.Criteria); len(nums) > 0 && !sequential(nums) {
		r.warnf(file, 0, "W015", "Acceptance criteria not sequentially numbered: %v", nums)
	}
}

func (r *Result) validateDecision(file string, g *grammar.Grammar, d *Decision) {
	r.Decisions++

	for _, req := range []struct{ name, value string }{
		{"id", d.ID}, {"title", d.Title}, {"status", d.Status},
	} {
		if req.value == "" {
			r.errorf(file, 0, "E031", "Missing required field: %s", req.name)
		}
	}
	if d.ID != "" && !decisionIDPat.MatchString(d.ID) && !isADR(g, d.ID) {
		r.warnf(file, 0, "W031", "Decision ID %q should match decision-N or an ADR identifier", d.ID)
	}
	if d.Status != "" && !validDecisionStatuses[d.Status] {
		r.warnf(file, 0, "W032", "Invalid status %q: should be one of %s", d.Status, enumList(validDecisionStatuses))
	}
	for _, section := range []string{"Context", "Decision"} {
		if !strings.Contains(d.body, "## "+section) {
			r.warnf(file, 0, "W033", "Missing expected section: ## %s", section)
		}
	}
}

func (r *Result) validateRiskDoc(file string, g *grammar.Grammar) {
	risks, err := ParseRiskCluster(file)
	if err != nil {
		r.errorf(file, 0, "E040", "%v", err)
		return
	}
	if len(risks) == 0 {
		r.warnf(file, 0, "W041", "Risk cluster file has no RISK entries")
		return
	}
	for _, risk := range risks {
		r.Risks++
		if p, ok := g.PrefixOf(risk.ID); !ok || p != "RISK" {
			r.errorf(file, risk.Line, "E042", "Risk ID %q is not a recognized RISK identifier", risk.ID)
		}
		if risk.Cluster != "" && riskClusterOf(risk.ID) != risk.Cluster {
			r.errorf(file, risk.Line, "E043", "Risk %q does not belong to cluster RC-%s", risk.ID, risk.Cluster)
		}
	}
}

// PrintResult writes errors, warnings (verbose only), and the summary
// block to w.
func PrintResult(w io.Writer, r *Result, verbose bool) {
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if len(r.Warnings) > 0 && verbose {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  %s\n", warn)
		}
	}

	banner := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n", banner)
	fmt.Fprintln(w, "BACKLOG VALIDATION SUMMARY")
	fmt.Fprintln(w, banner)
	fmt.Fprintf(w, "\n  Schema Version:   v%s\n", schema.SchemaVersion)
	fmt.Fprintf(w, "  Files checked:    %d\n", r.FilesChecked)
	fmt.Fprintf(w, "  Tasks:            %d\n", r.Tasks)
	fmt.Fprintf(w, "  Risks:            %d\n", r.Risks)
	fmt.Fprintf(w, "  Decisions:        %d\n", r.Decisions)
	fmt.Fprintf(w, "\n  Errors:           %d\n", len(r.Errors))
	fmt.Fprintf(w, "  Warnings:         %d\n\n", len(r.Warnings))
	if r.Valid() {
		fmt.Fprintln(w, "All validations passed!")
	} else {
		fmt.Fprintf(w, "Found %d error(s)\n", len(r.Errors))
	}
	fmt.Fprintln(w, banner)
}

func isADR(g *grammar.Grammar, id string) bool {
	p, ok := g.PrefixOf(id)
	return ok && p == "ADR"
}

func riskClusterOf(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) == 3 {
		return parts[1]
	}
	return ""
}

func criteriaNumbers(criteria []AcceptanceCriterion) []int {
	nums := make([]int, 0, len(criteria))
	for _, c := range criteria {
		nums = append(nums, c.Number)
	}
	return nums
}

func sequential(nums []int) bool {
	for i, n := range nums {
		if n != i+1 {
			return false
		}
	}
	return true
}

func enumList(set map[string]bool) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
