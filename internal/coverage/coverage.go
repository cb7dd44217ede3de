// Package coverage derives coverage ratios and the composite traceability
// score from an aggregate snapshot. Everything here is a pure function of
// the snapshot; nothing is cached across runs.
package coverage

import (
	"fmt"
	"sort"

	"github.com/dshills/storytrace/internal/grammar"
	"github.com/dshills/storytrace/internal/schema"
)

// Compute builds the coverage report for an audit snapshot. All four score
// components are always computed, in order, with no early exit.
func Compute(result *schema.AggregateResult, g *grammar.Grammar) *schema.CoverageReport {
	reqIDs := keySet(result.Requirements)
	tested := keySet(result.Tests)
	traced := keySet(result.Sources)
	covered := make(map[string]bool, len(tested)+len(traced))
	for id := range tested {
		covered[id] = true
	}
	for id := range traced {
		covered[id] = true
	}

	report := &schema.CoverageReport{
		TotalIDs:       len(result.AllIDs),
		InRequirements: len(reqIDs),
		InTests:        len(tested),
		InSources:      len(traced),
		ConflictCount:  len(result.Conflicts),
		OrphanTests:    len(result.OrphanTests),
		OrphanSources:  len(result.OrphanSources),
		Uncovered:      uncovered(reqIDs, covered),
		Prefixes:       prefixRows(g, result.AllIDs, tested, traced),
		Score:          score(result, reqIDs, covered),
	}
	return report
}

func keySet(m map[string][]schema.Occurrence) map[string]bool {
	set := make(map[string]bool, len(m))
	for id := range m {
		set[id] = true
	}
	return set
}

func uncovered(reqIDs, covered map[string]bool) []string {
	var out []string
	for id := range reqIDs {
		if !covered[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// prefixRows groups all ids by their grammar prefix, in lexical prefix
// order. Coverage sums the tested and traced counts, so an id covered both
// ways counts twice; per-prefix percentages may exceed 100.
func prefixRows(g *grammar.Grammar, allIDs []string, tested, traced map[string]bool) []schema.PrefixCoverage {
	type stats struct {
		total, tested, traced int
	}
	byPrefix := make(map[string]*stats)
	for _, id := range allIDs {
		prefix, ok := g.PrefixOf(id)
		if !ok {
			continue
		}
		s := byPrefix[prefix]
		if s == nil {
			s = &stats{}
			byPrefix[prefix] = s
		}
		s.total++
		if tested[id] {
			s.tested++
		}
		if traced[id] {
			s.traced++
		}
	}

	prefixes := make([]string, 0, len(byPrefix))
	for p := range byPrefix {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	rows := make([]schema.PrefixCoverage, 0, len(prefixes))
	for _, p := range prefixes {
		s := byPrefix[p]
		var pct float64
		if s.total > 0 {
			pct = float64(s.tested+s.traced) / float64(s.total) * 100
		}
		rows = append(rows, schema.PrefixCoverage{
			Prefix: p,
			Total:  s.total,
			Tested: s.tested,
			Traced: s.traced,
			Pct:    pct,
			Status: statusFor(pct),
		})
	}
	return rows
}

func statusFor(pct float64) schema.Status {
	switch {
	case pct >= 80:
		return schema.StatusOK
	case pct >= 50:
		return schema.StatusWarn
	default:
		return schema.StatusFail
	}
}

// score computes the additive composite: +30 for zero conflicts, +30 for
// requirement coverage at or above 70% (linear partial credit below), +20
// when orphan tests stay under 20% of discovered test files, +20 when
// orphan sources stay under 5.
func score(result *schema.AggregateResult, reqIDs, covered map[string]bool) schema.ScoreBreakdown {
	conflicts := schema.ScoreComponent{Name: "no_conflicts", Possible: 30}
	if len(result.Conflicts) == 0 {
		conflicts.Earned = 30
		conflicts.Detail = "No ID conflicts"
	} else {
		conflicts.Detail = fmt.Sprintf("ID conflicts found: %d", len(result.Conflicts))
	}

	coveragePct := 100.0
	if len(reqIDs) > 0 {
		n := 0
		for id := range covered {
			if reqIDs[id] {
				n++
			}
		}
		coveragePct = float64(n) / float64(len(reqIDs)) * 100
	}
	cov := schema.ScoreComponent{Name: "coverage", Possible: 30}
	if coveragePct >= 70 {
		cov.Earned = 30
		cov.Detail = fmt.Sprintf("Coverage >= 70%% (%.0f%%)", coveragePct)
	} else {
		cov.Earned = int(coveragePct / 70 * 30)
		cov.Detail = fmt.Sprintf("Coverage %.0f%%", coveragePct)
	}

	testFiles := result.TestFileCount
	if testFiles < 1 {
		testFiles = 1
	}
	orphanPct := float64(len(result.OrphanTests)) / float64(testFiles) * 100
	orphanTests := schema.ScoreComponent{Name: "orphan_tests", Possible: 20}
	if orphanPct < 20 {
		orphanTests.Earned = 20
		orphanTests.Detail = fmt.Sprintf("Orphan tests < 20%% (%.0f%%)", orphanPct)
	} else {
		orphanTests.Detail = fmt.Sprintf("Orphan tests %.0f%%", orphanPct)
	}

	orphanSources := schema.ScoreComponent{Name: "orphan_sources", Possible: 20}
	if len(result.OrphanSources) < 5 {
		orphanSources.Earned = 20
		orphanSources.Detail = fmt.Sprintf("Orphan sources < 5 (%d)", len(result.OrphanSources))
	} else {
		orphanSources.Detail = fmt.Sprintf("Orphan sources: %d", len(result.OrphanSources))
	}

	breakdown := schema.ScoreBreakdown{
		Components: []schema.ScoreComponent{conflicts, cov, orphanTests, orphanSources},
	}
	for _, c := range breakdown.Components {
		breakdown.Total += c.Earned
	}
	breakdown.Grade = GradeFor(breakdown.Total)
	return breakdown
}

// GradeFor maps a composite score to its letter grade. Bands are inclusive
// lower bounds.
func GradeFor(total int) string {
	switch {
	case total >= 90:
		return "A - Excellent traceability"
	case total >= 70:
		return "B - Good traceability"
	case total >= 50:
		return "C - Needs improvement"
	default:
		return "D - Significant gaps"
	}
}
