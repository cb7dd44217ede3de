package audit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/storytrace/internal/schema"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// buildRepo lays out a small project with one covered story, one orphan
// test, and one orphan source file.
func buildRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "requirements/_index.yaml", "project: shop\nfeatures:\n  - FT-001\n")
	writeFile(t, root, "requirements/features/FT-001.yaml", "id: FT-001\ntitle: Checkout\nepic_id: EP-001\n")
	writeFile(t, root, "tests/test_checkout.py", "import allure\n\n@allure.story(\"FT-001\")\ndef test_checkout():\n    pass\n")
	writeFile(t, root, "tests/test_helpers.py", "def test_math():\n    assert 1 + 1 == 2\n")
	writeFile(t, root, "src/checkout.py", "@trace(\"FT-001\")\ndef checkout():\n    pass\n")
	writeFile(t, root, "src/untraced.py", strings.Repeat("# filler\n", 25))
	writeFile(t, root, "src/tiny.py", "x = 1\n")
	writeFile(t, root, "src/__init__.py", strings.Repeat("# package init\n", 30))
	writeFile(t, root, "docs/guide.md", "See FT-001 for the checkout flow.\n")
	return root
}

func TestRun_FullRepo(t *testing.T) {
	root := buildRepo(t)
	var warn bytes.Buffer

	result, err := Run(context.Background(), root, Options{Warn: &warn})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.SchemaVersion != schema.SchemaVersion {
		t.Errorf("SchemaVersion = %q, want %q", result.SchemaVersion, schema.SchemaVersion)
	}
	if result.RunID == "" {
		t.Error("RunID should be stamped")
	}
	if result.RepoPath != root {
		t.Errorf("RepoPath = %q, want %q", result.RepoPath, root)
	}

	wantIDs := []string{"EP-001", "FT-001"}
	if !reflect.DeepEqual(result.AllIDs, wantIDs) {
		t.Errorf("AllIDs = %v, want %v", result.AllIDs, wantIDs)
	}
	if _, ok := result.Requirements["FT-001"]; !ok {
		t.Error("FT-001 missing from requirements")
	}
	if _, ok := result.Tests["FT-001"]; !ok {
		t.Error("FT-001 missing from tests")
	}
	if _, ok := result.Sources["FT-001"]; !ok {
		t.Error("FT-001 missing from sources")
	}
	if _, ok := result.Docs["FT-001"]; !ok {
		t.Error("FT-001 missing from docs")
	}

	if len(result.Conflicts) != 0 {
		t.Errorf("Conflicts = %v, want none", result.Conflicts)
	}
	if want := []string{"tests/test_helpers.py"}; !reflect.DeepEqual(result.OrphanTests, want) {
		t.Errorf("OrphanTests = %v, want %v", result.OrphanTests, want)
	}
	// tiny.py is under the size threshold, __init__.py is excluded.
	if want := []string{"src/untraced.py"}; !reflect.DeepEqual(result.OrphanSources, want) {
		t.Errorf("OrphanSources = %v, want %v", result.OrphanSources, want)
	}
	if result.TestFileCount != 2 {
		t.Errorf("TestFileCount = %d, want 2", result.TestFileCount)
	}

	// Stored paths are root-relative slash paths.
	for _, occ := range result.Requirements["FT-001"] {
		if filepath.IsAbs(occ.File) || strings.Contains(occ.File, "\\") {
			t.Errorf("occurrence path %q should be root-relative slash form", occ.File)
		}
	}
}

func TestRun_DuplicateDefinitionConflict(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "requirements/features/checkout.yaml", "id: FT-001\ntitle: Checkout\n")
	writeFile(t, root, "requirements/features/payment.yaml", "id: FT-001\ntitle: Payment\n")
	writeFile(t, root, "requirements/_index.yaml", "features:\n  - FT-001\n")

	result, err := Run(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1: %+v", len(result.Conflicts), result.Conflicts)
	}
	c := result.Conflicts[0]
	if c.ID != "FT-001" {
		t.Errorf("conflict ID = %q, want FT-001", c.ID)
	}
	want := []string{"requirements/features/checkout.yaml", "requirements/features/payment.yaml"}
	if !reflect.DeepEqual(c.Files, want) {
		t.Errorf("conflict files = %v, want %v (reference file excluded)", c.Files, want)
	}
}

func TestRun_ReferencesNeverConflict(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "requirements/features/FT-001.yaml", "id: FT-001\nepic_id: EP-002\n")
	writeFile(t, root, "requirements/features/FT-003.yaml", "id: FT-003\nepic_id: EP-002\ndepends_on:\n  - FT-001\n")

	result, err := Run(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// FT-001 is defined once and referenced once; EP-002 is referenced
	// twice and defined nowhere.
	if len(result.Conflicts) != 0 {
		t.Errorf("Conflicts = %+v, want none", result.Conflicts)
	}
}

func TestRun_RootIsRequirementsDir(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "requirements")
	writeFile(t, parent, "requirements/story.yaml", "id: US-010\n")

	result, err := Run(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := result.Requirements["US-010"]; !ok {
		t.Errorf("US-010 not found; requirements map = %v", result.Requirements)
	}
}

func TestRun_AppsLayoutFallback(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "apps/alpha/tests/test_a.py", "# FT-001\ndef test_a(): pass\n")
	writeFile(t, root, "apps/beta/tests/test_b.py", "# FT-002\ndef test_b(): pass\n")
	writeFile(t, root, "apps/alpha/src/a.py", "# @trace(\"FT-001\")\n")
	writeFile(t, root, "apps/beta/src/b.py", "# @trace(\"FT-002\")\n")

	result, err := Run(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Tests fall back to the first apps/*/tests directory only.
	if _, ok := result.Tests["FT-001"]; !ok {
		t.Error("FT-001 missing from tests (apps/alpha/tests)")
	}
	if _, ok := result.Tests["FT-002"]; ok {
		t.Error("FT-002 should not be scanned (apps/beta/tests is not first)")
	}
	// Sources include every apps/*/src directory.
	if _, ok := result.Sources["FT-001"]; !ok {
		t.Error("FT-001 missing from sources")
	}
	if _, ok := result.Sources["FT-002"]; !ok {
		t.Error("FT-002 missing from sources")
	}
}

func TestRun_SourcesCombineBothLayouts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.py", "# @trace(\"FT-001\")\n")
	writeFile(t, root, "apps/alpha/src/a.py", "# @trace(\"FT-002\")\n")

	result, err := Run(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := result.Sources["FT-001"]; !ok {
		t.Error("FT-001 missing from sources (src/)")
	}
	if _, ok := result.Sources["FT-002"]; !ok {
		t.Error("FT-002 missing from sources (apps/alpha/src)")
	}
}

func TestRun_EmptyRepo(t *testing.T) {
	result, err := Run(context.Background(), t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.AllIDs) != 0 || len(result.Conflicts) != 0 {
		t.Errorf("empty repo should have no ids or conflicts: %+v", result)
	}
	if result.TestFileCount != 0 {
		t.Errorf("TestFileCount = %d, want 0", result.TestFileCount)
	}
}

func TestRun_Canceled(t *testing.T) {
	root := buildRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, root, Options{}); err == nil {
		t.Error("expected error from canceled context")
	}
}

func TestRun_Deterministic(t *testing.T) {
	root := buildRepo(t)

	first, err := Run(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := Run(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// RunID is fresh per run; everything else must match exactly.
	second.RunID = first.RunID
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over an unchanged tree should produce identical results")
	}
}

func TestDetectConflicts_SameFileDoubleDefinition(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "requirements/doubled.yaml", "id: FT-009\nother:\n  id: FT-009\n")

	result, err := Run(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Two definitions in one file is a single defining file, not a
	// cross-file conflict.
	if len(result.Conflicts) != 0 {
		t.Errorf("Conflicts = %+v, want none", result.Conflicts)
	}
}
