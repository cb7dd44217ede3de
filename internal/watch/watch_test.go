package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startRun(t *testing.T, ctx context.Context, roots []string, debounce time.Duration) (<-chan struct{}, <-chan error) {
	t.Helper()
	runs := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Roots: roots, Debounce: debounce}, func(context.Context) {
			runs <- struct{}{}
		})
	}()
	// Give the watcher time to register before the first write.
	time.Sleep(150 * time.Millisecond)
	return runs, done
}

func waitRun(t *testing.T, runs <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatalf("no run after %s", what)
	}
}

func TestRun_RerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs, done := startRun(t, ctx, []string{dir}, 20*time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitRun(t, runs, "file change")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestRun_DebounceCollapsesBurst(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs, _ := startRun(t, ctx, []string{dir}, 200*time.Millisecond)

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "burst.txt")
		if err := os.WriteFile(name, []byte{byte(i)}, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitRun(t, runs, "burst")
	// The burst settled once, so no second run should follow.
	select {
	case <-runs:
		t.Error("burst triggered more than one run")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestRun_WatchesCreatedDirectories(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs, _ := startRun(t, ctx, []string{dir}, 20*time.Millisecond)

	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	waitRun(t, runs, "directory creation")

	// Writes inside the new directory must also trigger runs.
	time.Sleep(150 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "b.txt"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitRun(t, runs, "write in created directory")
}

func TestRun_IgnoresHiddenDirectories(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".git")
	if err := os.Mkdir(hidden, 0o755); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs, _ := startRun(t, ctx, []string{dir}, 20*time.Millisecond)

	if err := os.WriteFile(filepath.Join(hidden, "index"), []byte("z"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-runs:
		t.Error("change under hidden directory triggered a run")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestRun_MissingRootSkipped(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	missing := filepath.Join(dir, "nope")
	runs, _ := startRun(t, ctx, []string{missing, dir}, 20*time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "c.txt"), []byte("w"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitRun(t, runs, "change in existing root")
}

func TestRun_CancelBeforeEvents(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, Options{Roots: []string{dir}}, func(context.Context) {
		t.Error("callback ran without any events")
	})
	if err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
}

func TestHiddenWithin(t *testing.T) {
	roots := []string{filepath.Join("/home", ".local", "repo")}
	cases := []struct {
		path string
		want bool
	}{
		{filepath.Join("/home", ".local", "repo", "src", "a.py"), false},
		{filepath.Join("/home", ".local", "repo", ".git", "HEAD"), true},
		{filepath.Join("/home", ".local", "repo", "src", ".a.py.swp"), true},
		{filepath.Join("/elsewhere", "x"), false},
	}
	for _, tc := range cases {
		if got := hiddenWithin(roots, tc.path); got != tc.want {
			t.Errorf("hiddenWithin(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
