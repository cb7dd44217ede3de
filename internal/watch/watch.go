// Package watch re-runs a callback when files under a set of roots
// change, collapsing bursts of filesystem events into a single run.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for events to settle
// before triggering a run.
const DefaultDebounce = 300 * time.Millisecond

// Options configures Run.
type Options struct {
	// Roots are watched recursively. Missing roots are skipped.
	Roots []string
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration
	// OnError receives watcher errors when set.
	OnError func(error)
}

// Run watches the roots and invokes fn after each settled burst of
// changes. fn runs on the watch goroutine, so runs never overlap.
// Directories created while watching are picked up, and hidden
// directories (.git and friends) are ignored. Run returns nil once ctx
// is canceled.
func Run(ctx context.Context, opts Options, fn func(context.Context)) error {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if err := addRecursive(w, root); err != nil {
			return err
		}
		roots = append(roots, root)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	// Cap 1: a timer firing while fn runs coalesces into one more run.
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if hiddenWithin(roots, ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addRecursive(w, ev.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			fn(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if opts.OnError != nil {
				opts.OnError(err)
			}
		}
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		return w.Add(path)
	})
}

// hiddenWithin reports whether any path component below a watched root
// is hidden. This covers .git contents as well as editor swap files.
// Components of the roots themselves are never considered.
func hiddenWithin(roots []string, path string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if part != "." && strings.HasPrefix(part, ".") {
				return true
			}
		}
		return false
	}
	return false
}
