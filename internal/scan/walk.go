package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// skipDirs are never descended into regardless of gitignore rules.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"venv":         true,
	"build":        true,
	"dist":         true,
	"target":       true,
	"bin":          true,
	"obj":          true,
}

// Walker filters a recursive directory walk by doublestar patterns, the
// fixed skip list, and optionally the repository's .gitignore.
type Walker struct {
	repoRoot string
	ignorer  *ignore.GitIgnore
}

// NewWalker returns a Walker rooted at repoRoot. When respectGitignore is
// set and repoRoot/.gitignore exists, matching paths are excluded from
// every walk.
func NewWalker(repoRoot string, respectGitignore bool) *Walker {
	w := &Walker{repoRoot: repoRoot}
	if respectGitignore {
		gi, err := ignore.CompileIgnoreFile(filepath.Join(repoRoot, ".gitignore"))
		if err == nil {
			w.ignorer = gi
		}
	}
	return w
}

// Files walks dir recursively and returns the absolute paths whose
// dir-relative slash path matches any pattern, in lexical order. Hidden
// entries, symlinks, and skip-listed directories are excluded. A missing
// dir yields nil.
func (w *Walker) Files(dir string, patterns ...string) []string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}

	var out []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if w.ignored(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				out = append(out, path)
				return nil
			}
		}
		return nil
	})

	sort.Strings(out)
	return out
}

func (w *Walker) ignored(path string) bool {
	if w.ignorer == nil {
		return false
	}
	rel, err := filepath.Rel(w.repoRoot, path)
	if err != nil {
		return false
	}
	return w.ignorer.MatchesPath(filepath.ToSlash(rel))
}

// GlobDirs returns the directories under root matching pattern, sorted.
// Pattern is a doublestar glob relative to root, e.g. "apps/*/tests".
func GlobDirs(root, pattern string) []string {
	matches, err := doublestar.FilepathGlob(filepath.Join(root, filepath.FromSlash(pattern)))
	if err != nil {
		return nil
	}
	var dirs []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err == nil && info.IsDir() {
			dirs = append(dirs, m)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// FirstGlobDir returns the lexically first directory matching pattern under
// root, or "" when none match.
func FirstGlobDir(root, pattern string) string {
	dirs := GlobDirs(root, pattern)
	if len(dirs) == 0 {
		return ""
	}
	return dirs[0]
}

// SourcePatterns converts a list of file extensions (".py", ".go") into
// recursive walk patterns ("**/*.py").
func SourcePatterns(extensions []string) []string {
	patterns := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		patterns = append(patterns, "**/*"+ext)
	}
	return patterns
}

// NamePatterns converts bare file-name globs ("test_*") into recursive walk
// patterns ("**/test_*"). Globs that already contain a path separator are
// kept as-is.
func NamePatterns(names []string) []string {
	patterns := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.Contains(name, "/") {
			patterns = append(patterns, name)
			continue
		}
		patterns = append(patterns, "**/"+name)
	}
	return patterns
}
