package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is the project specific ignore file read next to .gitignore.
const IgnoreFileName = ".docqaignore"

// IgnoreFilter matches paths against gitignore-style patterns.
type IgnoreFilter struct {
	matcher *gitignore.GitIgnore
}

// NewIgnoreFilter loads .gitignore and .docqaignore from root and adds
// the default patterns. Missing files are not an error.
func NewIgnoreFilter(root string) (*IgnoreFilter, error) {
	patterns := DefaultIgnorePatterns()

	for _, name := range []string{".gitignore", IgnoreFileName} {
		lines, err := readIgnoreFile(filepath.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		patterns = append(patterns, lines...)
	}

	return &IgnoreFilter{matcher: gitignore.CompileIgnoreLines(patterns...)}, nil
}

// ShouldIgnore reports whether the path relative to the walk root is
// excluded, either itself or through one of its parent directories.
func (f *IgnoreFilter) ShouldIgnore(rel string) bool {
	if f == nil || f.matcher == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if f.matcher.MatchesPath(rel) {
		return true
	}
	// Patterns ending in "/" only match the directory form "dir/".
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' && f.matcher.MatchesPath(rel[:i+1]) {
			return true
		}
	}
	return false
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}

// DefaultIgnorePatterns returns the patterns excluded from every walk.
func DefaultIgnorePatterns() []string {
	return []string{
		// version control
		".git",
		".hg",
		".svn",

		// dependencies and build output
		"node_modules",
		"vendor",
		"dist",
		"build",
		"target",
		"bin",
		"obj",
		".next",

		// editors
		".vscode",
		".idea",
		".DS_Store",
		"*.swp",
		"*~",

		// secrets
		".env",
		".env.*",
		"*.pem",
		"*.key",

		// archives and media
		"*.zip",
		"*.tar",
		"*.gz",
		"*.7z",
		"*.png",
		"*.jpg",
		"*.jpeg",
		"*.gif",
		"*.ico",
		"*.mp3",
		"*.mp4",
		"*.mov",
		"*.woff",
		"*.woff2",

		// local databases and caches
		"*.db",
		"*.sqlite",
		"*.sqlite3",
		".cache",
		"__pycache__",
		"*.pyc",
	}
}
