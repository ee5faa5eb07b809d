package internal

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const IgnoreFilename = ".ingestignore"

// Always excluded from directory ingestion.
var defaultIgnorePatterns = []string{".git/", ScopeDirName + "/", IgnoreFilename}

// IgnoreMatcher excludes paths below root using gitignore syntax read from
// root/.ingestignore. Later patterns win, so negations work as in git.
type IgnoreMatcher struct {
	root     string
	matcher  gitignore.Matcher
	patterns int
}

func NewIgnoreMatcher(root string, extra ...string) (*IgnoreMatcher, error) {
	var patterns []gitignore.Pattern
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	fromFile, err := readIgnorePatterns(filepath.Join(root, IgnoreFilename))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	patterns = append(patterns, fromFile...)

	for _, line := range extra {
		if p, ok := parseIgnoreLine(line); ok {
			patterns = append(patterns, p)
		}
	}

	return &IgnoreMatcher{
		root:     root,
		matcher:  gitignore.NewMatcher(patterns),
		patterns: len(patterns),
	}, nil
}

func (m *IgnoreMatcher) Match(path string) bool {
	return m.ignored(path, false)
}

func (m *IgnoreMatcher) MatchDir(path string) bool {
	return m.ignored(path, true)
}

// Len is the number of active patterns, defaults included.
func (m *IgnoreMatcher) Len() int {
	return m.patterns
}

func (m *IgnoreMatcher) ignored(path string, isDir bool) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return m.matcher.Match(strings.Split(rel, string(filepath.Separator)), isDir)
}

func readIgnorePatterns(path string) ([]gitignore.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p, ok := parseIgnoreLine(scanner.Text()); ok {
			patterns = append(patterns, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}

func parseIgnoreLine(line string) (gitignore.Pattern, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, false
	}
	return gitignore.ParsePattern(line, nil), true
}
