// Package ignore parses gitignore-style exclusion files for the corpus
// crawler and matches relative paths against the resulting patterns.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Parser reads gitignore-style files from the watch root.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string
}

// NewParser creates a parser that reads the named ignore files.
func NewParser(ignoreFiles ...string) *Parser {
	return &Parser{IgnoreFiles: ignoreFiles}
}

// ParseRoot reads every configured ignore file under root and returns the
// combined exclusion patterns. Missing files are skipped; a root with no
// ignore files yields no patterns.
func (p *Parser) ParseRoot(root string) ([]string, error) {
	var patterns []string

	for _, name := range p.IgnoreFiles {
		if name == "" {
			continue
		}
		filePatterns, err := parseFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
	}

	return deduplicate(patterns), nil
}

func parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}

// parseLine converts a single ignore file line into a match pattern.
// Returns empty string for blanks, comments, and negations (unsupported).
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t")

	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}

	return toGlobPattern(line)
}

// toGlobPattern normalizes a gitignore pattern into the segment-glob form
// the Matcher understands. Patterns containing a slash (or written with a
// leading slash) stay anchored to the root; bare names match at any depth.
// Every pattern gets a "/**" tail so a match prunes the whole subtree; the
// "**" segment also matches zero segments, so the tail never prevents a
// pattern from matching a plain file.
func toGlobPattern(pattern string) string {
	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return ""
	}

	if !anchored && !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}

	if !strings.HasSuffix(pattern, "/**") {
		pattern += "/**"
	}

	return pattern
}

// deduplicate removes duplicate patterns while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	result := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	return result
}
