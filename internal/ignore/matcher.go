package ignore

import (
	"path"
	"path/filepath"
	"strings"
)

// Matcher tests watch-root-relative paths against a compiled pattern set.
type Matcher struct {
	patterns [][]string
}

// NewMatcher compiles patterns as produced by Parser. Each pattern is a
// slash-separated glob where the segment "**" matches zero or more path
// segments and every other segment follows path.Match syntax.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{patterns: make([][]string, 0, len(patterns))}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		m.patterns = append(m.patterns, strings.Split(p, "/"))
	}
	return m
}

// Match reports whether relPath is excluded by any pattern. relPath is
// relative to the watch root; both slash styles are accepted.
func (m *Matcher) Match(relPath string) bool {
	rel := strings.Trim(filepath.ToSlash(relPath), "/")
	if rel == "" || rel == "." {
		return false
	}

	segs := strings.Split(rel, "/")
	for _, pattern := range m.patterns {
		if matchSegments(pattern, segs) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled patterns.
func (m *Matcher) Len() int {
	return len(m.patterns)
}

// matchSegments matches pattern segments against path segments. Malformed
// glob segments never match.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], segs) {
			return true
		}
		return len(segs) > 0 && matchSegments(pattern, segs[1:])
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}
