package backup

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher reports whether a slash-separated path relative to the source
// directory is excluded from the backup.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
	// anyDepth marks globs whose pattern starts with "**/".
	anyDepth []bool
}

// NewMatcher compiles exclude patterns with '/' as the separator, so "*"
// stays within one path segment and "**" crosses segments.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{
		patterns: patterns,
		globs:    make([]glob.Glob, 0, len(patterns)),
		anyDepth: make([]bool, 0, len(patterns)),
	}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		m.globs = append(m.globs, g)
		m.anyDepth = append(m.anyDepth, strings.HasPrefix(p, "**/"))
	}
	return m, nil
}

// Match returns true when rel matches any exclude pattern.
// A leading "**/" also matches paths at the top level, so "**/.DS_Store"
// excludes both ".DS_Store" and "skills/.DS_Store".
func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	for i, g := range m.globs {
		if g.Match(rel) || (m.anyDepth[i] && g.Match("/"+rel)) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}
