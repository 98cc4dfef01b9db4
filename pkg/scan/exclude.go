package scan

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether a relative path is excluded.
// Patterns follow doublestar syntax:
//   - Simple glob patterns: *.tmp, *.log (matched against the base name)
//   - Directory patterns: .git/, node_modules/ (prune the directory anywhere)
//   - Path patterns: build/*, **/test/* (matched against the full relative path)
type Matcher struct {
	filePatterns []string
	pathPatterns []string
	dirPatterns  []string
}

// NewMatcher validates and compiles exclude patterns
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(filepath.ToSlash(pattern))
		if pattern == "" {
			continue
		}

		if strings.HasSuffix(pattern, "/") {
			dir := strings.TrimSuffix(pattern, "/")
			if !doublestar.ValidatePattern(dir) {
				return nil, &PatternError{Pattern: pattern}
			}
			m.dirPatterns = append(m.dirPatterns, dir)
			continue
		}

		if !doublestar.ValidatePattern(pattern) {
			return nil, &PatternError{Pattern: pattern}
		}
		if strings.Contains(pattern, "/") {
			m.pathPatterns = append(m.pathPatterns, pattern)
		} else {
			m.filePatterns = append(m.filePatterns, pattern)
		}
	}
	return m, nil
}

// Empty reports whether no pattern was configured
func (m *Matcher) Empty() bool {
	return m == nil || len(m.filePatterns)+len(m.pathPatterns)+len(m.dirPatterns) == 0
}

// ExcludeDir reports whether a directory, and everything under it, is excluded
func (m *Matcher) ExcludeDir(relativePath string) bool {
	if m.Empty() {
		return false
	}
	p := filepath.ToSlash(relativePath)
	base := path.Base(p)

	for _, pattern := range m.dirPatterns {
		if strings.Contains(pattern, "/") {
			if match(pattern, p) {
				return true
			}
		} else if match(pattern, base) {
			return true
		}
	}
	return false
}

// ExcludeFile reports whether a regular file is excluded
func (m *Matcher) ExcludeFile(relativePath string) bool {
	if m.Empty() {
		return false
	}
	p := filepath.ToSlash(relativePath)
	base := path.Base(p)

	for _, pattern := range m.filePatterns {
		if match(pattern, base) {
			return true
		}
	}
	for _, pattern := range m.pathPatterns {
		if match(pattern, p) {
			return true
		}
	}
	return false
}

func match(pattern, name string) bool {
	matched, _ := doublestar.Match(pattern, name)
	return matched
}

// PatternError reports an exclude pattern doublestar cannot parse
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return "invalid exclude pattern: " + e.Pattern
}
