// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package digest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides which paths are left out of a scan.
//
// A plain entry excludes every path whose absolute form contains it as a
// substring (e.g. "/vendor/", ".git", "integrity.sig"). An entry containing
// glob metacharacters is a doublestar pattern matched against the
// slash-separated path relative to the scan base (e.g. "storage/**",
// "**/*.log"). Both kinds apply to directories as well as files.
type Matcher struct {
	substrings []string
	globs      []string
}

// NewMatcher compiles the exclusion list. Empty entries are ignored.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if isGlob(p) {
			if !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
			}
			m.globs = append(m.globs, p)
			continue
		}
		m.substrings = append(m.substrings, p)
	}
	return m, nil
}

// MustMatcher is like NewMatcher but panics on a malformed pattern.
// Intended for compiled-in defaults.
func MustMatcher(patterns []string) *Matcher {
	m, err := NewMatcher(patterns)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether the path is excluded. abs is the absolute path using
// OS separators; rel is relative to the scan base using forward slashes.
// A nil Matcher excludes nothing.
func (m *Matcher) Match(abs, rel string) bool {
	if m == nil {
		return false
	}
	for _, s := range m.substrings {
		if strings.Contains(abs, s) {
			return true
		}
	}
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// ExcludesRoot reports whether a plain entry matches the scan root itself,
// returning the entry. Such an entry would exclude every file under root.
// Glob entries are relative to the scan base and never match a root.
func (m *Matcher) ExcludesRoot(root string) (string, bool) {
	if m == nil {
		return "", false
	}
	dir := strings.TrimSuffix(root, string(filepath.Separator)) + string(filepath.Separator)
	for _, s := range m.substrings {
		if strings.Contains(dir, s) {
			return s, true
		}
	}
	return "", false
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}
