// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package manifest implements the critical-file scanner used by the
// request-time gate. Expected hashes live in a sha256sum-format manifest
// (critical.sha256) generated at release time next to the reference digest.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aplane-algo/srcseal/internal/digest"
)

// DefaultFile is the manifest file name.
const DefaultFile = "critical.sha256"

// Entry represents a single line in the manifest
type Entry struct {
	Hash     string // 64-character lowercase hex SHA256
	Filename string // Slash-separated path relative to the application root
}

// File represents a parsed manifest
type File struct {
	Entries []Entry
	Path    string
}

// lineRegex matches "<64-hex-chars>  <filename>" format
// One or two spaces between hash and filename (sha256sum uses two)
var lineRegex = regexp.MustCompile(`^([a-fA-F0-9]{64})\s{1,2}(.+)$`)

// Load reads and parses a manifest file.
func Load(manifestPath string) (*File, error) {
	file, err := os.Open(manifestPath)
	if os.IsNotExist(err) {
		return nil, ErrNoManifest
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	mf := &File{
		Path:    manifestPath,
		Entries: make([]Entry, 0),
	}

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		matches := lineRegex.FindStringSubmatch(line)
		if matches == nil {
			return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidFormat, lineNum, line)
		}
		name, err := cleanPath(matches[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		mf.Entries = append(mf.Entries, Entry{
			Hash:     strings.ToLower(matches[1]),
			Filename: name,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}

	if len(mf.Entries) == 0 {
		return nil, fmt.Errorf("%w: no entries found", ErrInvalidFormat)
	}

	return mf, nil
}

// FindEntry looks up a filename in the manifest.
// "./public/index.php" matches "public/index.php".
func (mf *File) FindEntry(filename string) *Entry {
	target, err := cleanPath(filename)
	if err != nil {
		return nil
	}
	for i := range mf.Entries {
		if mf.Entries[i].Filename == target {
			return &mf.Entries[i]
		}
	}
	return nil
}

// cleanPath normalizes a manifest path to slash-separated form relative to
// the root and rejects anything that would leave it.
func cleanPath(p string) (string, error) {
	cleaned := path.Clean(filepath.ToSlash(p))
	if cleaned == "." || path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	return cleaned, nil
}

// Generate creates manifest content for files under root.
// Files are paths relative to root.
func Generate(root string, files []string) (string, error) {
	var result strings.Builder
	result.WriteString("# " + DefaultFile + "\n")
	fmt.Fprintf(&result, "# Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	result.WriteString("#\n")

	for _, file := range files {
		name, err := cleanPath(file)
		if err != nil {
			return "", err
		}
		hash, err := digest.HashFile(filepath.Join(root, filepath.FromSlash(name)))
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", name, err)
		}
		// Two spaces between hash and filename (sha256sum format)
		fmt.Fprintf(&result, "%s  %s\n", hash, name)
	}

	return result.String(), nil
}
