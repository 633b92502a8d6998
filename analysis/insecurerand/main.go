// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Command insecurerand reports math/rand usage in the packages that create
// keys, seal envelopes, compute digests or derive cache MACs.
//
// Usage: insecurerand <repo-root>
package main

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Packages whose randomness must come from crypto/rand.
var criticalDirs = []string{
	"internal/crypto",
	"internal/seal",
	"internal/digest",
	"internal/store",
}

var (
	mathRandImport   = regexp.MustCompile(`"math/rand(/v2)?"`)
	cryptoRandImport = regexp.MustCompile(`"crypto/rand"`)
	mathRandCall     = regexp.MustCompile(`\brand\.(Seed|Intn|Int31n?|Int63n?|Float32|Float64|Perm|Shuffle|NewSource|New\(rand\.NewSource)\b`)
)

type finding struct {
	file   string
	line   int
	text   string
	reason string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: insecurerand <repo-root>")
		os.Exit(2)
	}
	findings, checked, err := scan(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "insecurerand: %v\n", err)
		os.Exit(2)
	}
	if !report(os.Stdout, findings, checked) {
		os.Exit(1)
	}
}

// scan walks the critical directories under root. Directories that do not
// exist are skipped.
func scan(root string) ([]finding, int, error) {
	var findings []finding
	checked := 0
	for _, dir := range criticalDirs {
		base := filepath.Join(root, dir)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			f, err := checkFile(path)
			if err != nil {
				return err
			}
			checked++
			findings = append(findings, f...)
			return nil
		})
		if err != nil {
			return nil, checked, fmt.Errorf("walk %s: %w", dir, err)
		}
	}
	return findings, checked, nil
}

func checkFile(path string) ([]finding, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var lines []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	var findings []finding
	hasCryptoRand := false
	for i, line := range lines {
		if cryptoRandImport.MatchString(line) {
			hasCryptoRand = true
		}
		if mathRandImport.MatchString(line) {
			findings = append(findings, finding{path, i + 1, line, "math/rand imported in security-critical package; use crypto/rand"})
		}
	}
	// An aliased import still shows up through its call sites.
	if hasCryptoRand {
		return findings, nil
	}
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		if mathRandCall.MatchString(line) {
			findings = append(findings, finding{path, i + 1, line, "math/rand function without crypto/rand import"})
		}
	}
	return findings, nil
}

// report prints the result and returns true when nothing was found.
func report(w io.Writer, findings []finding, checked int) bool {
	_, _ = fmt.Fprintf(w, "Insecure Random Analysis\n========================\n")
	_, _ = fmt.Fprintf(w, "Files checked: %d\n", checked)
	_, _ = fmt.Fprintf(w, "Critical directories: %v\n\n", criticalDirs)
	if len(findings) == 0 {
		_, _ = fmt.Fprintln(w, "No issues found.")
		return true
	}
	_, _ = fmt.Fprintf(w, "Potential issues: %d\n\n", len(findings))
	for _, f := range findings {
		_, _ = fmt.Fprintf(w, "%s:%d\n  Line: %s\n  Issue: %s\n\n", f.file, f.line, strings.TrimSpace(f.text), f.reason)
	}
	return false
}
