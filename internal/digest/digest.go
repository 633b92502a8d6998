// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package digest fingerprints directory trees into a single aggregate hash.
//
// Every included regular file is hashed with SHA-256. The per-file hex
// digests are ordered by relative path, concatenated, and hashed once more.
// The result is independent of directory iteration order, changes when any
// included file is added, removed, or modified, and ignores excluded paths.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// FileDigest is the content hash of one scanned file.
type FileDigest struct {
	Path string // Relative to the scan base, forward slashes
	Hash string // 64-character lowercase hex SHA-256
}

// Engine scans directory trees. The zero value hashes every regular file
// with no exclusions and no time budget.
type Engine struct {
	// Exclude drops matching files and directories. Nil excludes nothing.
	Exclude *Matcher

	// Extensions restricts the scan to files with one of these extensions
	// (including the dot, e.g. ".php"). Empty means all files.
	Extensions []string

	// Budget bounds a single scan. Zero means no bound beyond ctx.
	Budget time.Duration

	// OnScan, if set, is called after every completed content scan with
	// the number of files hashed.
	OnScan func(files int)
}

// Scan computes the aggregate digest of roots.
func (e *Engine) Scan(ctx context.Context, roots []string) (string, error) {
	files, err := e.Files(ctx, roots)
	if err != nil {
		return "", err
	}
	return Aggregate(files), nil
}

// Files hashes every included file under roots and returns the digests
// sorted by path. Any unreadable file fails the whole scan.
func (e *Engine) Files(ctx context.Context, roots []string) ([]FileDigest, error) {
	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	var files []FileDigest
	err := e.walk(ctx, roots, func(abs, rel string, _ fs.DirEntry) error {
		sum, err := hashFile(ctx, abs)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", rel, err)
		}
		files = append(files, FileDigest{Path: rel, Hash: sum})
		return nil
	})
	if err != nil {
		return nil, budgetErr(ctx, err)
	}

	slices.SortFunc(files, func(a, b FileDigest) int {
		return strings.Compare(a.Path, b.Path)
	})
	if e.OnScan != nil {
		e.OnScan(len(files))
	}
	return files, nil
}

// ScanNonEmpty is Scan for callers that compare against a stored digest:
// a scan that includes no file is ErrNoFiles, since the digest of an empty
// set never changes.
func (e *Engine) ScanNonEmpty(ctx context.Context, roots []string) (string, error) {
	files, err := e.Files(ctx, roots)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", ErrNoFiles
	}
	return Aggregate(files), nil
}

// LatestModTime returns the newest modification time (unix seconds) over the
// included files under roots, using stat calls only. Returns 0 for an empty
// tree.
func (e *Engine) LatestModTime(ctx context.Context, roots []string) (int64, error) {
	ctx, cancel := e.withBudget(ctx)
	defer cancel()

	var latest int64
	err := e.walk(ctx, roots, func(abs, rel string, d fs.DirEntry) error {
		info, err := fileInfo(abs, d)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		if mt := info.ModTime().Unix(); mt > latest {
			latest = mt
		}
		return nil
	})
	if err != nil {
		return 0, budgetErr(ctx, err)
	}
	return latest, nil
}

// Aggregate combines per-file digests into the aggregate digest. files must
// already be sorted by path.
func Aggregate(files []FileDigest) string {
	h := sha256.New()
	for _, f := range files {
		_, _ = io.WriteString(h, f.Hash)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashBytes returns the lowercase hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the lowercase hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	return hashFile(context.Background(), path)
}

func (e *Engine) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Budget > 0 {
		return context.WithTimeout(ctx, e.Budget)
	}
	return context.WithCancel(ctx)
}

func budgetErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrBudgetExceeded, err)
	}
	return err
}

type visitFunc func(abs, rel string, d fs.DirEntry) error

// walk visits every included file under roots exactly once.
func (e *Engine) walk(ctx context.Context, roots []string, visit visitFunc) error {
	if len(roots) == 0 {
		return ErrNoRoots
	}

	absRoots := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return fmt.Errorf("failed to resolve root %s: %w", r, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("failed to stat root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrNotDirectory, r)
		}
		if entry, excluded := e.Exclude.ExcludesRoot(abs); excluded {
			return fmt.Errorf("%w: %s matches %q", ErrRootExcluded, abs, entry)
		}
		absRoots = append(absRoots, abs)
	}
	base := commonDir(absRoots)
	seen := make(map[string]struct{})

	for _, root := range absRoots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			rel, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if path != root && e.Exclude.Match(path, rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if e.Exclude.Match(path, rel) || !e.wantExtension(path) {
				return nil
			}

			regular, err := isRegular(path, d)
			if err != nil {
				return err
			}
			if !regular {
				return nil
			}

			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}
			return visit(path, rel, d)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) wantExtension(path string) bool {
	if len(e.Extensions) == 0 {
		return true
	}
	return slices.Contains(e.Extensions, filepath.Ext(path))
}

// isRegular resolves symlinks to files; links to directories are not followed.
func isRegular(path string, d fs.DirEntry) (bool, error) {
	switch {
	case d.Type().IsRegular():
		return true, nil
	case d.Type()&fs.ModeSymlink != 0:
		info, err := os.Stat(path)
		if err != nil {
			return false, err
		}
		return info.Mode().IsRegular(), nil
	default:
		return false, nil
	}
}

func fileInfo(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		return os.Stat(path)
	}
	return d.Info()
}

func hashFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, &ctxReader{ctx: ctx, r: file}); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// ctxReader stops a copy once ctx is done so one huge file cannot outlive
// the scan budget.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// commonDir returns the deepest directory containing every path.
func commonDir(paths []string) string {
	common := paths[0]
	for _, p := range paths[1:] {
		for !within(common, p) {
			parent := filepath.Dir(common)
			if parent == common {
				break
			}
			common = parent
		}
	}
	return common
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
