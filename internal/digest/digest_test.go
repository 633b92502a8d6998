// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTree creates files (relative path -> content) under a fresh temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		writeFile(t, root, rel, content)
	}
	return root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func mustScan(t *testing.T, e *Engine, roots ...string) string {
	t.Helper()
	agg, err := e.Scan(context.Background(), roots)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	return agg
}

func TestScanKnownAnswer(t *testing.T) {
	root := writeTree(t, map[string]string{"A": "x", "B": "y"})

	got := mustScan(t, &Engine{}, root)
	want := sha(sha("x") + sha("y"))
	if got != want {
		t.Errorf("aggregate = %s, want %s", got, want)
	}
}

func TestScanOrdersByPathNotCreation(t *testing.T) {
	// Created in reverse order; the digest must follow sorted paths.
	root := t.TempDir()
	writeFile(t, root, "z/last.txt", "3")
	writeFile(t, root, "b.txt", "2")
	writeFile(t, root, "a.txt", "1")

	files, err := (&Engine{}).Files(context.Background(), []string{root})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "b.txt", "z/last.txt"}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d", len(files), len(want))
	}
	for i, f := range files {
		if f.Path != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, f.Path, want[i])
		}
	}
	if Aggregate(files) != sha(sha("1")+sha("2")+sha("3")) {
		t.Error("aggregate does not follow sorted order")
	}
}

func TestScanDeterministic(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.php":          "<?php echo 1;",
		"src/Core/App.php":   "<?php class App {}",
		"src/Core/Util.php":  "<?php class Util {}",
		"templates/home.tpl": "<h1>home</h1>",
	})
	e := &Engine{}
	if mustScan(t, e, root) != mustScan(t, e, root) {
		t.Error("two scans of an unchanged tree differ")
	}
}

func TestScanExclusions(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.php":       "<?php",
		"src/App.php":     "<?php class App {}",
		"integrity.sig":   "sig",
		"integrity.pub":   "pub",
		"vendor/lib.php":  "<?php",
		"storage/app.log": "log",
		".git/HEAD":       "ref",
	})
	e := &Engine{Exclude: MustMatcher([]string{"integrity.sig", "integrity.pub", "/vendor/", ".git", "storage/**"})}
	before := mustScan(t, e, root)

	tests := []struct {
		name string
		rel  string
	}{
		{"vendor file", "vendor/new.php"},
		{"storage file", "storage/cache/x"},
		{"git metadata", ".git/objects/ab"},
		{"signature artifact", "integrity.sig"},
		{"public key artifact", "integrity.pub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeFile(t, root, tt.rel, "changed "+tt.name)
			if got := mustScan(t, e, root); got != before {
				t.Errorf("writing %s changed the aggregate", tt.rel)
			}
			if err := os.Remove(filepath.Join(root, filepath.FromSlash(tt.rel))); err != nil {
				t.Fatal(err)
			}
			if got := mustScan(t, e, root); got != before {
				t.Errorf("removing %s changed the aggregate", tt.rel)
			}
		})
	}
}

func TestScanTamperSensitivity(t *testing.T) {
	root := writeTree(t, map[string]string{"A": "x", "B": "y"})
	e := &Engine{}
	before := mustScan(t, e, root)

	writeFile(t, root, "B", "z")
	if mustScan(t, e, root) == before {
		t.Error("modifying B did not change the aggregate")
	}

	writeFile(t, root, "B", "y")
	if mustScan(t, e, root) != before {
		t.Error("restoring B did not restore the aggregate")
	}

	writeFile(t, root, "C", "")
	if mustScan(t, e, root) == before {
		t.Error("adding an empty file did not change the aggregate")
	}
}

func TestScanExtensionFilter(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.php":     "<?php",
		"README.md":     "docs",
		"assets/app.js": "js",
	})
	e := &Engine{Extensions: []string{".php"}}
	before := mustScan(t, e, root)

	writeFile(t, root, "README.md", "changed docs")
	if mustScan(t, e, root) != before {
		t.Error("non-php change affected a php-only scan")
	}
	writeFile(t, root, "index.php", "<?php exit;")
	if mustScan(t, e, root) == before {
		t.Error("php change did not affect a php-only scan")
	}
}

func TestScanMultipleRoots(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "src/a.php", "a")
	writeFile(t, base, "config/a.php", "b")

	e := &Engine{}
	files, err := e.Files(context.Background(), []string{
		filepath.Join(base, "src"),
		filepath.Join(base, "config"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Path != "config/a.php" || files[1].Path != "src/a.php" {
		t.Errorf("unexpected files: %+v", files)
	}

	// Overlapping roots must not count a file twice.
	overlap, err := e.Files(context.Background(), []string{base, filepath.Join(base, "src")})
	if err != nil {
		t.Fatal(err)
	}
	if len(overlap) != 2 {
		t.Errorf("overlapping roots yielded %d files, want 2", len(overlap))
	}
}

func TestScanErrors(t *testing.T) {
	e := &Engine{}
	if _, err := e.Scan(context.Background(), nil); !errors.Is(err, ErrNoRoots) {
		t.Errorf("empty roots: got %v, want ErrNoRoots", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Scan(context.Background(), []string{file}); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("file root: got %v, want ErrNotDirectory", err)
	}

	if _, err := e.Scan(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("missing root: expected error")
	}
}

func TestScanRejectsExcludedRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "storage", "site")
	writeFile(t, root, "public/index.php", "<?php echo 1;")

	e := &Engine{Exclude: MustMatcher([]string{"/storage/"})}
	if _, err := e.Scan(context.Background(), []string{root}); !errors.Is(err, ErrRootExcluded) {
		t.Fatalf("root under storage: got %v, want ErrRootExcluded", err)
	}
	if _, err := e.LatestModTime(context.Background(), []string{root}); !errors.Is(err, ErrRootExcluded) {
		t.Errorf("LatestModTime: got %v, want ErrRootExcluded", err)
	}

	// The entry also matches a root that is the excluded directory itself.
	if _, err := e.Scan(context.Background(), []string{filepath.Join(parent, "storage")}); !errors.Is(err, ErrRootExcluded) {
		t.Errorf("storage root: got %v, want ErrRootExcluded", err)
	}

	// Globs are relative to the scan base and leave the root alone.
	g := &Engine{Exclude: MustMatcher([]string{"storage/**"})}
	if _, err := g.Scan(context.Background(), []string{root}); err != nil {
		t.Errorf("glob exclude: %v", err)
	}
}

func TestScanNonEmpty(t *testing.T) {
	root := writeTree(t, map[string]string{"README.md": "docs", "index.php": "<?php"})

	php := &Engine{Extensions: []string{".php"}}
	got, err := php.ScanNonEmpty(context.Background(), []string{root})
	if err != nil {
		t.Fatal(err)
	}
	if got != mustScan(t, php, root) {
		t.Error("ScanNonEmpty differs from Scan")
	}

	none := &Engine{Extensions: []string{".inc"}}
	if _, err := none.ScanNonEmpty(context.Background(), []string{root}); !errors.Is(err, ErrNoFiles) {
		t.Errorf("no matching files: got %v, want ErrNoFiles", err)
	}
	if _, err := none.Scan(context.Background(), []string{root}); err != nil {
		t.Errorf("Scan of an empty selection: %v", err)
	}
}

func TestScanUnreadableFileFails(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	root := writeTree(t, map[string]string{"ok.php": "ok", "locked.php": "secret"})
	locked := filepath.Join(root, "locked.php")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chmod(locked, 0644) }()

	if _, err := (&Engine{}).Scan(context.Background(), []string{root}); err == nil {
		t.Error("unreadable file must fail the scan, not be skipped")
	}
}

func TestScanBudgetExceeded(t *testing.T) {
	root := writeTree(t, map[string]string{"a": "1"})
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := (&Engine{}).Scan(ctx, []string{root})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("got %v, want ErrBudgetExceeded", err)
	}
}

func TestScanSymlinks(t *testing.T) {
	root := writeTree(t, map[string]string{"real.php": "x"})
	outside := writeTree(t, map[string]string{"dir/inner.php": "y"})
	if err := os.Symlink(filepath.Join(root, "real.php"), filepath.Join(root, "link.php")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "dir"), filepath.Join(root, "linkdir")); err != nil {
		t.Fatal(err)
	}

	files, err := (&Engine{}).Files(context.Background(), []string{root})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2 (file link followed, dir link not): %+v", len(files), files)
	}
	if files[0].Path != "link.php" || files[0].Hash != sha("x") {
		t.Errorf("unexpected link digest: %+v", files[0])
	}
}

func TestOnScanCalled(t *testing.T) {
	root := writeTree(t, map[string]string{"a": "1", "b": "2"})
	var calls, last int
	e := &Engine{OnScan: func(n int) { calls++; last = n }}
	mustScan(t, e, root)
	if calls != 1 || last != 2 {
		t.Errorf("OnScan calls=%d last=%d, want 1 and 2", calls, last)
	}

	// Stat-only probes are not content scans.
	if _, err := e.LatestModTime(context.Background(), []string{root}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("LatestModTime triggered OnScan")
	}
}

func TestLatestModTime(t *testing.T) {
	root := writeTree(t, map[string]string{"a.php": "1", "b.php": "2", "c.txt": "3"})
	old := time.Unix(1_600_000_000, 0)
	newer := time.Unix(1_700_000_000, 0)
	newest := time.Unix(1_800_000_000, 0)
	for rel, ts := range map[string]time.Time{"a.php": old, "b.php": newer, "c.txt": newest} {
		if err := os.Chtimes(filepath.Join(root, rel), ts, ts); err != nil {
			t.Fatal(err)
		}
	}

	e := &Engine{Extensions: []string{".php"}}
	got, err := e.LatestModTime(context.Background(), []string{root})
	if err != nil {
		t.Fatal(err)
	}
	if got != newer.Unix() {
		t.Errorf("LatestModTime = %d, want %d", got, newer.Unix())
	}
}

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"/vendor/", "**/*.log", "", "cache/**"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		abs, rel string
		want     bool
	}{
		{"/srv/app/vendor/x.php", "vendor/x.php", true},
		{"/srv/app/src/x.php", "src/x.php", false},
		{"/srv/app/logs/a.log", "logs/a.log", true},
		{"/srv/app/cache/x/y", "cache/x/y", true},
		{"/srv/app/src/cache.php", "src/cache.php", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.abs, tt.rel); got != tt.want {
			t.Errorf("Match(%s) = %v, want %v", tt.rel, got, tt.want)
		}
	}

	for _, tt := range []struct {
		root, entry string
		excluded    bool
	}{
		{"/home/deploy/vendor/site", "/vendor/", true},
		{"/home/deploy/vendor", "/vendor/", true},
		{"/home/deploy/vendor/", "/vendor/", true},
		{"/home/deploy/vendors", "/vendor/", false},
		{"/srv/app", "/vendor/", false},
	} {
		entry, excluded := m.ExcludesRoot(tt.root)
		if excluded != tt.excluded || (excluded && entry != tt.entry) {
			t.Errorf("ExcludesRoot(%s) = %q, %v; want %q, %v", tt.root, entry, excluded, tt.entry, tt.excluded)
		}
	}

	var nilMatcher *Matcher
	if _, excluded := nilMatcher.ExcludesRoot("/srv/vendor"); excluded {
		t.Error("nil matcher excluded a root")
	}
	if nilMatcher.Match("/x", "x") {
		t.Error("nil matcher excluded a path")
	}

	if _, err := NewMatcher([]string{"src/[a"}); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("got %v, want ErrInvalidPattern", err)
	}
}
