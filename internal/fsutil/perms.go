// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package fsutil provides filesystem helpers for srcseal state and key files.
// Key material uses owner-only permissions (0600 files, 0700 dirs); runtime
// state shared between gate processes uses group-accessible permissions
// (0660 files, 0770 dirs).
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDirPerm is the permission mode for runtime state directories.
const StateDirPerm os.FileMode = 0770

// StateFilePerm is the permission mode for runtime state files.
const StateFilePerm os.FileMode = 0660

// KeyDirPerm is the permission mode for the private key directory.
const KeyDirPerm os.FileMode = 0700

// KeyFilePerm is the permission mode for private key files.
const KeyFilePerm os.FileMode = 0600

// PublicFilePerm is the permission mode for deployable, non-secret artifacts.
const PublicFilePerm os.FileMode = 0644

// MkdirAll creates a directory and all parents, then chmods the leaf to perm.
// Unlike os.MkdirAll, this explicitly sets permissions after creation to
// bypass umask restrictions.
func MkdirAll(path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

// WriteFileAtomic writes data to a temp file in the destination directory and
// renames it over path. Readers observe either the old or the new content,
// never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
