// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package store is a small flat-file key-value store for host-local runtime
// state (validation cache, mtime sentinel, gate check timestamp).
//
// Writes are atomic (temp file + rename). Reads never fail: a missing,
// unreadable, or unparsable value is reported as a miss, so a corrupted
// entry can only force extra work and never widen a trust decision.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aplane-algo/srcseal/internal/fsutil"
)

// FileStore keeps each key in its own file under dir.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created lazily
// on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path for key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key)
}

func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Get returns the raw value for key. ok is false on any read failure.
func (s *FileStore) Get(key string) (value []byte, ok bool) {
	if validKey(key) != nil {
		return nil, false
	}
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put atomically replaces the value for key.
func (s *FileStore) Put(key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := fsutil.MkdirAll(s.dir, fsutil.StateDirPerm); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return fsutil.WriteFileAtomic(s.Path(key), value, fsutil.StateFilePerm)
}

// Delete removes key. A missing key is not an error.
func (s *FileStore) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetInt64 reads a raw decimal integer.
func (s *FileStore) GetInt64(key string) (int64, bool) {
	data, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// PutInt64 stores n as raw decimal text.
func (s *FileStore) PutInt64(key string, n int64) error {
	return s.Put(key, []byte(strconv.FormatInt(n, 10)))
}

// GetJSON decodes the value for key into target. Returns false on a miss or
// a decode failure; target may be partially filled in the latter case.
func (s *FileStore) GetJSON(key string, target any) bool {
	data, ok := s.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, target) == nil
}

// PutJSON encodes value and stores it under key.
func (s *FileStore) PutJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Put(key, data)
}
