// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package store

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aplane-algo/srcseal/internal/fsutil"
)

// MACKeySize is the length of a record MAC key in bytes.
const MACKeySize = 32

// LoadOrCreateMACKey loads the record MAC key at path, or creates one with
// owner-only permissions if it does not exist. The key should live outside
// the protected tree.
func LoadOrCreateMACKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != MACKeySize {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidMACKey, MACKeySize, len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read MAC key: %w", err)
	}

	key = make([]byte, MACKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate MAC key: %w", err)
	}
	if err := fsutil.MkdirAll(filepath.Dir(path), fsutil.KeyDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create MAC key directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, key, fsutil.KeyFilePerm); err != nil {
		return nil, fmt.Errorf("failed to write MAC key: %w", err)
	}
	return key, nil
}

// Sum returns the hex HMAC-SHA256 of data under key.
func Sum(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySum reports whether sumHex is the HMAC of data under key.
// Uses constant-time comparison.
func VerifySum(key, data []byte, sumHex string) bool {
	got, err := hex.DecodeString(sumHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hmac.Equal(mac.Sum(nil), got)
}
