// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package testutil provides reusable test infrastructure and utilities.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aplane-algo/srcseal/internal/seal"
)

// WriteTree creates files (slash-separated relative path -> content) under
// root, creating parent directories. Returns root.
func WriteTree(t *testing.T, root string, files map[string]string) string {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return root
}

// NewTree writes files into a fresh temporary directory.
func NewTree(t *testing.T, files map[string]string) string {
	t.Helper()
	return WriteTree(t, t.TempDir(), files)
}

// SampleApp is a small PHP application tree.
func SampleApp() map[string]string {
	return map[string]string{
		"public/index.php":    "<?php require __DIR__.'/../bootstrap/app.php';",
		"bootstrap/app.php":   "<?php return new App\\Kernel();",
		"config/services.php": "<?php return [];",
		"src/Kernel.php":      "<?php namespace App; class Kernel {}",
		"assets/app.css":      "body { margin: 0 }",
	}
}

// SetMtime sets both access and modification time of path.
func SetMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Failed to set mtime on %s: %v", path, err)
	}
}

// NewSigningKey generates a keypair and writes it unencrypted to a fresh
// keys directory. Returns the keypair and the directory.
func NewSigningKey(t *testing.T) (*seal.KeyPair, string) {
	t.Helper()

	kp, err := seal.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate keypair: %v", err)
	}
	keysDir := filepath.Join(t.TempDir(), "keys")
	if err := seal.WriteKeyPair(keysDir, kp, nil); err != nil {
		t.Fatalf("Failed to write keypair: %v", err)
	}
	return kp, keysDir
}
