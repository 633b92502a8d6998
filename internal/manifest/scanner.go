// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aplane-algo/srcseal/internal/digest"
)

// Scanner checks critical files against a manifest. The manifest is re-read
// on every call so a rotated manifest takes effect without a restart.
type Scanner struct {
	Root         string
	ManifestPath string
	Logger       *slog.Logger
}

// NewScanner creates a scanner for files under root.
func NewScanner(root, manifestPath string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{Root: root, ManifestPath: manifestPath, Logger: logger}
}

// Verify checks every path against its manifest entry.
// Returns nil if all files match.
func (s *Scanner) Verify(ctx context.Context, paths []string) error {
	mf, err := Load(s.ManifestPath)
	if err != nil {
		return err
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := mf.FindEntry(p)
		if entry == nil {
			return fmt.Errorf("%w: %s", ErrNotListed, p)
		}

		actualHash, err := digest.HashFile(filepath.Join(s.Root, filepath.FromSlash(entry.Filename)))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrMissingFile, entry.Filename)
			}
			return fmt.Errorf("failed to hash %s: %w", entry.Filename, err)
		}

		if actualHash != entry.Hash {
			return fmt.Errorf("%w: %s (expected %s..., got %s...)",
				ErrChecksumMismatch, entry.Filename, entry.Hash[:16], actualHash[:16])
		}
	}

	return nil
}

// VerifySpecificFiles reports whether every path matches the manifest.
// Any error, including a missing manifest, counts as a modification.
func (s *Scanner) VerifySpecificFiles(ctx context.Context, paths []string) bool {
	if err := s.Verify(ctx, paths); err != nil {
		s.logger().Warn("critical file check failed", "error", err)
		return false
	}
	return true
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
