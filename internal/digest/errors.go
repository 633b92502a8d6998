// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package digest

import "errors"

var (
	// ErrNoRoots indicates Scan was called without any root directory.
	// This is a programmer error, not a tamper condition.
	ErrNoRoots = errors.New("no roots to scan")

	// ErrNotDirectory indicates a scan root is not a directory
	ErrNotDirectory = errors.New("scan root is not a directory")

	// ErrBudgetExceeded indicates hashing did not finish within the configured budget
	ErrBudgetExceeded = errors.New("hashing budget exceeded")

	// ErrRootExcluded indicates an exclude entry matches a scan root, which
	// would leave nothing under it to hash
	ErrRootExcluded = errors.New("scan root is excluded")

	// ErrNoFiles indicates a scan included no file at all
	ErrNoFiles = errors.New("no files included in scan")

	// ErrInvalidPattern indicates a malformed glob exclusion pattern
	ErrInvalidPattern = errors.New("invalid exclude pattern")
)
