// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package manifest

import "errors"

// Common manifest verification errors
var (
	// ErrNoManifest indicates the manifest file is missing
	ErrNoManifest = errors.New("critical file manifest not found")

	// ErrInvalidFormat indicates the manifest is malformed
	ErrInvalidFormat = errors.New("invalid manifest format")

	// ErrChecksumMismatch indicates a file's hash doesn't match the expected value
	ErrChecksumMismatch = errors.New("checksum verification failed")

	// ErrMissingFile indicates a file listed in the manifest doesn't exist
	ErrMissingFile = errors.New("file listed in manifest not found")

	// ErrNotListed indicates a requested file has no manifest entry
	ErrNotListed = errors.New("file not listed in manifest")

	// ErrUnsafePath indicates an entry escapes the application root
	ErrUnsafePath = errors.New("manifest path escapes root")
)
