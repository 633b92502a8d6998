// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package store

import "errors"

var (
	// ErrInvalidKey indicates a key that would escape the store directory
	ErrInvalidKey = errors.New("invalid store key")

	// ErrInvalidMACKey indicates a MAC key file with the wrong length
	ErrInvalidMACKey = errors.New("invalid MAC key")
)
