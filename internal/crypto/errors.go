// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import "errors"

var (
	// ErrEmptyPassphrase indicates Seal was called without a passphrase
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")

	// ErrMalformedEnvelope indicates the envelope JSON is unreadable
	ErrMalformedEnvelope = errors.New("malformed encrypted envelope")

	// ErrDecrypt indicates a wrong passphrase or tampered ciphertext
	ErrDecrypt = errors.New("decryption failed (wrong passphrase?)")
)
