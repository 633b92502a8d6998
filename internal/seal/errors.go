// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package seal

import "errors"

var (
	// ErrInvalidPrivateKey indicates a private key of the wrong length or shape
	ErrInvalidPrivateKey = errors.New("invalid Ed25519 private key")

	// ErrInvalidPublicKey indicates a public key of the wrong length or not on the curve
	ErrInvalidPublicKey = errors.New("invalid Ed25519 public key")

	// ErrInvalidSignature indicates a signature that is not 64 bytes of base64
	ErrInvalidSignature = errors.New("invalid signature encoding")

	// ErrKeyExists indicates keygen would overwrite an existing private key
	ErrKeyExists = errors.New("private key already exists")

	// ErrPassphraseRequired indicates an encrypted private key without a passphrase source
	ErrPassphraseRequired = errors.New("private key is encrypted; passphrase required")

	// ErrIncompleteArtifacts indicates only one of integrity.sig / integrity.pub is deployed
	ErrIncompleteArtifacts = errors.New("incomplete signature artifacts")
)
