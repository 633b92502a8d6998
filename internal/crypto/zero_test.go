// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"bytes"
	"crypto/ed25519"
	"testing"
)

func TestZeroBytes(t *testing.T) {
	seed := bytes.Repeat([]byte{0x5A}, ed25519.SeedSize)
	key := ed25519.NewKeyFromSeed(seed)

	for name, b := range map[string][]byte{
		"seed":        seed,
		"private key": key,
		"passphrase":  []byte("correct horse"),
		"empty":       {},
		"nil":         nil,
	} {
		t.Run(name, func(t *testing.T) {
			ZeroBytes(b)
			if !bytes.Equal(b, make([]byte, len(b))) {
				t.Fatalf("not zeroed: %x", b)
			}
		})
	}
}
