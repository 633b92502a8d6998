// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/subtle"
	"runtime"
)

// ZeroBytes overwrites b with zeros. Seeds, decrypted key text and
// passphrases are wiped with it as soon as they are no longer needed.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	// ConstantTimeCopy keeps the store from being elided.
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}
