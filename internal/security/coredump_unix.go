// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

//go:build unix

// Package security hardens processes that hold private key material.
package security

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DisableCoreDumps sets RLIMIT_CORE to zero so a crash while a private key
// is loaded cannot write it to disk.
func DisableCoreDumps() error {
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0}); err != nil {
		return fmt.Errorf("failed to disable core dumps: %w", err)
	}
	return nil
}

// CoreDumpsDisabled reports whether the core size limit is zero.
func CoreDumpsDisabled() bool {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_CORE, &rlimit); err != nil {
		return false
	}
	return rlimit.Cur == 0
}
