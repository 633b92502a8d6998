// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

//go:build !unix

// Package security hardens processes that hold private key material.
package security

// DisableCoreDumps is a no-op where core size limits do not exist.
func DisableCoreDumps() error { return nil }

// CoreDumpsDisabled always reports true where core dumps are not produced.
func CoreDumpsDisabled() bool { return true }
