// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package security

import "testing"

func TestDisableCoreDumps(t *testing.T) {
	if err := DisableCoreDumps(); err != nil {
		t.Fatalf("DisableCoreDumps failed: %v", err)
	}
	if !CoreDumpsDisabled() {
		t.Error("core dumps still enabled")
	}
	// Lowering an already-zero limit is idempotent.
	if err := DisableCoreDumps(); err != nil {
		t.Errorf("second DisableCoreDumps failed: %v", err)
	}
}
