// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package version holds build metadata for srcseal binaries, injected with
// -ldflags "-X github.com/aplane-algo/srcseal/internal/version.Version=1.2.0".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String returns the long form printed by "version" subcommands.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s/%s)",
		Version, GitCommit, BuildTime, runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies the gate daemon to the upstream application.
func UserAgent() string {
	return "sealgated/" + Version
}
