// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aplane-algo/srcseal/internal/fsutil"
	"github.com/aplane-algo/srcseal/internal/gate"
	"github.com/aplane-algo/srcseal/internal/guard"
	"github.com/aplane-algo/srcseal/internal/manifest"
)

// cmdHash records the reference digest for the cached validator.
func (c *cli) cmdHash(ctx context.Context) error {
	comps, err := guard.Build(c.cfg, c.logger, nil)
	if err != nil {
		return err
	}
	digest, err := comps.Validator.WriteReference(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Reference digest: %s\n", digest)
	fmt.Fprintf(c.out, "Written to %s\n", c.cfg.SourceHash)
	return nil
}

// cmdManifest records the critical file hashes and forces the gate to
// re-check on the next request.
func (c *cli) cmdManifest() error {
	comps, err := guard.Build(c.cfg, c.logger, nil)
	if err != nil {
		return err
	}
	text, err := manifest.Generate(c.cfg.AppRoot, c.cfg.CriticalFiles)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(c.cfg.CriticalManifest, []byte(text), fsutil.PublicFilePerm); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := comps.State.Delete(gate.DefaultSentinelKey); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Recorded %d critical files in %s\n", len(c.cfg.CriticalFiles), c.cfg.CriticalManifest)
	return nil
}

// cmdCheck runs every runtime check once.
func (c *cli) cmdCheck(ctx context.Context) error {
	comps, err := guard.Build(c.cfg, c.logger, nil)
	if err != nil {
		return err
	}
	d := comps.Guard.Evaluate(ctx)
	fmt.Fprintf(c.out, "Full comparisons: %d\n", comps.Validator.FullChecks())
	if !d.Allowed {
		return &exitError{code: 1, msg: fmt.Sprintf("%s check failed (a request would get HTTP %d %s)",
			d.Check, d.Status, http.StatusText(d.Status))}
	}
	fmt.Fprintln(c.out, "All checks passed")
	return nil
}
