// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package guard

import (
	"fmt"
	"log/slog"

	"github.com/aplane-algo/srcseal/internal/config"
	"github.com/aplane-algo/srcseal/internal/digest"
	"github.com/aplane-algo/srcseal/internal/gate"
	"github.com/aplane-algo/srcseal/internal/manifest"
	"github.com/aplane-algo/srcseal/internal/metrics"
	"github.com/aplane-algo/srcseal/internal/store"
	"github.com/aplane-algo/srcseal/internal/validator"
)

// Components are the services built from a configuration. They are
// constructed once per process and passed explicitly.
type Components struct {
	Guard     *Guard
	Validator *validator.Validator
	Scanner   *manifest.Scanner
	State     *store.FileStore
}

// Build wires every check from cfg. m may be nil.
func Build(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	matcher, err := cfg.Matcher()
	if err != nil {
		return nil, fmt.Errorf("invalid exclude list: %w", err)
	}

	var macKey []byte
	if cfg.CacheKeyFile != "" {
		if macKey, err = store.LoadOrCreateMACKey(cfg.CacheKeyFile); err != nil {
			return nil, err
		}
	}

	state := store.NewFileStore(cfg.StateDir)
	v, err := validator.New(validator.Options{
		Root:          cfg.AppRoot,
		Exclude:       matcher,
		Extensions:    cfg.PHPExtensions,
		ReferencePath: cfg.SourceHash,
		Store:         state,
		TTL:           cfg.TTL(),
		ReportOnly:    !cfg.EnforceEnabled(),
		Budget:        cfg.Budget(),
		MACKey:        macKey,
		Metrics:       m,
		Logger:        logger.With("check", metrics.CheckValidator),
	})
	if err != nil {
		return nil, err
	}

	scanner := manifest.NewScanner(cfg.AppRoot, cfg.CriticalManifest, logger.With("check", metrics.CheckGate))

	g := &Guard{
		Validator: v,
		Engine: &digest.Engine{
			Exclude: matcher,
			Budget:  cfg.Budget(),
			OnScan:  m.ScanObserver(metrics.CheckSignature),
		},
		Roots:      cfg.Roots(),
		DeployRoot: cfg.DeployRoot,
		Gate: &gate.Gate{
			Scanner: scanner,
			Files:   cfg.CriticalFiles,
			Window:  cfg.Window(),
			Store:   state,
			Logger:  logger.With("check", metrics.CheckGate),
			Metrics: m,
		},
		Logger:  logger.With("check", metrics.CheckSignature),
		Metrics: m,
	}

	return &Components{Guard: g, Validator: v, Scanner: scanner, State: state}, nil
}
