// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package guard composes the integrity checks in front of an application:
// the cached source validator, the optional deployed signature, and the
// request-time gate, in that order.
package guard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aplane-algo/srcseal/internal/digest"
	"github.com/aplane-algo/srcseal/internal/gate"
	"github.com/aplane-algo/srcseal/internal/metrics"
	"github.com/aplane-algo/srcseal/internal/seal"
)

// Fixed client-facing messages. Details are only ever logged.
const (
	ForbiddenMessage = "Forbidden: application source could not be validated."
	TamperMessage    = gate.TamperMessage
)

// Check names, as reported in a Decision.
const (
	CheckValidator = metrics.CheckValidator
	CheckSignature = metrics.CheckSignature
	CheckGate      = metrics.CheckGate
)

// SourceValidator is the cached validator boundary.
type SourceValidator interface {
	IsSourceValid(ctx context.Context) bool
}

// Guard holds the checks. Validator is required; a nil Gate disables the
// request-time gate.
type Guard struct {
	Validator SourceValidator

	// Engine and Roots define the signed tree. DeployRoot holds
	// integrity.sig and integrity.pub; when neither exists the signature
	// check is skipped.
	Engine     *digest.Engine
	Roots      []string
	DeployRoot string

	Gate *gate.Gate

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Decision is the outcome of one pass over the checks.
type Decision struct {
	Allowed bool
	Status  int
	Check   string
	Message string
}

var allow = Decision{Allowed: true, Status: http.StatusOK}

// Handler runs the validator and signature checks, then the gate, before
// next. A failed check ends the request with a fixed message.
func (g *Guard) Handler(next http.Handler) http.Handler {
	if g.Gate != nil {
		next = g.Gate.Middleware(next)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := g.checkSource(r.Context()); !d.Allowed {
			gate.Reject(w, d.Status, d.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Evaluate runs every check once, including the gate, and reports the first
// failure.
func (g *Guard) Evaluate(ctx context.Context) Decision {
	if d := g.checkSource(ctx); !d.Allowed {
		return d
	}
	if g.Gate != nil && !g.Gate.Check(ctx) {
		return Decision{Status: http.StatusServiceUnavailable, Check: CheckGate, Message: TamperMessage}
	}
	return allow
}

func (g *Guard) checkSource(ctx context.Context) Decision {
	if g.Validator == nil || !g.Validator.IsSourceValid(ctx) {
		return Decision{Status: http.StatusForbidden, Check: CheckValidator, Message: ForbiddenMessage}
	}
	if !g.checkSignature(ctx) {
		return Decision{Status: http.StatusServiceUnavailable, Check: CheckSignature, Message: TamperMessage}
	}
	return allow
}

// checkSignature verifies the deployed signature against a fresh digest.
// Artifacts are re-read per request so deploying or removing them takes
// effect immediately.
func (g *Guard) checkSignature(ctx context.Context) bool {
	artifacts, found, err := seal.LoadArtifacts(g.DeployRoot)
	if !found {
		return true
	}
	if err != nil {
		g.logger().Error("signature artifacts unusable", "error", err)
		g.Metrics.Decision(metrics.CheckSignature, false)
		return false
	}

	v := &seal.Verifier{
		Engine:    g.engine(),
		Roots:     g.Roots,
		PublicKey: artifacts.DecodedPublicKey(),
		Signature: artifacts.Signature,
		Logger:    g.logger(),
	}
	ok := v.Verify(ctx)
	g.Metrics.Decision(metrics.CheckSignature, ok)
	return ok
}

func (g *Guard) engine() *digest.Engine {
	if g.Engine == nil {
		return &digest.Engine{Exclude: digest.MustMatcher(seal.ArtifactExcludes)}
	}
	return g.Engine
}

func (g *Guard) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.Logger
}
