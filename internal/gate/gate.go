// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package gate provides the request-time gate: an HTTP middleware that
// re-checks a small set of high-value files at most once per window and
// rejects requests while any of them is modified.
package gate

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aplane-algo/srcseal/internal/metrics"
	"github.com/aplane-algo/srcseal/internal/store"
)

// Defaults.
const (
	DefaultWindow      = 60 * time.Second
	DefaultSentinelKey = "gate.last_check"

	// TamperMessage is the fixed response body for a rejected request.
	TamperMessage = "Service unavailable: application integrity check failed."
)

// DefaultCriticalFiles is the built-in high-value set: the front
// controller, the container bootstrap, and the integrity services.
var DefaultCriticalFiles = CriticalFileSet{
	"public/index.php",
	"bootstrap/app.php",
	"config/services.php",
	"src/Security/IntegrityGuard.php",
	"src/Security/SourceValidator.php",
}

// CriticalFileSet lists slash-separated paths relative to the application
// root. It is not modified after construction.
type CriticalFileSet []string

// Scanner checks specific files for modification.
type Scanner interface {
	VerifySpecificFiles(ctx context.Context, paths []string) bool
}

// Gate is the request-time gate. Zero-value optional fields take defaults.
type Gate struct {
	Scanner Scanner
	Files   CriticalFileSet

	// Window is the minimum time between checks.
	Window time.Duration

	// Store holds the last successful check time. Nil means every
	// request is checked.
	Store       *store.FileStore
	SentinelKey string

	Now     func() time.Time
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Middleware rejects requests with 503 when a due check fails. The next
// handler is never invoked for a rejected request.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Check(r.Context()) {
			Reject(w, http.StatusServiceUnavailable, TamperMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Check runs the critical-file scan if the window has elapsed since the last
// successful check. It reports false only when a due scan failed; the
// sentinel is advanced only on success so every following request rescans.
func (g *Gate) Check(ctx context.Context) bool {
	now := g.now()
	if !g.due(now) {
		return true
	}

	files := g.Files
	if files == nil {
		files = DefaultCriticalFiles
	}

	ok := g.Scanner != nil && g.Scanner.VerifySpecificFiles(ctx, files)
	g.Metrics.Decision(metrics.CheckGate, ok)
	if !ok {
		g.logger().Error("critical file modification detected; rejecting requests", "files", len(files))
		return false
	}

	if g.Store != nil {
		if err := g.Store.PutInt64(g.sentinelKey(), now.Unix()); err != nil {
			g.logger().Warn("failed to record gate check time", "error", err)
		}
	}
	return true
}

// due reports whether a scan is required. A missing, unparsable, or
// future-dated sentinel makes a scan due.
func (g *Gate) due(now time.Time) bool {
	if g.Store == nil {
		return true
	}
	last, ok := g.Store.GetInt64(g.sentinelKey())
	if !ok {
		return true
	}
	elapsed := now.Sub(time.Unix(last, 0))
	return elapsed < 0 || elapsed > g.window()
}

func (g *Gate) window() time.Duration {
	if g.Window <= 0 {
		return DefaultWindow
	}
	return g.Window
}

func (g *Gate) sentinelKey() string {
	if g.SentinelKey == "" {
		return DefaultSentinelKey
	}
	return g.SentinelKey
}

func (g *Gate) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

func (g *Gate) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.Logger
}

// Reject writes a fixed plain-text error response.
func Reject(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, message, status)
}
