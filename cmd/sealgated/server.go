// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aplane-algo/srcseal/internal/guard"
	"github.com/aplane-algo/srcseal/internal/metrics"
	"github.com/aplane-algo/srcseal/internal/version"
)

// upstreamErrorMessage is returned when the protected application is
// unreachable.
const upstreamErrorMessage = "Bad gateway"

var errInvalidUpstream = errors.New("upstream must be an absolute http or https URL")

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "sealgated",
		"version": version.Version,
	})
}

// newProxy forwards requests to the protected application.
func newProxy(upstream string, logger *slog.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidUpstream, err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", errInvalidUpstream, upstream)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Set("Via", "1.1 "+version.UserAgent())
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("upstream request failed", "path", r.URL.Path, "error", err)
			http.Error(w, upstreamErrorMessage, http.StatusBadGateway)
		},
	}, nil
}

// newRouter serves the gate's own endpoints and proxies everything else
// behind the guard chain.
func newRouter(g *guard.Guard, gatherer prometheus.Gatherer, app http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", metrics.Handler(gatherer))

	r.Group(func(r chi.Router) {
		r.Use(g.Handler)
		r.Handle("/*", app)
	})
	return r
}
