// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// sealgated runs the integrity checks in front of a protected application:
// every proxied request passes the cached source validator, the deployed
// signature (when present), and the request-time gate.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aplane-algo/srcseal/internal/config"
	"github.com/aplane-algo/srcseal/internal/guard"
	"github.com/aplane-algo/srcseal/internal/logging"
	"github.com/aplane-algo/srcseal/internal/metrics"
	"github.com/aplane-algo/srcseal/internal/version"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Printf("sealgated %s\n", version.String())
			os.Exit(0)
		}
	}

	dataDir := flag.String("d", "", "Data directory (or set "+config.DataDirEnv+")")
	flag.Parse()

	resolvedDataDir := config.RequireDataDir(*dataDir)
	cfg, err := config.Load(resolvedDataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Upstream == "" {
		fmt.Fprintln(os.Stderr, "Error: upstream must be specified in config.yaml")
		fmt.Fprintln(os.Stderr, "Example: upstream: http://127.0.0.1:9000")
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	comps, err := guard.Build(cfg, logger, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	proxy, err := newProxy(cfg.Upstream, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Data directory: %s\n", resolvedDataDir)
	fmt.Printf("App root:       %s\n", cfg.AppRoot)
	fmt.Printf("Upstream:       %s\n", cfg.Upstream)
	if cfg.EnforceEnabled() {
		fmt.Println("✓ Source validation enforced")
	} else {
		fmt.Println("⚠ WARNING: enforce is false; failed source validation is only logged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Startup self-check so operators see a broken release before the
	// first request does.
	if d := comps.Guard.Evaluate(ctx); d.Allowed {
		fmt.Println("✓ Startup integrity check passed")
	} else {
		fmt.Printf("⚠ Startup integrity check failed (%s); requests will be rejected with HTTP %d\n", d.Check, d.Status)
	}

	if cfg.Watch {
		if err := comps.Validator.Watch(ctx); err != nil {
			fmt.Printf("⚠ Warning: Failed to start file watcher: %v\n", err)
			fmt.Println("Validation cache will rely on mtime and TTL only")
		} else {
			fmt.Println("✓ Watching source tree for changes")
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(comps.Guard, reg, proxy),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("\n>> Listening on %s\n", cfg.Listen)
	fmt.Printf("\nEndpoints:\n")
	fmt.Printf("  GET    /healthz   - Health check (not gated)\n")
	fmt.Printf("  GET    /metrics   - Prometheus metrics (not gated)\n")
	fmt.Printf("  *      /*         - Proxied to upstream behind integrity checks\n")
	fmt.Println(strings.Repeat("=", 50))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		fmt.Println("\n[*] Shutdown signal received, cleaning up...")
	case err := <-serverErr:
		fmt.Printf("\n[X] Server error: %v\n", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("[X] Shutdown error: %v\n", err)
	}
	fmt.Println("[*] Stopped")
}
