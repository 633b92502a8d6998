// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// srcseal is the offline operator tool for source-integrity protection:
// it generates signing keys, signs release trees, records reference
// digests, and inspects the runtime checks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aplane-algo/srcseal/internal/config"
	"github.com/aplane-algo/srcseal/internal/logging"
	"github.com/aplane-algo/srcseal/internal/security"
	"github.com/aplane-algo/srcseal/internal/version"
)

// cli carries the state shared by all commands.
type cli struct {
	cfg    *config.Config
	out    io.Writer
	logger *slog.Logger

	// readPassphrase prompts for a passphrase; replaced in tests.
	readPassphrase func(prompt string) ([]byte, error)
}

// exitError carries a process exit code for failed checks, as opposed to
// operational errors.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func usage() {
	fmt.Fprintf(os.Stderr, "srcseal - source integrity sealing\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  srcseal [-d path] keygen [-encrypt]\n")
	fmt.Fprintf(os.Stderr, "  srcseal [-d path] sign\n")
	fmt.Fprintf(os.Stderr, "  srcseal [-d path] hash\n")
	fmt.Fprintf(os.Stderr, "  srcseal [-d path] manifest\n")
	fmt.Fprintf(os.Stderr, "  srcseal [-d path] verify\n")
	fmt.Fprintf(os.Stderr, "  srcseal [-d path] check\n")
	fmt.Fprintf(os.Stderr, "  srcseal [-d path] status\n")
	fmt.Fprintf(os.Stderr, "  srcseal version\n")
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  keygen     Generate private.pem and public.pem in keys_dir\n")
	fmt.Fprintf(os.Stderr, "  sign       Sign app_root and deploy integrity.sig and integrity.pub\n")
	fmt.Fprintf(os.Stderr, "  hash       Record the reference digest used by the cached validator\n")
	fmt.Fprintf(os.Stderr, "  manifest   Record hashes of the critical files checked by the gate\n")
	fmt.Fprintf(os.Stderr, "  verify     Verify the deployed signature against the current tree\n")
	fmt.Fprintf(os.Stderr, "  check      Run every runtime check once, as a request would\n")
	fmt.Fprintf(os.Stderr, "  status     Show artifacts and cached state without hashing\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	fmt.Fprintf(os.Stderr, "  -d path    Data directory (or set %s env var)\n", config.DataDirEnv)
	fmt.Fprintf(os.Stderr, "  -encrypt   Protect private.pem with a passphrase (keygen only)\n")
	fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
	fmt.Fprintf(os.Stderr, "  %s=1   Enable debug logging\n", logging.DebugEnv)
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Printf("srcseal %s\n", version.String())
			os.Exit(0)
		}
	}

	flag.Usage = usage
	dataDir := flag.String("d", "", "Data directory (or set "+config.DataDirEnv+")")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}
	if args[0] == "version" {
		fmt.Printf("srcseal %s\n", version.String())
		return
	}

	cfg, err := config.Load(config.RequireDataDir(*dataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{
		cfg:            cfg,
		out:            os.Stdout,
		logger:         logging.NewCLI(os.Stderr),
		readPassphrase: readPassword,
	}
	if err := c.run(ctx, args); err != nil {
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(code)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	command, rest := args[0], args[1:]

	if command == "keygen" || command == "sign" {
		if err := security.DisableCoreDumps(); err != nil {
			c.logger.Warn("private key may appear in core dumps", "error", err)
		}
	}

	switch command {
	case "keygen":
		fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
		encrypt := fs.Bool("encrypt", false, "protect the private key with a passphrase")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return c.cmdKeygen(*encrypt)

	case "sign":
		return c.cmdSign(ctx)

	case "hash":
		return c.cmdHash(ctx)

	case "manifest":
		return c.cmdManifest()

	case "verify":
		return c.cmdVerify(ctx)

	case "check":
		return c.cmdCheck(ctx)

	case "status":
		return c.cmdStatus()

	default:
		return fmt.Errorf("unknown command %q (run srcseal -h for usage)", command)
	}
}
