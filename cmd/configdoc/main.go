// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// configdoc generates markdown documentation from Go struct tags.
// Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/aplane-algo/srcseal/internal/config"
	"github.com/aplane-algo/srcseal/internal/logging"
)

// EnvVar represents an environment variable configuration
type EnvVar struct {
	Name        string
	Description string
	UsedBy      string
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		fmt.Println("Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags.")
		return
	}
	writeReference(os.Stdout)
}

func writeReference(w io.Writer) {
	fmt.Fprintln(w, "# Configuration Reference")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Auto-generated from Go struct tags. Do not edit manually.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "---")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## srcseal / sealgated Configuration")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: `%s` in the data directory (`-d` or `%s`). Relative paths are resolved against the data directory.\n",
		config.FileName, config.DataDirEnv)
	fmt.Fprintln(w)
	writeStructTable(w, reflect.TypeOf(config.Config{}))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Environment Variables")
	fmt.Fprintln(w)
	writeEnvVars(w)
}

func writeStructTable(w io.Writer, t reflect.Type) {
	fmt.Fprintln(w, "| Field | Type | Default | Description |")
	fmt.Fprintln(w, "|-------|------|---------|-------------|")

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("yaml")
		if tag == "" || tag == "-" || !field.IsExported() {
			continue
		}
		fieldName := strings.Split(tag, ",")[0]

		desc := field.Tag.Get("description")
		if desc == "" {
			desc = "(no description)"
		}

		def := field.Tag.Get("default")
		switch def {
		case "":
			def = "(none)"
		case `""`:
			def = "(empty string)"
		}

		fmt.Fprintf(w, "| `%s` | %s | `%s` | %s |\n", fieldName, formatType(field.Type), def, desc)
	}
}

func formatType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		return "[]" + formatType(t.Elem())
	case reflect.Ptr:
		return "*" + formatType(t.Elem())
	default:
		return t.String()
	}
}

func writeEnvVars(w io.Writer) {
	envVars := []EnvVar{
		{config.DataDirEnv, "Data directory (config, reference digest, manifest, state)", "srcseal, sealgated"},
		{logging.DebugEnv, "Set to any value to enable debug logging", "srcseal, sealgated"},
	}

	fmt.Fprintln(w, "| Variable | Description | Used By |")
	fmt.Fprintln(w, "|----------|-------------|---------|")
	for _, env := range envVars {
		fmt.Fprintf(w, "| `%s` | %s | %s |\n", env.Name, env.Description, env.UsedBy)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Data Directory Layout")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "- `config.yaml`: this file")
	fmt.Fprintln(w, "- `keys/private.pem`, `keys/public.pem`: signing keys (keep the private key offline)")
	fmt.Fprintln(w, "- `source.hash`: reference digest for the cached validator")
	fmt.Fprintln(w, "- `critical.sha256`: critical file manifest for the request-time gate")
	fmt.Fprintln(w, "- `cache.key`: HMAC key authenticating validation cache records")
	fmt.Fprintln(w, "- `state/`: validation cache, mtime sentinel, gate check time")
}
