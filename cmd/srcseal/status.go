// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aplane-algo/srcseal/internal/crypto"
	"github.com/aplane-algo/srcseal/internal/gate"
	"github.com/aplane-algo/srcseal/internal/manifest"
	"github.com/aplane-algo/srcseal/internal/seal"
	"github.com/aplane-algo/srcseal/internal/store"
	"github.com/aplane-algo/srcseal/internal/validator"
)

type level int

const (
	levelOK level = iota
	levelWarn
	levelFail
	levelInfo
)

// statusLine is one row of the status report.
type statusLine struct {
	label  string
	level  level
	detail string
}

// statusStyles renders with the colour profile of the output writer, so
// piped output stays plain.
type statusStyles struct {
	title, label, ok, warn, fail, info lipgloss.Style
}

func newStatusStyles(r *lipgloss.Renderer) statusStyles {
	return statusStyles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1),
		label: r.NewStyle().Foreground(lipgloss.Color("241")).Width(20),
		ok:    r.NewStyle().Foreground(lipgloss.Color("42")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("214")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		info:  r.NewStyle(),
	}
}

func (s statusStyles) render(l statusLine) string {
	style := s.info
	switch l.level {
	case levelOK:
		style = s.ok
	case levelWarn:
		style = s.warn
	case levelFail:
		style = s.fail
	}
	return s.label.Render(l.label) + style.Render(l.detail)
}

// cmdStatus reports artifacts and cached state. It never hashes the tree
// and never creates files.
func (c *cli) cmdStatus() error {
	lines := collectStatus(c.cfg.KeysDir, c.cfg.PrivateKeyPath(), c.cfg.PublicKeyPath(),
		c.cfg.DeployRoot, c.cfg.SourceHash, c.cfg.CriticalManifest, store.NewFileStore(c.cfg.StateDir), time.Now())

	enforcement := statusLine{label: "Enforcement", level: levelOK, detail: "on"}
	if !c.cfg.EnforceEnabled() {
		enforcement = statusLine{label: "Enforcement", level: levelWarn, detail: "report-only"}
	}
	lines = append([]statusLine{
		{label: "App root", level: levelInfo, detail: c.cfg.AppRoot},
		enforcement,
	}, lines...)

	styles := newStatusStyles(lipgloss.NewRenderer(c.out))
	var b strings.Builder
	b.WriteString(styles.title.Render("srcseal status"))
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(styles.render(l))
		b.WriteString("\n")
	}
	_, err := fmt.Fprint(c.out, b.String())
	return err
}

func collectStatus(keysDir, privPath, pubPath, deployRoot, refPath, manifestPath string, state *store.FileStore, now time.Time) []statusLine {
	var lines []statusLine

	switch data, err := os.ReadFile(privPath); {
	case err != nil:
		lines = append(lines, statusLine{"Private key", levelInfo, "not present in " + keysDir})
	case crypto.IsEnvelope(data):
		lines = append(lines, statusLine{"Private key", levelWarn, "present (encrypted); keep it offline"})
		crypto.ZeroBytes(data)
	default:
		lines = append(lines, statusLine{"Private key", levelWarn, "present; keep it offline"})
		crypto.ZeroBytes(data)
	}
	if _, err := seal.LoadPublicKey(pubPath); err != nil {
		lines = append(lines, statusLine{"Public key", levelInfo, "not available"})
	} else {
		lines = append(lines, statusLine{"Public key", levelOK, pubPath})
	}

	_, found, err := seal.LoadArtifacts(deployRoot)
	switch {
	case !found:
		lines = append(lines, statusLine{"Signature", levelInfo, "not deployed (check disabled)"})
	case errors.Is(err, seal.ErrIncompleteArtifacts):
		lines = append(lines, statusLine{"Signature", levelFail, "incomplete artifacts; requests fail closed"})
	case err != nil:
		lines = append(lines, statusLine{"Signature", levelFail, err.Error()})
	default:
		lines = append(lines, statusLine{"Signature", levelOK, "deployed in " + deployRoot})
	}

	if ref, err := os.ReadFile(refPath); err != nil || strings.TrimSpace(string(ref)) == "" {
		lines = append(lines, statusLine{"Reference digest", levelFail, "missing; validator fails closed"})
	} else {
		lines = append(lines, statusLine{"Reference digest", levelOK, abbreviate(strings.TrimSpace(string(ref)))})
	}

	if mf, err := manifest.Load(manifestPath); err != nil {
		lines = append(lines, statusLine{"Critical manifest", levelFail, "unusable; gate fails closed"})
	} else {
		lines = append(lines, statusLine{"Critical manifest", levelOK, fmt.Sprintf("%d files", len(mf.Entries))})
	}

	var rec validator.Record
	if !state.GetJSON(validator.CacheKey, &rec) {
		lines = append(lines, statusLine{"Validation cache", levelInfo, "empty"})
	} else {
		result, lvl := "valid", levelOK
		if !rec.Result {
			result, lvl = "INVALID", levelFail
		}
		lines = append(lines, statusLine{"Validation cache", lvl,
			fmt.Sprintf("%s, %s ago", result, age(now, rec.Timestamp))})
	}

	if last, ok := state.GetInt64(gate.DefaultSentinelKey); ok {
		lines = append(lines, statusLine{"Gate last check", levelInfo, age(now, last) + " ago"})
	} else {
		lines = append(lines, statusLine{"Gate last check", levelInfo, "never"})
	}

	return lines
}

func abbreviate(digest string) string {
	if len(digest) <= 16 {
		return digest
	}
	return digest[:16] + "..."
}

func age(now time.Time, unix int64) string {
	return now.Sub(time.Unix(unix, 0)).Truncate(time.Second).String()
}
