// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package testutil

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// MockScanner is a critical-file scanner that reports whatever it is told.
// Safe for concurrent use.
type MockScanner struct {
	mu        sync.Mutex
	modified  bool
	calls     int
	lastPaths []string
}

// NewMockScanner creates a scanner that reports every file as unmodified.
func NewMockScanner() *MockScanner {
	return &MockScanner{}
}

// VerifySpecificFiles records the call and reports !modified.
func (m *MockScanner) VerifySpecificFiles(_ context.Context, paths []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPaths = slices.Clone(paths)
	return !m.modified
}

// SetModified controls the next results.
func (m *MockScanner) SetModified(modified bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modified = modified
}

// Calls returns how many scans ran.
func (m *MockScanner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPaths returns the paths of the most recent scan.
func (m *MockScanner) LastPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lastPaths)
}

// MockValidator is a source validator with a settable result.
type MockValidator struct {
	valid atomic.Bool
}

// NewMockValidator creates a validator returning valid.
func NewMockValidator(valid bool) *MockValidator {
	m := &MockValidator{}
	m.valid.Store(valid)
	return m
}

// IsSourceValid returns the configured result.
func (m *MockValidator) IsSourceValid(context.Context) bool {
	return m.valid.Load()
}

// SetValid changes the result.
func (m *MockValidator) SetValid(valid bool) {
	m.valid.Store(valid)
}
