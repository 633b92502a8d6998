// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "state"))

	if _, ok := s.Get("validation.cache"); ok {
		t.Fatal("expected miss on empty store")
	}
	if err := s.Put("validation.cache", []byte(`{"result":true}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := s.Get("validation.cache")
	if !ok || string(got) != `{"result":true}` {
		t.Errorf("Get = %q, %v", got, ok)
	}
}

func TestInt64(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int64
		wantOK bool
	}{
		{"plain", "1700000000", 1700000000, true},
		{"trailing newline", "42\n", 42, true},
		{"negative", "-5", -5, true},
		{"garbage", "12ab", 0, false},
		{"empty", "", 0, false},
		{"truncated json", `{"res`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewFileStore(t.TempDir())
			if err := s.Put("k", []byte(tt.raw)); err != nil {
				t.Fatal(err)
			}
			got, ok := s.GetInt64("k")
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("GetInt64 = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCorruptJSONIsMiss(t *testing.T) {
	s := NewFileStore(t.TempDir())
	if err := s.Put("validation.cache", []byte(`{"result":tr`)); err != nil {
		t.Fatal(err)
	}
	var rec struct {
		Result bool `json:"result"`
	}
	if s.GetJSON("validation.cache", &rec) {
		t.Error("corrupt JSON must be reported as a miss")
	}
}

func TestInvalidKeys(t *testing.T) {
	s := NewFileStore(t.TempDir())
	for _, key := range []string{"", ".", "..", "../escape", "a/b", `a\b`} {
		if err := s.Put(key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
		}
		if _, ok := s.Get(key); ok {
			t.Errorf("Get(%q) should miss", key)
		}
	}
}

func TestDelete(t *testing.T) {
	s := NewFileStore(t.TempDir())
	if err := s.Delete("absent"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
	if err := s.PutInt64("k", 7); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.GetInt64("k"); ok {
		t.Error("key still present after Delete")
	}
}

func TestMACKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "cache.key")

	key, err := LoadOrCreateMACKey(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := LoadOrCreateMACKey(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(key) != string(again) {
		t.Error("reloaded key differs")
	}

	sum := Sum(key, []byte("true|1|2"))
	if !VerifySum(key, []byte("true|1|2"), sum) {
		t.Error("VerifySum rejected a valid MAC")
	}
	if VerifySum(key, []byte("true|1|3"), sum) {
		t.Error("VerifySum accepted a MAC for different data")
	}
	if VerifySum(key, []byte("true|1|2"), "zz") {
		t.Error("VerifySum accepted malformed hex")
	}

	if err := os.WriteFile(path, []byte("short"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreateMACKey(path); !errors.Is(err, ErrInvalidMACKey) {
		t.Errorf("expected ErrInvalidMACKey, got %v", err)
	}
}
