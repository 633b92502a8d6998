// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

// TestIsEnvelope verifies detection of encrypted vs plain key data
func TestIsEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{"envelope", []byte(`{"envelope_version":1,"salt":"abc","nonce":"def","ciphertext":"ghi"}`), true},
		{"plain base64 key", []byte("q83vEjRWeJq83vEjRWeJq83vEjRWeJq83vEjRWeJq80="), false},
		{"empty", []byte(""), false},
		{"invalid JSON", []byte("{invalid json"), false},
		{"version 0", []byte(`{"envelope_version":0}`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEnvelope(tt.data); got != tt.expected {
				t.Errorf("IsEnvelope(%q) = %v, expected %v", tt.data, got, tt.expected)
			}
		})
	}
}

func TestSealOpen(t *testing.T) {
	secret := []byte("private-key-material-0123456789")
	pass := []byte("correct horse battery staple")

	env, err := Seal(secret, pass)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if !IsEnvelope(env) {
		t.Fatal("Seal output not recognized as an envelope")
	}
	if bytes.Contains(env, secret) {
		t.Fatal("envelope contains the plaintext")
	}

	got, err := Open(env, pass)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Errorf("Open = %q, want %q", got, secret)
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	env, err := Seal([]byte("secret"), []byte("right"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Open(env, []byte("wrong")); !errors.Is(err, ErrDecrypt) {
		t.Errorf("got %v, want ErrDecrypt", err)
	}
}

func TestOpenTamperedCiphertext(t *testing.T) {
	env, err := Seal([]byte("secret"), []byte("pass"))
	if err != nil {
		t.Fatal(err)
	}
	var e Envelope
	if err := json.Unmarshal(env, &e); err != nil {
		t.Fatal(err)
	}
	e.Ciphertext = "AAAA" + e.Ciphertext[4:]
	tampered, _ := json.Marshal(e)

	if _, err := Open(tampered, []byte("pass")); !errors.Is(err, ErrDecrypt) {
		t.Errorf("got %v, want ErrDecrypt", err)
	}
}

func TestOpenMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "hello"},
		{"unknown version", `{"envelope_version":9}`},
		{"bad salt", `{"envelope_version":1,"salt":"!!","nonce":"","ciphertext":""}`},
		{"short nonce", `{"envelope_version":1,"salt":"AAAA","nonce":"AAAA","ciphertext":"AAAA"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open([]byte(tt.data), []byte("p")); !errors.Is(err, ErrMalformedEnvelope) {
				t.Errorf("got %v, want ErrMalformedEnvelope", err)
			}
		})
	}
}

func TestSealEmptyPassphrase(t *testing.T) {
	if _, err := Seal([]byte("x"), nil); !errors.Is(err, ErrEmptyPassphrase) {
		t.Errorf("got %v, want ErrEmptyPassphrase", err)
	}
}
