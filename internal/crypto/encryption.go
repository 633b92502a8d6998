// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package crypto provides passphrase protection for private key files at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters (OWASP recommended)
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // AES-256

	saltLen = 32

	// envelopeVersion identifies the passphrase envelope format.
	envelopeVersion = 1
)

// Envelope is a self-contained encrypted blob. It embeds its own Argon2id
// salt so it can be opened with only the file contents and the passphrase.
type Envelope struct {
	EnvelopeVersion int    `json:"envelope_version"`
	KDF             string `json:"kdf"`
	Salt            string `json:"salt"`       // Base64-encoded random salt
	Nonce           string `json:"nonce"`      // Base64-encoded AES-GCM nonce
	Ciphertext      string `json:"ciphertext"` // Base64-encoded AES-GCM output
}

// IsEnvelope reports whether data looks like an encrypted envelope rather
// than a plain key file.
func IsEnvelope(data []byte) bool {
	var env Envelope
	return json.Unmarshal(data, &env) == nil && env.EnvelopeVersion > 0
}

// deriveKey derives an AES-256 key from passphrase and salt using Argon2id.
// Caller is responsible for zeroing the returned key when done.
func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext under a passphrase-derived key and returns the
// JSON envelope.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	env := Envelope{
		EnvelopeVersion: envelopeVersion,
		KDF:             "argon2id",
		Salt:            base64.StdEncoding.EncodeToString(salt),
		Nonce:           base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:      base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	}
	return json.MarshalIndent(env, "", "  ")
}

// Open decrypts an envelope produced by Seal. A wrong passphrase and a
// corrupted envelope both return ErrDecrypt.
func Open(data, passphrase []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if env.EnvelopeVersion != envelopeVersion {
		return nil, fmt.Errorf("%w: envelope_version %d not supported", ErrMalformedEnvelope, env.EnvelopeVersion)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %w", ErrMalformedEnvelope, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %w", ErrMalformedEnvelope, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %w", ErrMalformedEnvelope, err)
	}

	key := deriveKey(passphrase, salt)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d", ErrMalformedEnvelope, len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
