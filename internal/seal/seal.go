// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package seal signs and verifies the aggregate digest of a deployed tree
// with detached Ed25519 signatures.
//
// The signed message is the ASCII bytes of the lowercase hex aggregate
// digest, not the raw 32-byte hash. Signing happens offline with the private
// key; verification needs only the public key and always rescans the tree.
package seal

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"filippo.io/edwards25519"

	"github.com/aplane-algo/srcseal/internal/digest"
)

// KeyPair is an Ed25519 signing key pair.
type KeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// Seed returns the 32-byte private seed, which is what key files store.
func (kp *KeyPair) Seed() []byte {
	return kp.PrivateKey.Seed()
}

// GenerateKeyPair creates a fresh random key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

// KeyPairFromSeed rebuilds a key pair from its 32-byte seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	priv, err := privateKey(seed)
	if err != nil {
		return nil, err
	}
	return &KeyPair{PrivateKey: priv, PublicKey: priv.Public().(ed25519.PublicKey)}, nil
}

// privateKey accepts a 32-byte seed or a 64-byte expanded key.
func privateKey(key []byte) (ed25519.PrivateKey, error) {
	switch len(key) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	case ed25519.PrivateKeySize:
		// The expanded form carries its public half; reject a mismatched pair.
		derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
		if !bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:]) {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidPrivateKey)
		}
		return derived, nil
	default:
		return nil, fmt.Errorf("%w: expected %d or %d bytes, got %d",
			ErrInvalidPrivateKey, ed25519.SeedSize, ed25519.PrivateKeySize, len(key))
	}
}

// CheckPublicKey verifies length and that the key decodes to a point on
// edwards25519.
func CheckPublicKey(pub []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(pub))
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return fmt.Errorf("%w: not on the curve", ErrInvalidPublicKey)
	}
	return nil
}

// DecodeSignature decodes a base64 detached signature.
func DecodeSignature(sig string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sig))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if len(raw) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, ed25519.SignatureSize, len(raw))
	}
	return raw, nil
}

// SignDigest signs an aggregate digest and returns the base64 signature.
func SignDigest(aggregate string, key []byte) (string, error) {
	priv, err := privateKey(key)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(priv, []byte(aggregate))
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Sign scans roots with e and signs the resulting aggregate digest. A tree
// with no included file is refused with digest.ErrNoFiles.
func Sign(ctx context.Context, e *digest.Engine, roots []string, key []byte) (string, error) {
	aggregate, err := e.ScanNonEmpty(ctx, roots)
	if err != nil {
		return "", fmt.Errorf("failed to compute digest: %w", err)
	}
	return SignDigest(aggregate, key)
}

// VerifyDigest checks a base64 signature over an aggregate digest.
// Malformed input is a failed verification, not an error.
func VerifyDigest(aggregate string, pub []byte, sig string) bool {
	ok, _ := verifyDigest(aggregate, pub, sig)
	return ok
}

func verifyDigest(aggregate string, pub []byte, sig string) (bool, string) {
	if err := CheckPublicKey(pub); err != nil {
		return false, err.Error()
	}
	raw, err := DecodeSignature(sig)
	if err != nil {
		return false, err.Error()
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(aggregate), raw) {
		return false, "signature mismatch"
	}
	return true, ""
}

// Verify rescans roots and checks sig against the fresh aggregate digest.
// Every tamper or input condition yields false, including a scan that
// includes no file; the error is non-nil only
// for an empty root list.
func Verify(ctx context.Context, e *digest.Engine, roots []string, pub []byte, sig string) (bool, error) {
	ok, _, err := verify(ctx, e, roots, pub, sig)
	return ok, err
}

func verify(ctx context.Context, e *digest.Engine, roots []string, pub []byte, sig string) (bool, string, error) {
	if len(roots) == 0 {
		return false, "", digest.ErrNoRoots
	}
	aggregate, err := e.ScanNonEmpty(ctx, roots)
	if err != nil {
		if errors.Is(err, digest.ErrNoRoots) {
			return false, "", err
		}
		return false, "scan failed: " + err.Error(), nil
	}
	ok, reason := verifyDigest(aggregate, pub, sig)
	return ok, reason, nil
}

// Verifier binds deployed artifacts to a tree for repeated verification.
type Verifier struct {
	Engine    *digest.Engine
	Roots     []string
	PublicKey []byte
	Signature string
	Logger    *slog.Logger
}

// Verify reports whether the tree still matches the deployed signature.
// Failures are logged with their cause; callers only see the boolean.
func (v *Verifier) Verify(ctx context.Context) bool {
	ok, reason, err := verify(ctx, v.Engine, v.Roots, v.PublicKey, v.Signature)
	if err != nil {
		// Misconfiguration: never report a tree as valid without scanning it.
		v.logger().Error("signature verification misconfigured", "error", err)
		return false
	}
	if !ok {
		v.logger().Error("signature verification failed", "reason", reason)
	}
	return ok
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return v.Logger
}
