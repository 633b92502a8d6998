// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package seal

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aplane-algo/srcseal/internal/crypto"
	"github.com/aplane-algo/srcseal/internal/fsutil"
)

// File names of the key and deployment artifacts. These are shared with
// artifacts produced by other tooling and must not change.
const (
	PrivateKeyFile  = "private.pem"
	PublicKeyFile   = "public.pem"
	SignatureFile   = "integrity.sig"
	DeployedKeyFile = "integrity.pub"
)

// ArtifactExcludes are always left out of the signed tree: the signature
// cannot cover itself.
var ArtifactExcludes = []string{SignatureFile, DeployedKeyFile}

// PassphraseFunc supplies the passphrase for an encrypted private key.
type PassphraseFunc func() ([]byte, error)

// WriteKeyPair stores kp under dir as base64 text. The directory is created
// 0700 and both files 0600. A non-empty passphrase wraps the private key in
// an Argon2id/AES-GCM envelope. Existing private keys are never overwritten.
func WriteKeyPair(dir string, kp *KeyPair, passphrase []byte) error {
	privPath := filepath.Join(dir, PrivateKeyFile)
	if _, err := os.Stat(privPath); err == nil {
		return fmt.Errorf("%w: %s", ErrKeyExists, privPath)
	}
	if err := fsutil.MkdirAll(dir, fsutil.KeyDirPerm); err != nil {
		return fmt.Errorf("failed to create keys directory: %w", err)
	}

	privText := []byte(base64.StdEncoding.EncodeToString(kp.Seed()) + "\n")
	defer crypto.ZeroBytes(privText)
	if len(passphrase) > 0 {
		sealed, err := crypto.Seal(privText, passphrase)
		if err != nil {
			return fmt.Errorf("failed to encrypt private key: %w", err)
		}
		privText = sealed
	}

	if err := fsutil.WriteFileAtomic(privPath, privText, fsutil.KeyFilePerm); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	pubText := []byte(base64.StdEncoding.EncodeToString(kp.PublicKey) + "\n")
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, PublicKeyFile), pubText, fsutil.KeyFilePerm); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

// LoadPrivateKey reads a private key file. passphrase is consulted only
// when the file is encrypted.
func LoadPrivateKey(path string, passphrase PassphraseFunc) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	defer crypto.ZeroBytes(data)

	if crypto.IsEnvelope(data) {
		if passphrase == nil {
			return nil, ErrPassphraseRequired
		}
		pass, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
		opened, err := crypto.Open(data, pass)
		crypto.ZeroBytes(pass)
		if err != nil {
			return nil, err
		}
		defer crypto.ZeroBytes(opened)
		data = opened
	}

	raw, err := DecodeKeyText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	defer crypto.ZeroBytes(raw)
	return KeyPairFromSeed(raw)
}

// LoadPublicKey reads and validates a public key file (public.pem or
// integrity.pub).
func LoadPublicKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return ParsePublicKey(data)
}

// ParsePublicKey decodes and validates public key file contents.
func ParsePublicKey(data []byte) ([]byte, error) {
	raw, err := DecodeKeyText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	if err := CheckPublicKey(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DecodeKeyText decodes key file contents: either bare base64 text or a PEM
// block whose body is the raw key.
func DecodeKeyText(data []byte) ([]byte, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "-----BEGIN") {
		block, _ := pem.Decode([]byte(text))
		if block == nil {
			return nil, errors.New("malformed PEM block")
		}
		return block.Bytes, nil
	}
	return base64.StdEncoding.DecodeString(text)
}

// WriteArtifacts writes integrity.sig and copies the public key file to
// integrity.pub under deployRoot.
func WriteArtifacts(deployRoot, signature, publicKeyPath string) error {
	pub, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	if _, err := ParsePublicKey(pub); err != nil {
		return err
	}
	if _, err := DecodeSignature(signature); err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(filepath.Join(deployRoot, SignatureFile), []byte(signature), fsutil.PublicFilePerm); err != nil {
		return fmt.Errorf("failed to write signature: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(deployRoot, DeployedKeyFile), pub, fsutil.PublicFilePerm); err != nil {
		return fmt.Errorf("failed to write deployed public key: %w", err)
	}
	return nil
}

// Artifacts are the deployed signature and public key, as read from disk.
// Decoding is deferred to verification so malformed files verify as false.
type Artifacts struct {
	Signature string
	PublicKey string
}

// LoadArtifacts reads integrity.sig and integrity.pub from deployRoot.
// found is false when neither file exists (signature checking disabled).
// Exactly one present is ErrIncompleteArtifacts.
func LoadArtifacts(deployRoot string) (a *Artifacts, found bool, err error) {
	sig, sigErr := os.ReadFile(filepath.Join(deployRoot, SignatureFile))
	pub, pubErr := os.ReadFile(filepath.Join(deployRoot, DeployedKeyFile))

	sigMissing := errors.Is(sigErr, os.ErrNotExist)
	pubMissing := errors.Is(pubErr, os.ErrNotExist)
	switch {
	case sigMissing && pubMissing:
		return nil, false, nil
	case sigMissing || pubMissing:
		return nil, true, ErrIncompleteArtifacts
	case sigErr != nil:
		return nil, true, fmt.Errorf("failed to read signature: %w", sigErr)
	case pubErr != nil:
		return nil, true, fmt.Errorf("failed to read deployed public key: %w", pubErr)
	}
	return &Artifacts{Signature: strings.TrimSpace(string(sig)), PublicKey: string(pub)}, true, nil
}

// DecodedPublicKey returns the raw public key, or nil if it is malformed.
func (a *Artifacts) DecodedPublicKey() []byte {
	pub, err := ParsePublicKey([]byte(a.PublicKey))
	if err != nil {
		return nil
	}
	return pub
}
