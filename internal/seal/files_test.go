// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package seal

import (
	"bytes"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aplane-algo/srcseal/internal/crypto"
)

func TestWriteLoadKeyPair(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	kp := newKeyPair(t)

	if err := WriteKeyPair(dir, kp, nil); err != nil {
		t.Fatalf("WriteKeyPair failed: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("keys dir perm = %o, want 700", info.Mode().Perm())
	}
	info, err = os.Stat(filepath.Join(dir, PrivateKeyFile))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("private key perm = %o, want 600", info.Mode().Perm())
	}

	loaded, err := LoadPrivateKey(filepath.Join(dir, PrivateKeyFile), nil)
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}
	if !bytes.Equal(loaded.PublicKey, kp.PublicKey) {
		t.Error("loaded key pair has a different public key")
	}

	pub, err := LoadPublicKey(filepath.Join(dir, PublicKeyFile))
	if err != nil {
		t.Fatalf("LoadPublicKey failed: %v", err)
	}
	if !bytes.Equal(pub, kp.PublicKey) {
		t.Error("public.pem does not hold the public key")
	}

	if err := WriteKeyPair(dir, newKeyPair(t), nil); !errors.Is(err, ErrKeyExists) {
		t.Errorf("overwrite: got %v, want ErrKeyExists", err)
	}
}

func TestEncryptedPrivateKey(t *testing.T) {
	dir := t.TempDir()
	kp := newKeyPair(t)
	pass := []byte("operator passphrase")

	if err := WriteKeyPair(dir, kp, pass); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, PrivateKeyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !crypto.IsEnvelope(data) {
		t.Fatal("private key was not encrypted")
	}

	if _, err := LoadPrivateKey(path, nil); !errors.Is(err, ErrPassphraseRequired) {
		t.Errorf("no passphrase: got %v, want ErrPassphraseRequired", err)
	}
	if _, err := LoadPrivateKey(path, func() ([]byte, error) { return []byte("wrong"), nil }); !errors.Is(err, crypto.ErrDecrypt) {
		t.Errorf("wrong passphrase: got %v, want ErrDecrypt", err)
	}
	loaded, err := LoadPrivateKey(path, func() ([]byte, error) { return []byte("operator passphrase"), nil })
	if err != nil {
		t.Fatalf("correct passphrase: %v", err)
	}
	if !bytes.Equal(loaded.PublicKey, kp.PublicKey) {
		t.Error("decrypted key differs")
	}
}

func TestParsePublicKeyFormats(t *testing.T) {
	kp := newKeyPair(t)
	b64 := base64.StdEncoding.EncodeToString(kp.PublicKey)
	pemText := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: kp.PublicKey})

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"bare base64", []byte(b64), false},
		{"base64 with newline", []byte(b64 + "\n"), false},
		{"pem block", pemText, false},
		{"garbage", []byte("%%%"), true},
		{"truncated", []byte(base64.StdEncoding.EncodeToString(kp.PublicKey[:31])), true},
		{"broken pem", []byte("-----BEGIN PUBLIC KEY-----\nnope"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := ParsePublicKey(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(pub, kp.PublicKey) {
				t.Error("decoded key differs")
			}
		})
	}
}

func TestLoadArtifacts(t *testing.T) {
	root := t.TempDir()

	if _, found, err := LoadArtifacts(root); found || err != nil {
		t.Errorf("no artifacts: found=%v err=%v; want false, nil", found, err)
	}

	if err := os.WriteFile(filepath.Join(root, SignatureFile), []byte("sig"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, found, err := LoadArtifacts(root); !found || !errors.Is(err, ErrIncompleteArtifacts) {
		t.Errorf("signature only: found=%v err=%v; want true, ErrIncompleteArtifacts", found, err)
	}

	if err := os.WriteFile(filepath.Join(root, DeployedKeyFile), []byte("not a key"), 0644); err != nil {
		t.Fatal(err)
	}
	a, found, err := LoadArtifacts(root)
	if !found || err != nil {
		t.Fatalf("both present: found=%v err=%v", found, err)
	}
	if a.Signature != "sig" {
		t.Errorf("signature = %q", a.Signature)
	}
	if a.DecodedPublicKey() != nil {
		t.Error("malformed public key decoded")
	}
}

func TestWriteArtifactsValidates(t *testing.T) {
	root := t.TempDir()
	keysDir := t.TempDir()
	kp := newKeyPair(t)
	if err := WriteKeyPair(keysDir, kp, nil); err != nil {
		t.Fatal(err)
	}
	if err := WriteArtifacts(root, "bogus", filepath.Join(keysDir, PublicKeyFile)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("got %v, want ErrInvalidSignature", err)
	}
	if _, err := os.Stat(filepath.Join(root, SignatureFile)); !os.IsNotExist(err) {
		t.Error("invalid signature was deployed")
	}
}
