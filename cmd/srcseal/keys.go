// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aplane-algo/srcseal/internal/crypto"
	"github.com/aplane-algo/srcseal/internal/seal"
)

var (
	errPassphraseMismatch = errors.New("passphrases do not match")
	errKeyMismatch        = errors.New("public.pem does not belong to private.pem")
)

// cmdKeygen writes a fresh keypair to keys_dir.
func (c *cli) cmdKeygen(encrypt bool) error {
	kp, err := seal.GenerateKeyPair()
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(kp.PrivateKey)

	var passphrase []byte
	if encrypt {
		if passphrase, err = c.newPassphrase(); err != nil {
			return err
		}
		defer crypto.ZeroBytes(passphrase)
	}

	if err := seal.WriteKeyPair(c.cfg.KeysDir, kp, passphrase); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Generated Ed25519 signing key")
	fmt.Fprintf(c.out, "  private: %s", c.cfg.PrivateKeyPath())
	if encrypt {
		fmt.Fprint(c.out, " (encrypted)")
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  public:  %s\n", c.cfg.PublicKeyPath())
	fmt.Fprintln(c.out, "Keep private.pem offline; only integrity.pub is deployed.")
	return nil
}

// newPassphrase prompts twice and requires both entries to match.
func (c *cli) newPassphrase() ([]byte, error) {
	first, err := c.readPassphrase("New passphrase: ")
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, crypto.ErrEmptyPassphrase
	}
	second, err := c.readPassphrase("Confirm passphrase: ")
	if err != nil {
		crypto.ZeroBytes(first)
		return nil, err
	}
	defer crypto.ZeroBytes(second)
	if !bytes.Equal(first, second) {
		crypto.ZeroBytes(first)
		return nil, errPassphraseMismatch
	}
	return first, nil
}

// cmdSign signs the configured roots and deploys the artifacts.
func (c *cli) cmdSign(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	kp, err := seal.LoadPrivateKey(c.cfg.PrivateKeyPath(), func() ([]byte, error) {
		return c.readPassphrase("Passphrase for " + c.cfg.PrivateKeyPath() + ": ")
	})
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(kp.PrivateKey)

	pub, err := seal.LoadPublicKey(c.cfg.PublicKeyPath())
	if err != nil {
		return err
	}
	if !bytes.Equal(pub, kp.PublicKey) {
		return errKeyMismatch
	}

	engine, err := c.cfg.SignEngine()
	if err != nil {
		return err
	}
	var files int
	engine.OnScan = func(n int) { files = n }

	aggregate, err := engine.ScanNonEmpty(ctx, c.cfg.Roots())
	if err != nil {
		return fmt.Errorf("failed to digest %s: %w", c.cfg.AppRoot, err)
	}
	signature, err := seal.SignDigest(aggregate, kp.PrivateKey)
	if err != nil {
		return err
	}
	if err := seal.WriteArtifacts(c.cfg.DeployRoot, signature, c.cfg.PublicKeyPath()); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Signed %d files under %s\n", files, c.cfg.AppRoot)
	fmt.Fprintf(c.out, "  digest:    %s\n", aggregate)
	fmt.Fprintf(c.out, "  signature: %s\n", signature)
	fmt.Fprintf(c.out, "Deployed %s and %s to %s\n", seal.SignatureFile, seal.DeployedKeyFile, c.cfg.DeployRoot)
	return nil
}

// cmdVerify checks the deployed signature against a fresh digest.
func (c *cli) cmdVerify(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	artifacts, found, err := seal.LoadArtifacts(c.cfg.DeployRoot)
	if !found {
		fmt.Fprintf(c.out, "No signature artifacts in %s; signature check disabled\n", c.cfg.DeployRoot)
		return nil
	}
	if err != nil {
		return err
	}

	engine, err := c.cfg.SignEngine()
	if err != nil {
		return err
	}
	v := &seal.Verifier{
		Engine:    engine,
		Roots:     c.cfg.Roots(),
		PublicKey: artifacts.DecodedPublicKey(),
		Signature: artifacts.Signature,
		Logger:    c.logger,
	}
	if !v.Verify(ctx) {
		return &exitError{code: 1, msg: "signature verification FAILED"}
	}
	fmt.Fprintln(c.out, "Signature OK")
	return nil
}
