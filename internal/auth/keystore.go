// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/mgchat/internal/util"
)

// Keystore format constants.
const (
	saltSize  = 32
	nonceSize = 12
	keySize   = 32
	// pbkdf2Iterations follows the OWASP recommendation for PBKDF2-SHA-256.
	pbkdf2Iterations = 600000

	tokenFile  = "token.enc"
	secretFile = "machine.key"
)

var (
	// ErrNoToken indicates no token is stored.
	ErrNoToken = errors.New("no stored token")
	// ErrTokenCorrupt indicates the token file failed authentication.
	ErrTokenCorrupt = errors.New("stored token is corrupt")
)

// =============================================================================
// TOKEN STORE
// =============================================================================

// TokenStore persists the bearer token encrypted at rest. The token is
// sealed with AES-256-GCM under a key derived from a random machine-local
// secret, so a copied token file is useless on another machine.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a store rooted at dir.
func NewTokenStore(dir string) (*TokenStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create auth directory: %w", err)
	}
	return &TokenStore{dir: dir}, nil
}

// Save encrypts and stores the token.
func (s *TokenStore) Save(token string) error {
	secret, err := s.machineSecret()
	if err != nil {
		return err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key(secret, salt, pbkdf2Iterations, keySize, sha256.New)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(token), nil)

	// File layout: salt | nonce | ciphertext.
	payload := make([]byte, 0, saltSize+nonceSize+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	return util.AtomicWriteFile(filepath.Join(s.dir, tokenFile), payload, 0600)
}

// Load decrypts and returns the stored token. Returns ErrNoToken when none
// is stored.
func (s *TokenStore) Load() (string, error) {
	payload, err := os.ReadFile(filepath.Join(s.dir, tokenFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	if len(payload) < saltSize+nonceSize+1 {
		return "", ErrTokenCorrupt
	}

	secret, err := s.machineSecret()
	if err != nil {
		return "", err
	}

	salt := payload[:saltSize]
	nonce := payload[saltSize : saltSize+nonceSize]
	sealed := payload[saltSize+nonceSize:]

	key := pbkdf2.Key(secret, salt, pbkdf2Iterations, keySize, sha256.New)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	token, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrTokenCorrupt
	}
	return string(token), nil
}

// Delete removes the stored token. Deleting an absent token is not an error.
func (s *TokenStore) Delete() error {
	err := os.Remove(filepath.Join(s.dir, tokenFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether a token file is present.
func (s *TokenStore) Exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, tokenFile))
	return err == nil
}

// machineSecret returns the random per-machine secret, creating it on first
// use.
func (s *TokenStore) machineSecret() ([]byte, error) {
	path := filepath.Join(s.dir, secretFile)
	secret, err := os.ReadFile(path)
	if err == nil && len(secret) == keySize {
		return secret, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read machine secret: %w", err)
	}

	secret = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("failed to generate machine secret: %w", err)
	}
	if err := util.AtomicWriteFile(path, secret, 0600); err != nil {
		return nil, err
	}
	return secret, nil
}

// zero wipes key material.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
