// Package cryptox contains the symmetric encryption used for secrets at rest
// and the bcrypt helpers used for the role passwords.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/resumegate/internal/common"
)

const envelopeSeparator = ":"

// TokenVault encrypts long-lived refresh tokens before they are persisted.
//
// The AES-256 key is derived as sha256(secret), so any non-empty operator
// secret works. Every call to Encrypt draws a fresh 12-byte nonce, which
// makes encryption nondeterministic: the same token never yields the same
// envelope twice.
//
// Envelope format:
//
//	hex(nonce) ":" hex(ciphertext || gcm tag)
//
// Example:
//
//	vault, err := cryptox.NewTokenVault(cfg.TokenEncryptionKey)
//	if err != nil {
//	    return err
//	}
//
//	sealed, err := vault.Encrypt(tok.RefreshToken)
//	if err != nil {
//	    return err
//	}
//	user.RefreshToken = sealed
//
//	plain, err := vault.Decrypt(user.RefreshToken)
//	if errors.Is(err, common.ErrDecrypt) {
//	    // envelope is corrupt or was sealed with another key
//	}
type TokenVault struct {
	aead cipher.AEAD
}

// NewTokenVault derives the key from secret and prepares the AES-GCM cipher.
// An empty secret is rejected.
func NewTokenVault(secret string) (*TokenVault, error) {
	if secret == "" {
		return nil, errors.New("token encryption key is empty")
	}

	key := sha256.Sum256([]byte(secret))
	defer common.WipeByteArray(key[:])

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &TokenVault{aead: aead}, nil
}

// Encrypt seals plaintext into an envelope.
func (v *TokenVault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return hex.EncodeToString(nonce) + envelopeSeparator + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope produced by Encrypt. Any malformed input or
// authentication failure is reported as common.ErrDecrypt; garbage is never
// returned.
func (v *TokenVault) Decrypt(envelope string) (string, error) {
	nonceHex, dataHex, ok := strings.Cut(envelope, envelopeSeparator)
	if !ok {
		return "", fmt.Errorf("%w: malformed envelope", common.ErrDecrypt)
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return "", fmt.Errorf("%w: nonce: %v", common.ErrDecrypt, err)
	}
	if len(nonce) != v.aead.NonceSize() {
		return "", fmt.Errorf("%w: nonce size %d", common.ErrDecrypt, len(nonce))
	}

	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", common.ErrDecrypt, err)
	}
	if len(data) < v.aead.Overhead() {
		return "", fmt.Errorf("%w: cipher too short", common.ErrDecrypt)
	}

	plaintext, err := v.aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecrypt, err)
	}

	return string(plaintext), nil
}
