// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

// Package envelope implements the authenticated per-record encryption used
// at the storage boundary: AES-256-GCM with associated data binding each
// ciphertext to its record identity and revision.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/KhylleVillasurda/Notequarry/models"
)

const (
	// KeyLength is the AES-256 key size in bytes.
	KeyLength = 32

	// NonceLength is the GCM nonce size in bytes (96 bits).
	NonceLength = 12
)

var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("envelope: invalid key length, must be 32 bytes")

	// ErrCiphertextTooShort indicates the ciphertext is shorter than the GCM tag.
	ErrCiphertextTooShort = errors.New("envelope: ciphertext too short")
)

// Seal encrypts plaintext under key, binding ad into the authentication tag.
// Every call draws a fresh random nonce from the OS CSPRNG; the nonce is
// returned inside the record and persisted with it. Nonce uniqueness per
// (key, record) is structural: callers can neither supply nor reuse a nonce.
func Seal(key []byte, ad models.AssociatedData, plaintext []byte) (models.EncryptedRecord, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return models.EncryptedRecord{}, err
	}

	nonce := make([]byte, NonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return models.EncryptedRecord{}, fmt.Errorf("envelope: generate nonce: %w", err)
	}

	return models.EncryptedRecord{
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, ad.Encode()),
	}, nil
}

// Open decrypts rec under key and ad. Any mismatch — flipped ciphertext bit,
// altered nonce, or associated data that does not match the seal-time
// identity/revision — fails closed with [models.ErrDecryptionFailure] and no
// partial plaintext.
func Open(key []byte, ad models.AssociatedData, rec models.EncryptedRecord) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(rec.Nonce) != NonceLength {
		return nil, models.ErrDecryptionFailure
	}
	if len(rec.Ciphertext) < gcm.Overhead() {
		return nil, fmt.Errorf("%w: %w", models.ErrDecryptionFailure, ErrCiphertextTooShort)
	}

	plaintext, err := gcm.Open(nil, rec.Nonce, rec.Ciphertext, ad.Encode())
	if err != nil {
		return nil, models.ErrDecryptionFailure
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: create gcm: %w", err)
	}

	return gcm, nil
}
