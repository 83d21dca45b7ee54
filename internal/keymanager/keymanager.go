// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

// Package keymanager derives and holds the vault master key.
//
// The master key is derived from the user's password with Argon2id and lives
// only in process memory for the duration of a session. Neither the password
// nor the key is ever persisted; the vault header stores only the KDF salt,
// the cost parameters, and a non-secret verifier the candidate key is checked
// against on unlock.
package keymanager

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/KhylleVillasurda/Notequarry/models"
)

const (
	// KDFVersion1 is Argon2id. The version tag is stored with the
	// parameters so the construction can change without breaking old vaults.
	KDFVersion1 = 1

	saltLen = 16
	keyLen  = 32
)

// verifierSalt domain-separates the stored verifier from the key itself.
const verifierSalt = "notequarry/verifier/v1"

var (
	// ErrEmptyPassword is returned for an empty password on any unlock.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrUnsupportedKDFVersion is returned when the vault header carries a
	// KDF version this build does not implement.
	ErrUnsupportedKDFVersion = errors.New("unsupported kdf version")
)

// MasterKey is the 256-bit session secret. It is held only in memory and
// wiped by Zero on lock or shutdown.
type MasterKey struct {
	k []byte
}

// Bytes returns the raw key material. Callers must not retain the slice
// beyond the session; it is zeroed when the vault locks.
func (m *MasterKey) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.k
}

// Zero overwrites the key material. The MasterKey is unusable afterwards.
func (m *MasterKey) Zero() {
	if m == nil {
		return
	}
	for i := range m.k {
		m.k[i] = 0
	}
	m.k = nil
}

// Manager performs key derivation and verification for one vault.
type Manager struct {
	// params are the costs applied when creating a new vault. Unlocking an
	// existing vault always uses the parameters from its header.
	params models.KDFParams
}

// New constructs a Manager that will create new vaults with the given
// Argon2id costs.
func New(time, memoryKiB uint32, threads uint8) *Manager {
	return &Manager{
		params: models.KDFParams{
			Version:   KDFVersion1,
			Time:      time,
			MemoryKiB: memoryKiB,
			Threads:   threads,
			KeyLen:    keyLen,
		},
	}
}

// Initialize creates the key material for a brand-new vault: a random salt,
// the key derived from password, and the verifier to store in the header.
// Any non-empty password is accepted; whichever password is supplied first
// becomes the vault's root secret.
func (m *Manager) Initialize(password string) (models.KDFParams, []byte, []byte, *MasterKey, error) {
	if password == "" {
		return models.KDFParams{}, nil, nil, nil, ErrEmptyPassword
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return models.KDFParams{}, nil, nil, nil, fmt.Errorf("generate kdf salt: %w", err)
	}

	key := derive(password, salt, m.params)
	return m.params, salt, verifier(key, salt), &MasterKey{k: key}, nil
}

// Unlock re-derives the key for an existing vault and checks it against the
// stored verifier. A mismatch returns [models.ErrAuthenticationFailed]
// without revealing whether the password was wrong or the header corrupt.
func (m *Manager) Unlock(password string, hdr models.VaultHeader) (*MasterKey, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if hdr.KDF.Version != KDFVersion1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedKDFVersion, hdr.KDF.Version)
	}

	key := derive(password, hdr.Salt, hdr.KDF)
	if subtle.ConstantTimeCompare(verifier(key, hdr.Salt), hdr.Verifier) != 1 {
		for i := range key {
			key[i] = 0
		}
		return nil, models.ErrAuthenticationFailed
	}

	return &MasterKey{k: key}, nil
}

func derive(password string, salt []byte, p models.KDFParams) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)
}

// verifier computes SHA-256(key ‖ verifierSalt ‖ salt). The fixed label
// domain-separates the verifier from any other use of the key; the vault
// salt ties it to this vault.
func verifier(key, salt []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write([]byte(verifierSalt))
	h.Write(salt)
	return h.Sum(nil)
}
