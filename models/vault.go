// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package models

import "time"

// SchemaVersion is the current on-disk schema version of the vault database.
const SchemaVersion = 1

// KDFParams are the password-derivation cost parameters of a vault. They are
// fixed at vault creation and stored in cleartext alongside the salt, so the
// defaults can evolve across application versions without breaking vaults
// created under older costs. Version tags the parameter set.
type KDFParams struct {
	// Version identifies the derivation construction. Version 1 is
	// Argon2id with the costs below.
	Version int

	// Time is the Argon2id iteration count.
	Time uint32

	// MemoryKiB is the Argon2id memory cost in KiB.
	MemoryKiB uint32

	// Threads is the Argon2id parallelism degree.
	Threads uint8

	// KeyLen is the derived key length in bytes.
	KeyLen uint32
}

// VaultHeader is the non-secret persisted state of a vault: everything
// needed to re-derive and verify the master key, and nothing that helps
// recover it. The verifier is a domain-separated hash of the derived key,
// safe to store because the memory-hard derivation already gates guessing.
type VaultHeader struct {
	// VaultID is a stable identifier minted at creation, bound into every
	// record's associated data.
	VaultID string

	SchemaVersion int

	KDF KDFParams

	// Salt is the random per-vault KDF salt.
	Salt []byte

	// Verifier is the non-secret value a candidate key is checked against
	// on unlock. A mismatch is reported as authentication failure without
	// distinguishing a wrong password from a corrupt vault.
	Verifier []byte

	CreatedAt time.Time
}
