// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package models

import "errors"

var (
	// ErrAuthenticationFailed is returned when the supplied password does
	// not reproduce the vault's key. It deliberately does not distinguish a
	// wrong password from a corrupt vault header.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrDecryptionFailure is returned on AEAD tag mismatch: the ciphertext,
	// nonce or associated data was altered. No plaintext is ever returned
	// alongside it.
	ErrDecryptionFailure = errors.New("decryption failed")

	// ErrInvariantViolation is returned when an operation would break a
	// structural invariant (e.g. deleting the sole page of a book). The
	// operation is rejected before any mutation.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrRemoteUnavailable is returned when the remote blob store cannot be
	// reached. A sync pass aborts cleanly and is retried on the next pass.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrNotFound is returned for lookups of unknown or tombstoned entries
	// and of missing remote blobs.
	ErrNotFound = errors.New("not found")

	// ErrLocked is returned by session operations that require an unlocked
	// vault.
	ErrLocked = errors.New("vault is locked")

	// ErrInvalidBundle is returned when a remote blob does not parse as a
	// structurally valid sync bundle.
	ErrInvalidBundle = errors.New("invalid sync bundle")
)
