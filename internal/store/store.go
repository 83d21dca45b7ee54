// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

// Package store implements the durable vault: CRUD over entries and pages
// with encryption applied transparently at the storage boundary. Domain
// objects above the store are always plaintext; everything persisted is an
// encrypted record. Every mutating operation runs in a single transaction
// that commits ciphertext and sync manifest together or not at all.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KhylleVillasurda/Notequarry/internal/envelope"
	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/models"
)

// Store is the SQLite-backed vault store. It is safe for one mutator at a
// time; the session layer serializes mutations.
type Store struct {
	db     *sql.DB
	logger *logger.Logger

	vaultID string
	key     []byte

	// now is a clock hook for tests.
	now func() time.Time
}

// New wraps an already-open database. Used directly by tests; production
// wiring goes through [OpenDB] first.
func New(db *sql.DB, log *logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log,
		now:    time.Now,
	}
}

// Open opens the vault database at path and returns a locked Store.
func Open(ctx context.Context, path string, log *logger.Logger) (*Store, error) {
	db, err := OpenDB(ctx, path, log)
	if err != nil {
		return nil, err
	}
	return New(db, log), nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// LoadHeader reads the vault header row. ok is false when the database is
// fresh and no vault has been created yet.
func (s *Store) LoadHeader(ctx context.Context) (hdr models.VaultHeader, ok bool, err error) {
	var createdAt int64
	row := s.db.QueryRowContext(ctx, getVaultHeader)
	scanErr := row.Scan(
		&hdr.VaultID,
		&hdr.SchemaVersion,
		&hdr.KDF.Version,
		&hdr.KDF.Time,
		&hdr.KDF.MemoryKiB,
		&hdr.KDF.Threads,
		&hdr.KDF.KeyLen,
		&hdr.Salt,
		&hdr.Verifier,
		&createdAt,
	)
	if scanErr == sql.ErrNoRows {
		return models.VaultHeader{}, false, nil
	}
	if scanErr != nil {
		return models.VaultHeader{}, false, fmt.Errorf("failed to scan vault header: %w", scanErr)
	}

	hdr.CreatedAt = time.Unix(createdAt, 0).UTC()
	return hdr, true, nil
}

// InitVault persists the header of a newly created vault.
func (s *Store) InitVault(ctx context.Context, hdr models.VaultHeader) error {
	if _, ok, err := s.LoadHeader(ctx); err != nil {
		return err
	} else if ok {
		return ErrVaultAlreadyInitialized
	}

	_, err := s.db.ExecContext(ctx, insertVaultHeader,
		hdr.VaultID,
		hdr.SchemaVersion,
		hdr.KDF.Version,
		hdr.KDF.Time,
		hdr.KDF.MemoryKiB,
		hdr.KDF.Threads,
		hdr.KDF.KeyLen,
		hdr.Salt,
		hdr.Verifier,
		hdr.CreatedAt.Unix(),
	)
	if err != nil {
		s.logger.Err(err).Str("func", "Store.InitVault").Msg("failed to insert vault header")
		return fmt.Errorf("failed to insert vault header: %w", err)
	}

	return nil
}

// Unlock attaches the verified master key. Record operations fail with
// [ErrVaultNotInitialized] until this is called.
func (s *Store) Unlock(vaultID string, key []byte) {
	s.vaultID = vaultID
	s.key = key
}

// Lock drops the key reference. The key material itself is zeroed by the
// key manager that owns it.
func (s *Store) Lock() {
	s.key = nil
	s.vaultID = ""
}

func (s *Store) requireKey() error {
	if s.key == nil {
		return ErrVaultNotInitialized
	}
	return nil
}

// headerAD builds the associated data of an entry's header record. Header
// records use page index 0.
func (s *Store) headerAD(entryID string, revision, updatedAt int64) models.AssociatedData {
	return models.AssociatedData{
		VaultID:   s.vaultID,
		EntryID:   entryID,
		PageIndex: 0,
		Revision:  revision,
		SealedAt:  updatedAt,
	}
}

func (s *Store) pageAD(entryID string, index int, revision, sealedAt int64) models.AssociatedData {
	return models.AssociatedData{
		VaultID:   s.vaultID,
		EntryID:   entryID,
		PageIndex: index,
		Revision:  revision,
		SealedAt:  sealedAt,
	}
}

func (s *Store) sealHeader(entryID string, hdr models.EntryHeader, revision, updatedAt int64) (models.EncryptedRecord, error) {
	plaintext, err := json.Marshal(hdr)
	if err != nil {
		return models.EncryptedRecord{}, fmt.Errorf("marshal entry header: %w", err)
	}
	return envelope.Seal(s.key, s.headerAD(entryID, revision, updatedAt), plaintext)
}

func (s *Store) openHeader(entryID string, rec models.EncryptedRecord, revision, updatedAt int64) (models.EntryHeader, error) {
	plaintext, err := envelope.Open(s.key, s.headerAD(entryID, revision, updatedAt), rec)
	if err != nil {
		return models.EntryHeader{}, err
	}
	var hdr models.EntryHeader
	if err := json.Unmarshal(plaintext, &hdr); err != nil {
		return models.EntryHeader{}, fmt.Errorf("%w: unmarshal entry header: %w", models.ErrDecryptionFailure, err)
	}
	return hdr, nil
}

func (s *Store) sealPage(entryID string, index int, text string, revision, sealedAt int64) (models.EncryptedRecord, error) {
	return envelope.Seal(s.key, s.pageAD(entryID, index, revision, sealedAt), []byte(text))
}

func (s *Store) openPage(entryID string, index int, rec models.EncryptedRecord, revision, sealedAt int64) (string, error) {
	plaintext, err := envelope.Open(s.key, s.pageAD(entryID, index, revision, sealedAt), rec)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func unixUTC(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// inTx runs fn inside a transaction, rolling back on any error so that
// ciphertext and manifest changes commit together or not at all.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Err(rbErr).Str("func", "Store.inTx").Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
