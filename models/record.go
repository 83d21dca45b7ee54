// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// EncryptedRecord is the at-rest representation of one entry header or page.
// The ciphertext includes the AEAD authentication tag; the nonce is unique
// per seal and stored alongside. The record is opaque to the database and to
// any remote blob store.
type EncryptedRecord struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// AssociatedData binds a record's ciphertext to its identity and revision.
// Opening a record under mismatching associated data fails, so an authentic
// ciphertext cannot be replayed into another record's slot, an older
// revision's slot, or another vault.
type AssociatedData struct {
	VaultID string

	EntryID string

	// PageIndex is 0 for the entry header record, 1-based for pages.
	PageIndex int

	// Revision is the entry revision at seal time.
	Revision int64

	// SealedAt is the entry modification time (unix seconds) at seal time.
	// It doubles as the last-writer-wins timestamp during sync conflicts.
	SealedAt int64
}

// Encode renders the associated data in the canonical byte form fed to the
// AEAD. The encoding is positional and unambiguous: UUIDs contain no '|'.
func (ad AssociatedData) Encode() []byte {
	var b strings.Builder
	b.WriteString(ad.VaultID)
	b.WriteByte('|')
	b.WriteString(ad.EntryID)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(ad.PageIndex))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(ad.Revision, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(ad.SealedAt, 10))
	return []byte(b.String())
}

// EntryHeader is the plaintext sealed into an entry's header record.
// Everything a reader needs that is not already public row metadata lives
// here, so titles, tags and mode never touch the database in cleartext.
type EntryHeader struct {
	Title string    `json:"title"`
	Mode  EntryMode `json:"mode"`
	Tags  []string  `json:"tags,omitempty"`
}

// PageRecord is one page's ciphertext plus the metadata required to open it.
type PageRecord struct {
	// Index is the page's 1-based position.
	Index int `json:"index"`

	// Revision is the entry revision this page was sealed at. Pages not
	// touched by a mutation keep their older seal revision.
	Revision int64 `json:"revision"`

	// SealedAt is the seal-time timestamp (unix seconds).
	SealedAt int64 `json:"sealed_at"`

	Record EncryptedRecord `json:"record"`
}

// SyncBundle is the blob exchanged with a remote store for one entry: the
// header and page ciphertexts plus the cleartext revision metadata the sync
// protocol needs. The remote can order bundles and detect changes but can
// derive neither content nor structure beyond the page count.
type SyncBundle struct {
	VaultID  string `json:"vault_id"`
	EntryID  string `json:"entry_id"`
	Revision int64  `json:"revision"`

	// UpdatedAt is the last-writer-wins conflict timestamp (unix seconds).
	// It matches the SealedAt bound into the header's associated data, so a
	// tampered value is detected when the header fails to open.
	UpdatedAt int64 `json:"updated_at"`

	CreatedAt int64 `json:"created_at"`

	Header EncryptedRecord `json:"header"`
	Pages  []PageRecord    `json:"pages"`
}

// Validate performs structural checks on a bundle received from a remote.
func (b SyncBundle) Validate() error {
	if b.EntryID == "" {
		return fmt.Errorf("%w: bundle missing entry id", ErrInvalidBundle)
	}
	if b.VaultID == "" {
		return fmt.Errorf("%w: bundle missing vault id", ErrInvalidBundle)
	}
	if len(b.Pages) == 0 {
		return fmt.Errorf("%w: bundle has no pages", ErrInvalidBundle)
	}
	for i, p := range b.Pages {
		if p.Index != i+1 {
			return fmt.Errorf("%w: page indices not contiguous", ErrInvalidBundle)
		}
	}
	return nil
}
