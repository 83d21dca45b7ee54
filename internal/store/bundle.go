package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/KhylleVillasurda/Notequarry/models"
)

// ExportBundle packages an entry's stored ciphertext for upload. No
// decryption happens here: the bundle carries the header and page records
// exactly as persisted, plus the cleartext revision metadata the sync
// protocol orders records by.
func (s *Store) ExportBundle(ctx context.Context, id string) (models.SyncBundle, error) {
	row, err := getEntryRow(ctx, s.db, id)
	if err != nil {
		return models.SyncBundle{}, err
	}

	pages, err := getPageRows(ctx, s.db, id)
	if err != nil {
		return models.SyncBundle{}, err
	}

	bundle := models.SyncBundle{
		VaultID:   s.vaultID,
		EntryID:   row.id,
		Revision:  row.revision,
		UpdatedAt: row.updatedAt,
		CreatedAt: row.createdAt,
		Header:    row.record(),
		Pages:     make([]models.PageRecord, 0, len(pages)),
	}
	for _, p := range pages {
		bundle.Pages = append(bundle.Pages, models.PageRecord{
			Index:    p.index,
			Revision: p.revision,
			SealedAt: p.sealedAt,
			Record:   p.record(),
		})
	}

	return bundle, nil
}

// DecryptBundle opens every record of a bundle without touching the
// database. Used on the losing side of a conflict, where the remote version
// must be materialized as a duplicate entry rather than applied in place.
func (s *Store) DecryptBundle(b models.SyncBundle) (models.Entry, error) {
	if err := s.requireKey(); err != nil {
		return models.Entry{}, err
	}
	if err := b.Validate(); err != nil {
		return models.Entry{}, err
	}

	hdr, err := s.openHeader(b.EntryID, b.Header, b.Revision, b.UpdatedAt)
	if err != nil {
		return models.Entry{}, err
	}

	entry := models.Entry{
		ID:        b.EntryID,
		Title:     hdr.Title,
		Mode:      hdr.Mode,
		Tags:      hdr.Tags,
		Revision:  b.Revision,
		CreatedAt: unixUTC(b.CreatedAt),
		UpdatedAt: unixUTC(b.UpdatedAt),
		Pages:     make([]models.Page, 0, len(b.Pages)),
	}
	for _, p := range b.Pages {
		text, err := s.openPage(b.EntryID, p.Index, p.Record, p.Revision, p.SealedAt)
		if err != nil {
			return models.Entry{}, err
		}
		entry.Pages = append(entry.Pages, models.Page{
			Index:     p.Index,
			Text:      text,
			WordCount: models.CountWords(text),
		})
	}

	return entry, nil
}

// ApplyRemoteBundle stores a pulled bundle under its original identity and
// marks the manifest synced at remoteRev, all in one transaction. The bundle
// is decrypted first: a bundle that fails authentication is rejected before
// any local state changes. The decrypted entry is returned so the caller can
// feed the search index.
func (s *Store) ApplyRemoteBundle(ctx context.Context, b models.SyncBundle, remoteRev string) (models.Entry, error) {
	entry, err := s.DecryptBundle(b)
	if err != nil {
		return models.Entry{}, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		// Replace any existing local rows wholesale; the page set of the
		// remote version is authoritative.
		if _, err := tx.ExecContext(ctx, deletePages, b.EntryID); err != nil {
			return fmt.Errorf("failed to clear pages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteEntryRow, b.EntryID); err != nil {
			return fmt.Errorf("failed to clear entry: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertEntry,
			b.EntryID, b.Revision, 0, b.CreatedAt, b.UpdatedAt,
			b.Header.Nonce, b.Header.Ciphertext,
		); err != nil {
			return fmt.Errorf("failed to insert pulled entry: %w", err)
		}

		for i, p := range b.Pages {
			if _, err := tx.ExecContext(ctx, insertPage,
				b.EntryID, p.Index, p.Revision, p.SealedAt,
				p.Record.Nonce, p.Record.Ciphertext, entry.Pages[i].WordCount,
			); err != nil {
				return fmt.Errorf("failed to insert pulled page %d: %w", p.Index, err)
			}
		}

		if _, err := tx.ExecContext(ctx, insertSyncState,
			b.EntryID, b.Revision, b.Revision, remoteRev, 0, b.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert sync state: %w", err)
		}

		return nil
	})
	if err != nil {
		s.logger.Err(err).Str("func", "Store.ApplyRemoteBundle").Str("entry_id", b.EntryID).Msg("failed to apply remote bundle")
		return models.Entry{}, err
	}

	return entry, nil
}

// CreateConflictCopy re-creates the losing version of a conflict as a new
// local-only entry so no edit is silently lost. The copy gets a fresh
// identity, revision 0 and an unsynced manifest row, so the next sync pass
// pushes it like any other new entry.
func (s *Store) CreateConflictCopy(ctx context.Context, loser models.Entry) (models.Entry, error) {
	if err := s.requireKey(); err != nil {
		return models.Entry{}, err
	}

	now := s.now().UTC()
	copyEntry := models.Entry{
		ID:        models.NewEntryID(),
		Title:     loser.Title + " (conflict copy)",
		Mode:      loser.Mode,
		Tags:      loser.Tags,
		Revision:  0,
		CreatedAt: loser.CreatedAt,
		UpdatedAt: now,
		Pages:     loser.Pages,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertEntryTx(ctx, tx, copyEntry, -1, "")
	})
	if err != nil {
		s.logger.Err(err).Str("func", "Store.CreateConflictCopy").
			Str("loser_id", loser.ID).Str("copy_id", copyEntry.ID).
			Msg("failed to create conflict copy")
		return models.Entry{}, err
	}

	return copyEntry, nil
}
