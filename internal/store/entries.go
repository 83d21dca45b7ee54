package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/KhylleVillasurda/Notequarry/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type entryRow struct {
	id        string
	revision  int64
	deleted   bool
	createdAt int64
	updatedAt int64
	nonce     []byte
	ct        []byte
}

func (r entryRow) record() models.EncryptedRecord {
	return models.EncryptedRecord{Nonce: r.nonce, Ciphertext: r.ct}
}

type pageRow struct {
	index     int
	revision  int64
	sealedAt  int64
	nonce     []byte
	ct        []byte
	wordCount int
}

func (r pageRow) record() models.EncryptedRecord {
	return models.EncryptedRecord{Nonce: r.nonce, Ciphertext: r.ct}
}

func getEntryRow(ctx context.Context, q querier, id string) (entryRow, error) {
	var r entryRow
	err := q.QueryRowContext(ctx, getEntry, id).Scan(
		&r.id, &r.revision, &r.deleted, &r.createdAt, &r.updatedAt, &r.nonce, &r.ct,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entryRow{}, models.ErrNotFound
	}
	if err != nil {
		return entryRow{}, fmt.Errorf("failed to scan entry row: %w", err)
	}
	return r, nil
}

func getPageRows(ctx context.Context, q querier, entryID string) ([]pageRow, error) {
	rows, err := q.QueryContext(ctx, getPages, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []pageRow
	for rows.Next() {
		var r pageRow
		if err := rows.Scan(&r.index, &r.revision, &r.sealedAt, &r.nonce, &r.ct, &r.wordCount); err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		pages = append(pages, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating page rows: %w", err)
	}
	return pages, nil
}

// CreateEntry allocates a new entry at revision 0 with one initial page and
// a fresh manifest row, all committed atomically.
func (s *Store) CreateEntry(ctx context.Context, mode models.EntryMode, title string, tags []string) (models.Entry, error) {
	if err := s.requireKey(); err != nil {
		return models.Entry{}, err
	}
	if !mode.Valid() {
		return models.Entry{}, fmt.Errorf("%w: unknown entry mode %q", models.ErrInvariantViolation, mode)
	}

	now := s.now().UTC()
	entry := models.Entry{
		ID:        models.NewEntryID(),
		Title:     title,
		Mode:      mode,
		Tags:      tags,
		Revision:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Pages:     []models.Page{{Index: 1}},
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertEntryTx(ctx, tx, entry, -1, "")
	})
	if err != nil {
		s.logger.Err(err).Str("func", "Store.CreateEntry").Str("entry_id", entry.ID).Msg("failed to create entry")
		return models.Entry{}, err
	}

	return entry, nil
}

// insertEntryTx writes a fully-formed decrypted entry: header, pages and
// manifest. Pages are sealed at the entry's current revision.
func (s *Store) insertEntryTx(ctx context.Context, tx *sql.Tx, entry models.Entry, syncedLocalRev int64, syncedRemoteRev string) error {
	updatedAt := entry.UpdatedAt.Unix()

	headerRec, err := s.sealHeader(entry.ID, models.EntryHeader{
		Title: entry.Title,
		Mode:  entry.Mode,
		Tags:  entry.Tags,
	}, entry.Revision, updatedAt)
	if err != nil {
		return fmt.Errorf("seal entry header: %w", err)
	}

	deleted := 0
	if entry.Deleted {
		deleted = 1
	}
	if _, err := tx.ExecContext(ctx, insertEntry,
		entry.ID, entry.Revision, deleted, entry.CreatedAt.Unix(), updatedAt,
		headerRec.Nonce, headerRec.Ciphertext,
	); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	for _, p := range entry.Pages {
		rec, err := s.sealPage(entry.ID, p.Index, p.Text, entry.Revision, updatedAt)
		if err != nil {
			return fmt.Errorf("seal page %d: %w", p.Index, err)
		}
		if _, err := tx.ExecContext(ctx, insertPage,
			entry.ID, p.Index, entry.Revision, updatedAt,
			rec.Nonce, rec.Ciphertext, models.CountWords(p.Text),
		); err != nil {
			return fmt.Errorf("failed to insert page %d: %w", p.Index, err)
		}
	}

	if _, err := tx.ExecContext(ctx, insertSyncState,
		entry.ID, entry.Revision, syncedLocalRev, syncedRemoteRev, deleted, updatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert sync state: %w", err)
	}

	return nil
}

// ReadEntry decrypts and returns the entry. Tombstoned entries are reported
// as not found.
func (s *Store) ReadEntry(ctx context.Context, id string) (models.Entry, error) {
	if err := s.requireKey(); err != nil {
		return models.Entry{}, err
	}

	row, err := getEntryRow(ctx, s.db, id)
	if err != nil {
		return models.Entry{}, err
	}
	if row.deleted {
		return models.Entry{}, models.ErrNotFound
	}

	return s.decryptEntry(ctx, s.db, row)
}

func (s *Store) decryptEntry(ctx context.Context, q querier, row entryRow) (models.Entry, error) {
	hdr, err := s.openHeader(row.id, row.record(), row.revision, row.updatedAt)
	if err != nil {
		s.logger.Err(err).Str("func", "Store.decryptEntry").Str("entry_id", row.id).Msg("failed to open entry header")
		return models.Entry{}, err
	}

	pageRows, err := getPageRows(ctx, q, row.id)
	if err != nil {
		return models.Entry{}, err
	}

	entry := models.Entry{
		ID:        row.id,
		Title:     hdr.Title,
		Mode:      hdr.Mode,
		Tags:      hdr.Tags,
		Revision:  row.revision,
		Deleted:   row.deleted,
		CreatedAt: unixUTC(row.createdAt),
		UpdatedAt: unixUTC(row.updatedAt),
		Pages:     make([]models.Page, 0, len(pageRows)),
	}

	for _, p := range pageRows {
		text, err := s.openPage(row.id, p.index, p.record(), p.revision, p.sealedAt)
		if err != nil {
			s.logger.Err(err).Str("func", "Store.decryptEntry").
				Str("entry_id", row.id).Int("page_index", p.index).
				Msg("failed to open page record")
			return models.Entry{}, err
		}
		entry.Pages = append(entry.Pages, models.Page{Index: p.index, Text: text, WordCount: p.wordCount})
	}

	if entry.Mode == models.ModeNote && len(entry.Pages) > 0 {
		entry.Checkboxes = models.ParseCheckboxes(entry.Pages[0].Text)
	}

	return entry, nil
}

// UpdatePage replaces the text of one page, bumping the entry revision and
// resealing the page and header under it. The returned result flags pages
// exceeding the soft word ceiling; the update itself always commits.
func (s *Store) UpdatePage(ctx context.Context, id string, pageIndex int, text string) (models.UpdateResult, error) {
	if err := s.requireKey(); err != nil {
		return models.UpdateResult{}, err
	}

	var result models.UpdateResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row, err := getEntryRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if row.deleted {
			return models.ErrNotFound
		}

		pages, err := getPageRows(ctx, tx, id)
		if err != nil {
			return err
		}
		if pageIndex < 1 || pageIndex > len(pages) {
			return fmt.Errorf("%w: page %d of %d", models.ErrNotFound, pageIndex, len(pages))
		}

		hdr, err := s.openHeader(id, row.record(), row.revision, row.updatedAt)
		if err != nil {
			return err
		}

		newRev := row.revision + 1
		now := s.now().UTC().Unix()

		rec, err := s.sealPage(id, pageIndex, text, newRev, now)
		if err != nil {
			return fmt.Errorf("seal page %d: %w", pageIndex, err)
		}
		wordCount := models.CountWords(text)

		if _, err := tx.ExecContext(ctx,
			`UPDATE pages SET revision = $1, sealed_at = $2, nonce = $3, ct = $4, word_count = $5
			 WHERE entry_id = $6 AND page_index = $7;`,
			newRev, now, rec.Nonce, rec.Ciphertext, wordCount, id, pageIndex,
		); err != nil {
			return fmt.Errorf("failed to update page: %w", err)
		}

		if err := s.resealEntryRowTx(ctx, tx, id, hdr, newRev, now); err != nil {
			return err
		}

		result = models.UpdateResult{
			Revision:      newRev,
			WordCount:     wordCount,
			OverSoftLimit: wordCount > models.PageSoftWordLimit,
		}
		return nil
	})
	if err != nil {
		return models.UpdateResult{}, err
	}

	return result, nil
}

// resealEntryRowTx bumps the entry row to a new revision: reseals the header
// record and updates the manifest, keeping row metadata and ciphertext in
// lockstep.
func (s *Store) resealEntryRowTx(ctx context.Context, tx *sql.Tx, id string, hdr models.EntryHeader, newRev, now int64) error {
	return s.resealEntryRowDeletedTx(ctx, tx, id, hdr, newRev, now, false)
}

func (s *Store) resealEntryRowDeletedTx(ctx context.Context, tx *sql.Tx, id string, hdr models.EntryHeader, newRev, now int64, deleted bool) error {
	headerRec, err := s.sealHeader(id, hdr, newRev, now)
	if err != nil {
		return fmt.Errorf("seal entry header: %w", err)
	}

	deletedFlag := 0
	if deleted {
		deletedFlag = 1
	}
	if _, err := tx.ExecContext(ctx, updateEntry,
		newRev, deletedFlag, now, headerRec.Nonce, headerRec.Ciphertext, id,
	); err != nil {
		return fmt.Errorf("failed to update entry row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, touchSyncState, newRev, deletedFlag, now, id); err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}

	return nil
}

// InsertPage inserts an empty page at atIndex (1..pageCount+1) of a BOOK
// entry, renumbering subsequent pages contiguously. Renumbered pages are
// resealed because the page index is part of their associated data.
func (s *Store) InsertPage(ctx context.Context, id string, atIndex int) error {
	if err := s.requireKey(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		row, hdr, pages, err := s.loadBookTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if atIndex < 1 || atIndex > len(pages)+1 {
			return fmt.Errorf("%w: insert index %d out of range 1..%d", models.ErrInvariantViolation, atIndex, len(pages)+1)
		}

		newRev := row.revision + 1
		now := s.now().UTC().Unix()

		// Shift trailing pages up, highest index first to keep the
		// (entry_id, page_index) primary key unique at every step.
		for i := len(pages) - 1; i >= atIndex-1; i-- {
			if err := s.movePageTx(ctx, tx, id, pages[i], pages[i].index+1, newRev, now); err != nil {
				return err
			}
		}

		rec, err := s.sealPage(id, atIndex, "", newRev, now)
		if err != nil {
			return fmt.Errorf("seal inserted page: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertPage, id, atIndex, newRev, now, rec.Nonce, rec.Ciphertext, 0); err != nil {
			return fmt.Errorf("failed to insert page: %w", err)
		}

		return s.resealEntryRowTx(ctx, tx, id, hdr, newRev, now)
	})
}

// DeletePage removes one page of a BOOK entry and renumbers the rest.
// Deleting the last remaining page is rejected before any mutation.
func (s *Store) DeletePage(ctx context.Context, id string, pageIndex int) error {
	if err := s.requireKey(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		row, hdr, pages, err := s.loadBookTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(pages) == 1 {
			return fmt.Errorf("%w: cannot delete the last remaining page", models.ErrInvariantViolation)
		}
		if pageIndex < 1 || pageIndex > len(pages) {
			return fmt.Errorf("%w: page %d of %d", models.ErrNotFound, pageIndex, len(pages))
		}

		newRev := row.revision + 1
		now := s.now().UTC().Unix()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pages WHERE entry_id = $1 AND page_index = $2;`, id, pageIndex,
		); err != nil {
			return fmt.Errorf("failed to delete page: %w", err)
		}

		// Shift trailing pages down, lowest index first.
		for i := pageIndex; i < len(pages); i++ {
			if err := s.movePageTx(ctx, tx, id, pages[i], pages[i].index-1, newRev, now); err != nil {
				return err
			}
		}

		return s.resealEntryRowTx(ctx, tx, id, hdr, newRev, now)
	})
}

// loadBookTx loads an entry row, its decrypted header and pages, and checks
// the entry is a live BOOK. Page structure operations only apply to books.
func (s *Store) loadBookTx(ctx context.Context, tx *sql.Tx, id string) (entryRow, models.EntryHeader, []pageRow, error) {
	row, err := getEntryRow(ctx, tx, id)
	if err != nil {
		return entryRow{}, models.EntryHeader{}, nil, err
	}
	if row.deleted {
		return entryRow{}, models.EntryHeader{}, nil, models.ErrNotFound
	}

	hdr, err := s.openHeader(id, row.record(), row.revision, row.updatedAt)
	if err != nil {
		return entryRow{}, models.EntryHeader{}, nil, err
	}
	if hdr.Mode != models.ModeBook {
		return entryRow{}, models.EntryHeader{}, nil,
			fmt.Errorf("%w: page structure operations apply only to book entries", models.ErrInvariantViolation)
	}

	pages, err := getPageRows(ctx, tx, id)
	if err != nil {
		return entryRow{}, models.EntryHeader{}, nil, err
	}
	return row, hdr, pages, nil
}

// movePageTx renumbers one page, resealing its content because the index is
// bound into the record's associated data.
func (s *Store) movePageTx(ctx context.Context, tx *sql.Tx, entryID string, p pageRow, newIndex int, newRev, now int64) error {
	text, err := s.openPage(entryID, p.index, p.record(), p.revision, p.sealedAt)
	if err != nil {
		return err
	}
	rec, err := s.sealPage(entryID, newIndex, text, newRev, now)
	if err != nil {
		return fmt.Errorf("reseal page %d as %d: %w", p.index, newIndex, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pages SET page_index = $1, revision = $2, sealed_at = $3, nonce = $4, ct = $5
		 WHERE entry_id = $6 AND page_index = $7;`,
		newIndex, newRev, now, rec.Nonce, rec.Ciphertext, entryID, p.index,
	); err != nil {
		return fmt.Errorf("failed to renumber page %d: %w", p.index, err)
	}
	return nil
}

// DeleteEntry tombstones an entry for sync propagation. The ciphertext stays
// addressable until the tombstone has propagated; physical erasure happens
// in PurgeEntry.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	if err := s.requireKey(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		row, err := getEntryRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if row.deleted {
			return nil // already tombstoned
		}

		hdr, err := s.openHeader(id, row.record(), row.revision, row.updatedAt)
		if err != nil {
			return err
		}

		newRev := row.revision + 1
		now := s.now().UTC().Unix()
		return s.resealEntryRowDeletedTx(ctx, tx, id, hdr, newRev, now, true)
	})
}

// PurgeEntry physically erases an entry, its pages and its manifest row.
// Called once the remote acknowledged the tombstone, or immediately when
// sync is disabled.
func (s *Store) PurgeEntry(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deletePages, id); err != nil {
			return fmt.Errorf("failed to purge pages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_state WHERE entry_id = $1;`, id); err != nil {
			return fmt.Errorf("failed to purge sync state: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteEntryRow, id); err != nil {
			return fmt.Errorf("failed to purge entry: %w", err)
		}
		return nil
	})
}

// ListEntries returns list-view summaries ordered most-recently-modified
// first. Tombstoned entries are excluded unless the filter asks for them.
// Mode and tag filters apply after header decryption since both live inside
// the encrypted header.
func (s *Store) ListEntries(ctx context.Context, filter models.ListFilter) ([]models.EntrySummary, error) {
	if err := s.requireKey(); err != nil {
		return nil, err
	}

	q := sq.Select(
		"e.id", "e.revision", "e.deleted", "e.created_at", "e.updated_at",
		"e.header_nonce", "e.header_ct",
		"COUNT(p.page_index)", "COALESCE(SUM(p.word_count), 0)",
	).
		From("entries e").
		LeftJoin("pages p ON p.entry_id = e.id").
		GroupBy("e.id").
		OrderBy("e.updated_at DESC, e.id")
	if !filter.IncludeDeleted {
		q = q.Where(sq.Eq{"e.deleted": 0})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).Str("func", "Store.ListEntries").Msg("failed to query entries")
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var summaries []models.EntrySummary
	for rows.Next() {
		var (
			row       entryRow
			pageCount int
			wordCount int
		)
		if err := rows.Scan(
			&row.id, &row.revision, &row.deleted, &row.createdAt, &row.updatedAt,
			&row.nonce, &row.ct, &pageCount, &wordCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entry summary row: %w", err)
		}

		hdr, err := s.openHeader(row.id, row.record(), row.revision, row.updatedAt)
		if err != nil {
			return nil, err
		}
		if filter.Mode != "" && hdr.Mode != filter.Mode {
			continue
		}
		if filter.Tag != "" && !containsTag(hdr.Tags, filter.Tag) {
			continue
		}

		summaries = append(summaries, models.EntrySummary{
			ID:        row.id,
			Title:     hdr.Title,
			Mode:      hdr.Mode,
			Tags:      hdr.Tags,
			PageCount: pageCount,
			WordCount: wordCount,
			UpdatedAt: unixUTC(row.updatedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return summaries, nil
}

// LoadAll decrypts every live entry. Used to rebuild the search index at
// unlock time.
func (s *Store) LoadAll(ctx context.Context) ([]models.Entry, error) {
	if err := s.requireKey(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, revision, deleted, created_at, updated_at, header_nonce, header_ct
		FROM entries WHERE deleted = 0 ORDER BY updated_at DESC, id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entryRows []entryRow
	for rows.Next() {
		var r entryRow
		if err := rows.Scan(&r.id, &r.revision, &r.deleted, &r.createdAt, &r.updatedAt, &r.nonce, &r.ct); err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entryRows = append(entryRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	entries := make([]models.Entry, 0, len(entryRows))
	for _, r := range entryRows {
		entry, err := s.decryptEntry(ctx, s.db, r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// States returns the full sync manifest.
func (s *Store) States(ctx context.Context) ([]models.RecordState, error) {
	rows, err := s.db.QueryContext(ctx, getAllStates)
	if err != nil {
		s.logger.Err(err).Str("func", "Store.States").Msg("failed to query sync states")
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer rows.Close()

	var states []models.RecordState
	for rows.Next() {
		var (
			st        models.RecordState
			deleted   int
			updatedAt int64
		)
		if err := rows.Scan(&st.EntryID, &st.LocalRev, &st.SyncedLocalRev, &st.SyncedRemoteRev, &deleted, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync state row: %w", err)
		}
		st.Deleted = deleted != 0
		st.UpdatedAt = unixUTC(updatedAt)
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync state rows: %w", err)
	}

	return states, nil
}

// MarkSynced records a completed push or pull in the manifest.
func (s *Store) MarkSynced(ctx context.Context, entryID string, localRev int64, remoteRev string) error {
	result, err := s.db.ExecContext(ctx, markSynced, localRev, remoteRev, entryID)
	if err != nil {
		return fmt.Errorf("failed to mark synced (entry_id=%s): %w", entryID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected (entry_id=%s): %w", entryID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: sync state for entry %s", models.ErrNotFound, entryID)
	}
	return nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
