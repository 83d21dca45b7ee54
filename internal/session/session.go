// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

// Package session owns the vault lifecycle and is the single entry point an
// application front end talks to. A session is created locked; Unlock
// derives the master key, opens the store, rebuilds the search index and
// starts background sync; Lock tears all of that down and zeroes the key.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KhylleVillasurda/Notequarry/internal/config"
	"github.com/KhylleVillasurda/Notequarry/internal/keymanager"
	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/internal/remote"
	"github.com/KhylleVillasurda/Notequarry/internal/search"
	"github.com/KhylleVillasurda/Notequarry/internal/store"
	"github.com/KhylleVillasurda/Notequarry/internal/syncer"
	"github.com/KhylleVillasurda/Notequarry/models"
)

// ErrSyncDisabled is returned by SyncNow when no remote is configured.
var ErrSyncDisabled = errors.New("session: synchronization is not configured")

const eventBufferSize = 16

// Session coordinates the store, key manager, search index and sync engine
// behind a single mutation lock, so exactly one vault mutation is in flight
// at a time regardless of whether it came from the UI or the sync job.
type Session struct {
	cfg   *config.StructuredConfig
	log   *logger.Logger
	store *store.Store
	index *search.Index
	keys  *keymanager.Manager
	blobs remote.BlobStore

	mu       sync.Mutex
	key      *keymanager.MasterKey
	unlocked bool

	engine *syncer.Engine
	job    *syncer.Job

	subMu   sync.Mutex
	subs    map[int]chan models.Event
	nextSub int
}

// New builds a locked session. blobs may be nil when the configuration has
// no remote; sync operations then report ErrSyncDisabled.
func New(cfg *config.StructuredConfig, storage *store.Store, blobs remote.BlobStore, log *logger.Logger) *Session {
	return &Session{
		cfg:   cfg,
		log:   log,
		store: storage,
		index: search.NewIndex(),
		keys:  keymanager.New(cfg.KDF.Time, cfg.KDF.MemoryKiB, cfg.KDF.Threads),
		blobs: blobs,
		subs:  make(map[int]chan models.Event),
	}
}

// Unlock opens the vault with the given password. On a fresh vault file it
// initializes the header (new salt, new verifier, a fresh vault ID); on an
// existing vault it verifies the password against the stored verifier and
// returns models.ErrAuthenticationFailed on mismatch. Unlocking an already
// unlocked session is a no-op.
func (s *Session) Unlock(ctx context.Context, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unlocked {
		return nil
	}

	hdr, ok, err := s.store.LoadHeader(ctx)
	if err != nil {
		return err
	}

	var key *keymanager.MasterKey
	if !ok {
		params, salt, verifier, derived, err := s.keys.Initialize(password)
		if err != nil {
			return err
		}
		hdr = models.VaultHeader{
			VaultID:       models.NewEntryID(),
			SchemaVersion: models.SchemaVersion,
			KDF:           params,
			Salt:          salt,
			Verifier:      verifier,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.store.InitVault(ctx, hdr); err != nil {
			derived.Zero()
			return err
		}
		key = derived
		s.log.Info().Str("vault_id", hdr.VaultID).Msg("session: vault initialized")
	} else {
		key, err = s.keys.Unlock(password, hdr)
		if err != nil {
			return err
		}
	}

	s.store.Unlock(hdr.VaultID, key.Bytes())

	entries, err := s.store.LoadAll(ctx)
	if err != nil {
		s.store.Lock()
		key.Zero()
		return err
	}
	s.index.Rebuild(entries)

	s.key = key
	s.unlocked = true

	if s.blobs != nil {
		s.engine = syncer.NewEngine(s.store, s.blobs, s.index, &s.mu, s.emit, s.log)
		s.job = syncer.NewJob(s.engine, s.cfg.Sync.Interval, s.log)
		s.job.Start(ctx)
	}

	s.log.Info().
		Str("vault_id", hdr.VaultID).
		Int("entries", len(entries)).
		Msg("session: vault unlocked")
	return nil
}

// Lock returns the session to the locked state: stops the sync job, zeroes
// the master key, drops the store's key material and clears the search
// index. Locking a locked session is a no-op.
func (s *Session) Lock() {
	s.mu.Lock()
	unlocked := s.unlocked
	job := s.job
	s.mu.Unlock()
	if !unlocked {
		return
	}

	// Stop outside the lock: an in-flight pass needs the mutation lock to
	// finish.
	if job != nil {
		job.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = nil
	s.engine = nil
	if s.key != nil {
		s.key.Zero()
		s.key = nil
	}
	s.store.Lock()
	s.index.Reset()
	s.unlocked = false
	s.log.Info().Msg("session: vault locked")
}

func (s *Session) requireUnlocked() error {
	if !s.unlocked {
		return models.ErrLocked
	}
	return nil
}

// CreateEntry creates a note or book with one empty page and makes it
// searchable immediately.
func (s *Session) CreateEntry(ctx context.Context, mode models.EntryMode, title string, tags []string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return models.Entry{}, err
	}

	entry, err := s.store.CreateEntry(ctx, mode, title, tags)
	if err != nil {
		return models.Entry{}, err
	}
	s.index.Upsert(entry)
	s.emit(models.Event{Kind: models.EventEntryListChanged, EntryID: entry.ID})
	return entry, nil
}

// ReadEntry decrypts and returns a full entry with all pages.
func (s *Session) ReadEntry(ctx context.Context, id string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return models.Entry{}, err
	}
	return s.store.ReadEntry(ctx, id)
}

// UpdatePage replaces one page's text, advancing the entry revision. The
// returned result carries the new word count and whether the page exceeds
// the soft per-page limit.
func (s *Session) UpdatePage(ctx context.Context, id string, pageIndex int, text string) (models.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return models.UpdateResult{}, err
	}

	res, err := s.store.UpdatePage(ctx, id, pageIndex, text)
	if err != nil {
		return models.UpdateResult{}, err
	}

	entry, err := s.store.ReadEntry(ctx, id)
	if err != nil {
		return models.UpdateResult{}, err
	}
	s.index.Upsert(entry)
	s.emit(models.Event{Kind: models.EventEntryListChanged, EntryID: id})
	return res, nil
}

// InsertPage inserts an empty page at the given index of a book, shifting
// subsequent pages up by one.
func (s *Session) InsertPage(ctx context.Context, id string, atIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if err := s.store.InsertPage(ctx, id, atIndex); err != nil {
		return err
	}
	s.emit(models.Event{Kind: models.EventEntryListChanged, EntryID: id})
	return nil
}

// DeletePage removes a page from a book, shifting subsequent pages down.
// Removing the last remaining page is rejected.
func (s *Session) DeletePage(ctx context.Context, id string, pageIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if err := s.store.DeletePage(ctx, id, pageIndex); err != nil {
		return err
	}

	entry, err := s.store.ReadEntry(ctx, id)
	if err != nil {
		return err
	}
	s.index.Upsert(entry)
	s.emit(models.Event{Kind: models.EventEntryListChanged, EntryID: id})
	return nil
}

// DeleteEntry removes an entry. With sync configured the rows become a
// tombstone so the deletion propagates to other replicas; without sync the
// record is purged outright. Either way the entry disappears from listings
// and search at once.
func (s *Session) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return err
	}

	if s.engine == nil {
		if err := s.store.PurgeEntry(ctx, id); err != nil {
			return err
		}
	} else {
		if err := s.store.DeleteEntry(ctx, id); err != nil {
			return err
		}
	}
	s.index.Remove(id)
	s.emit(models.Event{Kind: models.EventEntryListChanged, EntryID: id})
	return nil
}

// ListEntries returns entry summaries newest-first, optionally filtered by
// mode or tag.
func (s *Session) ListEntries(ctx context.Context, filter models.ListFilter) ([]models.EntrySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlocked(); err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, filter)
}

// Search runs a ranked full-text query over the in-memory index. An empty
// query lists every live entry newest-first.
func (s *Session) Search(query string) ([]search.Hit, error) {
	s.mu.Lock()
	unlocked := s.unlocked
	s.mu.Unlock()
	if !unlocked {
		return nil, models.ErrLocked
	}
	return s.index.Search(query), nil
}

// SyncNow runs a single synchronous sync pass, waiting for any in-flight
// background pass to finish first. It returns ErrSyncDisabled when no remote
// is configured.
func (s *Session) SyncNow(ctx context.Context) error {
	s.mu.Lock()
	if err := s.requireUnlocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	engine := s.engine
	s.mu.Unlock()

	if engine == nil {
		return ErrSyncDisabled
	}
	return engine.RunPass(ctx)
}

// Subscribe registers an event listener. Events are delivered best-effort:
// a subscriber that stops draining its channel loses events rather than
// blocking the engine. The returned func unregisters and closes the channel.
func (s *Session) Subscribe() (<-chan models.Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan models.Event, eventBufferSize)
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) emit(ev models.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
