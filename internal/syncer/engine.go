// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package syncer

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/internal/remote"
	"github.com/KhylleVillasurda/Notequarry/internal/search"
	"github.com/KhylleVillasurda/Notequarry/internal/store"
	"github.com/KhylleVillasurda/Notequarry/models"
)

// noopLocker satisfies sync.Locker without doing anything. Used when the
// caller does not share a mutation lock with the engine.
type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// Engine executes sync plans against a BlobStore.
//
// Network operations run outside the mutation lock; every local store
// mutation (apply, purge, mark-synced, conflict copy) is taken under it so
// the engine never races an interactive edit on the same vault.
type Engine struct {
	storage *store.Store
	blobs   remote.BlobStore
	index   *search.Index
	planner *planner
	log     *logger.Logger

	mu   sync.Locker
	emit func(models.Event)

	// passMu serializes RunPass: overlapping callers queue up rather than
	// interleave record actions.
	passMu sync.Mutex
}

// NewEngine wires an engine over an unlocked store and a blob store.
// locker may be nil; emit may be nil when no one listens for events.
func NewEngine(
	storage *store.Store,
	blobs remote.BlobStore,
	index *search.Index,
	locker sync.Locker,
	emit func(models.Event),
	log *logger.Logger,
) *Engine {
	if locker == nil {
		locker = noopLocker{}
	}
	if emit == nil {
		emit = func(models.Event) {}
	}
	return &Engine{
		storage: storage,
		blobs:   blobs,
		index:   index,
		planner: newPlanner(),
		log:     log,
		mu:      locker,
		emit:    emit,
	}
}

// RunPass performs one full reconciliation: list remote, build a plan,
// execute every action. Passes are serialized; a concurrent caller waits
// for the in-flight pass to finish. Cancellation is honored between records,
// never in the middle of one, so each record action lands atomically.
func (e *Engine) RunPass(ctx context.Context) error {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	blobs, err := e.blobs.List(ctx)
	if err != nil {
		e.emit(models.Event{Kind: models.EventSyncProgress, Err: err})
		return fmt.Errorf("syncer: list remote: %w", err)
	}

	e.mu.Lock()
	states, err := e.storage.States(ctx)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("syncer: load manifest: %w", err)
	}

	plan, err := e.planner.BuildPlan(ctx, states, blobs)
	if err != nil {
		return err
	}
	if plan.Empty() {
		e.log.Debug().Msg("sync pass: nothing to do")
		return nil
	}

	total := len(plan.Push) + len(plan.Pull) + len(plan.Conflict) +
		len(plan.DeleteRemote) + len(plan.PurgeLocal)
	done := 0
	e.emit(models.Event{Kind: models.EventSyncProgress, Done: 0, Total: total})

	step := func(action string, st models.RecordState, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(); err != nil {
			e.log.Error().Err(err).
				Str("entry_id", st.EntryID).
				Str("action", action).
				Msg("sync pass: record failed")
			e.emit(models.Event{Kind: models.EventSyncProgress, EntryID: st.EntryID, Err: err})
			return err
		}
		done++
		e.emit(models.Event{Kind: models.EventSyncProgress, EntryID: st.EntryID, Done: done, Total: total})
		return nil
	}

	for _, st := range plan.Push {
		if err := step("push", st, func() error { return e.push(ctx, st) }); err != nil {
			return err
		}
	}
	for _, st := range plan.Pull {
		if err := step("pull", st, func() error { return e.pull(ctx, st.EntryID) }); err != nil {
			return err
		}
	}
	for _, st := range plan.Conflict {
		if err := step("conflict", st, func() error { return e.resolveConflict(ctx, st) }); err != nil {
			return err
		}
	}
	for _, st := range plan.DeleteRemote {
		if err := step("delete-remote", st, func() error { return e.deleteRemote(ctx, st.EntryID) }); err != nil {
			return err
		}
	}
	for _, st := range plan.PurgeLocal {
		if err := step("purge-local", st, func() error { return e.purgeLocal(ctx, st.EntryID) }); err != nil {
			return err
		}
	}

	e.log.Info().Int("records", total).Msg("sync pass: complete")
	return nil
}

// push uploads one record's bundle and verifies the upload by reading it
// back before advancing the synced markers. A push interrupted anywhere
// before MarkSynced leaves the manifest untouched, so the next pass simply
// pushes again.
func (e *Engine) push(ctx context.Context, st models.RecordState) error {
	e.mu.Lock()
	bundle, err := e.storage.ExportBundle(ctx, st.EntryID)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("export bundle %s: %w", st.EntryID, err)
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode bundle %s: %w", st.EntryID, err)
	}

	remoteRev, err := e.blobs.Put(ctx, st.EntryID, data)
	if err != nil {
		return fmt.Errorf("upload %s: %w", st.EntryID, err)
	}

	stored, storedRev, err := e.blobs.Get(ctx, st.EntryID)
	if err != nil {
		return fmt.Errorf("verify upload %s: %w", st.EntryID, err)
	}
	want, got := sha256.Sum256(data), sha256.Sum256(stored)
	if subtle.ConstantTimeCompare(want[:], got[:]) != 1 || storedRev != remoteRev {
		return fmt.Errorf("verify upload %s: remote content mismatch", st.EntryID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.storage.MarkSynced(ctx, st.EntryID, bundle.Revision, remoteRev); err != nil {
		return fmt.Errorf("mark synced %s: %w", st.EntryID, err)
	}
	return nil
}

// pull downloads a bundle, decrypts and applies it, and refreshes the search
// index. Decryption failure rejects the blob before any local mutation.
func (e *Engine) pull(ctx context.Context, entryID string) error {
	data, remoteRev, err := e.blobs.Get(ctx, entryID)
	if err != nil {
		return fmt.Errorf("download %s: %w", entryID, err)
	}

	var bundle models.SyncBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("decode bundle %s: %w", entryID, errors.Join(models.ErrInvalidBundle, err))
	}
	if err := bundle.Validate(); err != nil {
		return fmt.Errorf("bundle %s: %w", entryID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	entry, err := e.storage.ApplyRemoteBundle(ctx, bundle, remoteRev)
	if err != nil {
		return fmt.Errorf("apply bundle %s: %w", entryID, err)
	}
	e.index.Upsert(entry)
	e.emit(models.Event{Kind: models.EventEntryListChanged, EntryID: entryID})
	return nil
}

// resolveConflict applies last-write-wins on the record's updated_at, with
// the loser preserved as a new unsynced duplicate entry. Ties break toward
// the higher revision, then toward the remote copy.
func (e *Engine) resolveConflict(ctx context.Context, st models.RecordState) error {
	data, remoteRev, err := e.blobs.Get(ctx, st.EntryID)
	if err != nil {
		return fmt.Errorf("download %s: %w", st.EntryID, err)
	}

	var bundle models.SyncBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("decode bundle %s: %w", st.EntryID, errors.Join(models.ErrInvalidBundle, err))
	}
	if err := bundle.Validate(); err != nil {
		return fmt.Errorf("bundle %s: %w", st.EntryID, err)
	}

	remoteUpdated := time.Unix(bundle.UpdatedAt, 0).UTC()
	localWins := st.UpdatedAt.After(remoteUpdated)
	if !localWins && !remoteUpdated.After(st.UpdatedAt) {
		// Timestamp tie: the higher revision wins, a full tie goes to the
		// remote copy.
		localWins = st.LocalRev > bundle.Revision
	}

	e.log.Warn().
		Str("entry_id", st.EntryID).
		Bool("local_wins", localWins).
		Msg("sync pass: conflict detected")

	e.mu.Lock()
	defer e.mu.Unlock()

	var duplicateID string
	if localWins {
		loser, err := e.storage.DecryptBundle(bundle)
		if err != nil {
			return fmt.Errorf("decrypt losing bundle %s: %w", st.EntryID, err)
		}
		dup, err := e.storage.CreateConflictCopy(ctx, loser)
		if err != nil {
			return fmt.Errorf("preserve remote copy of %s: %w", st.EntryID, err)
		}
		duplicateID = dup.ID
		e.index.Upsert(dup)

		// push takes the mutation lock itself, so release ours around it.
		e.mu.Unlock()
		err = e.push(ctx, st)
		e.mu.Lock()
		if err != nil {
			return err
		}
	} else {
		loser, err := e.storage.ReadEntry(ctx, st.EntryID)
		if err != nil {
			return fmt.Errorf("read losing entry %s: %w", st.EntryID, err)
		}
		dup, err := e.storage.CreateConflictCopy(ctx, loser)
		if err != nil {
			return fmt.Errorf("preserve local copy of %s: %w", st.EntryID, err)
		}
		duplicateID = dup.ID
		e.index.Upsert(dup)

		winner, err := e.storage.ApplyRemoteBundle(ctx, bundle, remoteRev)
		if err != nil {
			return fmt.Errorf("apply winning bundle %s: %w", st.EntryID, err)
		}
		e.index.Upsert(winner)
	}

	e.emit(models.Event{
		Kind:        models.EventConflictDetected,
		EntryID:     st.EntryID,
		DuplicateID: duplicateID,
	})
	e.emit(models.Event{Kind: models.EventEntryListChanged, EntryID: st.EntryID})
	return nil
}

// deleteRemote propagates a local tombstone: remove the blob, then reclaim
// the local rows. Blob stores treat deleting a missing blob as success, so a
// retry after a crash between the two steps converges.
func (e *Engine) deleteRemote(ctx context.Context, entryID string) error {
	if err := e.blobs.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("delete remote %s: %w", entryID, err)
	}
	return e.purgeLocal(ctx, entryID)
}

func (e *Engine) purgeLocal(ctx context.Context, entryID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.storage.PurgeEntry(ctx, entryID); err != nil {
		return fmt.Errorf("purge %s: %w", entryID, err)
	}
	e.index.Remove(entryID)
	e.emit(models.Event{Kind: models.EventEntryListChanged, EntryID: entryID})
	return nil
}
