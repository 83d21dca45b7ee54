// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package syncer

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/internal/remote"
	"github.com/KhylleVillasurda/Notequarry/internal/search"
	"github.com/KhylleVillasurda/Notequarry/internal/store"
	"github.com/KhylleVillasurda/Notequarry/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newReplica opens a fresh vault database in a temp dir and unlocks it with
// the shared key. All replicas in a test must share vaultID and key, exactly
// like two devices unlocked with the same master password.
func newReplica(t *testing.T, vaultID string, key []byte) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "vault.db"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	hdr := models.VaultHeader{
		VaultID:       vaultID,
		SchemaVersion: models.SchemaVersion,
		KDF:           models.KDFParams{Version: 1, Time: 1, MemoryKiB: 64, Threads: 1, KeyLen: 32},
		Salt:          bytes.Repeat([]byte{0x01}, 16),
		Verifier:      bytes.Repeat([]byte{0x02}, 32),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.InitVault(context.Background(), hdr))

	s.Unlock(vaultID, key)
	return s
}

type replica struct {
	store  *store.Store
	index  *search.Index
	engine *Engine
	events []models.Event
}

func newTestReplica(t *testing.T, vaultID string, key []byte, blobs remote.BlobStore) *replica {
	t.Helper()

	r := &replica{
		store: newReplica(t, vaultID, key),
		index: search.NewIndex(),
	}
	r.engine = NewEngine(r.store, blobs, r.index, nil, func(ev models.Event) {
		r.events = append(r.events, ev)
	}, logger.Nop())
	return r
}

func (r *replica) conflicts() []models.Event {
	var out []models.Event
	for _, ev := range r.events {
		if ev.Kind == models.EventConflictDetected {
			out = append(out, ev)
		}
	}
	return out
}

func testKey() []byte { return bytes.Repeat([]byte{0x42}, 32) }

// ─────────────────────────────────────────────────────────────────────────────
// Push / pull round trip
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_PushThenPull_TwoReplicas(t *testing.T) {
	ctx := context.Background()
	blobs := remote.NewMemoryBlobStore()
	a := newTestReplica(t, "vault-1", testKey(), blobs)
	b := newTestReplica(t, "vault-1", testKey(), blobs)

	entry, err := a.store.CreateEntry(ctx, models.ModeNote, "groceries", []string{"home"})
	require.NoError(t, err)
	_, err = a.store.UpdatePage(ctx, entry.ID, 1, "milk eggs bread")
	require.NoError(t, err)

	require.NoError(t, a.engine.RunPass(ctx))
	require.NoError(t, b.engine.RunPass(ctx))

	got, err := b.store.ReadEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "groceries", got.Title)
	assert.Equal(t, []string{"home"}, got.Tags)
	require.Len(t, got.Pages, 1)
	assert.Equal(t, "milk eggs bread", got.Pages[0].Text)
	assert.Equal(t, 3, got.Pages[0].WordCount)

	// The pulled entry is searchable on the second replica at once.
	hits := b.index.Search("eggs")
	require.Len(t, hits, 1)
	assert.Equal(t, entry.ID, hits[0].EntryID)

	// Both manifests agree the record is synced.
	for _, r := range []*replica{a, b} {
		states, err := r.store.States(ctx)
		require.NoError(t, err)
		require.Len(t, states, 1)
		assert.True(t, states[0].Synced())
		assert.Equal(t, states[0].LocalRev, states[0].SyncedLocalRev)
	}

	// A second pass on either side is a no-op.
	require.NoError(t, a.engine.RunPass(ctx))
	require.NoError(t, b.engine.RunPass(ctx))
}

// ─────────────────────────────────────────────────────────────────────────────
// Conflicts
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_Conflict_WinnerKeptLoserDuplicated(t *testing.T) {
	ctx := context.Background()
	blobs := remote.NewMemoryBlobStore()
	a := newTestReplica(t, "vault-1", testKey(), blobs)
	b := newTestReplica(t, "vault-1", testKey(), blobs)

	entry, err := a.store.CreateEntry(ctx, models.ModeNote, "draft", nil)
	require.NoError(t, err)
	require.NoError(t, a.engine.RunPass(ctx))
	require.NoError(t, b.engine.RunPass(ctx))

	// B edits and publishes first; A then edits twice without syncing, so by
	// the time A syncs both sides have advanced past the last-synced markers.
	_, err = b.store.UpdatePage(ctx, entry.ID, 1, "remote words")
	require.NoError(t, err)
	require.NoError(t, b.engine.RunPass(ctx))

	_, err = a.store.UpdatePage(ctx, entry.ID, 1, "local words v1")
	require.NoError(t, err)
	_, err = a.store.UpdatePage(ctx, entry.ID, 1, "local words v2")
	require.NoError(t, err)

	require.NoError(t, a.engine.RunPass(ctx))

	// A's copy was written last, so it wins on replica A.
	winner, err := a.store.ReadEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "local words v2", winner.Pages[0].Text)

	// The losing remote version survives as an unsynced duplicate.
	confs := a.conflicts()
	require.Len(t, confs, 1)
	assert.Equal(t, entry.ID, confs[0].EntryID)
	require.NotEmpty(t, confs[0].DuplicateID)

	dup, err := a.store.ReadEntry(ctx, confs[0].DuplicateID)
	require.NoError(t, err)
	assert.Equal(t, "draft (conflict copy)", dup.Title)
	assert.Equal(t, "remote words", dup.Pages[0].Text)

	// The duplicate is a new unsynced entry, pushed on A's next pass; B then
	// converges on A's winner and receives the duplicate via normal pull.
	require.NoError(t, a.engine.RunPass(ctx))
	require.NoError(t, b.engine.RunPass(ctx))
	converged, err := b.store.ReadEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "local words v2", converged.Pages[0].Text)

	dupOnB, err := b.store.ReadEntry(ctx, confs[0].DuplicateID)
	require.NoError(t, err)
	assert.Equal(t, "remote words", dupOnB.Pages[0].Text)
}

// ─────────────────────────────────────────────────────────────────────────────
// Deletion propagation
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_TombstonePropagatesAndPurges(t *testing.T) {
	ctx := context.Background()
	blobs := remote.NewMemoryBlobStore()
	a := newTestReplica(t, "vault-1", testKey(), blobs)
	b := newTestReplica(t, "vault-1", testKey(), blobs)

	entry, err := a.store.CreateEntry(ctx, models.ModeNote, "short lived", nil)
	require.NoError(t, err)
	require.NoError(t, a.engine.RunPass(ctx))
	require.NoError(t, b.engine.RunPass(ctx))

	require.NoError(t, a.store.DeleteEntry(ctx, entry.ID))
	require.NoError(t, a.engine.RunPass(ctx))

	// Blob gone, replica A fully purged.
	infos, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)

	states, err := a.store.States(ctx)
	require.NoError(t, err)
	assert.Empty(t, states)

	// Replica B observes the vanished blob and purges its unchanged copy.
	require.NoError(t, b.engine.RunPass(ctx))

	_, err = b.store.ReadEntry(ctx, entry.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	states, err = b.store.States(ctx)
	require.NoError(t, err)
	assert.Empty(t, states)
	assert.Empty(t, b.index.Search("lived"))
}

func TestEngine_LocalEditSurvivesRemoteDeletion(t *testing.T) {
	ctx := context.Background()
	blobs := remote.NewMemoryBlobStore()
	a := newTestReplica(t, "vault-1", testKey(), blobs)
	b := newTestReplica(t, "vault-1", testKey(), blobs)

	entry, err := a.store.CreateEntry(ctx, models.ModeNote, "keeper", nil)
	require.NoError(t, err)
	require.NoError(t, a.engine.RunPass(ctx))
	require.NoError(t, b.engine.RunPass(ctx))

	// A deletes and propagates; B edited in the meantime, so B's copy is
	// re-uploaded instead of discarded.
	require.NoError(t, a.store.DeleteEntry(ctx, entry.ID))
	require.NoError(t, a.engine.RunPass(ctx))

	_, err = b.store.UpdatePage(ctx, entry.ID, 1, "still needed")
	require.NoError(t, err)
	require.NoError(t, b.engine.RunPass(ctx))

	infos, err := blobs.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, entry.ID, infos[0].ID)

	// A pulls the resurrected record back.
	require.NoError(t, a.engine.RunPass(ctx))
	got, err := a.store.ReadEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "still needed", got.Pages[0].Text)
}

// ─────────────────────────────────────────────────────────────────────────────
// Failure handling
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_InterruptedPushResumesNextPass(t *testing.T) {
	ctx := context.Background()
	blobs := remote.NewMemoryBlobStore()
	a := newTestReplica(t, "vault-1", testKey(), blobs)

	entry, err := a.store.CreateEntry(ctx, models.ModeNote, "flaky upload", nil)
	require.NoError(t, err)

	blobs.FailPut = errors.New("connection reset")
	require.Error(t, a.engine.RunPass(ctx))

	// Nothing was marked synced, so the record is still classified as a push.
	states, err := a.store.States(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.False(t, states[0].Synced())

	require.NoError(t, a.engine.RunPass(ctx))

	states, err = a.store.States(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.True(t, states[0].Synced())

	infos, err := blobs.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, entry.ID, infos[0].ID)
}
