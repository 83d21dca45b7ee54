// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package remote_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KhylleVillasurda/Notequarry/internal/blobserver"
	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/internal/remote"
	"github.com/KhylleVillasurda/Notequarry/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBlobStore_Contract runs the same scenario against every BlobStore
// implementation: the in-memory reference and the HTTP adapter talking to
// the reference server. Both must behave identically.
func TestBlobStore_Contract(t *testing.T) {
	stores := map[string]func(t *testing.T) remote.BlobStore{
		"memory": func(t *testing.T) remote.BlobStore {
			return remote.NewMemoryBlobStore()
		},
		"http": func(t *testing.T) remote.BlobStore {
			srv := httptest.NewServer(blobserver.New(logger.Nop()).Routes())
			t.Cleanup(srv.Close)

			store, err := remote.NewHTTPBlobStore(srv.URL, "test-token", 5*time.Second, logger.Nop())
			require.NoError(t, err)
			return store
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			// Empty store lists nothing, missing blobs are ErrNotFound.
			infos, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, infos)

			_, _, err = store.Get(ctx, "missing")
			assert.ErrorIs(t, err, remote.ErrNotFound)

			// Put returns a revision; Get returns the bytes and the same
			// revision.
			payload := []byte(`{"entry_id":"e1","pages":[]}`)
			rev1, err := store.Put(ctx, "e1", payload)
			require.NoError(t, err)
			require.NotEmpty(t, rev1)

			data, rev, err := store.Get(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, payload, data)
			assert.Equal(t, rev1, rev)

			// Overwriting advances the revision.
			rev2, err := store.Put(ctx, "e1", []byte("new content"))
			require.NoError(t, err)
			assert.NotEqual(t, rev1, rev2)

			// List reports size and SHA-256 checksum of the stored bytes.
			sum := sha256.Sum256([]byte("new content"))
			infos, err = store.List(ctx)
			require.NoError(t, err)
			require.Len(t, infos, 1)
			assert.Equal(t, "e1", infos[0].ID)
			assert.Equal(t, rev2, infos[0].Revision)
			assert.EqualValues(t, len("new content"), infos[0].Size)
			assert.Equal(t, hex.EncodeToString(sum[:]), infos[0].Checksum)

			// Delete is idempotent: deleting twice succeeds.
			require.NoError(t, store.Delete(ctx, "e1"))
			require.NoError(t, store.Delete(ctx, "e1"))

			_, _, err = store.Get(ctx, "e1")
			assert.ErrorIs(t, err, remote.ErrNotFound)
		})
	}
}

func TestHTTPBlobStore_RejectsBadBaseURL(t *testing.T) {
	_, err := remote.NewHTTPBlobStore("not a url", "", time.Second, logger.Nop())
	assert.Error(t, err)
}

func TestHTTPBlobStore_ListSortedByID(t *testing.T) {
	srv := httptest.NewServer(blobserver.New(logger.Nop()).Routes())
	t.Cleanup(srv.Close)

	store, err := remote.NewHTTPBlobStore(srv.URL, "", 5*time.Second, logger.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := store.Put(ctx, id, []byte(id))
		require.NoError(t, err)
	}

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "alpha", infos[0].ID)
	assert.Equal(t, "bravo", infos[1].ID)
	assert.Equal(t, "charlie", infos[2].ID)
}

func TestHTTPBlobStore_UnreachableRemote(t *testing.T) {
	store, err := remote.NewHTTPBlobStore("http://127.0.0.1:1", "", 200*time.Millisecond, logger.Nop())
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "e1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRemoteUnavailable)
}

// A 4xx verdict is the server refusing the request, not the remote being
// down: it must pass through without the unavailability wrapper even when
// the error gets rewrapped along the way.
func TestHTTPBlobStore_ClientErrorIsNotUnavailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	store, err := remote.NewHTTPBlobStore(srv.URL, "bad-token", time.Second, logger.Nop())
	require.NoError(t, err)

	_, putErr := store.Put(context.Background(), "e1", []byte("ciphertext"))
	require.Error(t, putErr)
	assert.NotErrorIs(t, putErr, models.ErrRemoteUnavailable)
	assert.NotErrorIs(t, putErr, remote.ErrNotFound)
	assert.ErrorContains(t, putErr, "403")

	wrapped := fmt.Errorf("push e1: %w", putErr)
	assert.NotErrorIs(t, wrapped, models.ErrRemoteUnavailable)
}
