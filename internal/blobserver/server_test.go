// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package blobserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_PutReturnsRevisionAndChecksum(t *testing.T) {
	h := New(logger.Nop()).Routes()

	rec := do(t, h, http.MethodPut, "/blobs/e1", []byte("payload"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(remote.RevisionHeader))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1", body["revision"])
	assert.NotEmpty(t, body["checksum"])

	// Overwrite bumps the revision.
	rec = do(t, h, http.MethodPut, "/blobs/e1", []byte("payload v2"))
	assert.Equal(t, "2", rec.Header().Get(remote.RevisionHeader))
}

func TestServer_GetRoundTrip(t *testing.T) {
	h := New(logger.Nop()).Routes()
	do(t, h, http.MethodPut, "/blobs/e1", []byte("stored bytes"))

	rec := do(t, h, http.MethodGet, "/blobs/e1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stored bytes", rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get(remote.RevisionHeader))
}

func TestServer_GetMissingBlob(t *testing.T) {
	h := New(logger.Nop()).Routes()
	rec := do(t, h, http.MethodGet, "/blobs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DeleteIsIdempotent(t *testing.T) {
	h := New(logger.Nop()).Routes()
	do(t, h, http.MethodPut, "/blobs/e1", []byte("x"))

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/blobs/e1", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/blobs/e1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/blobs/e1", nil).Code)
}

func TestServer_ListSortedWithMetadata(t *testing.T) {
	h := New(logger.Nop()).Routes()
	do(t, h, http.MethodPut, "/blobs/bravo", []byte("bb"))
	do(t, h, http.MethodPut, "/blobs/alpha", []byte("a"))

	rec := do(t, h, http.MethodGet, "/blobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []struct {
		ID       string `json:"id"`
		Revision string `json:"revision"`
		Size     int64  `json:"size"`
		Checksum string `json:"checksum"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].ID)
	assert.EqualValues(t, 1, infos[0].Size)
	assert.Equal(t, "bravo", infos[1].ID)
	assert.EqualValues(t, 2, infos[1].Size)
	assert.NotEmpty(t, infos[0].Checksum)
}
