// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

// Package blobserver implements a reference remote blob store over HTTP.
//
// It exists for development and integration testing of the sync engine: a
// dumb server that stores opaque blobs with monotonically increasing
// revisions and answers the four capability operations. It holds only
// ciphertext and revision metadata and performs no computation on blob
// contents beyond checksumming the bytes.
package blobserver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/internal/remote"
	"github.com/KhylleVillasurda/Notequarry/models"
)

type blob struct {
	data     []byte
	revision int64
}

// Server is the reference blob server. Blobs live in memory.
type Server struct {
	logger *logger.Logger

	mu    sync.Mutex
	blobs map[string]*blob
}

// New constructs an empty Server.
func New(log *logger.Logger) *Server {
	return &Server{
		logger: log,
		blobs:  make(map[string]*blob),
	}
}

// Routes returns the chi router serving the blob capability.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/blobs", s.handleList)
	r.Put("/blobs/{id}", s.handlePut)
	r.Get("/blobs/{id}", s.handleGet)
	r.Delete("/blobs/{id}", s.handleDelete)

	return r
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	b := s.blobs[id]
	if b == nil {
		b = &blob{}
		s.blobs[id] = b
	}
	b.data = data
	b.revision++
	rev := b.revision
	s.mu.Unlock()

	sum := sha256.Sum256(data)
	s.logger.Debug().Str("blob_id", id).Int64("revision", rev).Int("size", len(data)).Msg("blob stored")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(remote.RevisionHeader, strconv.FormatInt(rev, 10))
	json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck // best-effort response body
		"revision": strconv.FormatInt(rev, 10),
		"checksum": hex.EncodeToString(sum[:]),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	b, ok := s.blobs[id]
	var (
		data []byte
		rev  int64
	)
	if ok {
		data = append([]byte(nil), b.data...)
		rev = b.revision
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "blob not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(remote.RevisionHeader, strconv.FormatInt(rev, 10))
	w.Write(data) //nolint:errcheck // nothing to do about a failed write
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	infos := make([]models.BlobInfo, 0, len(s.blobs))
	for id, b := range s.blobs {
		sum := sha256.Sum256(b.data)
		infos = append(infos, models.BlobInfo{
			ID:       id,
			Revision: strconv.FormatInt(b.revision, 10),
			Size:     int64(len(b.data)),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos) //nolint:errcheck // best-effort response body
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}
