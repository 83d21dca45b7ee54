// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

// Package remote defines the blob-store capability the sync engine runs
// against, and provides the HTTP and in-memory implementations.
//
// The engine never assumes anything about the remote beyond the four
// operations below: no authentication flow, no rate-limit handling, no
// server-side computation. The remote holds only ciphertext blobs and
// revision metadata.
package remote

import (
	"context"
	"errors"

	"github.com/KhylleVillasurda/Notequarry/models"
)

//go:generate mockgen -source=remote.go -destination=mocks/blobstore_mock.go -package=mocks

// BlobStore is the abstract remote storage capability.
type BlobStore interface {
	// Put uploads bytes under id and returns the new blob revision.
	Put(ctx context.Context, id string, data []byte) (string, error)

	// Get downloads the blob and its current revision.
	Get(ctx context.Context, id string) ([]byte, string, error)

	// List enumerates all blobs with their revision, size and checksum.
	List(ctx context.Context) ([]models.BlobInfo, error)

	// Delete removes the blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, id string) error
}

// ErrNotFound is returned by Get for an unknown blob id.
var ErrNotFound = errors.New("remote: blob not found")
