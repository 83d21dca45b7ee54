// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package models

import "time"

// RecordState is one row of the sync manifest: everything the sync engine
// needs to classify a record without decrypting anything.
type RecordState struct {
	EntryID string

	// LocalRev is the entry's current local revision.
	LocalRev int64

	// SyncedLocalRev is the local revision at the last successful sync of
	// this record, or -1 if it has never been synced.
	SyncedLocalRev int64

	// SyncedRemoteRev is the remote blob revision acknowledged at the last
	// successful sync, empty if the record has never been synced.
	SyncedRemoteRev string

	// Deleted marks the record tombstoned and pending remote propagation.
	Deleted bool

	UpdatedAt time.Time
}

// Synced reports whether the record has ever completed a sync.
func (s RecordState) Synced() bool { return s.SyncedRemoteRev != "" }

// BlobInfo describes one remote blob as reported by the remote's list
// capability.
type BlobInfo struct {
	ID       string `json:"id"`
	Revision string `json:"revision"`
	Size     int64  `json:"size"`

	// Checksum is the hex SHA-256 of the blob bytes, used to verify that a
	// push landed intact before the manifest is marked synced.
	Checksum string `json:"checksum"`
}

// SyncPlan classifies every known record into exactly one action for a sync
// pass. Records needing no action are omitted.
type SyncPlan struct {
	// Push uploads the local bundle: record is new to the remote, or only
	// the local side changed since the last sync.
	Push []RecordState

	// Pull downloads the remote bundle: record is unknown locally, or only
	// the remote side changed since the last sync.
	Pull []RecordState

	// Conflict holds records where both sides advanced past the last-synced
	// markers. Resolved by last-writer-wins with the loser preserved as a
	// duplicate entry.
	Conflict []RecordState

	// DeleteRemote propagates a local tombstone: delete the remote blob,
	// then purge the tombstone once the delete is acknowledged.
	DeleteRemote []RecordState

	// PurgeLocal physically erases a record whose deletion has already been
	// observed remotely (blob gone, no local changes since last sync).
	PurgeLocal []RecordState
}

// Empty reports whether the plan contains no work.
func (p SyncPlan) Empty() bool {
	return len(p.Push) == 0 && len(p.Pull) == 0 && len(p.Conflict) == 0 &&
		len(p.DeleteRemote) == 0 && len(p.PurgeLocal) == 0
}
