// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package models

// EventKind identifies the engine-to-shell notification types.
type EventKind string

const (
	// EventEntryListChanged fires after any committed mutation that affects
	// the default entry list (create, update, delete, pulled sync changes).
	EventEntryListChanged EventKind = "entry_list_changed"

	// EventSyncProgress fires once per completed per-record sync operation
	// and once at pass start and end.
	EventSyncProgress EventKind = "sync_progress"

	// EventConflictDetected fires when a sync conflict was resolved; the
	// losing version survives as DuplicateID.
	EventConflictDetected EventKind = "conflict_detected"
)

// Event is a notification delivered to session subscribers.
type Event struct {
	Kind EventKind

	// EntryID is set for per-record events.
	EntryID string

	// DuplicateID is the conflict copy's ID on EventConflictDetected.
	DuplicateID string

	// Done and Total report sync pass progress on EventSyncProgress.
	Done  int
	Total int

	// Err carries a non-fatal failure (e.g. remote unavailable) when the
	// event reports an aborted sync pass.
	Err error
}
