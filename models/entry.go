// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package models

import (
	"strings"
	"time"
	"unicode"
)

// EntryMode distinguishes the two kinds of vault entries.
type EntryMode string

const (
	// ModeBook is a multi-page entry with an ordered, contiguous page list.
	ModeBook EntryMode = "BOOK"

	// ModeNote is a single-page freeform entry that may contain inline
	// checkbox markers ("[ ]" / "[x]").
	ModeNote EntryMode = "NOTE"
)

// Valid reports whether m is one of the known entry modes.
func (m EntryMode) Valid() bool {
	return m == ModeBook || m == ModeNote
}

// PageSoftWordLimit is the per-page word count above which UpdatePage flags
// the page to the caller. Exceeding it is valid state, not an error.
const PageSoftWordLimit = 800

// Entry is a fully decrypted vault entry. Values of this type exist only in
// process memory while the vault is unlocked; everything persisted or
// transmitted is an [EncryptedRecord].
type Entry struct {
	// ID is the stable identifier of the entry (UUIDv7).
	ID string

	// Title is the human-readable display name. Stored encrypted.
	Title string

	// Mode is BOOK or NOTE. Stored encrypted inside the entry header.
	Mode EntryMode

	// Tags are optional labels used for filtering. Stored encrypted.
	Tags []string

	// Revision increases by one on every committed mutation of the entry.
	Revision int64

	// Deleted marks the entry as tombstoned for sync propagation.
	Deleted bool

	CreatedAt time.Time
	UpdatedAt time.Time

	// Pages is ordered by Page.Index, 1-based and contiguous. A NOTE entry
	// always has exactly one page.
	Pages []Page

	// Checkboxes holds the inline markers parsed from a NOTE entry's text
	// on read. Always nil for BOOK entries.
	Checkboxes []Checkbox
}

// Page is one page of a BOOK entry, or the single implicit page of a NOTE.
type Page struct {
	// Index is 1-based. Indices are contiguous: structural changes
	// renumber subsequent pages, never leaving gaps or duplicates.
	Index int

	// Text is the decrypted page content.
	Text string

	// WordCount is derived from Text on every write.
	WordCount int
}

// EntrySummary is the list-view projection of an entry.
type EntrySummary struct {
	ID        string
	Title     string
	Mode      EntryMode
	Tags      []string
	PageCount int
	WordCount int
	UpdatedAt time.Time
}

// ListFilter narrows ListEntries results. The zero value lists all live
// entries.
type ListFilter struct {
	// Mode restricts results to a single entry mode when non-empty.
	Mode EntryMode

	// Tag restricts results to entries carrying the tag when non-empty.
	Tag string

	// IncludeDeleted also returns tombstoned entries.
	IncludeDeleted bool
}

// UpdateResult reports the outcome of a committed page update.
type UpdateResult struct {
	// Revision is the entry revision after the update.
	Revision int64

	// WordCount is the recomputed word count of the updated page.
	WordCount int

	// OverSoftLimit is set when WordCount exceeds [PageSoftWordLimit].
	OverSoftLimit bool
}

// Checkbox is an inline checkbox marker parsed from NOTE-mode content.
type Checkbox struct {
	// Text is the label following the marker, up to end of line.
	Text string

	// Checked reports whether the marker was "[x]" (case-insensitive).
	Checked bool

	// Position is the 0-based line number the marker appears on.
	Position int
}

// CountWords counts whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ParseCheckboxes extracts inline checkbox markers from NOTE-mode text.
// A marker is a line whose first non-space characters are "[ ]" or "[x]".
func ParseCheckboxes(text string) []Checkbox {
	var boxes []Checkbox
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		var checked bool
		switch {
		case strings.HasPrefix(trimmed, "[ ]"):
			checked = false
		case strings.HasPrefix(trimmed, "[x]"), strings.HasPrefix(trimmed, "[X]"):
			checked = true
		default:
			continue
		}
		boxes = append(boxes, Checkbox{
			Text:     strings.TrimSpace(trimmed[3:]),
			Checked:  checked,
			Position: i,
		})
	}
	return boxes
}
