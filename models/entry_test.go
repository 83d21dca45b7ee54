// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryMode_Valid(t *testing.T) {
	assert.True(t, ModeBook.Valid())
	assert.True(t, ModeNote.Valid())
	assert.False(t, EntryMode("").Valid())
	assert.False(t, EntryMode("book").Valid(), "modes are case-sensitive")
	assert.False(t, EntryMode("JOURNAL").Valid())
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"one", 1},
		{"one two three", 3},
		{"  spaced\tout\nwords  ", 3},
		{"don't count-hyphens twice", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountWords(tt.text), "text %q", tt.text)
	}
}

func TestParseCheckboxes(t *testing.T) {
	text := "shopping list\n" +
		"[ ] milk\n" +
		"  [x] eggs\n" +
		"[X] bread\n" +
		"not [ ] a marker mid-line\n" +
		"[ ]\n"

	boxes := ParseCheckboxes(text)
	assert.Equal(t, []Checkbox{
		{Text: "milk", Checked: false, Position: 1},
		{Text: "eggs", Checked: true, Position: 2},
		{Text: "bread", Checked: true, Position: 3},
		{Text: "", Checked: false, Position: 5},
	}, boxes)
}

func TestParseCheckboxes_NoMarkers(t *testing.T) {
	assert.Empty(t, ParseCheckboxes("plain prose with no lists"))
	assert.Empty(t, ParseCheckboxes(""))
}
