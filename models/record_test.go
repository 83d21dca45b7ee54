// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssociatedData_Encode(t *testing.T) {
	ad := AssociatedData{
		VaultID:   "vault-1",
		EntryID:   "entry-9",
		PageIndex: 3,
		Revision:  12,
		SealedAt:  1700000000,
	}
	assert.Equal(t, "vault-1|entry-9|3|12|1700000000", string(ad.Encode()))
}

func TestAssociatedData_Encode_DistinguishesFields(t *testing.T) {
	base := AssociatedData{VaultID: "v", EntryID: "e", PageIndex: 1, Revision: 2, SealedAt: 3}

	variants := []AssociatedData{
		{VaultID: "w", EntryID: "e", PageIndex: 1, Revision: 2, SealedAt: 3},
		{VaultID: "v", EntryID: "f", PageIndex: 1, Revision: 2, SealedAt: 3},
		{VaultID: "v", EntryID: "e", PageIndex: 2, Revision: 2, SealedAt: 3},
		{VaultID: "v", EntryID: "e", PageIndex: 1, Revision: 3, SealedAt: 3},
		{VaultID: "v", EntryID: "e", PageIndex: 1, Revision: 2, SealedAt: 4},
	}
	for _, v := range variants {
		assert.NotEqual(t, base.Encode(), v.Encode(), "%+v must bind differently", v)
	}
}

func TestSyncBundle_Validate(t *testing.T) {
	valid := SyncBundle{
		VaultID: "v",
		EntryID: "e",
		Pages: []PageRecord{
			{Index: 1},
			{Index: 2},
			{Index: 3},
		},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*SyncBundle)
	}{
		{"missing entry id", func(b *SyncBundle) { b.EntryID = "" }},
		{"missing vault id", func(b *SyncBundle) { b.VaultID = "" }},
		{"no pages", func(b *SyncBundle) { b.Pages = nil }},
		{"gap in page indices", func(b *SyncBundle) { b.Pages[1].Index = 5 }},
		{"zero-based page indices", func(b *SyncBundle) {
			b.Pages = []PageRecord{{Index: 0}, {Index: 1}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			b.Pages = append([]PageRecord(nil), valid.Pages...)
			tt.mutate(&b)
			assert.ErrorIs(t, b.Validate(), ErrInvalidBundle)
		})
	}
}

func TestNewEntryID(t *testing.T) {
	a, b := NewEntryID(), NewEntryID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36, "canonical uuid form")
}
