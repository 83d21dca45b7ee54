// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package envelope

import (
	"bytes"
	"testing"

	"github.com/KhylleVillasurda/Notequarry/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAD() models.AssociatedData {
	return models.AssociatedData{
		VaultID:   "vault-1",
		EntryID:   "entry-1",
		PageIndex: 2,
		Revision:  7,
		SealedAt:  1700000000,
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeyLength)
	plaintext := []byte("the quick brown fox")

	rec, err := Seal(key, testAD(), plaintext)
	require.NoError(t, err)
	assert.Len(t, rec.Nonce, NonceLength)
	assert.NotEqual(t, plaintext, rec.Ciphertext)

	got, err := Open(key, testAD(), rec)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSeal_EmptyPlaintext(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeyLength)

	rec, err := Seal(key, testAD(), nil)
	require.NoError(t, err)

	got, err := Open(key, testAD(), rec)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSeal_NoncesNeverRepeat(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeyLength)

	a, err := Seal(key, testAD(), []byte("same"))
	require.NoError(t, err)
	b, err := Seal(key, testAD(), []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestOpen_FailsClosed(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeyLength)
	rec, err := Seal(key, testAD(), []byte("payload"))
	require.NoError(t, err)

	flip := func(r models.EncryptedRecord, mutate func(*models.EncryptedRecord)) models.EncryptedRecord {
		cp := models.EncryptedRecord{
			Nonce:      append([]byte(nil), r.Nonce...),
			Ciphertext: append([]byte(nil), r.Ciphertext...),
		}
		mutate(&cp)
		return cp
	}

	tests := []struct {
		name string
		rec  models.EncryptedRecord
		key  []byte
		ad   models.AssociatedData
	}{
		{
			name: "ciphertext bit flipped",
			rec:  flip(rec, func(r *models.EncryptedRecord) { r.Ciphertext[0] ^= 0x01 }),
			key:  key,
			ad:   testAD(),
		},
		{
			name: "auth tag bit flipped",
			rec:  flip(rec, func(r *models.EncryptedRecord) { r.Ciphertext[len(r.Ciphertext)-1] ^= 0x01 }),
			key:  key,
			ad:   testAD(),
		},
		{
			name: "nonce bit flipped",
			rec:  flip(rec, func(r *models.EncryptedRecord) { r.Nonce[0] ^= 0x01 }),
			key:  key,
			ad:   testAD(),
		},
		{
			name: "wrong key",
			rec:  rec,
			key:  bytes.Repeat([]byte{0x43}, KeyLength),
			ad:   testAD(),
		},
		{
			name: "record bound to another entry",
			rec:  rec,
			key:  key,
			ad: models.AssociatedData{
				VaultID: "vault-1", EntryID: "entry-2", PageIndex: 2, Revision: 7, SealedAt: 1700000000,
			},
		},
		{
			name: "record moved to another page index",
			rec:  rec,
			key:  key,
			ad: models.AssociatedData{
				VaultID: "vault-1", EntryID: "entry-1", PageIndex: 3, Revision: 7, SealedAt: 1700000000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Open(tt.key, tt.ad, tt.rec)
			assert.ErrorIs(t, err, models.ErrDecryptionFailure)
			assert.Nil(t, got, "no partial plaintext on failure")
		})
	}
}

func TestSealOpen_KeyLengthEnforced(t *testing.T) {
	_, err := Seal(bytes.Repeat([]byte{0x42}, 16), testAD(), []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = Open(bytes.Repeat([]byte{0x42}, 16), testAD(), models.EncryptedRecord{})
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestOpen_TruncatedRecord(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeyLength)

	_, err := Open(key, testAD(), models.EncryptedRecord{Nonce: make([]byte, NonceLength), Ciphertext: []byte{0x01}})
	assert.Error(t, err)
}
