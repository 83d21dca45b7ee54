// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db, logger.Nop())
	s.Unlock(testVaultID, testKey())
	return s, mock
}

var stateColumns = []string{
	"entry_id", "local_rev", "synced_local_rev", "synced_remote_rev",
	"deleted", "updated_at",
}

func TestStore_States_ScansManifestRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sync_state")).
		WillReturnRows(sqlmock.NewRows(stateColumns).
			AddRow("entry-1", int64(3), int64(3), "r7", 0, int64(1700000000)).
			AddRow("entry-2", int64(1), int64(-1), "", 1, int64(1700000100)))

	states, err := s.States(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.Equal(t, "entry-1", states[0].EntryID)
	assert.True(t, states[0].Synced())
	assert.False(t, states[0].Deleted)

	assert.Equal(t, "entry-2", states[1].EntryID)
	assert.False(t, states[1].Synced())
	assert.True(t, states[1].Deleted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkSynced_UnknownEntry(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sync_state SET")).
		WithArgs(int64(2), "r1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkSynced(context.Background(), "ghost", 2, "r1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PurgeEntry_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)

	boom := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM pages")).
		WithArgs("entry-1").
		WillReturnError(boom)
	mock.ExpectRollback()

	err := s.PurgeEntry(context.Background(), "entry-1")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadHeader_FreshDatabase(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM vault")).
		WillReturnError(sql.ErrNoRows)

	_, ok, err := s.LoadHeader(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
