// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package store

const (
	insertVaultHeader = `
		INSERT INTO vault (
			id,
			vault_id,
			schema_version,
			kdf_version,
			kdf_time,
			kdf_memory_kib,
			kdf_threads,
			kdf_key_len,
			kdf_salt,
			verifier,
			created_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	getVaultHeader = `
		SELECT
			vault_id,
			schema_version,
			kdf_version,
			kdf_time,
			kdf_memory_kib,
			kdf_threads,
			kdf_key_len,
			kdf_salt,
			verifier,
			created_at
		FROM vault
		WHERE id = 1;`

	insertEntry = `
		INSERT INTO entries (
			id,
			revision,
			deleted,
			created_at,
			updated_at,
			header_nonce,
			header_ct
		) VALUES ($1, $2, $3, $4, $5, $6, $7);`

	getEntry = `
		SELECT
			id,
			revision,
			deleted,
			created_at,
			updated_at,
			header_nonce,
			header_ct
		FROM entries
		WHERE id = $1;`

	updateEntry = `
		UPDATE entries SET
			revision     = $1,
			deleted      = $2,
			updated_at   = $3,
			header_nonce = $4,
			header_ct    = $5
		WHERE id = $6;`

	deleteEntryRow = `
		DELETE FROM entries WHERE id = $1;`

	insertPage = `
		INSERT INTO pages (
			entry_id,
			page_index,
			revision,
			sealed_at,
			nonce,
			ct,
			word_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7);`

	getPages = `
		SELECT
			page_index,
			revision,
			sealed_at,
			nonce,
			ct,
			word_count
		FROM pages
		WHERE entry_id = $1
		ORDER BY page_index;`

	deletePages = `
		DELETE FROM pages WHERE entry_id = $1;`

	insertSyncState = `
		INSERT INTO sync_state (
			entry_id,
			local_rev,
			synced_local_rev,
			synced_remote_rev,
			deleted,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entry_id) DO UPDATE SET
			local_rev         = excluded.local_rev,
			synced_local_rev  = excluded.synced_local_rev,
			synced_remote_rev = excluded.synced_remote_rev,
			deleted           = excluded.deleted,
			updated_at        = excluded.updated_at;`

	touchSyncState = `
		UPDATE sync_state SET
			local_rev  = $1,
			deleted    = $2,
			updated_at = $3
		WHERE entry_id = $4;`

	markSynced = `
		UPDATE sync_state SET
			synced_local_rev  = $1,
			synced_remote_rev = $2
		WHERE entry_id = $3;`

	getAllStates = `
		SELECT
			entry_id,
			local_rev,
			synced_local_rev,
			synced_remote_rev,
			deleted,
			updated_at
		FROM sync_state;`
)
