// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package keymanager

import (
	"bytes"
	"testing"

	"github.com/KhylleVillasurda/Notequarry/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFastManager uses deliberately weak KDF parameters so the suite stays
// fast. Production parameters come from configuration.
func newFastManager() *Manager {
	return New(1, 8*1024, 1)
}

func TestManager_InitializeUnlockRoundTrip(t *testing.T) {
	m := newFastManager()

	params, salt, verifier, key, err := m.Initialize("correct horse battery staple")
	require.NoError(t, err)
	assert.EqualValues(t, KDFVersion1, params.Version)
	assert.Len(t, salt, 16)
	assert.Len(t, key.Bytes(), 32)
	assert.NotEmpty(t, verifier)

	hdr := models.VaultHeader{KDF: params, Salt: salt, Verifier: verifier}
	unlocked, err := m.Unlock("correct horse battery staple", hdr)
	require.NoError(t, err)
	assert.Equal(t, key.Bytes(), unlocked.Bytes())
}

// TestManager_SimilarPasswordsRejected checks that a one-character edit is
// enough to fail verification outright rather than yield a near-miss key.
func TestManager_SimilarPasswordsRejected(t *testing.T) {
	m := newFastManager()

	params, salt, verifier, _, err := m.Initialize("abc123")
	require.NoError(t, err)
	hdr := models.VaultHeader{KDF: params, Salt: salt, Verifier: verifier}

	for _, wrong := range []string{"abc124", "abc12", "abc1234", "Abc123"} {
		_, err := m.Unlock(wrong, hdr)
		assert.ErrorIs(t, err, models.ErrAuthenticationFailed, "password %q", wrong)
	}
}

func TestManager_EmptyPasswordRejected(t *testing.T) {
	m := newFastManager()

	_, _, _, _, err := m.Initialize("")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = m.Unlock("", models.VaultHeader{KDF: models.KDFParams{Version: KDFVersion1}})
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestManager_SaltsDiffer(t *testing.T) {
	m := newFastManager()

	_, salt1, _, k1, err := m.Initialize("same password")
	require.NoError(t, err)
	_, salt2, _, k2, err := m.Initialize("same password")
	require.NoError(t, err)

	assert.NotEqual(t, salt1, salt2)
	assert.NotEqual(t, k1.Bytes(), k2.Bytes(), "fresh salt must give a fresh key")
}

func TestManager_UnsupportedKDFVersion(t *testing.T) {
	m := newFastManager()

	hdr := models.VaultHeader{KDF: models.KDFParams{Version: 99}}
	_, err := m.Unlock("whatever", hdr)
	assert.ErrorIs(t, err, ErrUnsupportedKDFVersion)
}

func TestMasterKey_Zero(t *testing.T) {
	m := newFastManager()

	_, _, _, key, err := m.Initialize("short lived secret")
	require.NoError(t, err)

	key.Zero()
	assert.True(t, bytes.Equal(key.Bytes(), make([]byte, 32)) || key.Bytes() == nil,
		"zeroed key must hold no residue")
}
