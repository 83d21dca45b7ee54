// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package config

import "time"

// Defaults applied by applyDefaults when a value is absent from every
// configuration source.
const (
	DefaultKDFTime      = 3
	DefaultKDFMemoryKiB = 64 * 1024
	DefaultKDFThreads   = 4

	DefaultSyncInterval   = 5 * time.Minute
	DefaultRequestTimeout = 30 * time.Second
)

func (cfg *StructuredConfig) applyDefaults() {
	if cfg.KDF.Time == 0 {
		cfg.KDF.Time = DefaultKDFTime
	}
	if cfg.KDF.MemoryKiB == 0 {
		cfg.KDF.MemoryKiB = DefaultKDFMemoryKiB
	}
	if cfg.KDF.Threads == 0 {
		cfg.KDF.Threads = DefaultKDFThreads
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = DefaultSyncInterval
	}
	if cfg.Remote.RequestTimeout == 0 {
		cfg.Remote.RequestTimeout = DefaultRequestTimeout
	}
}

// validate checks that the final merged [StructuredConfig] satisfies all
// engine invariants before it is used at startup.
func (cfg *StructuredConfig) validate() error {
	if cfg.Vault.Path == "" {
		return ErrInvalidVaultConfigs
	}

	if cfg.KDF.Time == 0 || cfg.KDF.MemoryKiB == 0 || cfg.KDF.Threads == 0 {
		return ErrInvalidKDFConfigs
	}

	if cfg.SyncEnabled() && cfg.Remote.RequestTimeout <= 0 {
		return ErrInvalidRemoteConfigs
	}

	if cfg.SyncEnabled() && cfg.Sync.Interval <= 0 {
		return ErrInvalidSyncConfigs
	}

	return nil
}
