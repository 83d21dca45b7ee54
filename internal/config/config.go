// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// Notequarry engine. It aggregates all sub-configurations and is populated
// by merging values from environment variables, command-line flags, and an
// optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Vault holds local vault database settings.
	Vault Vault `envPrefix:"VAULT_" json:"vault"`

	// KDF holds the key-derivation cost parameters applied to newly created
	// vaults. Existing vaults keep the parameters stored in their header.
	KDF KDF `envPrefix:"KDF_" json:"kdf"`

	// Remote holds the remote blob store settings. An empty BaseURL
	// disables synchronization entirely.
	Remote Remote `envPrefix:"REMOTE_" json:"remote"`

	// Sync holds background synchronization job settings.
	Sync Sync `envPrefix:"SYNC_" json:"sync"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file supplies values not already set by flags or
	// environment variables (the file has the lowest precedence).
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG" json:"-"`
}

// Vault contains local vault database settings.
type Vault struct {
	// Path is the filesystem path of the vault SQLite database.
	// Env: VAULT_PATH
	Path string `env:"PATH" json:"path"`
}

// KDF contains Argon2id cost parameters for new vaults.
type KDF struct {
	// Time is the iteration count.
	// Env: KDF_TIME
	Time uint32 `env:"TIME" json:"time"`

	// MemoryKiB is the memory cost in KiB.
	// Env: KDF_MEMORY_KIB
	MemoryKiB uint32 `env:"MEMORY_KIB" json:"memory_kib"`

	// Threads is the parallelism degree.
	// Env: KDF_THREADS
	Threads uint8 `env:"THREADS" json:"threads"`
}

// Remote contains settings of the remote blob store capability.
type Remote struct {
	// BaseURL is the root endpoint of the blob store, e.g.
	// "https://drive.example.com/notequarry". Empty disables sync.
	// Env: REMOTE_BASE_URL
	BaseURL string `env:"BASE_URL" json:"base_url"`

	// Token is an opaque bearer credential passed through to the remote.
	// How it is obtained (OAuth etc.) is the transport collaborator's
	// concern, not the engine's.
	// Env: REMOTE_TOKEN
	Token string `env:"TOKEN" json:"token"`

	// RequestTimeout bounds each individual remote call.
	// Env: REMOTE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" json:"request_timeout"`
}

// Sync contains background sync job settings.
type Sync struct {
	// Interval is the period between automatic sync passes (e.g. "5m").
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL" json:"interval"`
}

// SyncEnabled reports whether a remote is configured.
func (cfg *StructuredConfig) SyncEnabled() bool {
	return cfg.Remote.BaseURL != ""
}

// GetConfig builds the engine configuration by merging flags, environment
// variables and an optional JSON file, applying defaults, and validating the
// result.
func GetConfig() (*StructuredConfig, error) {
	cfg, err := newConfigBuilder().
		withFlags().
		withEnv().
		withJSON().
		build()
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, cfg.validate()
}
