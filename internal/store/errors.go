package store

import "errors"

var (
	// ErrVaultNotInitialized is returned by record operations before a key
	// has been attached via Unlock.
	ErrVaultNotInitialized = errors.New("vault store has no key attached")

	// ErrVaultAlreadyInitialized is returned by InitVault when a header row
	// already exists.
	ErrVaultAlreadyInitialized = errors.New("vault already initialized")
)
