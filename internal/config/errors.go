package config

import "errors"

var (
	ErrInvalidVaultConfigs  = errors.New("invalid vault configs: vault path is required")
	ErrInvalidKDFConfigs    = errors.New("invalid kdf configs: non-zero time, memory and threads required")
	ErrInvalidRemoteConfigs = errors.New("invalid remote configs: positive request timeout required")
	ErrInvalidSyncConfigs   = errors.New("invalid sync configs: positive sync interval required")
)
