package config

import (
	"flag"
	"os"
)

// ParseFlags reads command-line flags into a StructuredConfig. Flags use
// their zero values when absent so that mergo can overlay env and JSON
// sources on top without clobbering them.
//
// Supported flags:
//
//	-vault   path of the vault database file
//	-remote  base URL of the remote blob store
//	-token   bearer token for the remote
//	-sync    interval between automatic sync passes
//	-c       path to a JSON config file (also -config)
func ParseFlags() *StructuredConfig {
	if flag.Parsed() {
		return &StructuredConfig{}
	}

	cfg := &StructuredConfig{}

	flag.StringVar(&cfg.Vault.Path, "vault", "", "path to the vault database file")
	flag.StringVar(&cfg.Remote.BaseURL, "remote", "", "base URL of the remote blob store")
	flag.StringVar(&cfg.Remote.Token, "token", "", "bearer token for the remote blob store")
	flag.DurationVar(&cfg.Sync.Interval, "sync", 0, "interval between automatic sync passes")
	flag.StringVar(&cfg.JSONFilePath, "c", "", "path to JSON config file")
	flag.StringVar(&cfg.JSONFilePath, "config", "", "path to JSON config file")

	flag.CommandLine.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError mode

	return cfg
}
