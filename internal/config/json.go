package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// parseJSON reads the JSON config file at path into a StructuredConfig.
func parseJSON(path string) (*StructuredConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading json config file: %w", err)
	}

	cfg := &StructuredConfig{}
	if err = json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error decoding json config file: %w", err)
	}

	return cfg, nil
}
