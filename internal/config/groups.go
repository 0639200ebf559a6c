package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadGroups reads the keyword-filter group dictionary from a YAML file.
// The file maps group names to their member terms:
//
//	CANETAS:
//	  - caneta
//	  - marcador
func LoadGroups(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter groups %s: %w", path, err)
	}

	groups := make(map[string][]string)
	if err := yaml.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("parse filter groups %s: %w", path, err)
	}
	return groups, nil
}
