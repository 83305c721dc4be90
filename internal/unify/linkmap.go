package unify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadLinkMap reads a YAML mapping of native link keys to account IDs.
// A missing file yields an empty map.
func LoadLinkMap(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read link map: %w", err)
	}
	var doc struct {
		Links map[string]string `yaml:"links"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse link map: %w", err)
	}
	out := make(map[string]string, len(doc.Links))
	for k, v := range doc.Links {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out, nil
}
