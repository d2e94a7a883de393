package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads the config file at path, resolves its extends chain, merges
// the chain base-first, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	chain, err := resolveChain(path, nil)
	if err != nil {
		return nil, err
	}

	// Merge raw documents base-first so children override parents.
	merged := map[string]any{}
	for i := len(chain) - 1; i >= 0; i-- {
		doc, err := readRaw(chain[i])
		if err != nil {
			return nil, err
		}
		merged = mergeMaps(merged, doc)
	}

	cfg := Default()
	if err := decodeInto(merged, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Extends = ""
	cfg.BaseConfig = ""

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// resolveChain walks extends/base_config references depth-first, returning
// the chain child-first. A file referencing any of its ancestors is an error.
func resolveChain(path string, visiting []string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	for _, seen := range visiting {
		if seen == abs {
			return nil, fmt.Errorf("config inheritance cycle: %s already in chain", abs)
		}
	}
	visiting = append(visiting, abs)

	doc, err := readRaw(abs)
	if err != nil {
		return nil, err
	}

	parent := stringField(doc, "extends")
	if parent == "" {
		parent = stringField(doc, "base_config")
	}
	if parent == "" {
		return []string{abs}, nil
	}

	if !filepath.IsAbs(parent) {
		parent = filepath.Join(filepath.Dir(abs), parent)
	}
	rest, err := resolveChain(parent, visiting)
	if err != nil {
		return nil, err
	}
	return append([]string{abs}, rest...), nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func stringField(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

// mergeMaps deep-merges override into base, returning a new map. Scalar
// and slice values in override replace base values wholesale; nested maps
// merge recursively.
func mergeMaps(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := out[k].(map[string]any); ok {
				out[k] = mergeMaps(bv, ov)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// decodeInto round-trips the merged raw document through YAML so that the
// typed schema (with defaults pre-populated) only picks up present keys.
func decodeInto(doc map[string]any, cfg *Config) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
