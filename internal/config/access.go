package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetPath retrieves a value from the configuration using a dot-notation path
// such as "webhooks.step_timeout". Durations come back in their string form.
func (c *Config) GetPath(path string) (any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return getValue(m, path)
}

func getValue(m map[string]any, path string) (any, error) {
	var current any = m

	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}

		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q breaks at %q (not a map)", path, part)
		}

		val, exists := m[part]
		if !exists {
			return nil, fmt.Errorf("path %q: key %q not found", path, part)
		}
		current = val
	}

	return current, nil
}

// SetPath writes a scalar at a dot-notation path in the config file the
// configuration was loaded from. Comments and key order in the file survive.
// The edited document must still parse into a valid configuration; with
// persist false nothing is written and only that check runs.
func (c *Config) SetPath(path, value string, persist bool) error {
	if c.SourcePath == "" {
		return fmt.Errorf("configuration has no source file")
	}
	if strings.Trim(path, ".") == "" {
		return fmt.Errorf("path is empty")
	}

	original, err := os.ReadFile(c.SourcePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.SourcePath, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(original, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", c.SourcePath, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return fmt.Errorf("%s is not a YAML document", c.SourcePath)
	}

	target, err := findNode(doc.Content[0], strings.Trim(path, "."), true)
	if err != nil {
		return fmt.Errorf("navigate path %q: %w", path, err)
	}
	target.Kind = yaml.ScalarNode
	target.Value = value
	target.Tag = guessTag(value)
	target.Content = nil

	candidate, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}

	updated, err := parseStrict(candidate)
	if err != nil {
		return fmt.Errorf("rejected %s=%s: %w", path, value, err)
	}
	if err := validate(updated); err != nil {
		return fmt.Errorf("rejected %s=%s: %w", path, value, err)
	}

	if !persist {
		return nil
	}

	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(c.SourcePath); statErr == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(c.SourcePath, candidate, mode); err != nil {
		return fmt.Errorf("persist config change: %w", err)
	}
	return nil
}

// parseStrict is Parse with unknown keys rejected, so a typo in a path
// cannot silently add a setting nothing reads.
func parseStrict(data []byte) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolateEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	normalize(cfg)
	return cfg, nil
}

func findNode(node *yaml.Node, path string, create bool) (*yaml.Node, error) {
	current := node

	for _, part := range strings.Split(path, ".") {
		if current.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%q is not under a mapping", part)
		}

		found := false
		for i := 0; i < len(current.Content); i += 2 {
			if current.Content[i].Value == part {
				current = current.Content[i+1]
				found = true
				break
			}
		}
		if found {
			continue
		}
		if !create {
			return nil, fmt.Errorf("key %q not found", part)
		}

		// Intermediate keys become mappings; the leaf is overwritten by the caller.
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: part}
		valueNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		current.Content = append(current.Content, keyNode, valueNode)
		current = valueNode
	}

	return current, nil
}

func guessTag(v string) string {
	if v == "true" || v == "false" {
		return "!!bool"
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return "!!int"
	}
	return "!!str"
}
