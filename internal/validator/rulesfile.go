package validator

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// RulesFile is an optional deployment-level extension of the built-in
// rule tables. It can only add entries; the defaults are never removed,
// and the merged tables are still frozen at construction.
type RulesFile struct {
	AllowedModules     []string       `yaml:"allowed_modules"`
	AllowedPrefixes    []string       `yaml:"allowed_prefixes"`
	BlockedIdentifiers []string       `yaml:"blocked_identifiers"`
	Patterns           []ExtraPattern `yaml:"patterns"`
}

// LoadRulesFile reads and parses a YAML rules file.
func LoadRulesFile(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return &rf, nil
}

// WithRules merges a rules file into the config, on top of whatever the
// config (or the defaults) already carry.
func (c Config) WithRules(rf *RulesFile) Config {
	if rf == nil {
		return c
	}
	if len(c.AllowedModules) == 0 {
		c.AllowedModules = defaultAllowedModules()
	}
	if len(c.AllowedPrefixes) == 0 {
		c.AllowedPrefixes = defaultAllowedPrefixes()
	}
	if len(c.BlockedIdentifiers) == 0 {
		c.BlockedIdentifiers = defaultBlockedIdentifiers()
	}
	c.AllowedModules = append(c.AllowedModules, rf.AllowedModules...)
	c.AllowedPrefixes = append(c.AllowedPrefixes, rf.AllowedPrefixes...)
	c.BlockedIdentifiers = append(c.BlockedIdentifiers, rf.BlockedIdentifiers...)
	c.ExtraPatterns = append(c.ExtraPatterns, rf.Patterns...)
	return c
}
