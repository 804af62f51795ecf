// Package redact masks personal data in extracted CV text before it is
// stored or embedded.
package redact

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

const (
	PlaceholderEmail    = "[EMAIL]"
	PlaceholderPhone    = "[TELÉFONO]"
	PlaceholderIP       = "[IP]"
	PlaceholderDocument = "[DOCUMENTO]"
	PlaceholderAddress  = "[DIRECCIÓN]"
)

// Rule replaces every match of Pattern with Placeholder.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Placeholder string
}

// DefaultRules returns the built-in rules in application order. Order
// matters: phone numbers are replaced before the 7-8 digit document rule
// can claim their digit runs, and IP addresses before anything else that
// looks at dotted digits.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "email",
			Pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			Placeholder: PlaceholderEmail,
		},
		{
			Name:        "phone",
			Pattern:     regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
			Placeholder: PlaceholderPhone,
		},
		{
			Name:        "ip",
			Pattern:     regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`),
			Placeholder: PlaceholderIP,
		},
		{
			Name:        "document",
			Pattern:     regexp.MustCompile(`\b\d{7,8}\b`),
			Placeholder: PlaceholderDocument,
		},
		{
			// House number, then letters and whitespace up to a street type.
			// Line breaks and glued tokens ("MainStreet") still match, as
			// extracted PDF text often splits addresses.
			Name:        "address",
			Pattern:     regexp.MustCompile(`(?i)\b\d+\s+[a-z\s]+?(?:street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|way|court|ct|plaza|plz)\b`),
			Placeholder: PlaceholderAddress,
		},
	}
}

type ruleFile struct {
	Rules []ruleConfig `yaml:"rules"`
}

type ruleConfig struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Placeholder string `yaml:"placeholder"`
}

// LoadRuleFile reads additional rules from a YAML document of the form
//
//	rules:
//	  - name: passport
//	    pattern: '\b[A-Z]{3}\d{6}\b'
//	    placeholder: '[PASAPORTE]'
//
// A missing file yields no rules and no error.
func LoadRuleFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read redaction rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules compiles rules from YAML.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse redaction rules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, rc := range f.Rules {
		if rc.Pattern == "" || rc.Placeholder == "" {
			return nil, fmt.Errorf("redaction rule %d (%s): pattern and placeholder are required", i, rc.Name)
		}
		re, err := regexp.Compile(rc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redaction rule %d (%s): %w", i, rc.Name, err)
		}
		name := rc.Name
		if name == "" {
			name = fmt.Sprintf("custom_%d", i)
		}
		rules = append(rules, Rule{Name: name, Pattern: re, Placeholder: rc.Placeholder})
	}
	return rules, nil
}
