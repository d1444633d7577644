// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/warden-foundation/warden/lib/secret"
)

// RulesFile is the YAML shape warden-proxy loads its policy from.
type RulesFile struct {
	// AllowedHosts lists hosts reachable without credential
	// injection.
	AllowedHosts []string `yaml:"allowed_hosts"`

	// Credentials lists the injection rules.
	Credentials []RuleConfig `yaml:"credentials"`
}

// RuleConfig is one credential rule entry. Exactly one of Value,
// ValueFromEnv, or ValueFromFile must be set.
type RuleConfig struct {
	// Host the rule covers (also allows it implicitly).
	Host string `yaml:"host"`

	// Header is the header name to inject.
	Header string `yaml:"header"`

	// Value is the literal header value. Discouraged outside tests:
	// the secret then lives in the rules file.
	Value string `yaml:"value"`

	// ValueFromEnv names an environment variable holding the value.
	ValueFromEnv string `yaml:"value_from_env"`

	// ValueFromFile is a path to a file holding the value. Trailing
	// whitespace is trimmed; the read buffer is zeroed after the
	// value moves into protected memory.
	ValueFromFile string `yaml:"value_from_file"`
}

// LoadRules reads a YAML rules file and materializes its credential
// rules. On error, any rules already built are closed.
func LoadRules(path string) (allowedHosts []string, rules []*CredentialRule, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading rules file: %w", err)
	}

	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing rules file: %w", err)
	}

	rules, err = buildRules(file.Credentials)
	if err != nil {
		return nil, nil, err
	}
	return file.AllowedHosts, rules, nil
}

// buildRules resolves each entry's value source and constructs the
// rules.
func buildRules(configs []RuleConfig) ([]*CredentialRule, error) {
	rules := make([]*CredentialRule, 0, len(configs))
	fail := func(err error) ([]*CredentialRule, error) {
		for _, rule := range rules {
			rule.Close()
		}
		return nil, err
	}

	for index, config := range configs {
		value, err := resolveValue(config)
		if err != nil {
			return fail(fmt.Errorf("credential rule %d (%s): %w", index, config.Host, err))
		}
		rule, err := NewCredentialRule(config.Host, config.Header, value)
		if err != nil {
			return fail(fmt.Errorf("credential rule %d: %w", index, err))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func resolveValue(config RuleConfig) (string, error) {
	sources := 0
	for _, set := range []bool{config.Value != "", config.ValueFromEnv != "", config.ValueFromFile != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return "", fmt.Errorf("exactly one of value, value_from_env, value_from_file is required")
	}

	switch {
	case config.Value != "":
		return config.Value, nil
	case config.ValueFromEnv != "":
		value := os.Getenv(config.ValueFromEnv)
		if value == "" {
			return "", fmt.Errorf("environment variable %s is empty or unset", config.ValueFromEnv)
		}
		return value, nil
	default:
		data, err := os.ReadFile(config.ValueFromFile)
		if err != nil {
			return "", fmt.Errorf("reading value file: %w", err)
		}
		value := strings.TrimSpace(string(data))
		secret.Zero(data)
		if value == "" {
			return "", fmt.Errorf("value file %s is empty", config.ValueFromFile)
		}
		return value, nil
	}
}
