// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"fmt"
	"strings"

	"github.com/warden-foundation/warden/lib/secret"
)

// CredentialRule maps a destination host to a header injected into
// plain HTTP requests for that host. A rule implicitly allows its
// host. The header value lives in an mmap-backed secret buffer; it is
// written into outbound requests and nowhere else.
type CredentialRule struct {
	host       string
	headerName string
	value      *secret.Buffer
}

// NewCredentialRule builds a rule. The headerValue string is copied
// into protected memory; callers holding the original string should
// let it go immediately after.
func NewCredentialRule(host, headerName, headerValue string) (*CredentialRule, error) {
	host = normalizeHost(host)
	if host == "" {
		return nil, fmt.Errorf("credential rule requires a host")
	}
	if headerName == "" {
		return nil, fmt.Errorf("credential rule for %q requires a header name", host)
	}
	if headerValue == "" {
		return nil, fmt.Errorf("credential rule for %q requires a header value", host)
	}
	value, err := secret.NewFromString(headerValue)
	if err != nil {
		return nil, fmt.Errorf("storing credential for %q: %w", host, err)
	}
	return &CredentialRule{host: host, headerName: headerName, value: value}, nil
}

// Host returns the rule's normalized host.
func (r *CredentialRule) Host() string { return r.host }

// HeaderName returns the header the rule injects.
func (r *CredentialRule) HeaderName() string { return r.headerName }

// headerValue exposes the secret for injection. Unexported: the value
// leaves this package only inside an outbound request.
func (r *CredentialRule) headerValue() string { return r.value.String() }

// Close releases the rule's secret buffer.
func (r *CredentialRule) Close() error { return r.value.Close() }

// ruleSet is an immutable host -> rule index built once at server
// construction. Lookups are pure, so concurrent connections share it
// without locking.
type ruleSet map[string]*CredentialRule

func newRuleSet(rules []*CredentialRule) ruleSet {
	set := make(ruleSet, len(rules))
	for _, rule := range rules {
		set[rule.host] = rule
	}
	return set
}

// match returns the rule covering hostport, or nil. Matching strips
// any port and ignores case.
func (s ruleSet) match(hostport string) *CredentialRule {
	return s[normalizeHost(hostport)]
}

// close releases every rule's secret buffer.
func (s ruleSet) close() {
	for _, rule := range s {
		rule.Close()
	}
}

// normalizeHost lowercases a host and strips an optional port. Accepts
// both "example.com:443" and bare "example.com".
func normalizeHost(hostport string) string {
	host := hostport
	// net.SplitHostPort rejects portless input, so split manually.
	// Bracketed IPv6 literals keep their colons; a bare IPv6 literal
	// (two or more colons, no brackets) has no port to strip.
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end >= 0 {
			host = host[1:end]
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.Index(host, ":")]
	}
	return strings.ToLower(strings.TrimSpace(host))
}
