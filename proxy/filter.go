// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"fmt"
	"strings"
)

// Filter validates whether a request should be forwarded, beyond the
// host allow check. Check receives descriptive request fields (method,
// host, path) and returns nil to allow or an error explaining the
// denial.
type Filter interface {
	Check(args []string) error
}

// GlobFilter validates requests against glob patterns over the joined
// "METHOD host path" string.
type GlobFilter struct {
	// Allowed lists glob patterns for allowed requests. Empty means
	// everything not blocked is allowed.
	Allowed []string

	// Blocked lists glob patterns for blocked requests. Blocked takes
	// precedence over Allowed.
	Blocked []string
}

// Check validates that a request is allowed.
func (f *GlobFilter) Check(args []string) error {
	request := strings.Join(args, " ")

	for _, pattern := range f.Blocked {
		if matchGlob(pattern, request) {
			return fmt.Errorf("matches blocked pattern: %s", pattern)
		}
	}

	if len(f.Allowed) == 0 {
		return nil
	}
	for _, pattern := range f.Allowed {
		if matchGlob(pattern, request) {
			return nil
		}
	}
	return fmt.Errorf("does not match any allowed pattern")
}

// matchGlob performs simple glob matching with * as the only
// metacharacter.
func matchGlob(pattern, str string) bool {
	parts := strings.Split(pattern, "*")

	if len(parts) == 1 {
		return pattern == str
	}

	if !strings.HasPrefix(str, parts[0]) {
		return false
	}
	str = str[len(parts[0]):]

	for i := 1; i < len(parts)-1; i++ {
		index := strings.Index(str, parts[i])
		if index == -1 {
			return false
		}
		str = str[index+len(parts[i]):]
	}

	return strings.HasSuffix(str, parts[len(parts)-1])
}

// AllowAllFilter allows every request. The default when no filter is
// configured.
type AllowAllFilter struct{}

func (f *AllowAllFilter) Check(args []string) error { return nil }

// DenyAllFilter denies every request. Useful for a proxy kept running
// but administratively disabled.
type DenyAllFilter struct {
	Reason string
}

func (f *DenyAllFilter) Check(args []string) error {
	if f.Reason != "" {
		return fmt.Errorf("proxy disabled: %s", f.Reason)
	}
	return fmt.Errorf("proxy disabled")
}

var (
	_ Filter = (*GlobFilter)(nil)
	_ Filter = (*AllowAllFilter)(nil)
	_ Filter = (*DenyAllFilter)(nil)
)
