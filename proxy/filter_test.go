// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import "testing"

func TestGlobFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  GlobFilter
		args    []string
		allowed bool
	}{
		{
			name:    "empty filter allows everything",
			filter:  GlobFilter{},
			args:    []string{"GET", "api.example.com", "/v1/data"},
			allowed: true,
		},
		{
			name:    "blocked pattern wins",
			filter:  GlobFilter{Allowed: []string{"*"}, Blocked: []string{"DELETE *"}},
			args:    []string{"DELETE", "api.example.com", "/v1/data"},
			allowed: false,
		},
		{
			name:    "allowed pattern matches",
			filter:  GlobFilter{Allowed: []string{"GET api.example.com *"}},
			args:    []string{"GET", "api.example.com", "/anything"},
			allowed: true,
		},
		{
			name:    "outside allowed patterns",
			filter:  GlobFilter{Allowed: []string{"GET api.example.com *"}},
			args:    []string{"GET", "other.example.com", "/anything"},
			allowed: false,
		},
		{
			name:    "exact match without wildcard",
			filter:  GlobFilter{Allowed: []string{"GET api.example.com /v1/data"}},
			args:    []string{"GET", "api.example.com", "/v1/data"},
			allowed: true,
		},
		{
			name:    "middle wildcard",
			filter:  GlobFilter{Blocked: []string{"* internal.example.com *"}},
			args:    []string{"POST", "internal.example.com", "/admin"},
			allowed: false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.filter.Check(test.args)
			if got := err == nil; got != test.allowed {
				t.Errorf("Check(%v) = %v, want allowed=%v", test.args, err, test.allowed)
			}
		})
	}
}

func TestAllowAllAndDenyAll(t *testing.T) {
	if err := (&AllowAllFilter{}).Check([]string{"GET", "x", "/"}); err != nil {
		t.Errorf("AllowAllFilter denied: %v", err)
	}
	if err := (&DenyAllFilter{Reason: "maintenance"}).Check([]string{"GET", "x", "/"}); err == nil {
		t.Error("DenyAllFilter allowed")
	}
}
