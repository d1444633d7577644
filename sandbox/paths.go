// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/warden-foundation/warden/lib/schema"
)

// checkPaths scans every configured filesystem path for suspicious
// content and returns one filesystem violation per offender, in
// configuration order (read, write, exec). This is a configuration
// sanity check, not kernel enforcement: a path that smells like
// traversal is recorded and execution proceeds.
func checkPaths(filesystem *FilesystemOptions, now time.Time) []Violation {
	if filesystem == nil {
		return nil
	}

	var violations []Violation
	record := func(category string, paths []string) {
		for _, path := range paths {
			reason, suspicious := suspiciousPath(path)
			if !suspicious {
				continue
			}
			violations = append(violations, Violation{
				Type:        schema.ViolationFilesystem,
				Description: fmt.Sprintf("suspicious %s path: %s", category, reason),
				Path:        path,
				Timestamp:   now,
			})
		}
	}

	record("read", filesystem.ReadPaths)
	record("write", filesystem.WritePaths)
	record("exec", filesystem.ExecPaths)
	return violations
}

// suspiciousPath reports whether a configured path carries a
// parent-directory traversal segment or an embedded NUL byte. The
// check runs on the raw string — cleaning the path first would erase
// exactly the evidence being looked for.
func suspiciousPath(path string) (string, bool) {
	if strings.ContainsRune(path, 0) {
		return "embedded NUL byte", true
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return "parent directory traversal", true
		}
	}
	return "", false
}
