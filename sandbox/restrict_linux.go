// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// restrictProcess irreversibly hardens the worker process before the
// task runs. Today that means no-new-privileges, which also makes the
// process eligible for unprivileged Landlock and seccomp rulesets.
//
// TODO: install a Landlock ruleset built from the allowed path lists
// once the landlock syscall wrappers land in golang.org/x/sys/unix.
func restrictProcess() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("setting no_new_privs: %w", err)
	}
	return nil
}
