// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package sandbox

import "errors"

func restrictProcess() error {
	return errors.New("kernel restriction not supported on this platform")
}
