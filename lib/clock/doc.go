// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. The soft sandbox's
// memory sampler and the hard sandbox's timeout both run on an
// injected Clock so tests can drive them deterministically with a
// Fake instead of sleeping.
package clock
