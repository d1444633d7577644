// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the shared data model for sandboxed
// execution: invocation options, results, violations, and resource
// usage. Both the in-process sandbox variants and the worker execution
// protocol use these types, so they live in a leaf package with no
// dependencies of their own. Types carry both cbor tags (worker wire
// format) and json tags (status and CLI surfaces).
package schema
