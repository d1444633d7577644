// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for sensitive data
// such as API keys and injected credential header values.
//
// Buffer allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close the
// memory is zeroed, unlocked, and unmapped. Because the region is
// outside the Go heap, the garbage collector never copies or relocates
// it — the only way to guarantee secret material does not linger in
// memory after use.
package secret
