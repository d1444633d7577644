// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive data in memory that is locked against
// swapping, excluded from core dumps, and zeroed on close. The backing
// memory is an anonymous mmap region outside the Go heap, so the
// garbage collector can never copy or relocate the secret.
//
// A Buffer must not be copied after creation. After Close, any access
// to the contents panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a secret buffer of the given size. The region is
// mlocked (never swapped) and marked MADV_DONTDUMP (never written to
// core dumps). The caller must Close the buffer when the secret is no
// longer needed.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{
		data:   data,
		length: size,
	}, nil
}

// NewFromBytes copies source into a new protected buffer and zeroes
// the source in place, so the caller's slice no longer holds the
// secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}

	copy(buffer.data, source)
	Zero(source)

	return buffer, nil
}

// NewFromString copies a string value into a new protected buffer.
// The string itself is immutable and relies on GC for cleanup; use
// this only at boundaries where the value already exists as a string
// (configuration files, IPC payloads).
func NewFromString(value string) (*Buffer, error) {
	if value == "" {
		return nil, fmt.Errorf("secret: cannot create buffer from empty string")
	}

	buffer, err := New(len(value))
	if err != nil {
		return nil, err
	}

	copy(buffer.data, value)
	return buffer, nil
}

// Bytes returns the secret data. The slice points directly into the
// mmap region — do not retain it beyond the buffer's lifetime. Panics
// if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data[:b.length]
}

// String returns the secret as a string. The result is a heap copy
// (Go strings are immutable), so use it only at API boundaries that
// require strings, such as http.Header.Set. Panics if the buffer has
// been closed.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return string(b.data[:b.length])
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Close zeroes the contents, unlocks, and unmaps the region. Close is
// idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)
	if err := unix.Munlock(b.data); err != nil {
		unix.Munmap(b.data)
		b.data = nil
		return fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil {
		b.data = nil
		return fmt.Errorf("secret: munmap failed: %w", err)
	}
	b.data = nil
	return nil
}

// Zero overwrites a byte slice with zeros. Use on any transient heap
// copy of secret material as soon as it has been consumed.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
