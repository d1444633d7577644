// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides connection-bridging helpers for the
// credential proxy's CONNECT tunnels.
package netutil

import (
	"io"
	"net"
)

// copyOutcome holds the result of one direction of a bidirectional copy.
type copyOutcome struct {
	bytes int64
	err   error
}

// BridgeReaders copies data bidirectionally between two connections
// using the provided readers. The readers may differ from the
// connections when buffered bytes were consumed before the bridge
// started (a CONNECT request line read through a bufio.Reader, for
// example). Each direction copies from one reader into the opposite
// connection.
//
// Returns when either direction finishes. Both connections are closed
// before returning so the surviving goroutine unblocks. The error from
// the first direction to terminate is returned, unless it was a normal
// connection closure (EOF, peer disconnect, broken pipe, reset).
func BridgeReaders(connectionA net.Conn, readerA io.Reader, connectionB net.Conn, readerB io.Reader) error {
	done := make(chan copyOutcome, 2)

	go func() {
		n, err := io.Copy(connectionB, readerA)
		done <- copyOutcome{n, err}
	}()
	go func() {
		n, err := io.Copy(connectionA, readerB)
		done <- copyOutcome{n, err}
	}()

	first := <-done
	connectionA.Close()
	connectionB.Close()
	<-done

	if first.err != nil && !IsExpectedCloseError(first.err) {
		return first.err
	}
	return nil
}
