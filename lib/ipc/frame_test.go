// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/warden-foundation/warden/lib/schema"
)

func TestExecMessageRoundTrip(t *testing.T) {
	var buffer bytes.Buffer

	sent := ExecMessage{
		Type:   TypeExec,
		Script: "echo hello",
		Options: &schema.Options{
			Filesystem: &schema.FilesystemOptions{
				ReadPaths: []string{"/tmp/data"},
			},
		},
		EnforceHard: true,
	}
	if err := NewFrameWriter(&buffer).WriteMessage(sent); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	var received ExecMessage
	if err := NewFrameReader(&buffer).ReadMessage(&received); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	if received.Type != TypeExec {
		t.Errorf("Type = %q, want %q", received.Type, TypeExec)
	}
	if received.Script != "echo hello" {
		t.Errorf("Script = %q, want %q", received.Script, "echo hello")
	}
	if !received.EnforceHard {
		t.Error("EnforceHard lost in transit")
	}
	if received.Options == nil || received.Options.Filesystem == nil ||
		len(received.Options.Filesystem.ReadPaths) != 1 {
		t.Errorf("Options lost in transit: %+v", received.Options)
	}
}

func TestSmallFramesAreUncompressed(t *testing.T) {
	var buffer bytes.Buffer
	if err := NewFrameWriter(&buffer).WriteMessage(ExecMessage{Type: TypeExec, Script: "true"}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	frame := buffer.Bytes()
	if got := CompressionTag(frame[4]); got != CompressionNone {
		t.Errorf("small frame tag = %v, want none", got)
	}
}

func TestLargePayloadCompression(t *testing.T) {
	// Repetitive text compresses well under both codecs.
	output := strings.Repeat("sandbox log line with recurring structure\n", 2000)

	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			var buffer bytes.Buffer
			writer := NewFrameWriter(&buffer)
			writer.Codec = tag

			sent := ResultMessage{
				Type:   TypeResult,
				Result: &schema.Result{Success: true, Output: output, Violations: []schema.Violation{}},
			}
			if err := writer.WriteMessage(sent); err != nil {
				t.Fatalf("WriteMessage: %v", err)
			}

			frame := buffer.Bytes()
			if got := CompressionTag(frame[4]); got != tag {
				t.Errorf("frame tag = %v, want %v", got, tag)
			}
			wireLength := binary.BigEndian.Uint32(frame[0:4])
			if int(wireLength) >= len(output) {
				t.Errorf("wire length %d not smaller than raw output %d", wireLength, len(output))
			}

			var received ResultMessage
			if err := NewFrameReader(&buffer).ReadMessage(&received); err != nil {
				t.Fatalf("ReadMessage: %v", err)
			}
			if received.Result == nil || received.Result.Output != output {
				t.Error("output corrupted in transit")
			}
		})
	}
}

func TestReadMessageCleanEOF(t *testing.T) {
	var empty bytes.Buffer
	var message ResultMessage
	if err := NewFrameReader(&empty).ReadMessage(&message); err != io.EOF {
		t.Errorf("ReadMessage on empty stream = %v, want io.EOF", err)
	}
}

func TestOversizedFrameRejected(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], MaxFrameSize+1)

	var message ResultMessage
	err := NewFrameReader(bytes.NewReader(header)).ReadMessage(&message)
	if err == nil || !strings.Contains(err.Error(), "frame limit") {
		t.Errorf("oversized frame error = %v, want frame limit rejection", err)
	}
}

func TestUnknownCompressionTagRejected(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], 1)
	header[4] = 0x7f
	frame := append(header, 0x00)

	var message ResultMessage
	err := NewFrameReader(bytes.NewReader(frame)).ReadMessage(&message)
	if err == nil || !strings.Contains(err.Error(), "unknown compression tag") {
		t.Errorf("unknown tag error = %v, want unknown compression tag", err)
	}
}
