// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/warden-foundation/warden/lib/codec"
)

// CompressionTag identifies the compression applied to one frame's
// payload. Tags are stored in the frame header (1 byte). These values
// are protocol constants — changing them breaks parent/worker
// compatibility.
type CompressionTag uint8

const (
	// CompressionNone marks an uncompressed payload. Used for small
	// messages where compression costs more than it saves.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 marks LZ4 block compression. The default for
	// large payloads: captured script output is usually text-like and
	// LZ4 decodes at memory speed.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd marks zstd compression at the default level.
	// Better ratios for very large text payloads at higher CPU cost.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// Frame layout: a 9-byte header followed by the payload.
//
//	[0:4]  big-endian uint32: payload length on the wire
//	[4]    CompressionTag
//	[5:9]  big-endian uint32: uncompressed payload length (0 when
//	       the tag is CompressionNone)
//
// Payloads are CBOR messages encoded by lib/codec.
const frameHeaderSize = 9

// MaxFrameSize bounds a single frame's uncompressed payload: 64 MiB.
// A worker result carrying more output than this indicates a runaway
// task, not a legitimate message.
const MaxFrameSize = 64 << 20

// compressThreshold is the payload size above which frames are
// compressed. Exec and result envelopes without output stay below it.
const compressThreshold = 4096

// zstd coders are stateless for EncodeAll/DecodeAll use and are shared
// process-wide.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("ipc: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("ipc: zstd decoder initialization failed: " + err.Error())
	}
}

// FrameWriter writes CBOR messages as length-delimited frames.
type FrameWriter struct {
	w io.Writer

	// Codec is the compression applied to payloads above the size
	// threshold. Defaults to CompressionLZ4.
	Codec CompressionTag
}

// NewFrameWriter returns a FrameWriter with the default LZ4 codec.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, Codec: CompressionLZ4}
}

// WriteMessage encodes v to CBOR and writes it as one frame. Payloads
// above the compression threshold are compressed with the writer's
// codec; when compression does not shrink the payload the frame is
// sent uncompressed.
func (fw *FrameWriter) WriteMessage(v any) error {
	payload, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("message of %d bytes exceeds frame limit of %d", len(payload), MaxFrameSize)
	}

	tag := CompressionNone
	wire := payload
	if len(payload) >= compressThreshold && fw.Codec != CompressionNone {
		if compressed, ok := compress(fw.Codec, payload); ok {
			tag = fw.Codec
			wire = compressed
		}
	}

	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(wire)))
	header[4] = byte(tag)
	if tag != CompressionNone {
		binary.BigEndian.PutUint32(header[5:9], uint32(len(payload)))
	}

	if _, err := fw.w.Write(header); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := fw.w.Write(wire); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	return nil
}

// compress applies tag's codec to payload. The second return is false
// when the compressed form is not smaller, in which case the frame
// should be sent uncompressed.
func compress(tag CompressionTag, payload []byte) ([]byte, bool) {
	switch tag {
	case CompressionLZ4:
		buffer := make([]byte, lz4.CompressBlockBound(len(payload)))
		var compressor lz4.Compressor
		n, err := compressor.CompressBlock(payload, buffer)
		if err != nil || n == 0 || n >= len(payload) {
			return nil, false
		}
		return buffer[:n], true
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(payload, nil)
		if len(compressed) >= len(payload) {
			return nil, false
		}
		return compressed, true
	default:
		return nil, false
	}
}

// FrameReader reads length-delimited CBOR frames.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader returns a FrameReader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadMessage reads one frame and decodes its payload into v. Returns
// io.EOF when the stream ends cleanly before a header byte.
func (fr *FrameReader) ReadMessage(v any) error {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(fr.r, header); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("reading frame header: %w", err)
	}

	wireLength := binary.BigEndian.Uint32(header[0:4])
	tag := CompressionTag(header[4])
	uncompressedLength := binary.BigEndian.Uint32(header[5:9])
	if wireLength > MaxFrameSize || uncompressedLength > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds frame limit of %d", max(wireLength, uncompressedLength), MaxFrameSize)
	}

	wire := make([]byte, wireLength)
	if _, err := io.ReadFull(fr.r, wire); err != nil {
		return fmt.Errorf("reading frame payload: %w", err)
	}

	payload, err := decompress(tag, wire, int(uncompressedLength))
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return nil
}

// decompress reverses compress for the given tag.
func decompress(tag CompressionTag, wire []byte, uncompressedLength int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return wire, nil
	case CompressionLZ4:
		payload := make([]byte, uncompressedLength)
		n, err := lz4.UncompressBlock(wire, payload)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression: %w", err)
		}
		return payload[:n], nil
	case CompressionZstd:
		payload, err := zstdDecoder.DecodeAll(wire, make([]byte, 0, uncompressedLength))
		if err != nil {
			return nil, fmt.Errorf("zstd decompression: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", tag)
	}
}
