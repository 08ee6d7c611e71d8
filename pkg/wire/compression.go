// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-faster/city"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression method bytes, matching the server's own framing (distilled
// spec §4.2). These are wire constants, not Go-side enum choices -- they
// must stay exactly these values to interoperate.
const (
	methodLZ4  = 0x82
	methodZSTD = 0x90
)

// CompressionFrame selects the codec used to wrap column-data payloads.
// A nil *CompressionFrame means "send/receive uncompressed," mirroring how
// the teacher's frame.go treats framing as always-on but leaves the body
// opaque; here compression is the opt-in layer on top of that framing.
type CompressionFrame struct {
	Method byte
}

// NewLZ4Frame returns a CompressionFrame using LZ4 block compression via
// github.com/pierrec/lz4/v4, the same codec family the teacher's broker
// config exposes for topic-level compression, generalized here from
// Kafka's per-record batches to ClickHouse's per-block payloads.
func NewLZ4Frame() *CompressionFrame { return &CompressionFrame{Method: methodLZ4} }

// NewZSTDFrame returns a CompressionFrame using github.com/klauspost/compress/zstd.
func NewZSTDFrame() *CompressionFrame { return &CompressionFrame{Method: methodZSTD} }

var zstdEncoder *zstd.Encoder
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("colwire: failed to initialize zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("colwire: failed to initialize zstd decoder: %v", err))
	}
}

// EncodeFrame compresses payload and writes it to w as a full
// CompressionFrame: 16-byte CityHash128 checksum over everything that
// follows it, then method byte, compressed_size (includes the 9-byte
// method+sizes header), uncompressed_size, then the compressed bytes.
func (f *CompressionFrame) EncodeFrame(w *ByteStream, payload []byte) error {
	compressed, err := f.compress(payload)
	if err != nil {
		return err
	}

	header := make([]byte, 9+len(compressed))
	header[0] = f.Method
	binary.LittleEndian.PutUint32(header[1:5], uint32(len(header)))
	binary.LittleEndian.PutUint32(header[5:9], uint32(len(payload)))
	copy(header[9:], compressed)

	sum := city.Hash128(header)
	var checksum [16]byte
	binary.LittleEndian.PutUint64(checksum[0:8], sum.Low)
	binary.LittleEndian.PutUint64(checksum[8:16], sum.High)

	if err := w.WriteBytes(checksum[:]); err != nil {
		return err
	}
	return w.WriteBytes(header)
}

// DecodeFrame reads one CompressionFrame off r, verifies its checksum,
// decompresses the payload, and returns a fresh *ByteStream positioned at
// the start of the decompressed bytes for the caller to keep reading from.
func (f *CompressionFrame) DecodeFrame(r *ByteStream) (*ByteStream, error) {
	checksum, err := r.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	method, err := r.ReadUInt8()
	if err != nil {
		return nil, err
	}
	compressedSize, err := r.ReadUInt32()
	if err != nil {
		return nil, err
	}
	uncompressedSize, err := r.ReadUInt32()
	if err != nil {
		return nil, err
	}
	if compressedSize < 9 {
		return nil, NewError(ErrMalformedFrame, fmt.Sprintf("compression frame size %d smaller than header", compressedSize))
	}
	body, err := r.ReadBytes(int(compressedSize) - 9)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 9+len(body))
	header[0] = method
	binary.LittleEndian.PutUint32(header[1:5], compressedSize)
	binary.LittleEndian.PutUint32(header[5:9], uncompressedSize)
	copy(header[9:], body)

	sum := city.Hash128(header)
	var want [16]byte
	binary.LittleEndian.PutUint64(want[0:8], sum.Low)
	binary.LittleEndian.PutUint64(want[8:16], sum.High)
	if !bytes.Equal(checksum, want[:]) {
		return nil, NewError(ErrChecksumMismatch, "compression frame checksum mismatch")
	}

	decoded, err := decompressMethod(method, body, int(uncompressedSize))
	if err != nil {
		return nil, err
	}
	return NewByteStream(bytes.NewBuffer(decoded)), nil
}

func (f *CompressionFrame) compress(payload []byte) ([]byte, error) {
	switch f.Method {
	case methodLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		var c lz4.Compressor
		n, err := c.CompressBlock(payload, buf)
		if err != nil {
			return nil, WrapError(ErrMalformedFrame, "lz4 compress", err)
		}
		if n == 0 && len(payload) > 0 {
			// incompressible input; lz4 signals this by returning 0
			return nil, NewError(ErrMalformedFrame, "lz4: block did not compress")
		}
		return buf[:n], nil
	case methodZSTD:
		return zstdEncoder.EncodeAll(payload, nil), nil
	default:
		return nil, NewError(ErrUnknownCompressionMethod, fmt.Sprintf("unknown compression method 0x%02x", f.Method))
	}
}

func decompressMethod(method byte, body []byte, uncompressedSize int) ([]byte, error) {
	switch method {
	case methodLZ4:
		dst := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, WrapError(ErrMalformedFrame, "lz4 decompress", err)
		}
		return dst[:n], nil
	case methodZSTD:
		dst, err := zstdDecoder.DecodeAll(body, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, WrapError(ErrMalformedFrame, "zstd decompress", err)
		}
		return dst, nil
	default:
		return nil, NewError(ErrUnknownCompressionMethod, fmt.Sprintf("unknown compression method 0x%02x", method))
	}
}

// bufferedFrame accumulates an in-memory write stream so the block codec
// can finish writing an entire column-data region before it knows the
// final payload to compress; flushTo then runs it all through EncodeFrame
// in one shot.
type bufferedFrame struct {
	compress *CompressionFrame
	buf      *bytes.Buffer
	stream   *ByteStream
}

func newBufferedFrame(compress *CompressionFrame) *bufferedFrame {
	buf := &bytes.Buffer{}
	return &bufferedFrame{
		compress: compress,
		buf:      buf,
		stream:   NewByteStream(bufferedReadWriter{buf}),
	}
}

func (f *bufferedFrame) flushTo(w *ByteStream) error {
	return f.compress.EncodeFrame(w, f.buf.Bytes())
}

// bufferedReadWriter adapts a *bytes.Buffer (a plain io.Writer, not a
// net.Conn) to the io.ReadWriter NewByteStream expects.
type bufferedReadWriter struct {
	buf *bytes.Buffer
}

func (b bufferedReadWriter) Read(p []byte) (int, error)  { return b.buf.Read(p) }
func (b bufferedReadWriter) Write(p []byte) (int, error) { return b.buf.Write(p) }

var _ io.ReadWriter = bufferedReadWriter{}
