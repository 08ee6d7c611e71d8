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
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
)

// ByteStream is the primitive codec every protocol message and column
// serializer is built from. It wraps an io.Reader/io.Writer pair (usually
// the two halves of a net.Conn) the way the teacher's byteReader/byteWriter
// wrap a fixed []byte, generalized to a live socket: reads block until the
// requested bytes are available (or a deadline fires), instead of failing
// on an exhausted buffer.
//
// All multi-byte primitives are little-endian, per the server's wire
// protocol -- the inverse byte order of the teacher's big-endian Kafka
// codec.
type ByteStream struct {
	r    *bufio.Reader
	w    io.Writer
	conn net.Conn // non-nil when the underlying stream supports deadlines
}

// NewByteStream wraps rw for protocol-level reads and writes. If rw also
// implements net.Conn, per-call deadlines become available to SetDeadline.
func NewByteStream(rw io.ReadWriter) *ByteStream {
	bs := &ByteStream{r: bufio.NewReader(rw), w: rw}
	if conn, ok := rw.(net.Conn); ok {
		bs.conn = conn
	}
	return bs
}

// Deadlines are applied by the caller directly on Conn() before a
// ByteStream call; ByteStream itself stays deadline-agnostic and only
// classifies the resulting error.

func (bs *ByteStream) readFull(buf []byte) error {
	_, err := io.ReadFull(bs.r, buf)
	return classifyReadErr(err)
}

func classifyReadErr(err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return WrapError(ErrTimeout, "read timed out", err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return WrapError(ErrMalformedFrame, "unexpected EOF", err)
	}
	return WrapError(ErrConnectionClosed, "read failed", err)
}

func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return WrapError(ErrTimeout, "write timed out", err)
	}
	return WrapError(ErrConnectionClosed, "write failed", err)
}

func (bs *ByteStream) write(buf []byte) error {
	_, err := bs.w.Write(buf)
	return classifyWriteErr(err)
}

// Conn exposes the underlying net.Conn, or nil if this stream isn't backed
// by one (used by Connection to apply per-operation deadlines).
func (bs *ByteStream) Conn() net.Conn { return bs.conn }

// --- fixed width ---

func (bs *ByteStream) ReadUInt8() (uint8, error) {
	var b [1]byte
	if err := bs.readFull(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (bs *ByteStream) WriteUInt8(v uint8) error {
	return bs.write([]byte{v})
}

func (bs *ByteStream) ReadInt8() (int8, error) {
	v, err := bs.ReadUInt8()
	return int8(v), err
}

func (bs *ByteStream) WriteInt8(v int8) error {
	return bs.WriteUInt8(uint8(v))
}

func (bs *ByteStream) ReadUInt16() (uint16, error) {
	var b [2]byte
	if err := bs.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (bs *ByteStream) WriteUInt16(v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return bs.write(b[:])
}

func (bs *ByteStream) ReadInt16() (int16, error) {
	v, err := bs.ReadUInt16()
	return int16(v), err
}

func (bs *ByteStream) WriteInt16(v int16) error {
	return bs.WriteUInt16(uint16(v))
}

func (bs *ByteStream) ReadUInt32() (uint32, error) {
	var b [4]byte
	if err := bs.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (bs *ByteStream) WriteUInt32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return bs.write(b[:])
}

func (bs *ByteStream) ReadInt32() (int32, error) {
	v, err := bs.ReadUInt32()
	return int32(v), err
}

func (bs *ByteStream) WriteInt32(v int32) error {
	return bs.WriteUInt32(uint32(v))
}

func (bs *ByteStream) ReadUInt64() (uint64, error) {
	var b [8]byte
	if err := bs.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (bs *ByteStream) WriteUInt64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return bs.write(b[:])
}

func (bs *ByteStream) ReadInt64() (int64, error) {
	v, err := bs.ReadUInt64()
	return int64(v), err
}

func (bs *ByteStream) WriteInt64(v int64) error {
	return bs.WriteUInt64(uint64(v))
}

func (bs *ByteStream) ReadFloat32() (float32, error) {
	v, err := bs.ReadUInt32()
	return math.Float32frombits(v), err
}

func (bs *ByteStream) WriteFloat32(v float32) error {
	return bs.WriteUInt32(math.Float32bits(v))
}

func (bs *ByteStream) ReadFloat64() (float64, error) {
	v, err := bs.ReadUInt64()
	return math.Float64frombits(v), err
}

func (bs *ByteStream) WriteFloat64(v float64) error {
	return bs.WriteUInt64(math.Float64bits(v))
}

// --- varint ---

// ReadUVarint reads a LEB128-encoded unsigned integer: 7 payload bits per
// byte, high bit set means "more bytes follow". Same algorithm the teacher
// uses for Kafka's compact-protocol varints (encoding/binary.Uvarint over a
// slice); reimplemented here over a streaming reader one byte at a time
// since the slice-oriented stdlib helper needs the whole buffer up front.
func (bs *ByteStream) ReadUVarint() (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < 10; i++ {
		b, err := bs.ReadUInt8()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, NewError(ErrMalformedFrame, "varint too long")
}

func (bs *ByteStream) WriteUVarint(v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := 0
	for v >= 0x80 {
		buf[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	buf[n] = byte(v)
	n++
	return bs.write(buf[:n])
}

// --- strings and raw byte runs ---

func (bs *ByteStream) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, NewError(ErrMalformedFrame, "negative length")
	}
	buf := make([]byte, n)
	if err := bs.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (bs *ByteStream) WriteBytes(buf []byte) error {
	return bs.write(buf)
}

func (bs *ByteStream) ReadString() (string, error) {
	n, err := bs.ReadUVarint()
	if err != nil {
		return "", err
	}
	buf, err := bs.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (bs *ByteStream) WriteString(s string) error {
	if err := bs.WriteUVarint(uint64(len(s))); err != nil {
		return err
	}
	return bs.write([]byte(s))
}

// ReadFixedString reads exactly n bytes and returns them verbatim, trailing
// NULs included -- the FixedString(N) wire contract.
func (bs *ByteStream) ReadFixedString(n int) ([]byte, error) {
	return bs.ReadBytes(n)
}

// WriteFixedString right-pads v with 0x00 up to n bytes. v must not be
// longer than n; callers (FixedString.EncodeBinary) validate that first.
func (bs *ByteStream) WriteFixedString(n int, v []byte) error {
	buf := make([]byte, n)
	copy(buf, v)
	return bs.write(buf)
}

// Flush is a no-op placeholder kept for symmetry with buffered writers;
// ByteStream writes straight through to w (typically a net.Conn, which
// pkg/client/connection.go hands to NewByteStream directly, with no write
// buffering in between).
func (bs *ByteStream) Flush() error { return nil }
