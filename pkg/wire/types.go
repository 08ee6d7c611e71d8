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
	"fmt"
	"time"
)

// TypeKind is the closed set of external type tags a ColumnType reports,
// playing the role java.sql.Types plays in original_source without pulling
// in database/sql -- the core sits below that layer.
type TypeKind int

const (
	KindInt TypeKind = iota
	KindUInt
	KindFloat
	KindString
	KindFixedString
	KindDate
	KindDateTime
	KindUUID
	KindEnum
	KindArray
	KindNullable
	KindTuple
)

// ColumnType is the capability object for a single column type: it knows
// its own canonical name, its external kind, its default value, and how to
// read/write both single values and whole columns. Concrete types are
// immutable once constructed and are interned by the registry (typeregistry.go)
// so distinct columns sharing a descriptor share one instance.
type ColumnType interface {
	// Name returns the canonical descriptor string. Reparsing it must
	// yield an equal type (invariant 1, §8).
	Name() string
	Kind() TypeKind
	DefaultValue() any

	EncodeBinary(w *ByteStream, v any) error
	DecodeBinary(r *ByteStream) (any, error)
	EncodeBulk(w *ByteStream, values []any) error
	DecodeBulk(r *ByteStream, rows int) ([]any, error)

	DecodeTextQuoted(lex *Lexer) (any, error)
}

// typeMismatch builds a consistent ErrTypeMismatch for a ColumnType's
// EncodeBinary implementations.
func typeMismatch(typeName string, v any) error {
	return NewError(ErrTypeMismatch, fmt.Sprintf("%s: unexpected value of type %T: %v", typeName, v, v))
}

// --- unsigned integers ---

type uintType struct {
	name string
	bits int
}

func (t *uintType) Name() string      { return t.name }
func (t *uintType) Kind() TypeKind    { return KindUInt }
func (t *uintType) DefaultValue() any { return uint64(0) }

func (t *uintType) toUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case uint32:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case int:
		if x < 0 {
			return 0, NewError(ErrDomainError, fmt.Sprintf("%s: negative value %d", t.name, x))
		}
		return uint64(x), nil
	default:
		return 0, typeMismatch(t.name, v)
	}
}

func (t *uintType) checkRange(v uint64) error {
	max := uint64(1)<<uint(t.bits) - 1
	if t.bits == 64 {
		return nil
	}
	if v > max {
		return NewError(ErrDomainError, fmt.Sprintf("%s: value %d out of range", t.name, v))
	}
	return nil
}

func (t *uintType) EncodeBinary(w *ByteStream, v any) error {
	u, err := t.toUint64(v)
	if err != nil {
		return err
	}
	if err := t.checkRange(u); err != nil {
		return err
	}
	switch t.bits {
	case 8:
		return w.WriteUInt8(uint8(u))
	case 16:
		return w.WriteUInt16(uint16(u))
	case 32:
		return w.WriteUInt32(uint32(u))
	default:
		return w.WriteUInt64(u)
	}
}

func (t *uintType) DecodeBinary(r *ByteStream) (any, error) {
	switch t.bits {
	case 8:
		v, err := r.ReadUInt8()
		return uint64(v), err
	case 16:
		v, err := r.ReadUInt16()
		return uint64(v), err
	case 32:
		v, err := r.ReadUInt32()
		return uint64(v), err
	default:
		return r.ReadUInt64()
	}
}

func (t *uintType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		if err := t.EncodeBinary(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *uintType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	out := make([]any, rows)
	for i := 0; i < rows; i++ {
		v, err := t.DecodeBinary(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t *uintType) DecodeTextQuoted(lex *Lexer) (any, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenNumber); err != nil {
		return nil, err
	}
	var u uint64
	if _, err := fmt.Sscanf(tok.Text, "%d", &u); err != nil {
		return nil, NewError(ErrDomainError, fmt.Sprintf("%s: %v", t.name, err))
	}
	return u, nil
}

// --- signed integers ---

type intType struct {
	name string
	bits int
}

func (t *intType) Name() string      { return t.name }
func (t *intType) Kind() TypeKind    { return KindInt }
func (t *intType) DefaultValue() any { return int64(0) }

func (t *intType) toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int:
		return int64(x), nil
	default:
		return 0, typeMismatch(t.name, v)
	}
}

func (t *intType) checkRange(v int64) error {
	if t.bits == 64 {
		return nil
	}
	min := -(int64(1) << uint(t.bits-1))
	max := int64(1)<<uint(t.bits-1) - 1
	if v < min || v > max {
		return NewError(ErrDomainError, fmt.Sprintf("%s: value %d out of range", t.name, v))
	}
	return nil
}

func (t *intType) EncodeBinary(w *ByteStream, v any) error {
	i, err := t.toInt64(v)
	if err != nil {
		return err
	}
	if err := t.checkRange(i); err != nil {
		return err
	}
	switch t.bits {
	case 8:
		return w.WriteInt8(int8(i))
	case 16:
		return w.WriteInt16(int16(i))
	case 32:
		return w.WriteInt32(int32(i))
	default:
		return w.WriteInt64(i)
	}
}

func (t *intType) DecodeBinary(r *ByteStream) (any, error) {
	switch t.bits {
	case 8:
		v, err := r.ReadInt8()
		return int64(v), err
	case 16:
		v, err := r.ReadInt16()
		return int64(v), err
	case 32:
		v, err := r.ReadInt32()
		return int64(v), err
	default:
		return r.ReadInt64()
	}
}

func (t *intType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		if err := t.EncodeBinary(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *intType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	out := make([]any, rows)
	for i := 0; i < rows; i++ {
		v, err := t.DecodeBinary(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t *intType) DecodeTextQuoted(lex *Lexer) (any, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenNumber); err != nil {
		return nil, err
	}
	var i int64
	if _, err := fmt.Sscanf(tok.Text, "%d", &i); err != nil {
		return nil, NewError(ErrDomainError, fmt.Sprintf("%s: %v", t.name, err))
	}
	return i, nil
}

// --- floats ---

type floatType struct {
	name string
	bits int
}

func (t *floatType) Name() string      { return t.name }
func (t *floatType) Kind() TypeKind    { return KindFloat }
func (t *floatType) DefaultValue() any { return float64(0) }

func (t *floatType) toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	default:
		return 0, typeMismatch(t.name, v)
	}
}

func (t *floatType) EncodeBinary(w *ByteStream, v any) error {
	f, err := t.toFloat64(v)
	if err != nil {
		return err
	}
	if t.bits == 32 {
		return w.WriteFloat32(float32(f))
	}
	return w.WriteFloat64(f)
}

func (t *floatType) DecodeBinary(r *ByteStream) (any, error) {
	if t.bits == 32 {
		v, err := r.ReadFloat32()
		return float64(v), err
	}
	return r.ReadFloat64()
}

func (t *floatType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		if err := t.EncodeBinary(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *floatType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	out := make([]any, rows)
	for i := 0; i < rows; i++ {
		v, err := t.DecodeBinary(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t *floatType) DecodeTextQuoted(lex *Lexer) (any, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenNumber); err != nil {
		return nil, err
	}
	var f float64
	if _, err := fmt.Sscanf(tok.Text, "%g", &f); err != nil {
		return nil, NewError(ErrDomainError, fmt.Sprintf("%s: %v", t.name, err))
	}
	return f, nil
}

// --- String ---

type stringType struct{}

func (stringType) Name() string      { return "String" }
func (stringType) Kind() TypeKind    { return KindString }
func (stringType) DefaultValue() any { return "" }

func (t stringType) toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", typeMismatch("String", v)
	}
}

func (t stringType) EncodeBinary(w *ByteStream, v any) error {
	s, err := t.toString(v)
	if err != nil {
		return err
	}
	return w.WriteString(s)
}

func (t stringType) DecodeBinary(r *ByteStream) (any, error) {
	return r.ReadString()
}

func (t stringType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		if err := t.EncodeBinary(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (t stringType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	out := make([]any, rows)
	for i := 0; i < rows; i++ {
		v, err := t.DecodeBinary(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t stringType) DecodeTextQuoted(lex *Lexer) (any, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenString); err != nil {
		return nil, err
	}
	return tok.Text, nil
}

// --- Date ---

type dateType struct{}

var unixEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func (dateType) Name() string      { return "Date" }
func (dateType) Kind() TypeKind    { return KindDate }
func (dateType) DefaultValue() any { return uint16(0) }

func (t dateType) toDays(v any) (uint16, error) {
	switch x := v.(type) {
	case uint16:
		return x, nil
	case int:
		if x < 0 || x > 0xffff {
			return 0, NewError(ErrDomainError, fmt.Sprintf("Date: day count %d out of range", x))
		}
		return uint16(x), nil
	case time.Time:
		days := int64(x.UTC().Sub(unixEpoch).Hours() / 24)
		if days < 0 || days > 0xffff {
			return 0, NewError(ErrDomainError, fmt.Sprintf("Date: %v out of range", x))
		}
		return uint16(days), nil
	default:
		return 0, typeMismatch("Date", v)
	}
}

func (t dateType) EncodeBinary(w *ByteStream, v any) error {
	days, err := t.toDays(v)
	if err != nil {
		return err
	}
	return w.WriteUInt16(days)
}

func (t dateType) DecodeBinary(r *ByteStream) (any, error) {
	v, err := r.ReadUInt16()
	return v, err
}

func (t dateType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		if err := t.EncodeBinary(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (t dateType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	out := make([]any, rows)
	for i := 0; i < rows; i++ {
		v, err := t.DecodeBinary(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t dateType) DecodeTextQuoted(lex *Lexer) (any, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenString); err != nil {
		return nil, err
	}
	parsed, err := time.ParseInLocation("2006-01-02", tok.Text, time.UTC)
	if err != nil {
		return nil, NewError(ErrDomainError, fmt.Sprintf("Date: %v", err))
	}
	return t.toDays(parsed)
}

// --- DateTime ---

// dateTimeType's binary codec is unconditionally UTC seconds-since-epoch on
// the wire regardless of loc; loc is presentation-only, per distilled spec
// §4.4 and DESIGN.md's resolution of the "default timezone" Open Question.
// The *logical* value crossing EncodeBinary/DecodeBinary/DecodeTextQuoted --
// what callers pass in and get back -- is epoch-milliseconds, not seconds,
// matching distilled spec §8 scenario S5 and original_source's
// DataTypeDateTime (serializeBinary divides an incoming millis Timestamp by
// 1000 for the wire; deserializeBinary multiplies the wire seconds back up
// by 1000 when rebuilding a Timestamp).
type dateTimeType struct {
	name string
	loc  *time.Location
}

func (t *dateTimeType) Name() string      { return t.name }
func (t *dateTimeType) Kind() TypeKind    { return KindDateTime }
func (t *dateTimeType) DefaultValue() any { return int64(0) }
func (t *dateTimeType) Location() *time.Location {
	if t.loc == nil {
		return time.UTC
	}
	return t.loc
}

func (t *dateTimeType) toSeconds(v any) (int32, error) {
	switch x := v.(type) {
	case int64:
		return int32(x / 1000), nil
	case int:
		return int32(int64(x) / 1000), nil
	case time.Time:
		return int32(x.Unix()), nil
	default:
		return 0, typeMismatch(t.name, v)
	}
}

func (t *dateTimeType) EncodeBinary(w *ByteStream, v any) error {
	secs, err := t.toSeconds(v)
	if err != nil {
		return err
	}
	return w.WriteInt32(secs)
}

func (t *dateTimeType) DecodeBinary(r *ByteStream) (any, error) {
	v, err := r.ReadInt32()
	return int64(v) * 1000, err
}

func (t *dateTimeType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		if err := t.EncodeBinary(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *dateTimeType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	out := make([]any, rows)
	for i := 0; i < rows; i++ {
		v, err := t.DecodeBinary(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t *dateTimeType) DecodeTextQuoted(lex *Lexer) (any, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenString); err != nil {
		return nil, err
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05", tok.Text, time.UTC)
	if err != nil {
		return nil, NewError(ErrDomainError, fmt.Sprintf("%s: %v", t.name, err))
	}
	return parsed.UnixMilli(), nil
}

// --- UUID ---

type uuidType struct{}

func (uuidType) Name() string      { return "UUID" }
func (uuidType) Kind() TypeKind    { return KindUUID }
func (uuidType) DefaultValue() any { return [16]byte{} }

func (t uuidType) toBytes(v any) ([16]byte, error) {
	switch x := v.(type) {
	case [16]byte:
		return x, nil
	default:
		return [16]byte{}, typeMismatch("UUID", v)
	}
}

// EncodeBinary writes two u64 LE halves, high half first, per distilled
// spec §4.4 -- the halves are big-endian *within* ClickHouse's own
// historical UUID layout, but each half itself is written little-endian, as
// specified.
func (t uuidType) EncodeBinary(w *ByteStream, v any) error {
	b, err := t.toBytes(v)
	if err != nil {
		return err
	}
	hi := uint64FromBE(b[0:8])
	lo := uint64FromBE(b[8:16])
	if err := w.WriteUInt64(hi); err != nil {
		return err
	}
	return w.WriteUInt64(lo)
}

func (t uuidType) DecodeBinary(r *ByteStream) (any, error) {
	hi, err := r.ReadUInt64()
	if err != nil {
		return nil, err
	}
	lo, err := r.ReadUInt64()
	if err != nil {
		return nil, err
	}
	var out [16]byte
	putUint64BE(out[0:8], hi)
	putUint64BE(out[8:16], lo)
	return out, nil
}

func uint64FromBE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func putUint64BE(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func (t uuidType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		if err := t.EncodeBinary(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (t uuidType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	out := make([]any, rows)
	for i := 0; i < rows; i++ {
		v, err := t.DecodeBinary(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t uuidType) DecodeTextQuoted(lex *Lexer) (any, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenString); err != nil {
		return nil, err
	}
	id, err := ParseUUIDString(tok.Text)
	if err != nil {
		return nil, NewError(ErrDomainError, fmt.Sprintf("UUID: %v", err))
	}
	return id, nil
}
