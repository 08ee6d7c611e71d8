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
)

// --- FixedString(N) ---

type fixedStringType struct {
	n int
}

func (t *fixedStringType) Name() string      { return fmt.Sprintf("FixedString(%d)", t.n) }
func (t *fixedStringType) Kind() TypeKind    { return KindFixedString }
func (t *fixedStringType) DefaultValue() any { return make([]byte, t.n) }

func (t *fixedStringType) toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return nil, typeMismatch(t.Name(), v)
	}
}

func (t *fixedStringType) EncodeBinary(w *ByteStream, v any) error {
	b, err := t.toBytes(v)
	if err != nil {
		return err
	}
	if len(b) > t.n {
		return NewError(ErrDomainError, fmt.Sprintf("%s: value of %d bytes exceeds fixed width", t.Name(), len(b)))
	}
	return w.WriteFixedString(t.n, b)
}

func (t *fixedStringType) DecodeBinary(r *ByteStream) (any, error) {
	return r.ReadFixedString(t.n)
}

func (t *fixedStringType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		if err := t.EncodeBinary(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *fixedStringType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
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

func (t *fixedStringType) DecodeTextQuoted(lex *Lexer) (any, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenString); err != nil {
		return nil, err
	}
	return []byte(tok.Text), nil
}

// --- Enum8 / Enum16 ---

type enumType struct {
	name    string
	bits    int // 8 or 16
	names   []string
	values  []int64
	byName  map[string]int64
	byValue map[int64]string
}

func newEnumType(bits int, pairs []enumPair) *enumType {
	t := &enumType{
		bits:    bits,
		byName:  make(map[string]int64, len(pairs)),
		byValue: make(map[int64]string, len(pairs)),
	}
	name := fmt.Sprintf("Enum%d(", bits)
	for i, p := range pairs {
		if i > 0 {
			name += ", "
		}
		name += fmt.Sprintf("'%s' = %d", p.name, p.value)
		t.names = append(t.names, p.name)
		t.values = append(t.values, p.value)
		t.byName[p.name] = p.value
		t.byValue[p.value] = p.name
	}
	name += ")"
	t.name = name
	return t
}

type enumPair struct {
	name  string
	value int64
}

func (t *enumType) Name() string      { return t.name }
func (t *enumType) Kind() TypeKind    { return KindEnum }
func (t *enumType) DefaultValue() any { return t.names[0] }

func (t *enumType) EncodeBinary(w *ByteStream, v any) error {
	name, ok := v.(string)
	if !ok {
		return typeMismatch(t.name, v)
	}
	value, ok := t.byName[name]
	if !ok {
		return NewError(ErrEnumDomain, fmt.Sprintf("%s: unknown member %q", t.name, name))
	}
	if t.bits == 8 {
		return w.WriteInt8(int8(value))
	}
	return w.WriteInt16(int16(value))
}

func (t *enumType) DecodeBinary(r *ByteStream) (any, error) {
	var value int64
	if t.bits == 8 {
		v, err := r.ReadInt8()
		if err != nil {
			return nil, err
		}
		value = int64(v)
	} else {
		v, err := r.ReadInt16()
		if err != nil {
			return nil, err
		}
		value = int64(v)
	}
	name, ok := t.byValue[value]
	if !ok {
		return nil, NewError(ErrEnumDomain, fmt.Sprintf("%s: unknown value %d", t.name, value))
	}
	return name, nil
}

func (t *enumType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		if err := t.EncodeBinary(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *enumType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
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

func (t *enumType) DecodeTextQuoted(lex *Lexer) (any, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenString); err != nil {
		return nil, err
	}
	if _, ok := t.byName[tok.Text]; !ok {
		return nil, NewError(ErrEnumDomain, fmt.Sprintf("%s: unknown member %q", t.name, tok.Text))
	}
	return tok.Text, nil
}

// --- Nullable(T) ---

// nullValue is the sentinel a Nullable(T) column materializes at null
// positions, regardless of whatever placeholder bytes were read from the
// wire there (distilled spec §4.4: "must materialise null positions as the
// sentinel 'null' value regardless of the placeholder bytes read").
type nullValue struct{}

// Null is the exported sentinel logical value for a null Nullable(T) entry.
var Null = nullValue{}

type nullableType struct {
	inner ColumnType
}

func (t *nullableType) Name() string      { return fmt.Sprintf("Nullable(%s)", t.inner.Name()) }
func (t *nullableType) Kind() TypeKind    { return KindNullable }
func (t *nullableType) DefaultValue() any { return Null }

// EncodeBinary/DecodeBinary on Nullable are not used inside blocks -- the
// distilled spec says "the single-value path is not used inside blocks" --
// but are implemented for completeness and for parameter binding.
func (t *nullableType) EncodeBinary(w *ByteStream, v any) error {
	if _, isNull := v.(nullValue); isNull {
		if err := w.WriteUInt8(1); err != nil {
			return err
		}
		return t.inner.EncodeBinary(w, t.inner.DefaultValue())
	}
	if err := w.WriteUInt8(0); err != nil {
		return err
	}
	return t.inner.EncodeBinary(w, v)
}

func (t *nullableType) DecodeBinary(r *ByteStream) (any, error) {
	flag, err := r.ReadUInt8()
	if err != nil {
		return nil, err
	}
	v, err := t.inner.DecodeBinary(r)
	if err != nil {
		return nil, err
	}
	if flag != 0 {
		return Null, nil
	}
	return v, nil
}

// EncodeBulk writes the null map first (one byte per row, 1 = null), then
// delegates the full value bulk -- including placeholder values at null
// rows -- to the inner type, per distilled spec §4.4's recursive
// composition rule.
func (t *nullableType) EncodeBulk(w *ByteStream, values []any) error {
	for _, v := range values {
		_, isNull := v.(nullValue)
		flag := uint8(0)
		if isNull {
			flag = 1
		}
		if err := w.WriteUInt8(flag); err != nil {
			return err
		}
	}
	placeholders := make([]any, len(values))
	def := t.inner.DefaultValue()
	for i, v := range values {
		if _, isNull := v.(nullValue); isNull {
			placeholders[i] = def
		} else {
			placeholders[i] = v
		}
	}
	return t.inner.EncodeBulk(w, placeholders)
}

func (t *nullableType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	flags := make([]bool, rows)
	for i := 0; i < rows; i++ {
		b, err := r.ReadUInt8()
		if err != nil {
			return nil, err
		}
		flags[i] = b != 0
	}
	values, err := t.inner.DecodeBulk(r, rows)
	if err != nil {
		return nil, err
	}
	out := make([]any, rows)
	for i := 0; i < rows; i++ {
		if flags[i] {
			out[i] = Null
		} else {
			out[i] = values[i]
		}
	}
	return out, nil
}

func (t *nullableType) DecodeTextQuoted(lex *Lexer) (any, error) {
	return t.inner.DecodeTextQuoted(lex)
}

// --- Array(T) ---

type arrayType struct {
	inner ColumnType
}

func (t *arrayType) Name() string      { return fmt.Sprintf("Array(%s)", t.inner.Name()) }
func (t *arrayType) Kind() TypeKind    { return KindArray }
func (t *arrayType) DefaultValue() any { return []any{} }

// EncodeBinary/DecodeBinary on Array are bulk-only per the distilled spec
// table; the single-value path writes/reads a length-1 bulk column.
func (t *arrayType) EncodeBinary(w *ByteStream, v any) error {
	return t.EncodeBulk(w, []any{v})
}

func (t *arrayType) DecodeBinary(r *ByteStream) (any, error) {
	values, err := t.DecodeBulk(r, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// EncodeBulk writes n cumulative u64 offsets, then recurses on the inner
// type with total-inner-count rows (distilled spec §4.4).
func (t *arrayType) EncodeBulk(w *ByteStream, values []any) error {
	offsets := make([]uint64, len(values))
	var flat []any
	var cumulative uint64
	for i, v := range values {
		rowSlice, ok := v.([]any)
		if !ok {
			return typeMismatch(t.Name(), v)
		}
		cumulative += uint64(len(rowSlice))
		offsets[i] = cumulative
		flat = append(flat, rowSlice...)
	}
	for _, off := range offsets {
		if err := w.WriteUInt64(off); err != nil {
			return err
		}
	}
	return t.inner.EncodeBulk(w, flat)
}

func (t *arrayType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	offsets := make([]uint64, rows)
	for i := 0; i < rows; i++ {
		off, err := r.ReadUInt64()
		if err != nil {
			return nil, err
		}
		if i > 0 && off < offsets[i-1] {
			return nil, NewError(ErrMalformedFrame, fmt.Sprintf("%s: non-monotonic offsets", t.Name()))
		}
		offsets[i] = off
	}
	total := 0
	if rows > 0 {
		total = int(offsets[rows-1])
	}
	flat, err := t.inner.DecodeBulk(r, total)
	if err != nil {
		return nil, err
	}
	out := make([]any, rows)
	start := uint64(0)
	for i := 0; i < rows; i++ {
		end := offsets[i]
		out[i] = flat[start:end]
		start = end
	}
	return out, nil
}

func (t *arrayType) DecodeTextQuoted(lex *Lexer) (any, error) {
	return nil, NewError(ErrUnknownType, "Array: text-quoted literals are not supported")
}

// --- Tuple(T1..Tk) ---

type tupleType struct {
	fields []ColumnType
	names  []string // synthesized "_1", "_2", ... or member names for Nested
}

func newTupleType(fields []ColumnType) *tupleType {
	names := make([]string, len(fields))
	for i := range fields {
		names[i] = fmt.Sprintf("_%d", i+1)
	}
	return &tupleType{fields: fields, names: names}
}

func (t *tupleType) Name() string {
	s := "Tuple("
	for i, f := range t.fields {
		if i > 0 {
			s += ", "
		}
		s += f.Name()
	}
	return s + ")"
}
func (t *tupleType) Kind() TypeKind { return KindTuple }
func (t *tupleType) DefaultValue() any {
	out := make([]any, len(t.fields))
	for i, f := range t.fields {
		out[i] = f.DefaultValue()
	}
	return out
}

func (t *tupleType) EncodeBinary(w *ByteStream, v any) error {
	return t.EncodeBulk(w, []any{v})
}

func (t *tupleType) DecodeBinary(r *ByteStream) (any, error) {
	values, err := t.DecodeBulk(r, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// EncodeBulk writes k independent bulk segments, one per field, each for n
// rows -- no length prefix, per distilled spec §4.4.
func (t *tupleType) EncodeBulk(w *ByteStream, values []any) error {
	n := len(values)
	for fi, field := range t.fields {
		column := make([]any, n)
		for ri, v := range values {
			row, ok := v.([]any)
			if !ok || fi >= len(row) {
				return typeMismatch(t.Name(), v)
			}
			column[ri] = row[fi]
		}
		if err := field.EncodeBulk(w, column); err != nil {
			return err
		}
	}
	return nil
}

func (t *tupleType) DecodeBulk(r *ByteStream, rows int) ([]any, error) {
	columns := make([][]any, len(t.fields))
	for fi, field := range t.fields {
		col, err := field.DecodeBulk(r, rows)
		if err != nil {
			return nil, err
		}
		columns[fi] = col
	}
	out := make([]any, rows)
	for ri := 0; ri < rows; ri++ {
		row := make([]any, len(t.fields))
		for fi := range t.fields {
			row[fi] = columns[fi][ri]
		}
		out[ri] = row
	}
	return out, nil
}

func (t *tupleType) DecodeTextQuoted(lex *Lexer) (any, error) {
	return nil, NewError(ErrUnknownType, "Tuple: text-quoted literals are not supported")
}

// AttrMap reorders a decoded tuple row ([]any, positional by t.names) into
// a map keyed by attribute name, and ReorderTuple does the inverse -- the
// Go-native equivalent of S6's "reorder by attribute-name map" scenario,
// since Go has no anonymous-struct-by-reflection binding for this at the
// wire layer.
func (t *tupleType) AttrMap(row []any) map[string]any {
	out := make(map[string]any, len(row))
	for i, name := range t.names {
		if i < len(row) {
			out[name] = row[i]
		}
	}
	return out
}

// ReorderTuple takes a decoded tuple row ([]any, positional by t.names) and
// an attribute-name order (e.g. the key order of a map built by a caller
// walking `{_2:string, _1:int}`), and returns the row's values permuted into
// that order -- S6's "reorder by attribute-name map" scenario. An unknown
// attribute name is a typeMismatch against the tuple's own name, since it
// means the caller's map doesn't describe this tuple.
func (t *tupleType) ReorderTuple(row []any, order []string) ([]any, error) {
	out := make([]any, len(order))
	for oi, name := range order {
		idx := -1
		for i, n := range t.names {
			if n == name {
				idx = i
				break
			}
		}
		if idx < 0 || idx >= len(row) {
			return nil, typeMismatch(t.Name(), name)
		}
		out[oi] = row[idx]
	}
	return out, nil
}

// Names returns the tuple's positional attribute names ("_1", "_2", ... or
// the member names supplied by Nested).
func (t *tupleType) Names() []string { return append([]string(nil), t.names...) }
