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
	"strconv"
	"sync"
	"time"
)

func loadLocation(name string) (*time.Location, error) {
	return time.LoadLocation(name)
}

// scalars is the fixed table of zero-argument type names, interned once at
// package init since they carry no parameters and are always the same
// instance -- the registry never needs to build them twice.
var scalars = map[string]ColumnType{
	"UInt8":   &uintType{name: "UInt8", bits: 8},
	"UInt16":  &uintType{name: "UInt16", bits: 16},
	"UInt32":  &uintType{name: "UInt32", bits: 32},
	"UInt64":  &uintType{name: "UInt64", bits: 64},
	"Int8":    &intType{name: "Int8", bits: 8},
	"Int16":   &intType{name: "Int16", bits: 16},
	"Int32":   &intType{name: "Int32", bits: 32},
	"Int64":   &intType{name: "Int64", bits: 64},
	"Float32": &floatType{name: "Float32", bits: 32},
	"Float64": &floatType{name: "Float64", bits: 64},
	"String":  stringType{},
	"Date":    dateType{},
	"UUID":    uuidType{},
}

// registryCache interns ColumnType instances by canonical descriptor
// string, process-wide. Per distilled spec §5: "first use of a given
// descriptor string atomically inserts" -- sync.Map is the read-mostly
// primitive for that, mirroring how the teacher's type-name lookups are
// simple map reads off data built once at startup, generalized here to a
// cache that grows lazily instead of being pre-populated.
var registryCache sync.Map // string -> ColumnType

// ParseType parses a server type descriptor string (e.g.
// "Array(Nullable(FixedString(3)))") into an interned ColumnType. Equal
// descriptor strings always return the identical *ColumnType value.
func ParseType(descriptor string) (ColumnType, error) {
	if cached, ok := registryCache.Load(descriptor); ok {
		return cached.(ColumnType), nil
	}
	lex := NewLexer(descriptor)
	t, err := parseTypeExpr(lex)
	if err != nil {
		return nil, err
	}
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokenEOF {
		return nil, NewError(ErrUnknownType, fmt.Sprintf("trailing input after %q: %q", descriptor, tok.Text))
	}
	registryCache.LoadOrStore(descriptor, t)
	// Also intern under the type's own canonical name, which may differ
	// in whitespace from the input descriptor but must be semantically
	// identical (invariant 1, §8).
	registryCache.LoadOrStore(t.Name(), t)
	return t, nil
}

func parseTypeExpr(lex *Lexer) (ColumnType, error) {
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if err := tok.expect(TokenIdent); err != nil {
		return nil, err
	}
	return dispatchType(tok.Text, lex)
}

func dispatchType(name string, lex *Lexer) (ColumnType, error) {
	if scalar, ok := scalars[name]; ok {
		return scalar, nil
	}
	switch name {
	case "FixedString":
		return parseFixedString(lex)
	case "DateTime":
		return parseDateTime(lex)
	case "Enum8":
		return parseEnum(lex, 8)
	case "Enum16":
		return parseEnum(lex, 16)
	case "Array":
		return parseArray(lex)
	case "Nullable":
		return parseNullable(lex)
	case "Tuple":
		return parseTuple(lex)
	case "Nested":
		return parseNested(lex)
	default:
		return nil, NewError(ErrUnknownType, name)
	}
}

func expect(lex *Lexer, kind TokenKind) (Token, error) {
	tok, err := lex.Next()
	if err != nil {
		return Token{}, err
	}
	if err := tok.expect(kind); err != nil {
		return Token{}, err
	}
	return tok, nil
}

func parseFixedString(lex *Lexer) (ColumnType, error) {
	if _, err := expect(lex, TokenLParen); err != nil {
		return nil, err
	}
	numTok, err := expect(lex, TokenNumber)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(numTok.Text)
	if err != nil || n <= 0 {
		return nil, NewError(ErrUnknownType, fmt.Sprintf("FixedString: invalid length %q", numTok.Text))
	}
	if _, err := expect(lex, TokenRParen); err != nil {
		return nil, err
	}
	return &fixedStringType{n: n}, nil
}

func parseDateTime(lex *Lexer) (ColumnType, error) {
	save := *lex
	tok, err := lex.Next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokenLParen {
		*lex = save
		return &dateTimeType{name: "DateTime", loc: nil}, nil
	}
	tzTok, err := expect(lex, TokenString)
	if err != nil {
		return nil, err
	}
	if _, err := expect(lex, TokenRParen); err != nil {
		return nil, err
	}
	loc, err := loadLocation(tzTok.Text)
	if err != nil {
		return nil, NewError(ErrUnknownType, fmt.Sprintf("DateTime: %v", err))
	}
	return &dateTimeType{name: fmt.Sprintf("DateTime('%s')", tzTok.Text), loc: loc}, nil
}

func parseEnum(lex *Lexer, bits int) (ColumnType, error) {
	if _, err := expect(lex, TokenLParen); err != nil {
		return nil, err
	}
	var pairs []enumPair
	seen := make(map[string]bool)
	for {
		nameTok, err := expect(lex, TokenString)
		if err != nil {
			return nil, err
		}
		if _, err := expect(lex, TokenEquals); err != nil {
			return nil, err
		}
		numTok, err := expect(lex, TokenNumber)
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseInt(numTok.Text, 10, 64)
		if err != nil {
			return nil, NewError(ErrUnknownType, fmt.Sprintf("Enum%d: invalid value %q", bits, numTok.Text))
		}
		if seen[nameTok.Text] {
			return nil, NewError(ErrUnknownType, fmt.Sprintf("Enum%d: duplicate member %q", bits, nameTok.Text))
		}
		seen[nameTok.Text] = true
		pairs = append(pairs, enumPair{name: nameTok.Text, value: value})

		next, err := lex.Next()
		if err != nil {
			return nil, err
		}
		if next.Kind == TokenRParen {
			break
		}
		if err := next.expect(TokenComma); err != nil {
			return nil, err
		}
	}
	if len(pairs) == 0 {
		return nil, NewError(ErrUnknownType, fmt.Sprintf("Enum%d: at least one member is required", bits))
	}
	return newEnumType(bits, pairs), nil
}

func parseArray(lex *Lexer) (ColumnType, error) {
	if _, err := expect(lex, TokenLParen); err != nil {
		return nil, err
	}
	inner, err := parseTypeExpr(lex)
	if err != nil {
		return nil, err
	}
	if _, err := expect(lex, TokenRParen); err != nil {
		return nil, err
	}
	return &arrayType{inner: inner}, nil
}

func parseNullable(lex *Lexer) (ColumnType, error) {
	if _, err := expect(lex, TokenLParen); err != nil {
		return nil, err
	}
	inner, err := parseTypeExpr(lex)
	if err != nil {
		return nil, err
	}
	if _, err := expect(lex, TokenRParen); err != nil {
		return nil, err
	}
	switch inner.Kind() {
	case KindNullable:
		return nil, NewError(ErrUnknownType, "Nullable(Nullable(T)) is forbidden")
	case KindArray:
		if arr, ok := inner.(*arrayType); ok && arr.inner.Kind() == KindNullable {
			return nil, NewError(ErrUnknownType, "Array(Nullable(T)) cannot itself be Nullable")
		}
	}
	return &nullableType{inner: inner}, nil
}

func parseTuple(lex *Lexer) (ColumnType, error) {
	if _, err := expect(lex, TokenLParen); err != nil {
		return nil, err
	}
	var fields []ColumnType
	for {
		field, err := parseTypeExpr(lex)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)

		next, err := lex.Next()
		if err != nil {
			return nil, err
		}
		if next.Kind == TokenRParen {
			break
		}
		if err := next.expect(TokenComma); err != nil {
			return nil, err
		}
	}
	if len(fields) == 0 {
		return nil, NewError(ErrUnknownType, "Tuple: at least one member is required")
	}
	return newTupleType(fields), nil
}

func parseNested(lex *Lexer) (ColumnType, error) {
	if _, err := expect(lex, TokenLParen); err != nil {
		return nil, err
	}
	var names []string
	var fields []ColumnType
	for {
		nameTok, err := expect(lex, TokenIdent)
		if err != nil {
			return nil, err
		}
		field, err := parseTypeExpr(lex)
		if err != nil {
			return nil, err
		}
		names = append(names, nameTok.Text)
		fields = append(fields, field)

		next, err := lex.Next()
		if err != nil {
			return nil, err
		}
		if next.Kind == TokenRParen {
			break
		}
		if err := next.expect(TokenComma); err != nil {
			return nil, err
		}
	}
	if len(fields) == 0 {
		return nil, NewError(ErrUnknownType, "Nested: at least one member is required")
	}
	return newNestedType(names, fields), nil
}
