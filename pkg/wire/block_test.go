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
	"reflect"
	"testing"
)

func buildTestBlock(t *testing.T) *Block {
	t.Helper()
	idType, err := ParseType("UInt64")
	if err != nil {
		t.Fatalf("ParseType: %v", err)
	}
	nameType, err := ParseType("String")
	if err != nil {
		t.Fatalf("ParseType: %v", err)
	}
	tagsType, err := ParseType("Array(Nullable(String))")
	if err != nil {
		t.Fatalf("ParseType: %v", err)
	}
	return &Block{
		Columns: []Column{
			{Name: "id", Type: idType, Values: []any{uint64(1), uint64(2), uint64(3)}},
			{Name: "name", Type: nameType, Values: []any{"alice", "bob", "carol"}},
			{Name: "tags", Type: tagsType, Values: []any{
				[]any{"a", Null},
				[]any{},
				[]any{"x", "y", "z"},
			}},
		},
	}
}

func TestBlockRoundTripUncompressed(t *testing.T) {
	block := buildTestBlock(t)
	var buf bytes.Buffer
	w := NewByteStream(&buf)
	if err := EncodeBlock(w, "events", block, nil); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}

	r := NewByteStream(&buf)
	tableName, decoded, err := DecodeBlock(r, nil)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if tableName != "events" {
		t.Fatalf("tableName = %q", tableName)
	}
	if decoded.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", decoded.NumRows())
	}
	if !reflect.DeepEqual(decoded.Columns[0].Values, block.Columns[0].Values) {
		t.Fatalf("id column mismatch: %v vs %v", decoded.Columns[0].Values, block.Columns[0].Values)
	}
	if !reflect.DeepEqual(decoded.Columns[1].Values, block.Columns[1].Values) {
		t.Fatalf("name column mismatch")
	}
}

func TestBlockRoundTripCompressed(t *testing.T) {
	block := buildTestBlock(t)
	var buf bytes.Buffer
	w := NewByteStream(&buf)
	if err := EncodeBlock(w, "events", block, NewLZ4Frame()); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}

	r := NewByteStream(&buf)
	_, decoded, err := DecodeBlock(r, NewLZ4Frame())
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if decoded.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", decoded.NumRows())
	}
}

func TestBlockValidateRejectsMismatchedColumnLengths(t *testing.T) {
	idType, _ := ParseType("UInt64")
	b := &Block{Columns: []Column{
		{Name: "a", Type: idType, Values: []any{uint64(1), uint64(2)}},
		{Name: "b", Type: idType, Values: []any{uint64(1)}},
	}}
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error for mismatched column lengths")
	}
}

func TestBlockValidateRejectsDuplicateNames(t *testing.T) {
	idType, _ := ParseType("UInt64")
	b := &Block{Columns: []Column{
		{Name: "a", Type: idType, Values: []any{uint64(1)}},
		{Name: "a", Type: idType, Values: []any{uint64(2)}},
	}}
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error for duplicate column names")
	}
}

func TestEmptyBlockIsValidInsertTerminator(t *testing.T) {
	idType, _ := ParseType("UInt64")
	b := &Block{Columns: []Column{{Name: "a", Type: idType, Values: nil}}}
	if b.NumRows() != 0 {
		t.Fatalf("NumRows = %d, want 0", b.NumRows())
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
