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

package client

import (
	"context"
	"net"
	"testing"

	"github.com/novatechflow/colwire/pkg/wire"
)

type sliceRowSource struct {
	rows [][]any
	pos  int
}

func (s *sliceRowSource) Next() ([]any, bool, error) {
	if s.pos >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true, nil
}

func testHeader(t *testing.T) *wire.Block {
	t.Helper()
	idType, err := wire.ParseType("UInt64")
	if err != nil {
		t.Fatalf("ParseType: %v", err)
	}
	return &wire.Block{Columns: []wire.Column{{Name: "id", Type: idType}}}
}

func TestInsertAdapterStreamsBatchesAndTerminator(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	header := testHeader(t)
	src := &sliceRowSource{rows: [][]any{
		{uint64(1)}, {uint64(2)}, {uint64(3)},
	}}

	c := &Connection{
		cfg:    &Config{},
		conn:   clientConn,
		stream: wire.NewByteStream(clientConn),
		state:  stateSendingInsertData,
	}

	received := make(chan int, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s := wire.NewByteStream(serverConn)
		for {
			tag, err := s.ReadUVarint()
			if err != nil {
				return
			}
			if tag != wire.ClientData {
				t.Errorf("expected ClientData tag, got %d", tag)
				return
			}
			_, block, err := wire.DecodeBlock(s, nil)
			if err != nil {
				t.Errorf("DecodeBlock: %v", err)
				return
			}
			received <- block.NumRows()
			if block.NumRows() == 0 {
				return
			}
		}
	}()

	adapter := &InsertAdapter{}
	n, err := adapter.Stream(context.Background(), c, header, src, 2)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows sent = %d, want 3", n)
	}
	<-done
	close(received)

	var counts []int
	for c := range received {
		counts = append(counts, c)
	}
	want := []int{2, 1, 0}
	if len(counts) != len(want) {
		t.Fatalf("batch counts = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("batch counts = %v, want %v", counts, want)
		}
	}
}

func TestInsertAdapterRejectsRowLengthMismatch(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()
	go discardConn(serverConn)

	header := testHeader(t)
	src := &sliceRowSource{rows: [][]any{{uint64(1), uint64(2)}}}

	c := &Connection{cfg: &Config{}, conn: clientConn, stream: wire.NewByteStream(clientConn), state: stateSendingInsertData}
	adapter := &InsertAdapter{}
	_, err := adapter.Stream(context.Background(), c, header, src, 10)
	if err == nil {
		t.Fatalf("expected error for row/column count mismatch")
	}
	var coercionErr *InsertCoercionError
	if !asCoercionError(err, &coercionErr) {
		t.Fatalf("expected *InsertCoercionError, got %v (%T)", err, err)
	}
}

func asCoercionError(err error, target **InsertCoercionError) bool {
	e, ok := err.(*InsertCoercionError)
	if !ok {
		return false
	}
	*target = e
	return true
}

// TestInsertAdapterStreamsTenThousandRowsInDefaultBatches covers scenario
// S8: 10,000 rows through the input adapter at the default batch size
// (8192) must produce exactly rowsWritten == 10000, delivered as two
// non-empty batches (8192 + 1808) plus the empty terminator.
func TestInsertAdapterStreamsTenThousandRowsInDefaultBatches(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	header := testHeader(t)
	const total = 10000
	rows := make([][]any, total)
	for i := range rows {
		rows[i] = []any{uint64(i)}
	}
	src := &sliceRowSource{rows: rows}

	c := &Connection{
		cfg:    &Config{},
		conn:   clientConn,
		stream: wire.NewByteStream(clientConn),
		state:  stateSendingInsertData,
	}

	received := make(chan int, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s := wire.NewByteStream(serverConn)
		for {
			tag, err := s.ReadUVarint()
			if err != nil {
				return
			}
			if tag != wire.ClientData {
				t.Errorf("expected ClientData tag, got %d", tag)
				return
			}
			_, block, err := wire.DecodeBlock(s, nil)
			if err != nil {
				t.Errorf("DecodeBlock: %v", err)
				return
			}
			received <- block.NumRows()
			if block.NumRows() == 0 {
				return
			}
		}
	}()

	adapter := &InsertAdapter{}
	n, err := adapter.Stream(context.Background(), c, header, src, DefaultInsertBatchSize)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if n != total {
		t.Fatalf("rows written = %d, want %d", n, total)
	}
	<-done
	close(received)

	var counts []int
	for c := range received {
		counts = append(counts, c)
	}
	want := []int{8192, 1808, 0}
	if len(counts) != len(want) {
		t.Fatalf("batch counts = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("batch counts = %v, want %v", counts, want)
		}
	}
}

// TestValidateCoercionRejectsNullForNonNullableColumn guards against a
// row's wire.Null value silently passing validateCoercion for a column
// whose type isn't Nullable -- it must fail before ever reaching
// t.EncodeBinary, with row/column position preserved in the resulting
// InsertCoercionError.
func TestValidateCoercionRejectsNullForNonNullableColumn(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()
	go discardConn(serverConn)

	header := testHeader(t) // id UInt64, not Nullable
	src := &sliceRowSource{rows: [][]any{{wire.Null}}}

	c := &Connection{cfg: &Config{}, conn: clientConn, stream: wire.NewByteStream(clientConn), state: stateSendingInsertData}
	adapter := &InsertAdapter{}
	_, err := adapter.Stream(context.Background(), c, header, src, 10)
	if err == nil {
		t.Fatalf("expected error inserting NULL into a non-Nullable column")
	}
	var coercionErr *InsertCoercionError
	if !asCoercionError(err, &coercionErr) {
		t.Fatalf("expected *InsertCoercionError, got %v (%T)", err, err)
	}
	if coercionErr.ColumnIndex != 0 || coercionErr.ColumnName != "id" || coercionErr.RowIndex != 0 {
		t.Fatalf("unexpected coercion error position: %+v", coercionErr)
	}
}

// TestValidateCoercionAllowsNullForNullableColumn is the companion case:
// a Nullable column must still accept wire.Null.
func TestValidateCoercionAllowsNullForNullableColumn(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	nullableID, err := wire.ParseType("Nullable(UInt64)")
	if err != nil {
		t.Fatalf("ParseType: %v", err)
	}
	header := &wire.Block{Columns: []wire.Column{{Name: "id", Type: nullableID}}}
	src := &sliceRowSource{rows: [][]any{{wire.Null}}}

	c := &Connection{cfg: &Config{}, conn: clientConn, stream: wire.NewByteStream(clientConn), state: stateSendingInsertData}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s := wire.NewByteStream(serverConn)
		for {
			tag, err := s.ReadUVarint()
			if err != nil {
				return
			}
			if tag != wire.ClientData {
				return
			}
			if _, _, err := wire.DecodeBlock(s, nil); err != nil {
				t.Errorf("DecodeBlock: %v", err)
				return
			}
		}
	}()

	adapter := &InsertAdapter{}
	n, err := adapter.Stream(context.Background(), c, header, src, 10)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows written = %d, want 1", n)
	}
	clientConn.Close()
	<-done
}

func discardConn(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}
