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
	"fmt"

	"github.com/novatechflow/colwire/pkg/wire"
)

// DefaultInsertBatchSize is how many rows InsertAdapter.Stream accumulates
// into one Data block before sending it, absent an explicit override. It
// matches the server's own default insert block size.
const DefaultInsertBatchSize = 8192

// InsertCoercionError reports a row that couldn't be coerced to its
// column's type, with enough position information for the caller to find
// the offending record.
type InsertCoercionError struct {
	ColumnIndex int
	ColumnName  string
	RowIndex    int
	Cause       error
}

func (e *InsertCoercionError) Error() string {
	return fmt.Sprintf("insert: row %d, column %d (%s): %v", e.RowIndex, e.ColumnIndex, e.ColumnName, e.Cause)
}

func (e *InsertCoercionError) Unwrap() error { return e.Cause }

// InsertAdapter turns a RowSource into successive wire.Blocks matching a
// sample header's schema, playing the role of original_source's
// InputFormat#next generalized from a single fixed batch size to a
// caller-chosen one.
type InsertAdapter struct{}

// Stream draws rows from src in batches of rowsPerBatch (DefaultInsertBatchSize
// if <= 0), builds a wire.Block matching header's column order and types for
// each batch, and sends it via conn.sendInsertBlock. It sends a final empty
// block as the insert terminator and returns the total row count sent.
func (a *InsertAdapter) Stream(ctx context.Context, conn *Connection, header *wire.Block, src RowSource, rowsPerBatch int) (uint64, error) {
	if rowsPerBatch <= 0 {
		rowsPerBatch = DefaultInsertBatchSize
	}

	var total uint64
	rowIndex := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		block, n, err := a.nextBlock(header, src, rowsPerBatch, &rowIndex)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, conn.sendInsertBlock("", &wire.Block{})
		}
		if err := conn.sendInsertBlock("", block); err != nil {
			return total, err
		}
		total += uint64(n)
	}
}

func emptyColumnsLike(header *wire.Block) []wire.Column {
	cols := make([]wire.Column, len(header.Columns))
	for i, c := range header.Columns {
		cols[i] = wire.Column{Name: c.Name, Type: c.Type, Values: nil}
	}
	return cols
}

func (a *InsertAdapter) nextBlock(header *wire.Block, src RowSource, rowsPerBatch int, rowIndex *int) (*wire.Block, int, error) {
	cols := make([]wire.Column, len(header.Columns))
	for i, c := range header.Columns {
		cols[i] = wire.Column{Name: c.Name, Type: c.Type, Values: make([]any, 0, rowsPerBatch)}
	}

	n := 0
	for n < rowsPerBatch {
		row, ok, err := src.Next()
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			break
		}
		if len(row) != len(header.Columns) {
			return nil, 0, &InsertCoercionError{
				RowIndex: *rowIndex,
				Cause:    fmt.Errorf("row has %d values, header has %d columns", len(row), len(header.Columns)),
			}
		}
		for i, v := range row {
			if _, err := validateCoercion(header.Columns[i].Type, v); err != nil {
				return nil, 0, &InsertCoercionError{
					ColumnIndex: i,
					ColumnName:  header.Columns[i].Name,
					RowIndex:    *rowIndex,
					Cause:       err,
				}
			}
			cols[i].Values = append(cols[i].Values, v)
		}
		n++
		*rowIndex++
	}

	if n == 0 {
		return nil, 0, nil
	}
	return &wire.Block{Columns: cols}, n, nil
}

// validateCoercion runs the column's single-value encode path against a
// throwaway sink to surface type-mismatch/domain errors before the whole
// batch is built, so a bad row fails with its own row/column coordinates
// rather than surfacing as an opaque mid-batch wire error.
func validateCoercion(t wire.ColumnType, v any) (any, error) {
	if v == wire.Null {
		if t.Kind() != wire.KindNullable {
			return nil, fmt.Errorf("NULL not valid for non-Nullable type %s", t.Name())
		}
		return v, nil
	}
	sink := wire.NewByteStream(discardReadWriter{})
	if err := t.EncodeBinary(sink, v); err != nil {
		return nil, err
	}
	return v, nil
}

type discardReadWriter struct{}

func (discardReadWriter) Read(p []byte) (int, error)  { return 0, fmt.Errorf("discardReadWriter: read not supported") }
func (discardReadWriter) Write(p []byte) (int, error) { return len(p), nil }
