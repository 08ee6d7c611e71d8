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

import "fmt"

// Column is one named, typed, value-bearing slice within a Block. All
// Columns in a Block share the same length (the block's row count).
type Column struct {
	Name   string
	Type   ColumnType
	Values []any
}

// BlockInfo carries the two optional tagged fields the wire format allows
// before a block's column data, following the same
// "repeated {field_num; value} terminated by 0" convention the teacher uses
// for Kafka tagged fields (pkg/protocol's SkipTaggedFields/WriteTaggedFields),
// generalized here from "skip" to "materialize the two fields this protocol
// actually defines."
type BlockInfo struct {
	IsOverflows bool
	BucketNum   int32
}

// Block is a column-oriented batch of rows plus an implicit row count. A
// sample-header block (returned before any insert data) has zero rows but
// carries the full column list and types.
type Block struct {
	Info    BlockInfo
	Columns []Column
}

// NumRows returns the block's row count, i.e. the length shared by every
// column, or 0 for an empty block.
func (b *Block) NumRows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return len(b.Columns[0].Values)
}

// Validate checks the block invariants from distilled spec §3: equal column
// lengths and unique column names.
func (b *Block) Validate() error {
	seen := make(map[string]bool, len(b.Columns))
	n := -1
	for _, c := range b.Columns {
		if seen[c.Name] {
			return NewError(ErrProtocolViolation, fmt.Sprintf("duplicate column name %q", c.Name))
		}
		seen[c.Name] = true
		if n == -1 {
			n = len(c.Values)
		} else if len(c.Values) != n {
			return NewError(ErrProtocolViolation, fmt.Sprintf("column %q has %d rows, expected %d", c.Name, len(c.Values), n))
		}
	}
	return nil
}

// ColumnByName returns the named column's index, or -1 if absent.
func (b *Block) ColumnByName(name string) int {
	for i, c := range b.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func readBlockInfo(r *ByteStream) (BlockInfo, error) {
	var info BlockInfo
	for {
		field, err := r.ReadUVarint()
		if err != nil {
			return info, err
		}
		if field == 0 {
			return info, nil
		}
		switch field {
		case 1:
			v, err := r.ReadUInt8()
			if err != nil {
				return info, err
			}
			info.IsOverflows = v != 0
		case 2:
			v, err := r.ReadInt32()
			if err != nil {
				return info, err
			}
			info.BucketNum = v
		default:
			return info, NewError(ErrMalformedFrame, fmt.Sprintf("unknown BlockInfo field %d", field))
		}
	}
}

func writeBlockInfo(w *ByteStream, info BlockInfo) error {
	if err := w.WriteUVarint(1); err != nil {
		return err
	}
	overflow := uint8(0)
	if info.IsOverflows {
		overflow = 1
	}
	if err := w.WriteUInt8(overflow); err != nil {
		return err
	}
	if err := w.WriteUVarint(2); err != nil {
		return err
	}
	if err := w.WriteInt32(info.BucketNum); err != nil {
		return err
	}
	return w.WriteUVarint(0)
}

// EncodeBlock writes one Data packet body: table name, BlockInfo, column
// count, row count, then each column's (name, type descriptor, bulk
// values), per distilled spec §4.5.
//
// The entire column-data region -- every column's name, type descriptor,
// and bulk values -- is passed through compress if non-nil, wrapping it in
// a single CompressionFrame; the table name, BlockInfo, column count, and
// row count ahead of it are always written uncompressed directly to w, per
// §4.2's "outer control framing ... is NOT compressed." This must mirror
// DecodeBlock's read order exactly, since the two halves of one frame have
// to agree on where the compressed region starts and what it contains.
func EncodeBlock(w *ByteStream, tableName string, b *Block, compress *CompressionFrame) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := w.WriteString(tableName); err != nil {
		return err
	}
	if err := writeBlockInfo(w, b.Info); err != nil {
		return err
	}
	if err := w.WriteUVarint(uint64(len(b.Columns))); err != nil {
		return err
	}
	rows := b.NumRows()
	if err := w.WriteUVarint(uint64(rows)); err != nil {
		return err
	}

	bodyWriter := w
	var frame *bufferedFrame
	if compress != nil {
		frame = newBufferedFrame(compress)
		bodyWriter = frame.stream
	}

	for _, c := range b.Columns {
		if err := bodyWriter.WriteString(c.Name); err != nil {
			return err
		}
		if err := bodyWriter.WriteString(c.Type.Name()); err != nil {
			return err
		}
		if err := c.Type.EncodeBulk(bodyWriter, c.Values); err != nil {
			return err
		}
	}

	if frame != nil {
		return frame.flushTo(w)
	}
	return nil
}

// DecodeBlock reads one Data packet body. If compress is non-nil, column
// payload bytes are read through a CompressionFrame first.
func DecodeBlock(r *ByteStream, compress *CompressionFrame) (tableName string, b *Block, err error) {
	tableName, err = r.ReadString()
	if err != nil {
		return "", nil, err
	}
	info, err := readBlockInfo(r)
	if err != nil {
		return "", nil, err
	}
	numColumns, err := r.ReadUVarint()
	if err != nil {
		return "", nil, err
	}
	numRows, err := r.ReadUVarint()
	if err != nil {
		return "", nil, err
	}

	block := &Block{Info: info, Columns: make([]Column, 0, numColumns)}

	// Column headers (name, type descriptor) are read per-column off the
	// uncompressed stream in ClickHouse's real wire format; the bulk
	// payload that follows each header is what gets compressed. Since the
	// headers and payload interleave per column, a single CompressionFrame
	// wraps the whole column-data region starting right after num_rows;
	// decode it up front into an in-memory ByteStream the remaining reads
	// run against.
	bodyReader := r
	if compress != nil {
		decoded, err := compress.DecodeFrame(r)
		if err != nil {
			return "", nil, err
		}
		bodyReader = decoded
	}

	for i := uint64(0); i < numColumns; i++ {
		name, err := bodyReader.ReadString()
		if err != nil {
			return "", nil, err
		}
		typeName, err := bodyReader.ReadString()
		if err != nil {
			return "", nil, err
		}
		colType, err := ParseType(typeName)
		if err != nil {
			return "", nil, err
		}
		values, err := colType.DecodeBulk(bodyReader, int(numRows))
		if err != nil {
			return "", nil, err
		}
		block.Columns = append(block.Columns, Column{Name: name, Type: colType, Values: values})
	}

	return tableName, block, nil
}
