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
	"strings"
	"testing"
)

func TestCompressionFrameRoundTrip(t *testing.T) {
	frames := map[string]*CompressionFrame{
		"lz4":  NewLZ4Frame(),
		"zstd": NewZSTDFrame(),
	}
	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 50))

	for name, f := range frames {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewByteStream(&buf)
			if err := f.EncodeFrame(w, payload); err != nil {
				t.Fatalf("EncodeFrame: %v", err)
			}
			r := NewByteStream(&buf)
			decoded, err := f.DecodeFrame(r)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			got, err := decoded.ReadBytes(len(payload))
			if err != nil {
				t.Fatalf("ReadBytes: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("decoded payload mismatch")
			}
		})
	}
}

func TestCompressionFrameChecksumMismatch(t *testing.T) {
	f := NewLZ4Frame()
	var buf bytes.Buffer
	w := NewByteStream(&buf)
	if err := f.EncodeFrame(w, []byte("payload")); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[0] ^= 0xff // flip a bit in the checksum

	r := NewByteStream(bytes.NewBuffer(corrupted))
	_, err := f.DecodeFrame(r)
	if err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
	werr, ok := err.(*WireError)
	if !ok || werr.Kind != ErrChecksumMismatch {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestCompressionFrameUnknownMethod(t *testing.T) {
	f := &CompressionFrame{Method: 0xAB}
	if _, err := f.compress([]byte("payload")); err == nil {
		t.Fatalf("expected error compressing with an unknown method")
	} else if werr, ok := err.(*WireError); !ok || werr.Kind != ErrUnknownCompressionMethod {
		t.Fatalf("expected ErrUnknownCompressionMethod, got %v", err)
	}

	if _, err := decompressMethod(0xAB, []byte("payload"), 7); err == nil {
		t.Fatalf("expected error decompressing with an unknown method")
	} else if werr, ok := err.(*WireError); !ok || werr.Kind != ErrUnknownCompressionMethod {
		t.Fatalf("expected ErrUnknownCompressionMethod, got %v", err)
	}
}
