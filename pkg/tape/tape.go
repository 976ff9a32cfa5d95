// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench

// Package tape records and replays adapter traffic. A tape is a stream
// of CBOR-encoded records, each carrying the transfer direction, the
// millisecond offset from the start of the capture and the raw bytes.
// Tapes are written live by the capture flags of the CLI and read back
// offline by the replay command.
package tape

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction marks which way the bytes travelled.
type Direction uint8

// Directions
const (
	DirRX Direction = 0 // adapter to host
	DirTX Direction = 1 // host to adapter
)

// String returns the conventional two-letter direction tag.
func (d Direction) String() string {
	if d == DirTX {
		return "TX"
	}
	return "RX"
}

// Record is one captured transfer.
type Record struct {
	Dir      Direction `cbor:"0,keyasint"`
	OffsetMS uint64    `cbor:"1,keyasint"`
	Data     []byte    `cbor:"2,keyasint"`
}

// Writer appends records to a tape. Safe for concurrent use: the TX path
// and the RX read loop share one writer.
type Writer struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	start time.Time
}

// NewWriter creates a tape writer around w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		enc:   cbor.NewEncoder(w),
		start: time.Now(),
	}
}

// Record appends one transfer to the tape.
func (t *Writer) Record(dir Direction, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := Record{
		Dir:      dir,
		OffsetMS: uint64(time.Since(t.start) / time.Millisecond),
		Data:     append([]byte(nil), data...),
	}
	if err := t.enc.Encode(rec); err != nil {
		return fmt.Errorf("tape encode: %w", err)
	}
	return nil
}

// TXWriter wraps inner so every successful write is also recorded as a
// TX transfer. A failed record does not fail the write.
func (t *Writer) TXWriter(inner io.Writer) io.Writer {
	return &txWriter{tape: t, inner: inner}
}

type txWriter struct {
	tape  *Writer
	inner io.Writer
}

func (w *txWriter) Write(p []byte) (int, error) {
	n, err := w.inner.Write(p)
	if n > 0 {
		w.tape.Record(DirTX, p[:n])
	}
	return n, err
}

// ReadAll decodes every record from r until end of stream.
func ReadAll(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)

	var records []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("tape decode: %w", err)
		}
		records = append(records, rec)
	}
}
