// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench

package tape

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.Record(DirTX, []byte{0x00, 0x0F}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := w.Record(DirRX, []byte("BBIO1")); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	records, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	if records[0].Dir != DirTX || !bytes.Equal(records[0].Data, []byte{0x00, 0x0F}) {
		t.Errorf("Record 0 mismatch: %+v", records[0])
	}
	if records[1].Dir != DirRX || string(records[1].Data) != "BBIO1" {
		t.Errorf("Record 1 mismatch: %+v", records[1])
	}
	if records[1].OffsetMS < records[0].OffsetMS {
		t.Error("Offsets must be monotonic")
	}
}

func TestReadAll_Empty(t *testing.T) {
	records, err := ReadAll(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestReadAll_Truncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Record(DirRX, []byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	truncated := buf.Bytes()[:buf.Len()-1]
	if _, err := ReadAll(bytes.NewReader(truncated)); err == nil {
		t.Error("Expected an error for a truncated tape")
	}
}

func TestTXWriter_RecordsAndPassesThrough(t *testing.T) {
	var tapeBuf, wire bytes.Buffer
	w := NewWriter(&tapeBuf)

	tx := w.TXWriter(&wire)
	n, err := tx.Write([]byte{0xC1})
	if err != nil || n != 1 {
		t.Fatalf("Write = %d, %v; want 1, nil", n, err)
	}

	if !bytes.Equal(wire.Bytes(), []byte{0xC1}) {
		t.Errorf("Wire bytes = % X, want C1", wire.Bytes())
	}

	records, err := ReadAll(&tapeBuf)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if len(records) != 1 || records[0].Dir != DirTX || !bytes.Equal(records[0].Data, []byte{0xC1}) {
		t.Errorf("Tape records = %+v", records)
	}
}

func TestRecord_CopiesData(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	data := []byte{0xAA}
	if err := w.Record(DirRX, data); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	data[0] = 0x00 // caller reuses its read buffer

	records, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if records[0].Data[0] != 0xAA {
		t.Error("Record must copy the caller's buffer")
	}
}

func TestDirection_String(t *testing.T) {
	if DirTX.String() != "TX" || DirRX.String() != "RX" {
		t.Errorf("Direction strings = %s/%s, want TX/RX", DirTX, DirRX)
	}
}
