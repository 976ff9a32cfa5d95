// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench

package bbio

import (
	"bytes"
	"errors"
	"testing"
)

// resolvedNow drains the waiter without blocking. Returns ok=false if the
// waiter is still pending.
func resolvedNow(w *Waiter) (outcome, bool) {
	select {
	case o := <-w.done:
		return o, true
	default:
		return outcome{}, false
	}
}

// ============================================================
// Exact Pattern Matching
// ============================================================

func TestExpect_ExactMatch(t *testing.T) {
	m := NewStreamMatcher()
	w := m.Expect([]byte{0x01, 0x02})

	m.Feed([]byte{0x01, 0x02, 0x03})

	o, ok := resolvedNow(w)
	if !ok {
		t.Fatal("Expected waiter to resolve")
	}
	if o.err != nil {
		t.Fatalf("Unexpected error: %v", o.err)
	}
	if !bytes.Equal(o.data, []byte{0x01, 0x02}) {
		t.Errorf("Matched bytes mismatch: got % X", o.data)
	}
	if rest := m.Drain(); !bytes.Equal(rest, []byte{0x03}) {
		t.Errorf("Buffer should retain trailing byte, got % X", rest)
	}
}

func TestExpect_ShortBufferStaysPending(t *testing.T) {
	m := NewStreamMatcher()
	w := m.Expect([]byte{0x01, 0x02, 0x03})

	m.Feed([]byte{0x01, 0x02})

	if _, ok := resolvedNow(w); ok {
		t.Fatal("Waiter should stay pending on short buffer")
	}
	if m.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", m.PendingCount())
	}

	m.Feed([]byte{0x03})
	o, ok := resolvedNow(w)
	if !ok {
		t.Fatal("Waiter should resolve once the pattern completes")
	}
	if !bytes.Equal(o.data, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("Matched bytes mismatch: got % X", o.data)
	}
}

func TestExpect_MismatchLeavesBufferUnchanged(t *testing.T) {
	m := NewStreamMatcher()
	w := m.Expect([]byte{0xAA})

	m.Feed([]byte{0xBB, 0xCC})

	if _, ok := resolvedNow(w); ok {
		t.Fatal("Waiter should not resolve on mismatch")
	}
	if rest := m.Drain(); !bytes.Equal(rest, []byte{0xBB, 0xCC}) {
		t.Errorf("Buffer should be unchanged, got % X", rest)
	}
}

func TestExpect_RegistrationOrderFIFO(t *testing.T) {
	m := NewStreamMatcher()

	patterns := [][]byte{
		{0x10, 0x11},
		{0x20},
		{0x30, 0x31, 0x32},
	}
	waiters := make([]*Waiter, len(patterns))
	for i, p := range patterns {
		waiters[i] = m.Expect(p)
	}

	// One feed carrying all three patterns back to back resolves all
	// three in registration order, each consuming exactly its own bytes.
	var all []byte
	for _, p := range patterns {
		all = append(all, p...)
	}
	m.Feed(all)

	for i, w := range waiters {
		o, ok := resolvedNow(w)
		if !ok {
			t.Fatalf("Waiter %d should have resolved", i)
		}
		if !bytes.Equal(o.data, patterns[i]) {
			t.Errorf("Waiter %d matched % X, want % X", i, o.data, patterns[i])
		}
	}
	if m.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", m.PendingCount())
	}
	if rest := m.Drain(); len(rest) != 0 {
		t.Errorf("Buffer should be empty, got % X", rest)
	}
}

func TestExpect_NewerMatcherCannotStealFromOlder(t *testing.T) {
	m := NewStreamMatcher()

	older := m.Expect([]byte{0x01})
	newer := m.Expect([]byte{0x01})

	m.Feed([]byte{0x01})

	if _, ok := resolvedNow(older); !ok {
		t.Fatal("Older waiter should win the shared prefix")
	}
	if _, ok := resolvedNow(newer); ok {
		t.Fatal("Newer waiter must stay pending")
	}

	m.Feed([]byte{0x01})
	if _, ok := resolvedNow(newer); !ok {
		t.Fatal("Newer waiter should resolve on the next occurrence")
	}
}

// ============================================================
// Match-Anything Sentinel
// ============================================================

func TestExpect_EmptyPatternConsumesEverything(t *testing.T) {
	m := NewStreamMatcher()

	m.Feed([]byte{0x01, 0x02}) // buffered before registration
	w := m.Expect(nil)
	m.Feed([]byte{0x03})

	o, ok := resolvedNow(w)
	if !ok {
		t.Fatal("Sentinel should resolve on the next feed")
	}
	if !bytes.Equal(o.data, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("Sentinel should consume the whole buffer, got % X", o.data)
	}
	if rest := m.Drain(); len(rest) != 0 {
		t.Errorf("Buffer should be empty, got % X", rest)
	}
}

func TestExpect_EmptyPatternWaitsForData(t *testing.T) {
	m := NewStreamMatcher()
	w := m.Expect([]byte{})

	m.Feed(nil)
	if _, ok := resolvedNow(w); ok {
		t.Fatal("Sentinel should not resolve on an empty buffer")
	}

	m.Feed([]byte{0x42})
	o, ok := resolvedNow(w)
	if !ok {
		t.Fatal("Sentinel should resolve once bytes arrive")
	}
	if !bytes.Equal(o.data, []byte{0x42}) {
		t.Errorf("Sentinel matched % X, want 42", o.data)
	}
}

// ============================================================
// Textual Search Patterns
// ============================================================

func TestExpectText_NoiseBeforeMarker(t *testing.T) {
	m := NewStreamMatcher()
	w := m.ExpectText("BBIO1")

	m.Feed([]byte("garbage noise BBIO1"))

	o, ok := resolvedNow(w)
	if !ok {
		t.Fatal("Text waiter should resolve")
	}
	if string(o.data) != "BBIO1" {
		t.Errorf("Matched %q, want BBIO1", o.data)
	}
}

func TestExpectText_RetainsLeadingBytesForLaterWaiters(t *testing.T) {
	m := NewStreamMatcher()
	textW := m.ExpectText("ART1")
	tailW := m.Expect(nil)

	// Noise before the marker is consumed through the end of the match;
	// bytes after it remain for the sentinel behind it.
	m.Feed([]byte("xxART1yy"))

	o, ok := resolvedNow(textW)
	if !ok || string(o.data) != "ART1" {
		t.Fatalf("Text waiter resolved %q, %v; want ART1, true", o.data, ok)
	}

	o, ok = resolvedNow(tailW)
	if !ok || string(o.data) != "yy" {
		t.Fatalf("Sentinel resolved %q, %v; want yy, true", o.data, ok)
	}
}

func TestExpectText_SplitAcrossFeeds(t *testing.T) {
	m := NewStreamMatcher()
	w := m.ExpectText("BBIO1")

	m.Feed([]byte("BBI"))
	if _, ok := resolvedNow(w); ok {
		t.Fatal("Partial marker must not resolve")
	}

	m.Feed([]byte("O1"))
	o, ok := resolvedNow(w)
	if !ok || string(o.data) != "BBIO1" {
		t.Fatalf("Resolved %q, %v; want BBIO1, true", o.data, ok)
	}
}

// ============================================================
// Chunk-Boundary Independence
// ============================================================

func TestFeed_ChunkBoundaryIndependence(t *testing.T) {
	stream := []byte("noise BBIO1\x01\x01garbage")

	build := func() (*StreamMatcher, []*Waiter) {
		m := NewStreamMatcher()
		return m, []*Waiter{
			m.ExpectText("BBIO1"),
			m.Expect([]byte{0x01, 0x01}),
		}
	}

	single, singleWaiters := build()
	single.Feed(stream)

	byByte, byByteWaiters := build()
	for _, b := range stream {
		byByte.Feed([]byte{b})
	}

	for i := range singleWaiters {
		a, aok := resolvedNow(singleWaiters[i])
		b, bok := resolvedNow(byByteWaiters[i])
		if aok != bok {
			t.Fatalf("Waiter %d: resolution differs (single=%v, byte-at-a-time=%v)", i, aok, bok)
		}
		if !bytes.Equal(a.data, b.data) {
			t.Errorf("Waiter %d: matched bytes differ: % X vs % X", i, a.data, b.data)
		}
	}
	if !bytes.Equal(single.Drain(), byByte.Drain()) {
		t.Error("Remaining buffers differ between feeding strategies")
	}
}

// ============================================================
// Single Resolution / Abandonment
// ============================================================

func TestWaiter_NeverResolvesTwice(t *testing.T) {
	m := NewStreamMatcher()
	w := m.Expect([]byte{0x05})

	m.Feed([]byte{0x05, 0x05})

	if _, ok := resolvedNow(w); !ok {
		t.Fatal("Waiter should resolve on first occurrence")
	}
	// Second occurrence still sits in the buffer; the removed waiter must
	// not be evaluated again.
	m.Feed([]byte{0x05})
	if _, ok := resolvedNow(w); ok {
		t.Fatal("Waiter resolved twice")
	}
}

func TestAbandonAll_ResolvesEveryPendingOnce(t *testing.T) {
	m := NewStreamMatcher()
	cause := errors.New("acquisition gave up")

	waiters := []*Waiter{
		m.Expect([]byte{0xFF}),
		m.ExpectText("never"),
		m.Expect(nil),
	}

	m.AbandonAll(cause)

	for i, w := range waiters {
		o, ok := resolvedNow(w)
		if !ok {
			t.Fatalf("Waiter %d should be resolved by AbandonAll", i)
		}
		if !errors.Is(o.err, cause) {
			t.Errorf("Waiter %d error = %v, want %v", i, o.err, cause)
		}
		if _, ok := resolvedNow(w); ok {
			t.Errorf("Waiter %d resolved twice", i)
		}
	}
	if m.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0 after AbandonAll", m.PendingCount())
	}
}

func TestAbandonAll_NilErrorUsesSentinel(t *testing.T) {
	m := NewStreamMatcher()
	w := m.Expect([]byte{0x01})

	m.AbandonAll(nil)

	o, ok := resolvedNow(w)
	if !ok {
		t.Fatal("Waiter should be resolved")
	}
	if !errors.Is(o.err, ErrAbandoned) {
		t.Errorf("Error = %v, want ErrAbandoned", o.err)
	}
}
