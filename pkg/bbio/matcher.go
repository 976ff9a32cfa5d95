// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench

package bbio

import (
	"bytes"
	"context"
	"strings"
	"sync"
)

// A Waiter is a pending expectation against the inbound stream. It
// resolves exactly once, either with the bytes it matched or with an
// error when the expectation is abandoned.
type Waiter struct {
	done chan outcome
}

type outcome struct {
	data []byte
	err  error
}

func newWaiter() *Waiter {
	return &Waiter{done: make(chan outcome, 1)}
}

// Wait blocks until the waiter resolves or ctx is cancelled.
func (w *Waiter) Wait(ctx context.Context) ([]byte, error) {
	select {
	case o := <-w.done:
		return o.data, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve delivers the outcome. The 1-buffered channel makes delivery
// non-blocking; the matcher guarantees it is called at most once per
// waiter.
func (w *Waiter) resolve(data []byte, err error) {
	w.done <- outcome{data: data, err: err}
}

type pendingMatch struct {
	pattern []byte // exact byte pattern; nil/empty is the match-anything sentinel
	marker  string // textual search pattern, when non-empty
	anyNext bool
	waiter  *Waiter
}

// StreamMatcher owns the inbound accumulation buffer and an ordered set
// of pending expectations. Any number of in-flight operations can each
// wait for a byte pattern; a match consumes exactly the bytes it matched
// and leaves the remainder for later waiters.
//
// Waiters are evaluated strictly in registration order on every feed, and
// the buffer shrunk by an earlier match is what later waiters in the same
// feed see. This gives FIFO fairness: a newer waiter can never steal
// bytes owed to an older one.
type StreamMatcher struct {
	mu      sync.Mutex
	buf     []byte
	pending []*pendingMatch
}

// NewStreamMatcher creates an empty stream matcher.
func NewStreamMatcher() *StreamMatcher {
	return &StreamMatcher{}
}

// Expect registers an exact byte pattern and returns its waiter
// immediately. An empty or nil pattern is the match-anything sentinel:
// it resolves with the entire buffer on the next feed that leaves the
// buffer non-empty.
func (m *StreamMatcher) Expect(pattern []byte) *Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &pendingMatch{waiter: newWaiter()}
	if len(pattern) == 0 {
		p.anyNext = true
	} else {
		p.pattern = append([]byte(nil), pattern...)
	}
	m.pending = append(m.pending, p)
	return p.waiter
}

// ExpectText registers a textual search pattern. The buffer is scanned as
// text for the first occurrence; leading bytes before the match are
// retained for later waiters, which tolerates console noise ahead of a
// marker.
func (m *StreamMatcher) ExpectText(marker string) *Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &pendingMatch{marker: marker, waiter: newWaiter()}
	m.pending = append(m.pending, p)
	return p.waiter
}

// Feed appends chunk to the buffer and evaluates pending waiters oldest
// first. Resolved waiters are removed; unresolved ones stay registered
// for the next feed. Iteration walks a stable snapshot and survivors are
// rebuilt, so removal cannot skip or double-visit an entry.
func (m *StreamMatcher) Feed(chunk []byte) {
	m.mu.Lock()

	m.buf = append(m.buf, chunk...)

	var resolved []func()
	survivors := m.pending[:0]
	for _, p := range m.pending {
		matched, rest, ok := p.match(m.buf)
		if !ok {
			survivors = append(survivors, p)
			continue
		}
		m.buf = rest
		w, b := p.waiter, matched
		resolved = append(resolved, func() { w.resolve(b, nil) })
	}
	m.pending = survivors

	m.mu.Unlock()

	// Resolve outside the lock so a Wait caller re-registering a new
	// expectation from its own goroutine cannot deadlock against Feed.
	for _, fn := range resolved {
		fn()
	}
}

// match reports whether p is satisfied by buf. On a match it returns the
// matched bytes and the remaining buffer.
func (p *pendingMatch) match(buf []byte) (matched, rest []byte, ok bool) {
	switch {
	case p.anyNext:
		if len(buf) == 0 {
			return nil, nil, false
		}
		return buf, nil, true

	case p.marker != "":
		i := strings.Index(string(buf), p.marker)
		if i < 0 {
			return nil, buf, false
		}
		end := i + len(p.marker)
		return buf[i:end], buf[end:], true

	default:
		if len(buf) < len(p.pattern) || !bytes.Equal(buf[:len(p.pattern)], p.pattern) {
			return nil, buf, false
		}
		return buf[:len(p.pattern)], buf[len(p.pattern):], true
	}
}

// AbandonAll resolves every pending waiter with err and clears the
// collection. Used when binary mode acquisition gives up.
func (m *StreamMatcher) AbandonAll(err error) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if err == nil {
		err = ErrAbandoned
	}
	for _, p := range pending {
		p.waiter.resolve(nil, err)
	}
}

// PendingCount returns the number of unresolved waiters.
func (m *StreamMatcher) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Drain discards any buffered bytes that no waiter has claimed.
func (m *StreamMatcher) Drain() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.buf
	m.buf = nil
	return b
}
