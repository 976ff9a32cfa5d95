// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench

package bbio

// EventKind classifies notifications emitted by the engine.
type EventKind int

// Event kinds. These are observable notifications, not RPCs: listeners
// react to them (the UART driver resets itself when another mode is
// committed) but cannot veto them.
const (
	EventConnected EventKind = iota
	EventMode
	EventPeripherals
	EventWarning
	EventError
	EventUARTReady
	EventUARTEcho
)

// Event is a notification published by a Session.
type Event struct {
	Kind    EventKind
	Mode    Mode   // EventMode
	Code    byte   // EventPeripherals: the written command byte
	Flag    bool   // EventUARTEcho: echo enabled
	Err     error  // EventError
	Message string // EventWarning
}

// Listener receives engine events. Listeners are invoked synchronously on
// the goroutine that triggered the event and must not block.
type Listener func(Event)

// Notify registers a listener for all subsequent events.
func (s *Session) Notify(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// emit publishes an event to every registered listener.
func (s *Session) emit(ev Event) {
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
