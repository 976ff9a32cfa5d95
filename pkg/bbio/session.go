// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench

package bbio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Session is the live connection to one adapter. Outbound commands go
// straight to the transport writer; inbound bytes must be pushed through
// Feed by whoever owns the transport read loop.
//
// Mode transitions are serialized by the caller: a SwitchMode must not
// race another SwitchMode or EnterBinmode on the same session. The engine
// assumes exclusive access during a handshake.
type Session struct {
	w       io.Writer
	matcher *StreamMatcher

	mu          sync.Mutex
	mode        Mode
	listeners   []Listener
	uartDrive33 bool // last committed UART pin output level

	// Acquisition tunables, fixed at protocol defaults.
	settle        time.Duration
	probePeriod   time.Duration
	probeAttempts int
}

// NewSession creates a session over the given transport writer.
func NewSession(w io.Writer) *Session {
	return &Session{
		w:             w,
		matcher:       NewStreamMatcher(),
		settle:        ConsoleSettleDelay,
		probePeriod:   BinmodeProbePeriod,
		probeAttempts: BinmodeMaxAttempts,
	}
}

// AnnounceConnected publishes the connected event. Call it once the
// transport read loop is running and listeners are registered.
func (s *Session) AnnounceConnected() {
	s.emit(Event{Kind: EventConnected})
}

// Feed pushes a chunk of inbound transport bytes into the matcher.
func (s *Session) Feed(chunk []byte) {
	s.matcher.Feed(chunk)
}

// Matcher exposes the session's stream matcher so callers can register
// their own expectations against the shared inbound stream, e.g. to
// drain bridge-mode traffic.
func (s *Session) Matcher() *StreamMatcher {
	return s.matcher
}

// Mode returns the adapter's current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) setMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	s.emit(Event{Kind: EventMode, Mode: m})
}

// write sends raw bytes to the transport. A failed write is fatal to the
// operation that issued it; the engine does not retry.
func (s *Session) write(p []byte) error {
	n, err := s.w.Write(p)
	if err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("transport write: short write (%d of %d bytes)", n, len(p))
	}
	return nil
}

// ResetConsole unwinds the adapter's console to a known state: ten
// carriage returns to escape any menu, then the console escape byte. The
// console gives no byte-level acknowledgment for this, so the only thing
// to do is wait out a fixed settle delay.
func (s *Session) ResetConsole(ctx context.Context) error {
	seq := make([]byte, 0, ConsoleResetCount+1)
	for i := 0; i < ConsoleResetCount; i++ {
		seq = append(seq, ConsoleResetByte)
	}
	seq = append(seq, ConsoleEscapeByte)

	if err := s.write(seq); err != nil {
		return err
	}

	t := time.NewTimer(s.settle)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnterBinmode forces the adapter into binary mode. Already being in
// binary or bridge mode is an immediate success with no transport writes.
//
// Acquisition races two activities: a probe loop writing a single zero
// byte per period, bounded by the attempt budget, and one matcher
// registration for the binary mode marker. Whichever finishes first
// wins; on success the probe loop stops before another byte goes out, on
// exhaustion every pending waiter is abandoned.
func (s *Session) EnterBinmode(ctx context.Context) error {
	switch s.Mode() {
	case ModeBinary, ModeUARTBridge:
		return nil
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.matcher.ExpectText(BinmodeAck)
	ackCh := make(chan error, 1)
	go func() {
		_, err := w.Wait(waitCtx)
		ackCh <- err
	}()

	if err := s.write([]byte{BinmodeProbeByte}); err != nil {
		s.matcher.AbandonAll(err)
		<-ackCh
		s.emit(Event{Kind: EventError, Err: err})
		return err
	}
	attempts := 1

	ticker := time.NewTicker(s.probePeriod)
	defer ticker.Stop()

	for {
		select {
		case err := <-ackCh:
			if err != nil {
				return err
			}
			s.setMode(ModeBinary)
			return nil

		case <-ticker.C:
			if attempts >= s.probeAttempts {
				s.matcher.AbandonAll(ErrAcquisitionExhausted)
				<-ackCh
				s.emit(Event{Kind: EventError, Err: ErrAcquisitionExhausted})
				return ErrAcquisitionExhausted
			}
			if err := s.write([]byte{BinmodeProbeByte}); err != nil {
				s.matcher.AbandonAll(err)
				<-ackCh
				s.emit(Event{Kind: EventError, Err: err})
				return err
			}
			attempts++

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SwitchMode negotiates entry into the sub-mode named by desc and returns
// the mode the session ends up in.
//
// Bridge mode short-circuits: no further negotiation is possible without
// a physical reset, so the bridge name is reported as-is. From any state
// other than binary mode the console is reset and binary mode re-acquired
// first. No partial mode change is ever committed: the mode only moves
// after the sub-mode acknowledgment arrives.
func (s *Session) SwitchMode(ctx context.Context, desc ModeDescriptor) (Mode, error) {
	if s.Mode() == ModeUARTBridge {
		return ModeUARTBridge, nil
	}

	if s.Mode() != ModeBinary {
		if err := s.ResetConsole(ctx); err != nil {
			return s.Mode(), err
		}
		if err := s.EnterBinmode(ctx); err != nil {
			return s.Mode(), err
		}
	}

	w := s.matcher.ExpectText(desc.Ack)
	if err := s.write([]byte{desc.ID}); err != nil {
		return s.Mode(), err
	}
	if _, err := w.Wait(ctx); err != nil {
		return s.Mode(), fmt.Errorf("await %s ack: %w", desc.Name, err)
	}

	s.setMode(desc.Name)
	return desc.Name, nil
}

// PeripheralConfig selects the adapter peripherals to switch on. All
// flags default to off.
type PeripheralConfig struct {
	Power   bool
	Pullups bool
	Aux     bool
	MOSI    bool
	CLK     bool
	MISO    bool
	CS      bool
}

// commandByte packs the flags into the peripheral command byte, bit 7
// fixed high.
func (c PeripheralConfig) commandByte() byte {
	b := byte(PeriphCommandBase)
	if c.Power {
		b |= PeriphPower
	}
	if c.Pullups {
		b |= PeriphPullups
	}
	if c.Aux {
		b |= PeriphAux
	}
	if c.MOSI {
		b |= PeriphMOSI
	}
	if c.CLK {
		b |= PeriphCLK
	}
	if c.MISO {
		b |= PeriphMISO
	}
	if c.CS {
		b |= PeriphCS
	}
	return b
}

// ConfigPeripherals writes the peripheral bit-mask command and awaits its
// one-byte acknowledgment.
//
// Enabling the on-board pull-ups while the UART pins drive 3.3V makes the
// pull-ups fight the driver; this is surfaced as a warning event, not an
// error.
func (s *Session) ConfigPeripherals(ctx context.Context, cfg PeripheralConfig) error {
	if cfg.Pullups && s.uartDrives33() {
		s.emit(Event{
			Kind:    EventWarning,
			Message: "pull-ups enabled while UART pin output drives 3.3V",
		})
	}

	cmd := cfg.commandByte()
	w := s.matcher.Expect([]byte{AckByte})
	if err := s.write([]byte{cmd}); err != nil {
		return err
	}
	if _, err := w.Wait(ctx); err != nil {
		return fmt.Errorf("await peripheral ack: %w", err)
	}

	s.emit(Event{Kind: EventPeripherals, Code: cmd})
	return nil
}

func (s *Session) setUARTDrive33(on bool) {
	s.mu.Lock()
	s.uartDrive33 = on
	s.mu.Unlock()
}

func (s *Session) uartDrives33() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uartDrive33
}
