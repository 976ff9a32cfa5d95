// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench

package bbio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
)

// Parity selects the UART parity bit.
type Parity byte

// Parity values
const (
	ParityNone Parity = 'N'
	ParityEven Parity = 'E'
	ParityOdd  Parity = 'O'
)

// PinOutput selects the UART pin output level.
type PinOutput int

// Pin output values. The zero value means "use the default" (3.3V drive).
const (
	PinOutputDefault PinOutput = iota
	PinOutput33
	PinOutputHiZ
)

// IdlePolarity selects the line level between frames. The zero value
// means "use the default" (idle high).
type IdlePolarity int

// Idle polarity values
const (
	IdleDefault IdlePolarity = iota
	IdleHigh
	IdleLow
)

// UARTOptions configures the UART sub-mode. Zero-valued fields take the
// documented defaults: 9600 baud, 3.3V output, 8 data bits, no parity,
// 1 stop bit, idle high.
type UARTOptions struct {
	BaudRate int
	Output   PinOutput
	DataBits int // 8 or 9; 9 data bits force no parity
	Parity   Parity
	StopBits int // 1 or 2
	Idle     IdlePolarity
}

// DefaultUARTOptions returns the documented defaults.
func DefaultUARTOptions() UARTOptions {
	return UARTOptions{
		BaudRate: 9600,
		Output:   PinOutput33,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 1,
		Idle:     IdleHigh,
	}
}

// withDefaults merges o over the documented defaults.
func (o UARTOptions) withDefaults() UARTOptions {
	d := DefaultUARTOptions()
	if o.BaudRate != 0 {
		d.BaudRate = o.BaudRate
	}
	if o.Output != PinOutputDefault {
		d.Output = o.Output
	}
	if o.DataBits != 0 {
		d.DataBits = o.DataBits
	}
	if o.Parity != 0 {
		d.Parity = o.Parity
	}
	if o.StopBits != 0 {
		d.StopBits = o.StopBits
	}
	if o.Idle != IdleDefault {
		d.Idle = o.Idle
	}
	return d
}

// baudCode maps the baud rate to its command byte. Rates outside the
// fixed table fall back to the default rate's code.
func (o UARTOptions) baudCode() byte {
	if code, ok := baudCodes[o.BaudRate]; ok {
		return code
	}
	return baudCodes[DefaultUARTOptions().BaudRate]
}

// configByte encodes output level, word format, stop bits and idle
// polarity into the 100wxxyz configuration command.
func (o UARTOptions) configByte() byte {
	b := byte(UARTConfigBase)
	if o.Output == PinOutput33 {
		b |= 1 << 4
	}
	var format byte
	if o.DataBits == 9 {
		format = 3
	} else {
		switch o.Parity {
		case ParityEven:
			format = 1
		case ParityOdd:
			format = 2
		}
	}
	b |= format << 2
	if o.StopBits == 2 {
		b |= 1 << 1
	}
	if o.Idle == IdleLow {
		b |= 1
	}
	return b
}

// UART drives the adapter's UART sub-mode: configuration handshake, RX
// echo toggling, bridge mode and chunked block writes.
type UART struct {
	s *Session

	mu      sync.Mutex
	started bool
	opts    UARTOptions
}

// NewUART creates a UART driver bound to the session. The driver watches
// mode changes and deactivates itself when a different mode is committed,
// so a stale driver cannot issue UART commands into another sub-mode.
func NewUART(s *Session) *UART {
	u := &UART{s: s}
	s.Notify(func(ev Event) {
		if ev.Kind != EventMode {
			return
		}
		if ev.Mode != ModeUART && ev.Mode != ModeUARTBridge {
			u.mu.Lock()
			u.started = false
			u.mu.Unlock()
		}
	})
	return u
}

// Started reports whether the driver has completed its start handshake.
func (u *UART) Started() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.started
}

// Options returns the last committed UART options.
func (u *UART) Options() UARTOptions {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.opts
}

func (u *UART) setStarted(on bool) {
	u.mu.Lock()
	u.started = on
	u.mu.Unlock()
}

// Start switches the session into UART mode and applies opts. If the
// session is already bridged the driver is simply marked started: the
// bridge is a transparent pipe and accepts no further negotiation.
func (u *UART) Start(ctx context.Context, opts UARTOptions) error {
	mode, err := u.s.SwitchMode(ctx, DescriptorUART)
	if err != nil {
		return err
	}

	switch mode {
	case ModeUART:
		u.setStarted(true)
		return u.SetOptions(ctx, opts)
	case ModeUARTBridge:
		u.setStarted(true)
		u.s.emit(Event{Kind: EventUARTReady})
		return nil
	default:
		return fmt.Errorf("%w: expected uart, adapter reports %q", ErrUnexpectedMode, mode)
	}
}

// SetOptions applies opts merged over the defaults: the baud command
// first, then the configuration byte, each with its own one-byte ack.
// Auto-starts the driver if Start has not run yet.
func (u *UART) SetOptions(ctx context.Context, opts UARTOptions) error {
	if !u.Started() {
		return u.Start(ctx, opts)
	}

	opts = opts.withDefaults()
	u.mu.Lock()
	u.opts = opts
	u.mu.Unlock()
	u.s.setUARTDrive33(opts.Output == PinOutput33)

	w := u.s.matcher.Expect([]byte{AckByte})
	if err := u.s.write([]byte{opts.baudCode()}); err != nil {
		return err
	}
	if _, err := w.Wait(ctx); err != nil {
		return fmt.Errorf("await baud ack: %w", err)
	}

	w = u.s.matcher.Expect([]byte{AckByte})
	if err := u.s.write([]byte{opts.configByte()}); err != nil {
		return err
	}
	if _, err := w.Wait(ctx); err != nil {
		return fmt.Errorf("await uart config ack: %w", err)
	}

	u.s.emit(Event{Kind: EventUARTReady})
	return nil
}

// EchoRX toggles echoing of received bytes back over the control
// channel. A no-op success in bridge mode, where everything echoes by
// nature.
func (u *UART) EchoRX(ctx context.Context, enabled bool) error {
	if u.s.Mode() == ModeUARTBridge {
		return nil
	}

	cmd := byte(UARTEchoOff)
	if enabled {
		cmd = UARTEchoOn
	}

	w := u.s.matcher.Expect([]byte{AckByte})
	if err := u.s.write([]byte{cmd}); err != nil {
		return err
	}
	if _, err := w.Wait(ctx); err != nil {
		return fmt.Errorf("await echo ack: %w", err)
	}

	u.s.emit(Event{Kind: EventUARTEcho, Flag: enabled})
	return nil
}

// EnterBridge puts the adapter into transparent bridge mode. The command
// has no acknowledgment and the transition is one-way: only a physical
// reset of the adapter leaves the bridge.
func (u *UART) EnterBridge(ctx context.Context) error {
	if u.s.Mode() == ModeUARTBridge {
		return nil
	}
	if err := u.s.write([]byte{UARTBridgeEnter}); err != nil {
		return err
	}
	u.s.setMode(ModeUARTBridge)
	return nil
}

// Write transmits data over the UART. In bridge mode the bytes pass
// straight through to the transport. Otherwise data is split into blocks
// of at most 16 bytes, each written via the block-write handshake in
// submission order; the first failing block aborts the rest.
func (u *UART) Write(ctx context.Context, data []byte) error {
	if u.s.Mode() == ModeUARTBridge {
		return u.s.write(data)
	}

	for len(data) > 0 {
		n := len(data)
		if n > UARTMaxBlockSize {
			n = UARTMaxBlockSize
		}
		if err := u.WriteBlock(ctx, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// WriteBlock transmits a single 1..16 byte block: the length-encoded
// command byte, a one-byte ack, the payload, then one ack per payload
// byte per the device's flow-control contract.
func (u *UART) WriteBlock(ctx context.Context, chunk []byte) error {
	if !u.Started() {
		return fmt.Errorf("%w: uart driver not started", ErrUnexpectedMode)
	}
	if len(chunk) == 0 || len(chunk) > UARTMaxBlockSize {
		return fmt.Errorf("%w: got %d bytes", ErrBlockTooLarge, len(chunk))
	}

	cmd := byte(UARTBulkWriteCmd + len(chunk) - 1)
	w := u.s.matcher.Expect([]byte{AckByte})
	if err := u.s.write([]byte{cmd}); err != nil {
		return err
	}
	if _, err := w.Wait(ctx); err != nil {
		return fmt.Errorf("await block command ack: %w", err)
	}

	w = u.s.matcher.Expect(bytes.Repeat([]byte{AckByte}, len(chunk)))
	if err := u.s.write(chunk); err != nil {
		return err
	}
	if _, err := w.Wait(ctx); err != nil {
		return fmt.Errorf("await %d block byte acks: %w", len(chunk), err)
	}

	return nil
}
