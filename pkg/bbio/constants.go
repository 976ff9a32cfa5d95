// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench

// Package bbio implements the binary control protocol ("BBIO") spoken by
// programmable bus adapters of the Bus Pirate family.
//
// The adapter boots into a human-readable console and must be forced into
// binary mode by repeated probing before any structured command works.
// This package provides the protocol engine: a stream matcher that lets
// concurrent operations wait on byte patterns in the shared inbound
// stream, the mode state machine that acquires binary mode and switches
// between sub-modes, and the UART sub-mode driver.
package bbio

import "time"

// Console escape sequence: the adapter may be parked anywhere in its menu
// tree, so we send enough carriage returns to unwind it, then '#' to force
// a hardware reset of the console state.
const (
	ConsoleResetByte  = 0x0D
	ConsoleResetCount = 10
	ConsoleEscapeByte = 0x23
)

// Binary mode acquisition
const (
	BinmodeProbeByte = 0x00
	BinmodeAck       = "BBIO1"

	// The adapter's response to the first probe depends on unknown prior
	// state, so probing repeats until the marker appears or the attempt
	// budget runs out.
	BinmodeMaxAttempts = 25
	BinmodeProbePeriod = 50 * time.Millisecond
	ConsoleSettleDelay = 100 * time.Millisecond
)

// Peripheral configuration: 0x80 | bitmask, one bit per flag.
const (
	PeriphCommandBase = 0x80

	PeriphPower   = 0x40
	PeriphPullups = 0x20
	PeriphAux     = 0x10
	PeriphMOSI    = 0x08
	PeriphCLK     = 0x04
	PeriphMISO    = 0x02
	PeriphCS      = 0x01
)

// Single-byte acknowledgment shared by peripheral config, UART option
// handshakes and block writes.
const AckByte = 0x01

// UART sub-mode command vocabulary
const (
	UARTEchoOn       = 0x02
	UARTEchoOff      = 0x03
	UARTBridgeEnter  = 0x0F
	UARTBulkWriteCmd = 0x10 // 0x10 + (len-1) for 1..16 byte blocks
	UARTMaxBlockSize = 16

	// UART config byte: 100wxxyz
	// w = pin output (0 = HiZ, 1 = 3.3V)
	// xx = word format (00 = 8/N, 01 = 8/E, 10 = 8/O, 11 = 9/N)
	// y = stop bits (0 = 1, 1 = 2)
	// z = idle polarity (0 = idle high, 1 = idle low)
	UARTConfigBase = 0x80
)

// Baud rate command codes. Rates outside this table fall back to the
// default rate's code.
var baudCodes = map[int]byte{
	300:    0x60,
	1200:   0x61,
	2400:   0x62,
	4800:   0x63,
	9600:   0x64,
	19200:  0x65,
	31250:  0x66,
	38400:  0x67,
	57600:  0x68,
	115200: 0x69,
}

// Mode identifies the adapter's current protocol state.
type Mode string

// Adapter modes. ModeUARTBridge is terminal: once entered the adapter is a
// transparent pipe and only a physical reset leaves it.
const (
	ModeUnset      Mode = ""
	ModeBinary     Mode = "bbio"
	ModeUART       Mode = "uart"
	ModeSPI        Mode = "spi"
	ModeUARTBridge Mode = "uart-bridge"
)

// ModeDescriptor is the static triple identifying a protocol sub-mode:
// the command byte that enters it and the acknowledgment marker the
// adapter answers with.
type ModeDescriptor struct {
	ID   byte
	Name Mode
	Ack  string
}

// Sub-mode descriptors. SPI shares the engine with UART; only the command
// table differs.
var (
	DescriptorUART = ModeDescriptor{ID: 0x03, Name: ModeUART, Ack: "ART1"}
	DescriptorSPI  = ModeDescriptor{ID: 0x01, Name: ModeSPI, Ack: "SPI1"}
)
