// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench

package bbio

import "errors"

// Protocol errors. All are surfaced to the operation's caller; the engine
// never retries on its own except the bounded probe loop inside
// EnterBinmode.
var (
	// ErrAcquisitionExhausted is returned when binary-mode probing
	// exceeds its attempt budget without the adapter answering.
	ErrAcquisitionExhausted = errors.New("binary mode acquisition exhausted")

	// ErrUnexpectedMode is returned when an operation is attempted in an
	// incompatible mode, e.g. a block write before the driver started.
	ErrUnexpectedMode = errors.New("operation not valid in current mode")

	// ErrBlockTooLarge is returned when a block write falls outside the
	// 1..16 byte protocol frame limit.
	ErrBlockTooLarge = errors.New("block size outside 1..16 byte protocol limit")

	// ErrAbandoned resolves waiters that are cleared by AbandonAll
	// without a more specific cause.
	ErrAbandoned = errors.New("matcher abandoned")
)
