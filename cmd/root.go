// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Openbench

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags (ser2net-style bridges)
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Capture flag shared by the live commands
	captureFile string
)

var rootCmd = &cobra.Command{
	Use:   "buccaneer",
	Short: "Bus adapter binary protocol driver",
	Long: `Buccaneer - a driver for programmable bus adapters.

The adapter boots into a human-readable console; buccaneer forces it into
the binary control protocol and drives its sub-modes (UART, SPI). Commands
cover binary mode acquisition, peripheral configuration, UART setup and
chunked writes, a transparent bridge terminal, and raw stream capture.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the
BUCCANEER_PASSWORD environment variable, or prompted interactively if not
set. There is intentionally no --password flag, so credentials do not end
up in shell history.

Note that the adapter's UART bridge mode is one-way: once entered, only a
physical reset of the adapter leaves it.`,
	Version: "1.2.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate of the adapter's control port (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Capture
	rootCmd.PersistentFlags().StringVar(&captureFile, "capture", "", "Write all adapter traffic to a CBOR tape file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
