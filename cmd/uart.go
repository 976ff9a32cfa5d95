// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Openbench

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/openbench/buccaneer/pkg/bbio"
	"github.com/spf13/cobra"
)

var (
	uartBaud     int
	uartDataBits int
	uartParity   string
	uartStopBits int
	uartIdleLow  bool
	uartHiZ      bool
	uartEcho     bool
	uartHexInput bool
	uartTimeout  time.Duration
)

var uartCmd = &cobra.Command{
	Use:   "uart",
	Short: "Drive the adapter's UART sub-mode",
}

var uartWriteCmd = &cobra.Command{
	Use:   "write <data>",
	Short: "Transmit data over the adapter's UART",
	Long: `Switch the adapter into UART mode, apply the configuration flags and
transmit data.

Data is taken as ASCII by default, or as hex bytes with --hex (e.g.
"DEADBEEF" or "de ad be ef"). Payloads longer than 16 bytes are split
into protocol blocks automatically, each byte individually acknowledged
by the adapter.

Supports both serial and WebSocket connections.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUARTWrite,
}

func init() {
	uartWriteCmd.Flags().IntVar(&uartBaud, "uart-baud", 9600, "UART baud rate (300..115200 per the adapter's table)")
	uartWriteCmd.Flags().IntVar(&uartDataBits, "data-bits", 8, "Data bits (8 or 9)")
	uartWriteCmd.Flags().StringVar(&uartParity, "parity", "N", "Parity (N, E or O)")
	uartWriteCmd.Flags().IntVar(&uartStopBits, "stop-bits", 1, "Stop bits (1 or 2)")
	uartWriteCmd.Flags().BoolVar(&uartIdleLow, "idle-low", false, "Idle the line low instead of high")
	uartWriteCmd.Flags().BoolVar(&uartHiZ, "hiz", false, "High-impedance pin output instead of 3.3V drive")
	uartWriteCmd.Flags().BoolVar(&uartEcho, "echo", false, "Echo received bytes over the control channel")
	uartWriteCmd.Flags().BoolVar(&uartHexInput, "hex", false, "Interpret data as hex bytes")
	uartWriteCmd.Flags().DurationVar(&uartTimeout, "timeout", 30*time.Second, "Overall operation timeout")

	uartCmd.AddCommand(uartWriteCmd)
	rootCmd.AddCommand(uartCmd)
}

// uartOptionsFromFlags translates the flag set into driver options.
func uartOptionsFromFlags() (bbio.UARTOptions, error) {
	opts := bbio.UARTOptions{
		BaudRate: uartBaud,
		DataBits: uartDataBits,
		StopBits: uartStopBits,
	}

	switch strings.ToUpper(uartParity) {
	case "N":
		opts.Parity = bbio.ParityNone
	case "E":
		opts.Parity = bbio.ParityEven
	case "O":
		opts.Parity = bbio.ParityOdd
	default:
		return opts, fmt.Errorf("invalid parity %q (use N, E or O)", uartParity)
	}

	if uartHiZ {
		opts.Output = bbio.PinOutputHiZ
	} else {
		opts.Output = bbio.PinOutput33
	}
	if uartIdleLow {
		opts.Idle = bbio.IdleLow
	} else {
		opts.Idle = bbio.IdleHigh
	}

	return opts, nil
}

// parsePayload decodes the command line data arguments.
func parsePayload(args []string, hexInput bool) ([]byte, error) {
	joined := strings.Join(args, " ")
	if !hexInput {
		return []byte(joined), nil
	}

	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == ':' {
			return -1
		}
		return r
	}, joined)

	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %v", err)
	}
	return data, nil
}

func runUARTWrite(cmd *cobra.Command, args []string) error {
	opts, err := uartOptionsFromFlags()
	if err != nil {
		return err
	}

	payload, err := parsePayload(args, uartHexInput)
	if err != nil {
		return err
	}

	ls, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer ls.Close()

	fmt.Printf("Buccaneer - UART Write\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	logEvents(ls.sess)
	ls.sess.AnnounceConnected()

	ctx, cancel := context.WithTimeout(cmd.Context(), uartTimeout)
	defer cancel()

	uart := bbio.NewUART(ls.sess)
	if err := uart.Start(ctx, opts); err != nil {
		return err
	}
	if uartEcho {
		if err := uart.EchoRX(ctx, true); err != nil {
			return err
		}
	}

	fmt.Println(styleTX.Render(fmt.Sprintf("TX %d bytes:", len(payload))))
	fmt.Print(styleTX.Render(hexDump(payload)))

	if err := uart.Write(ctx, payload); err != nil {
		return err
	}

	fmt.Println("\nAll blocks acknowledged")
	return nil
}
