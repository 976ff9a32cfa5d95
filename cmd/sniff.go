// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Openbench

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/openbench/buccaneer/pkg/tape"
	"github.com/spf13/cobra"
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Display raw adapter output as a hex/ASCII stream",
	Long: `Continuously dump bytes arriving from the adapter without driving the
protocol. Useful for watching the console, an echoing UART, or a bridge
session started elsewhere.

With --capture the stream is also written to a CBOR tape for offline
analysis with the replay command.

Supports both serial and WebSocket connections.`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
}

func runSniff(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := openConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var tapeWriter *tape.Writer
	if captureFile != "" {
		f, err := os.Create(captureFile)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %v", err)
		}
		defer f.Close()
		tapeWriter = tape.NewWriter(f)
	}

	fmt.Printf("Buccaneer - Raw Stream\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	start := time.Now()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if err == ErrConnectionClosed {
				fmt.Println(styleEvent.Render("[event] connection closed"))
				return nil
			}
			fmt.Println(styleError.Render(fmt.Sprintf("[error] read: %v", err)))
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}

		if tapeWriter != nil {
			tapeWriter.Record(tape.DirRX, buf[:n])
		}

		offset := time.Since(start).Truncate(time.Millisecond)
		fmt.Println(styleRX.Render(fmt.Sprintf("[%s] RX %d bytes", offset, n)))
		fmt.Print(styleRX.Render(hexDump(buf[:n])))
	}
}
