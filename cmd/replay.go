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

var replayCmd = &cobra.Command{
	Use:   "replay <tape-file>",
	Short: "Pretty-print a captured session tape",
	Long: `Decode a CBOR tape written by the --capture flag and print every
transfer with its direction and time offset. Works entirely offline; no
adapter is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := tape.ReadAll(f)
	if err != nil {
		return err
	}

	fmt.Printf("Buccaneer - Tape Replay\n")
	fmt.Printf("Tape: %s (%d records)\n\n", args[0], len(records))

	var txBytes, rxBytes int
	for _, rec := range records {
		style := styleRX
		if rec.Dir == tape.DirTX {
			style = styleTX
			txBytes += len(rec.Data)
		} else {
			rxBytes += len(rec.Data)
		}

		offset := time.Duration(rec.OffsetMS) * time.Millisecond
		fmt.Println(style.Render(fmt.Sprintf("[%s] %s %d bytes", offset, rec.Dir, len(rec.Data))))
		fmt.Print(style.Render(hexDump(rec.Data)))
	}

	fmt.Printf("\nTotals: %d bytes out, %d bytes in\n", txBytes, rxBytes)
	return nil
}
