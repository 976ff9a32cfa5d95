// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Openbench

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/openbench/buccaneer/pkg/bbio"
	"github.com/spf13/cobra"
)

var (
	probeTimeout time.Duration

	periphPower   bool
	periphPullups bool
	periphAux     bool
	periphMOSI    bool
	periphCLK     bool
	periphMISO    bool
	periphCS      bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Force the adapter into binary mode",
	Long: `Reset the adapter's console and acquire the binary control protocol.

The adapter may be parked anywhere in its console menus, so acquisition
resets the console first and then probes with zero bytes until the binary
mode marker appears, bounded by the protocol's attempt budget.

Peripheral flags (--power, --pullups, ...) are applied after acquisition
as a single bit-mask configuration command.

Supports both serial and WebSocket connections.`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "Overall handshake timeout")

	probeCmd.Flags().BoolVar(&periphPower, "power", false, "Enable the on-board power supplies")
	probeCmd.Flags().BoolVar(&periphPullups, "pullups", false, "Enable the on-board pull-up resistors")
	probeCmd.Flags().BoolVar(&periphAux, "aux", false, "Drive the AUX pin high")
	probeCmd.Flags().BoolVar(&periphMOSI, "mosi", false, "Drive the MOSI pin high")
	probeCmd.Flags().BoolVar(&periphCLK, "clk", false, "Drive the CLK pin high")
	probeCmd.Flags().BoolVar(&periphMISO, "miso", false, "Drive the MISO pin high")
	probeCmd.Flags().BoolVar(&periphCS, "cs", false, "Drive the CS pin high")

	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	ls, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer ls.Close()

	fmt.Printf("Buccaneer - Binary Mode Probe\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	logEvents(ls.sess)
	ls.sess.AnnounceConnected()

	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
	defer cancel()

	if err := ls.sess.ResetConsole(ctx); err != nil {
		return err
	}
	if err := ls.sess.EnterBinmode(ctx); err != nil {
		return err
	}

	cfg := bbio.PeripheralConfig{
		Power:   periphPower,
		Pullups: periphPullups,
		Aux:     periphAux,
		MOSI:    periphMOSI,
		CLK:     periphCLK,
		MISO:    periphMISO,
		CS:      periphCS,
	}
	if cfg != (bbio.PeripheralConfig{}) {
		if err := ls.sess.ConfigPeripherals(ctx, cfg); err != nil {
			return err
		}
	}

	fmt.Printf("\nAdapter in %s mode\n", ls.sess.Mode())
	return nil
}
