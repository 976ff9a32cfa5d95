// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Openbench
//
// Buccaneer - Bus Adapter Binary Protocol Driver
//
// A CLI tool for driving programmable bus adapters: binary mode
// acquisition, peripheral configuration, UART sub-mode and bridge.

package main

import (
	"os"

	"github.com/openbench/buccaneer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
