// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.
//
// go-modules - GOcontroll module firmware tool
//
// Scans and flashes the I/O modules plugged into a Moduline controller
// over SPI, with GPIO lines sequencing each module's bootloader.

package main

import (
	"os"

	"github.com/GOcontroll/go-modules/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
