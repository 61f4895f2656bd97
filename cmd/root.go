// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 GOcontroll B.V.

package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/GOcontroll/go-modules/pkg/moduline"
)

var (
	// Output flags
	verbose   bool
	plainMode bool

	// Path overrides
	firmwareDir   string
	inventoryPath string

	// How many SPI buses to flash at once (0 = all)
	busLimit int

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "go-modules",
	Short: "GOcontroll module firmware tool",
	Long: `go-modules scans and flashes the I/O modules plugged into a
GOcontroll Moduline controller.

Modules are reached over the controller's SPI buses; GPIO lines reset each
module into its bootloader before flashing. Firmware images are S-record
files named after their version, e.g. 20-10-1-5-0-0-9.srec.

Controllers:
  Moduline IV       8 slots
  Moduline Mini     4 slots
  Moduline Display  2 slots

Without a subcommand an interactive menu is shown.

Examples:
  # What is plugged in?
  go-modules scan

  # Bring every module to the newest matching firmware
  go-modules update

  # Force a specific image into slot 3
  go-modules overwrite --slot 3 20-10-1-5-0-0-9.srec

Exit codes:
  0 - All requested operations succeeded
  1 - One or more modules failed or were cancelled
  2 - Hardware or configuration error`,
	Version:      "1.0.0",
	SilenceUsage: true,
	RunE:         runInteractive,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&plainMode, "plain", false, "Plain output, no TUI")
	rootCmd.PersistentFlags().StringVar(&firmwareDir, "firmware-dir", "", "Firmware directory (default "+moduline.DefaultFirmwareDir+")")
	rootCmd.PersistentFlags().StringVar(&inventoryPath, "inventory", "", "Inventory file (default "+moduline.DefaultInventoryPath+")")
	rootCmd.PersistentFlags().IntVar(&busLimit, "limit", 0, "Max SPI buses flashed concurrently (0 = all)")

	cobra.OnInitialize(setupLogging)
}

func setupLogging() {
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	if firmwareDir == "" {
		firmwareDir = moduline.FirmwareDir()
	}
	if inventoryPath == "" {
		inventoryPath = moduline.InventoryPath()
	}
}

// useTUI reports whether the flashing TUI should run: an interactive
// terminal and --plain not given.
func useTUI() bool {
	return !plainMode && term.IsTerminal(int(os.Stdout.Fd()))
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
