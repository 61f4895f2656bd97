// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 GOcontroll B.V.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/GOcontroll/go-modules/pkg/flash"
	"github.com/GOcontroll/go-modules/pkg/hardware"
	"github.com/GOcontroll/go-modules/pkg/moduline"
)

var (
	overwriteSlot int
	benchPort     string
	noVerify      bool
)

var overwriteCmd = &cobra.Command{
	Use:   "overwrite <firmware>",
	Short: "Force a specific firmware into a module",
	Long: `Flash the given image into a slot regardless of what is installed.

The firmware argument is either a path to an .srec file or a bare version
like 20-10-1-5-0-0-9, which is looked up in the firmware directory. The
module's hardware id is not checked against the image; this is the tool
for downgrades and for recovering modules with broken firmware.

With --bench the module is flashed through a serial UART-SPI bridge on a
bench fixture instead of a controller slot; reset and boot mode are
expected to be jumpered by hand.

Examples:
  # Downgrade slot 3
  go-modules overwrite --slot 3 20-10-1-5-0-0-7

  # Flash a loose module on the bench
  go-modules overwrite --bench /dev/ttyUSB0 ./20-10-1-5-0-0-9.srec`,
	Args: cobra.ExactArgs(1),
	RunE: runOverwrite,
}

func init() {
	overwriteCmd.Flags().IntVar(&overwriteSlot, "slot", 0, "Slot to flash")
	overwriteCmd.Flags().StringVar(&benchPort, "bench", "", "Serial port of a bench fixture instead of a slot")
	overwriteCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip the read-back verification pass")
	rootCmd.AddCommand(overwriteCmd)
}

func runOverwrite(cmd *cobra.Command, args []string) error {
	fw, err := resolveFirmware(args[0])
	if err != nil {
		return err
	}

	if benchPort != "" {
		return flashBench(cmd, fw)
	}
	if overwriteSlot == 0 {
		return fmt.Errorf("--slot or --bench is required")
	}

	controller, err := moduline.Detect()
	if err != nil {
		return err
	}
	slot, err := controller.Slot(overwriteSlot)
	if err != nil {
		return err
	}

	restart := stopServices()
	defer restart()

	job := flash.Job{Slot: slot, Firmware: fw, Options: []flash.Option{flash.WithVerify(!noVerify)}}
	return flashJobs(cmd.Context(), []flash.Job{job})
}

// resolveFirmware loads the argument as a file path first, then as a
// version in the firmware directory.
func resolveFirmware(arg string) (*moduline.Firmware, error) {
	if _, err := os.Stat(arg); err == nil {
		return moduline.LoadFirmware(arg)
	}
	version, err := moduline.ParseVersion(filepath.Base(arg))
	if err != nil {
		return nil, fmt.Errorf("%q is neither a file nor a version", arg)
	}
	return moduline.LoadFirmware(filepath.Join(firmwareDir, version.Filename()))
}

// flashBench runs a single session against the serial bench fixture.
func flashBench(cmd *cobra.Command, fw *moduline.Firmware) error {
	transport, err := hardware.OpenBench(benchPort)
	if err != nil {
		return err
	}
	dev := &hardware.Device{Transport: transport, Lines: hardware.BenchLines()}
	defer dev.Close()

	slot := moduline.Slot{Index: 1, SPIPort: benchPort}
	session := flash.NewSession(slot, dev, fw,
		flash.WithLogger(log),
		flash.WithVerify(!noVerify),
		flash.WithProgress(plainProgress(1)))

	out := session.Run(cmd.Context())
	if failed := printOutcomes([]*flash.Outcome{out}); failed > 0 {
		return fmt.Errorf("bench flash failed")
	}
	return nil
}
