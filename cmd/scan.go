// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 GOcontroll B.V.

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GOcontroll/go-modules/pkg/flash"
	"github.com/GOcontroll/go-modules/pkg/moduline"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Identify the modules in every slot",
	Long: `Probe every slot of the controller and report what is plugged in.

Each module is briefly reset into its bootloader to read its hardware id,
software version and serial numbers, then restarted into its application.
The result is written to the module inventory so other tooling can read it
without touching the hardware.

Control services (nodered, go-simulink) are stopped during the scan and
restarted afterwards.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	controller, err := moduline.Detect()
	if err != nil {
		return err
	}
	fmt.Printf("%s, %d slots\n", controller, controller.SlotCount())

	restart := stopServices()
	defer restart()

	orch := flash.NewOrchestrator(nil, log)
	orch.SetLimit(busLimit)
	results := orch.Scan(cmd.Context(), controller.Slots())

	inv, err := moduline.LoadInventory(inventoryPath)
	if err != nil {
		log.Warnf("inventory unreadable, starting fresh: %v", err)
		inv = moduline.NewInventory()
	}
	printScanResults(results, inv)

	if err := inv.Save(inventoryPath); err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	return nil
}

func printScanResults(results []flash.ScanResult, inv *moduline.Inventory) {
	for _, res := range results {
		if res.Err != nil {
			color.New(color.Faint).Printf("slot %d: empty\n", res.Slot)
			log.Debugf("slot %d probe: %v", res.Slot, res.Err)
			continue
		}
		m := res.Module
		m.ScannedAt = time.Now()
		inv.Put(m)
		fmt.Println(m.Version.Describe(m.Slot))
	}
}

// listFirmwareNames returns the version strings available for flashing.
func listFirmwareNames() ([]string, error) {
	versions, err := moduline.ScanFirmwareDir(firmwareDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(versions))
	for _, v := range versions {
		names = append(names, v.String())
	}
	return names, nil
}

// scanSlots probes a subset of slots without the reporting, for commands
// that need to know what is installed before flashing.
func scanSlots(ctx context.Context, slots []moduline.Slot) map[int]moduline.Version {
	orch := flash.NewOrchestrator(nil, log)
	orch.SetLimit(busLimit)
	installed := make(map[int]moduline.Version)
	for _, res := range orch.Scan(ctx, slots) {
		if res.Err == nil {
			installed[res.Slot] = res.Module.Version
		}
	}
	return installed
}
