// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 GOcontroll B.V.

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/GOcontroll/go-modules/pkg/flash"
	"github.com/GOcontroll/go-modules/pkg/moduline"
)

var updateSlot int

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Flash modules to the newest matching firmware",
	Long: `Probe the modules, pick the newest firmware image matching each
module's hardware id, and flash the ones that are behind.

A module is flashed when the firmware directory holds an image with the
same hardware id and a newer software version. Blank modules (erased but
never programmed) take any matching image. Up-to-date modules are left
alone.

Slots on different SPI buses are flashed in parallel; slots sharing a bus
take turns. Ctrl-C stops after the block in flight, leaving no module with
a torn image.

Examples:
  # Update everything
  go-modules update

  # Update only slot 2
  go-modules update --slot 2`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().IntVar(&updateSlot, "slot", 0, "Only this slot (default all)")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	controller, err := moduline.Detect()
	if err != nil {
		return err
	}
	slots, err := targetSlots(controller, updateSlot)
	if err != nil {
		return err
	}
	available, err := moduline.ScanFirmwareDir(firmwareDir)
	if err != nil {
		return fmt.Errorf("firmware directory: %w", err)
	}

	restart := stopServices()
	defer restart()

	installed := scanSlots(cmd.Context(), slots)
	var jobs []flash.Job
	for _, slot := range slots {
		current, ok := installed[slot.Index]
		if !ok {
			log.Debugf("slot %d empty, skipping", slot.Index)
			continue
		}
		target, ok := moduline.SelectUpdate(current, available)
		if !ok {
			fmt.Printf("slot %d: %s is up to date\n", slot.Index, current)
			continue
		}
		fw, err := moduline.LoadFirmware(filepath.Join(firmwareDir, target.Filename()))
		if err != nil {
			return err
		}
		fmt.Printf("slot %d: %s -> %s\n", slot.Index, current, target)
		jobs = append(jobs, flash.Job{Slot: slot, Firmware: fw})
	}
	if len(jobs) == 0 {
		fmt.Println("nothing to update")
		return nil
	}
	return flashJobs(cmd.Context(), jobs)
}

// targetSlots resolves the --slot flag against the controller.
func targetSlots(controller moduline.Controller, only int) ([]moduline.Slot, error) {
	if only == 0 {
		return controller.Slots(), nil
	}
	slot, err := controller.Slot(only)
	if err != nil {
		return nil, err
	}
	return []moduline.Slot{slot}, nil
}

// flashJobs runs the jobs with either the TUI or plain progress bars and
// reports per-slot results.
func flashJobs(ctx context.Context, jobs []flash.Job) error {
	orch := flash.NewOrchestrator(nil, log)
	orch.SetLimit(busLimit)
	ctx, stop := watchInterrupt(ctx, orch)
	defer stop()

	var outcomes []*flash.Outcome
	if useTUI() {
		var err error
		outcomes, err = runFlashTUI(ctx, orch, jobs)
		if err != nil {
			return err
		}
	} else {
		// interleaved bars are unreadable, take the buses one at a time
		orch.SetLimit(1)
		for i := range jobs {
			jobs[i].Options = append(jobs[i].Options, flash.WithProgress(plainProgress(jobs[i].Slot.Index)))
		}
		outcomes = orch.Run(ctx, jobs)
	}

	if failed := printOutcomes(outcomes); failed > 0 {
		return fmt.Errorf("%d of %d modules not flashed", failed, len(outcomes))
	}
	return nil
}
