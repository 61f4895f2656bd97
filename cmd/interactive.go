// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 GOcontroll B.V.

package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

// runInteractive is the root command without a subcommand: a small menu
// around the same operations the subcommands expose.
func runInteractive(cmd *cobra.Command, args []string) error {
	for {
		menu := promptui.Select{
			Label: "go-modules",
			Items: []string{
				"Scan modules",
				"Update all modules",
				"Update one slot",
				"Overwrite a slot",
				"Exit",
			},
		}
		_, choice, err := menu.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				return nil
			}
			return err
		}

		switch choice {
		case "Scan modules":
			err = runScan(cmd, nil)
		case "Update all modules":
			updateSlot = 0
			err = runUpdate(cmd, nil)
		case "Update one slot":
			if updateSlot, err = askSlot(); err == nil {
				err = runUpdate(cmd, nil)
			}
		case "Overwrite a slot":
			err = interactiveOverwrite(cmd)
		case "Exit":
			return nil
		}
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				continue
			}
			failColor.Println(err)
		}
	}
}

func askSlot() (int, error) {
	prompt := promptui.Prompt{
		Label: "Slot",
		Validate: func(in string) error {
			n, err := strconv.Atoi(in)
			if err != nil || n < 1 {
				return fmt.Errorf("slot must be a positive number")
			}
			return nil
		},
	}
	in, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(in)
}

func interactiveOverwrite(cmd *cobra.Command) error {
	slot, err := askSlot()
	if err != nil {
		return err
	}
	version, err := askFirmware()
	if err != nil {
		return err
	}
	overwriteSlot = slot
	benchPort = ""
	return runOverwrite(cmd, []string{version})
}

func askFirmware() (string, error) {
	available, err := listFirmwareNames()
	if err != nil {
		return "", err
	}
	if len(available) == 0 {
		return "", fmt.Errorf("no firmware images in %s", firmwareDir)
	}
	pick := promptui.Select{Label: "Firmware", Items: available}
	_, choice, err := pick.Run()
	return choice, err
}
