// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package moduline

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Controller identifies the Moduline controller this tool runs on.
type Controller int

const (
	ModulineIV Controller = iota
	ModulineMini
	ModulineDisplay
)

// hardwarePath is the device tree node naming the controller model.
const hardwarePath = "/sys/firmware/devicetree/base/hardware"

// Detect reads the controller model from the device tree.
func Detect() (Controller, error) {
	raw, err := os.ReadFile(hardwarePath)
	if err != nil {
		return 0, fmt.Errorf("read controller hardware id: %w", err)
	}
	name := strings.TrimRight(string(raw), "\x00\n ")
	switch {
	case strings.Contains(name, "Moduline IV"):
		return ModulineIV, nil
	case strings.Contains(name, "Moduline Mini"):
		return ModulineMini, nil
	case strings.Contains(name, "Moduline Display"):
		return ModulineDisplay, nil
	}
	return 0, fmt.Errorf("unknown controller %q", name)
}

func (c Controller) String() string {
	switch c {
	case ModulineIV:
		return "Moduline IV"
	case ModulineMini:
		return "Moduline Mini"
	case ModulineDisplay:
		return "Moduline Display"
	}
	return "unknown"
}

// Slot describes the wiring of one module slot: the SPI port the module
// listens on, the bus that port belongs to (slots sharing a bus must be
// flashed one at a time), and the GPIO lines controlling it. Pin names
// resolve through the periph GPIO registry; ready lines are numeric cdev
// pins, reset and boot lines are device tree aliases.
type Slot struct {
	Index    int
	SPIPort  string
	Bus      int
	ReadyPin string
	ResetPin string
	BootPin  string
}

// cdevPin converts a GPIO chip and line pair to the flat pin number the
// periph registry uses. Every GPIO controller on these boards exposes 32
// lines.
func cdevPin(chip, line int) string {
	return strconv.Itoa(chip*32 + line)
}

func slot(index int, port string, bus, readyChip, readyLine int) Slot {
	return Slot{
		Index:    index,
		SPIPort:  port,
		Bus:      bus,
		ReadyPin: cdevPin(readyChip, readyLine),
		ResetPin: fmt.Sprintf("RESET-M%d", index),
		BootPin:  fmt.Sprintf("BOOT-M%d", index),
	}
}

var (
	slotsIV = []Slot{
		slot(1, "SPI1.0", 1, 0, 6),
		slot(2, "SPI1.1", 1, 4, 20),
		slot(3, "SPI2.0", 2, 0, 7),
		slot(4, "SPI2.1", 2, 4, 21),
		slot(5, "SPI2.2", 2, 4, 1),
		slot(6, "SPI2.3", 2, 3, 26),
		slot(7, "SPI0.0", 0, 2, 19),
		slot(8, "SPI0.1", 0, 2, 22),
	}
	slotsMini = []Slot{
		slot(1, "SPI1.0", 1, 0, 10),
		slot(2, "SPI1.1", 1, 0, 5),
		slot(3, "SPI2.0", 2, 3, 26),
		slot(4, "SPI2.1", 2, 2, 19),
	}
	slotsDisplay = []Slot{
		slot(1, "SPI1.0", 1, 3, 5),
		slot(2, "SPI1.1", 1, 0, 0),
	}
)

// Slots returns the wiring table for every module slot on the controller,
// in slot order.
func (c Controller) Slots() []Slot {
	switch c {
	case ModulineIV:
		return slotsIV
	case ModulineMini:
		return slotsMini
	case ModulineDisplay:
		return slotsDisplay
	}
	return nil
}

// SlotCount returns the number of module slots on the controller.
func (c Controller) SlotCount() int {
	return len(c.Slots())
}

// Slot returns the wiring for a 1-based slot index.
func (c Controller) Slot(index int) (Slot, error) {
	slots := c.Slots()
	if index < 1 || index > len(slots) {
		return Slot{}, fmt.Errorf("%s has no slot %d", c, index)
	}
	return slots[index-1], nil
}
