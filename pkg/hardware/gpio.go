// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package hardware

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/GOcontroll/go-modules/pkg/moduline"
)

var hostInit sync.Once

// initHost loads the periph host drivers. Safe to call from every Open.
func initHost() error {
	var err error
	hostInit.Do(func() {
		_, err = host.Init()
	})
	return err
}

// gpioLines drives a slot's reset, boot select and ready lines through the
// GPIO character device.
type gpioLines struct {
	reset gpio.PinOut
	boot  gpio.PinOut
	ready gpio.PinIn
}

// OpenLines claims the three GPIO lines of a slot. The ready line is armed
// for falling edges: modules pull it low when they are ready for the next
// frame.
func OpenLines(slot moduline.Slot) (LineController, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("%w: gpio host init: %v", ErrHardwareUnavailable, err)
	}
	reset := gpioreg.ByName(slot.ResetPin)
	if reset == nil {
		return nil, fmt.Errorf("%w: no gpio line %s", ErrHardwareUnavailable, slot.ResetPin)
	}
	boot := gpioreg.ByName(slot.BootPin)
	if boot == nil {
		return nil, fmt.Errorf("%w: no gpio line %s", ErrHardwareUnavailable, slot.BootPin)
	}
	ready := gpioreg.ByName(slot.ReadyPin)
	if ready == nil {
		return nil, fmt.Errorf("%w: no gpio line %s", ErrHardwareUnavailable, slot.ReadyPin)
	}
	if err := ready.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("%w: arm ready line %s: %v", ErrHardwareUnavailable, slot.ReadyPin, err)
	}
	return &gpioLines{reset: reset, boot: boot, ready: ready}, nil
}

// AssertReset drives the reset line high, holding the module in reset.
func (g *gpioLines) AssertReset() error {
	return g.reset.Out(gpio.High)
}

// ReleaseReset drives the reset line low, letting the module boot.
func (g *gpioLines) ReleaseReset() error {
	return g.reset.Out(gpio.Low)
}

// SelectBootMode sets the boot select line sampled by the module on reset
// release: high boots the bootloader, low the application.
func (g *gpioLines) SelectBootMode(bootloader bool) error {
	return g.boot.Out(gpio.Level(bootloader))
}

// WaitReady blocks until the ready line falls, or ErrTimeout. Stale edges
// left over from a previous exchange are drained first.
func (g *gpioLines) WaitReady(timeout time.Duration) error {
	for g.ready.WaitForEdge(0) {
	}
	if !g.ready.WaitForEdge(timeout) {
		// the line may already be held low even though we missed the edge
		if g.ready.Read() == gpio.Low {
			return nil
		}
		return ErrTimeout
	}
	return nil
}

// Close halts edge detection on the ready line. Output lines keep their
// last driven level so the module stays in whatever mode it was left in.
func (g *gpioLines) Close() error {
	return g.ready.Halt()
}
