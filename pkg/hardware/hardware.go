// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

// Package hardware is the access layer to the controller peripherals a
// flash session needs: the SPI port a module listens on and the GPIO lines
// that reset it, select its boot mode and signal readiness. Everything is
// behind small interfaces so the flashing logic can run against fakes.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrHardwareUnavailable means a peripheral could not be opened, e.g.
	// the SPI device node or a GPIO line is missing or claimed elsewhere.
	ErrHardwareUnavailable = errors.New("hardware unavailable")

	// ErrTimeout means a module did not signal ready in time.
	ErrTimeout = errors.New("timeout waiting for module ready")
)

// TransportError wraps a failed bus exchange with the port it happened on.
type TransportError struct {
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Port, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport moves raw frames to and from a module. Transfer writes tx and
// reads rxLen bytes back; either side may be empty for a one-way exchange.
// Implementations serialize concurrent callers sharing a physical bus.
type Transport interface {
	Transfer(ctx context.Context, tx []byte, rxLen int) ([]byte, error)
	Close() error
}

// LineController drives the GPIO lines of one module slot.
//
// AssertReset holds the module in reset; ReleaseReset lets it boot.
// SelectBootMode chooses what it boots into: true for the bootloader,
// false for the application. WaitReady blocks until the module pulls its
// interrupt line low to signal it is ready for the next frame, returning
// ErrTimeout if it does not within the given duration.
type LineController interface {
	AssertReset() error
	ReleaseReset() error
	SelectBootMode(bootloader bool) error
	WaitReady(timeout time.Duration) error
	Close() error
}

// Device bundles the peripherals of one slot.
type Device struct {
	Transport Transport
	Lines     LineController
}

// Close releases both peripherals, reporting the first error.
func (d *Device) Close() error {
	var first error
	if d.Lines != nil {
		first = d.Lines.Close()
	}
	if d.Transport != nil {
		if err := d.Transport.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
