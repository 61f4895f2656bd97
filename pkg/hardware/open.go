// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package hardware

import (
	"github.com/GOcontroll/go-modules/pkg/moduline"
)

// OpenDevice claims the SPI port and GPIO lines of a slot.
func OpenDevice(slot moduline.Slot) (*Device, error) {
	transport, err := OpenSPI(slot)
	if err != nil {
		return nil, err
	}
	lines, err := OpenLines(slot)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return &Device{Transport: transport, Lines: lines}, nil
}
