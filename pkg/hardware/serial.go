// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package hardware

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// serialTransport talks to a module on a bench fixture through a UART to
// SPI bridge. The bridge forwards frames verbatim, so the protocol layer is
// identical to the on-controller path.
type serialTransport struct {
	name string
	port serial.Port
}

// OpenBench opens a serial bench port, e.g. /dev/ttyUSB0.
func OpenBench(device string) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrHardwareUnavailable, device, err)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrHardwareUnavailable, device, err)
	}
	return &serialTransport{name: device, port: port}, nil
}

// Transfer writes tx and then reads exactly rxLen bytes from the bridge. A
// read that stops short means the module went silent.
func (t *serialTransport) Transfer(ctx context.Context, tx []byte, rxLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tx) > 0 {
		if _, err := t.port.Write(tx); err != nil {
			return nil, &TransportError{Port: t.name, Err: err}
		}
	}
	if rxLen == 0 {
		return nil, nil
	}
	rx := make([]byte, rxLen)
	n := 0
	for n < rxLen {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		read, err := t.port.Read(rx[n:])
		if err != nil {
			return nil, &TransportError{Port: t.name, Err: err}
		}
		if read == 0 {
			return nil, &TransportError{Port: t.name, Err: io.ErrUnexpectedEOF}
		}
		n += read
	}
	return rx, nil
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}

// benchLines is the line controller for a bench fixture, where reset and
// boot mode are jumpered by hand and the bridge paces the exchange, so the
// lines are a no-op and readiness is a fixed settle delay.
type benchLines struct{}

// BenchLines returns the no-op line controller used with OpenBench.
func BenchLines() LineController { return benchLines{} }

func (benchLines) AssertReset() error        { return nil }
func (benchLines) ReleaseReset() error       { return nil }
func (benchLines) SelectBootMode(bool) error { return nil }
func (benchLines) Close() error              { return nil }

func (benchLines) WaitReady(time.Duration) error {
	time.Sleep(5 * time.Millisecond)
	return nil
}
