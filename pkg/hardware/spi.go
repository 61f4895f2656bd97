// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package hardware

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/GOcontroll/go-modules/pkg/moduline"
)

// spiSpeed is the bootloader clock rate. The module bootloaders sample at
// 2MHz regardless of what the application firmware negotiates.
const spiSpeed = 2 * physic.MegaHertz

// spiTransport exchanges frames with a module over its spidev port.
type spiTransport struct {
	mu   sync.Mutex
	name string
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI opens the slot's SPI port and configures it for the bootloader:
// 2MHz, mode 0, 8 bit words.
func OpenSPI(slot moduline.Slot) (Transport, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("%w: spi host init: %v", ErrHardwareUnavailable, err)
	}
	port, err := spireg.Open(slot.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrHardwareUnavailable, slot.SPIPort, err)
	}
	conn, err := port.Connect(spiSpeed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: configure %s: %v", ErrHardwareUnavailable, slot.SPIPort, err)
	}
	return &spiTransport{name: slot.SPIPort, port: port, conn: conn}, nil
}

// Transfer clocks tx out and rxLen bytes back in one full-duplex exchange.
// When rxLen exceeds len(tx) the write side is padded with zeros, which the
// bootloader ignores.
func (t *spiTransport) Transfer(ctx context.Context, tx []byte, rxLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := len(tx)
	if rxLen > n {
		n = rxLen
	}
	w := make([]byte, n)
	copy(w, tx)
	r := make([]byte, n)

	t.mu.Lock()
	err := t.conn.Tx(w, r)
	t.mu.Unlock()
	if err != nil {
		return nil, &TransportError{Port: t.name, Err: err}
	}
	return r[:rxLen], nil
}

func (t *spiTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port.Close()
}
