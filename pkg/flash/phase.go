// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

// Package flash drives a module bootloader through a firmware update: enter
// bootloader, handshake, erase, transfer, verify, restart. A Session flashes
// one slot; an Orchestrator runs sessions for many slots, one at a time per
// SPI bus.
package flash

import (
	"errors"
	"time"
)

// Phase is where a session is in its lifecycle. Phases only move forward;
// a failed session reports the phase it failed in.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseEntering
	PhaseHandshaking
	PhaseErasing
	PhaseTransferring
	PhaseVerifying
	PhaseStarting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEntering:
		return "entering bootloader"
	case PhaseHandshaking:
		return "handshaking"
	case PhaseErasing:
		return "erasing"
	case PhaseTransferring:
		return "transferring"
	case PhaseVerifying:
		return "verifying"
	case PhaseStarting:
		return "starting application"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// State is the terminal result of a session.
type State int

const (
	StateSuccess State = iota
	StateAborted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateAborted:
		return "aborted"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

var (
	// ErrEnterTimeout means the module never signalled ready after being
	// reset into bootloader mode.
	ErrEnterTimeout = errors.New("module did not enter bootloader")

	// ErrHandshakeFailed means the bootloader never produced a valid sync
	// response.
	ErrHandshakeFailed = errors.New("bootloader handshake failed")

	// ErrEraseFailed means the erase command was not acknowledged.
	ErrEraseFailed = errors.New("flash erase failed")

	// ErrTransferFailed means a firmware block exhausted its retries.
	ErrTransferFailed = errors.New("firmware transfer failed")

	// ErrVerifyFailed means a written block read back with the wrong
	// checksum.
	ErrVerifyFailed = errors.New("firmware verification failed")

	// ErrCancelled means the session stopped at a safe point on request.
	ErrCancelled = errors.New("flash cancelled")
)

// Outcome is the result of one session.
type Outcome struct {
	Slot          int
	State         State
	Phase         Phase
	BlocksWritten int
	BytesWritten  int
	BlockRetries  int
	Duration      time.Duration
	Err           error
}
