// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package bootproto

import (
	"encoding/binary"
	"fmt"
)

// ModuleInfo is the identity a module reports in its Sync response.
type ModuleInfo struct {
	Version      [VersionSize]byte // hardware id (4) + software version (3)
	Manufacturer uint32
	QRFront      uint32
	QRBack       uint32
}

// statusName maps status codes to readable names for error reporting.
func statusName(status byte) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusBadChecksum:
		return "bad checksum"
	case StatusBadOffset:
		return "bad offset"
	case StatusWriteFailed:
		return "write failed"
	case StatusBusy:
		return "busy"
	default:
		return fmt.Sprintf("unknown status 0x%02X", status)
	}
}

// checkEcho validates that a response belongs to the given request command.
// Responses echo the request's command byte; anything else means the frame
// answers a different exchange and must not be interpreted.
func checkEcho(f Frame, cmd byte) error {
	if f.Command != cmd {
		return &CodecError{Command: f.Command, Reason: fmt.Sprintf("response does not match request 0x%02X", cmd)}
	}
	return nil
}

// ParseSyncResponse decodes the module identity from a Sync response.
func ParseSyncResponse(f Frame) (ModuleInfo, error) {
	if err := checkEcho(f, CmdSync); err != nil {
		return ModuleInfo{}, err
	}
	if len(f.Payload) < syncRespLen {
		return ModuleInfo{}, &CodecError{Command: f.Command, Reason: fmt.Sprintf("sync response too short: %d bytes", len(f.Payload))}
	}
	if f.Payload[0] != StatusOK {
		return ModuleInfo{}, &CodecError{Command: f.Command, Reason: statusName(f.Payload[0])}
	}
	var info ModuleInfo
	copy(info.Version[:], f.Payload[1:1+VersionSize])
	info.Manufacturer = binary.BigEndian.Uint32(f.Payload[8:12])
	info.QRFront = binary.BigEndian.Uint32(f.Payload[12:16])
	info.QRBack = binary.BigEndian.Uint32(f.Payload[16:20])
	return info, nil
}

// ParseEraseAck validates an Erase response. cmd is CmdErase, or CmdStatus
// when the ack was recovered through a status re-poll.
func ParseEraseAck(f Frame, cmd byte) error {
	if err := checkEcho(f, cmd); err != nil {
		return err
	}
	if len(f.Payload) < 1 {
		return &CodecError{Command: f.Command, Reason: "empty erase ack"}
	}
	if f.Payload[0] != StatusOK {
		return &CodecError{Command: f.Command, Reason: "erase rejected: " + statusName(f.Payload[0])}
	}
	return nil
}

// ParseBlockAck validates a WriteBlock or VerifyBlock response. The ack must
// carry StatusOK and echo the offset of the block it acknowledges; an ack
// for any other offset is a correspondence error, not a success. cmd is the
// request command the ack should echo (CmdWriteBlock, CmdVerifyBlock or
// CmdStatus for a re-poll).
func ParseBlockAck(f Frame, cmd byte, offset uint32) error {
	if err := checkEcho(f, cmd); err != nil {
		return err
	}
	if len(f.Payload) < 1+OffsetSize {
		return &CodecError{Command: f.Command, Reason: fmt.Sprintf("block ack too short: %d bytes", len(f.Payload))}
	}
	if f.Payload[0] != StatusOK {
		return &CodecError{Command: f.Command, Reason: statusName(f.Payload[0])}
	}
	got := binary.BigEndian.Uint32(f.Payload[1 : 1+OffsetSize])
	if got != offset {
		return &CodecError{Command: f.Command, Reason: fmt.Sprintf("ack for offset 0x%X, expected 0x%X", got, offset)}
	}
	return nil
}
