// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package bootproto

import "encoding/binary"

// Command builders return wire-ready request bytes. Payload layouts are
// part of the bootloader contract; see constants.go for the command codes.

// NewSync builds the handshake request. The module answers with its
// identity (firmware version, manufacturer, QR codes).
func NewSync() []byte {
	return EncodeFrame(Frame{Command: CmdSync})
}

// NewRun builds the request that makes the module leave the bootloader and
// jump to its application image. The module sends no response; it is gone
// from the bus once the frame is accepted.
func NewRun() []byte {
	return EncodeFrame(Frame{Command: CmdRun})
}

// NewErase builds the erase request. The bootloader wipes the application
// area and records the version the subsequent transfer will install.
// hardware is the 4-byte hardware id, software the 3-byte version.
func NewErase(hardware [4]byte, software [3]byte) []byte {
	payload := make([]byte, ErasePayloadLen)
	copy(payload[0:4], hardware[:])
	copy(payload[4:7], software[:])
	return EncodeFrame(Frame{Command: CmdErase, Payload: payload})
}

// NewWriteBlock builds a block write request for the given image offset.
func NewWriteBlock(offset uint32, data []byte) []byte {
	payload := make([]byte, OffsetSize+len(data))
	binary.BigEndian.PutUint32(payload[0:OffsetSize], offset)
	copy(payload[OffsetSize:], data)
	return EncodeFrame(Frame{Command: CmdWriteBlock, Payload: payload})
}

// NewStatus builds the status request. The bootloader repeats the ack of
// its last write or erase, which lets a master distinguish a lost ack from
// a lost write without rewriting the block.
func NewStatus() []byte {
	return EncodeFrame(Frame{Command: CmdStatus})
}

// NewVerifyBlock builds a verification request: the bootloader compares
// crc against the CRC of the block it holds at offset.
func NewVerifyBlock(offset uint32, crc uint16) []byte {
	payload := make([]byte, OffsetSize+2)
	binary.BigEndian.PutUint32(payload[0:OffsetSize], offset)
	binary.BigEndian.PutUint16(payload[OffsetSize:], crc)
	return EncodeFrame(Frame{Command: CmdVerifyBlock, Payload: payload})
}
