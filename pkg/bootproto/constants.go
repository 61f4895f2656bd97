// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

// Package bootproto implements the framed request/response protocol spoken
// by the bootloader of GOcontroll Moduline modules.
//
// The package is pure: it encodes commands to wire bytes and decodes
// response bytes back into typed responses, with no I/O and no hidden
// state. Transport and timing concerns live elsewhere. The frame layout,
// command codes and CRC parameters are a fixed contract shared with the
// module firmware and must not change independently.
package bootproto

// Frame layout: [command:1][length:2 BE][payload:length][crc:2 BE].
// The CRC covers command, length and payload.
const (
	HeaderSize     = 3
	CRCSize        = 2
	MaxPayloadSize = 512
	MaxFrameSize   = HeaderSize + MaxPayloadSize + CRCSize

	// ResponseLength is how many bytes a master clocks out of a module to
	// retrieve any response frame. Response payloads are all well below
	// this bound; trailing bytes after the CRC are bus idle noise.
	ResponseLength = 32
)

// Command codes understood by the module bootloader.
const (
	CmdSync        = 0x09 // handshake, response carries the module identity
	CmdRun         = 0x13 // leave the bootloader and start the application
	CmdErase       = 0x1D // wipe the application area, set the new version
	CmdWriteBlock  = 0x27 // write one firmware block at an offset
	CmdStatus      = 0x31 // repeat the ack of the last write or erase
	CmdVerifyBlock = 0x3B // compare a block CRC against flash contents
)

// Status codes carried in response payloads.
const (
	StatusOK          = 0x01
	StatusBadChecksum = 0x02
	StatusBadOffset   = 0x03
	StatusWriteFailed = 0x04
	StatusBusy        = 0x05
)

// Fixed payload sizes.
const (
	OffsetSize      = 4
	VersionSize     = 7
	ErasePayloadLen = VersionSize // hardware id (4) + software version (3)
	syncRespLen     = 1 + VersionSize + 4 + 4 + 4
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)
