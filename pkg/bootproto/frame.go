// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package bootproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Frame is one protocol message, request or response.
type Frame struct {
	Command byte
	Payload []byte
}

// CodecError reports a framing, integrity or correspondence violation in a
// received frame. A CodecError never yields usable protocol data; callers
// treat it like a transport fault and retry at their own granularity.
type CodecError struct {
	Command byte // command the frame claimed, 0 if unreadable
	Reason  string
}

func (e *CodecError) Error() string {
	if e.Command == 0 {
		return fmt.Sprintf("bootproto: %s", e.Reason)
	}
	return fmt.Sprintf("bootproto: cmd 0x%02X: %s", e.Command, e.Reason)
}

// Equal reports whether two frames have the same command and payload.
func (f Frame) Equal(other Frame) bool {
	return f.Command == other.Command && bytes.Equal(f.Payload, other.Payload)
}

// EncodeFrame serializes a frame to wire format.
// It panics if the payload exceeds MaxPayloadSize; payload sizes are fixed
// per command and a violation is a programming error, not a runtime
// condition.
func EncodeFrame(f Frame) []byte {
	if len(f.Payload) > MaxPayloadSize {
		panic(fmt.Sprintf("bootproto: payload %d exceeds max %d", len(f.Payload), MaxPayloadSize))
	}
	buf := make([]byte, HeaderSize+len(f.Payload)+CRCSize)
	buf[0] = f.Command
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(f.Payload)))
	copy(buf[HeaderSize:], f.Payload)
	crc := Checksum(buf[:HeaderSize+len(f.Payload)])
	binary.BigEndian.PutUint16(buf[HeaderSize+len(f.Payload):], crc)
	return buf
}

// DecodeFrame parses a frame from the start of buf. Trailing bytes beyond
// the frame are ignored: SPI masters clock fixed-size response buffers, so
// a valid frame is normally followed by idle noise.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize+CRCSize {
		return Frame{}, &CodecError{Reason: fmt.Sprintf("short buffer: %d bytes", len(buf))}
	}
	command := buf[0]
	length := int(binary.BigEndian.Uint16(buf[1:3]))
	if length > MaxPayloadSize {
		return Frame{}, &CodecError{Command: command, Reason: fmt.Sprintf("invalid length %d (max %d)", length, MaxPayloadSize)}
	}
	total := HeaderSize + length + CRCSize
	if len(buf) < total {
		return Frame{}, &CodecError{Command: command, Reason: fmt.Sprintf("truncated frame: have %d bytes, need %d", len(buf), total)}
	}
	want := Checksum(buf[:HeaderSize+length])
	got := binary.BigEndian.Uint16(buf[HeaderSize+length : total])
	if want != got {
		return Frame{}, &CodecError{Command: command, Reason: fmt.Sprintf("CRC mismatch: expected 0x%04X, got 0x%04X", want, got)}
	}
	payload := make([]byte, length)
	copy(payload, buf[HeaderSize:HeaderSize+length])
	return Frame{Command: command, Payload: payload}, nil
}
