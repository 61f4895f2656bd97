// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package bootproto

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildSyncResponse assembles a Sync response frame the way a module
// bootloader would.
func buildSyncResponse(version [VersionSize]byte, manufacturer, qrFront, qrBack uint32) Frame {
	payload := make([]byte, syncRespLen)
	payload[0] = StatusOK
	copy(payload[1:8], version[:])
	binary.BigEndian.PutUint32(payload[8:12], manufacturer)
	binary.BigEndian.PutUint32(payload[12:16], qrFront)
	binary.BigEndian.PutUint32(payload[16:20], qrBack)
	return Frame{Command: CmdSync, Payload: payload}
}

// buildBlockAck assembles a block ack frame for the given request command.
func buildBlockAck(cmd byte, status byte, offset uint32) Frame {
	payload := make([]byte, 1+OffsetSize)
	payload[0] = status
	binary.BigEndian.PutUint32(payload[1:], offset)
	return Frame{Command: cmd, Payload: payload}
}

func TestParseSyncResponse(t *testing.T) {
	version := [VersionSize]byte{20, 10, 1, 5, 0, 1, 2}
	frame := buildSyncResponse(version, 0x47436F6E, 1234, 5678)

	info, err := ParseSyncResponse(frame)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if info.Version != version {
		t.Errorf("version mismatch: expected %v, got %v", version, info.Version)
	}
	if info.Manufacturer != 0x47436F6E {
		t.Errorf("manufacturer mismatch: got 0x%08X", info.Manufacturer)
	}
	if info.QRFront != 1234 || info.QRBack != 5678 {
		t.Errorf("QR mismatch: got %d/%d", info.QRFront, info.QRBack)
	}
}

func TestParseSyncResponse_Errors(t *testing.T) {
	good := buildSyncResponse([VersionSize]byte{20, 10, 1, 5, 0, 1, 2}, 1, 2, 3)

	badStatus := buildSyncResponse([VersionSize]byte{}, 0, 0, 0)
	badStatus.Payload[0] = StatusBusy

	tests := []struct {
		name  string
		frame Frame
	}{
		{"wrong command echo", Frame{Command: CmdErase, Payload: good.Payload}},
		{"short payload", Frame{Command: CmdSync, Payload: []byte{StatusOK, 1, 2}}},
		{"non-ok status", badStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSyncResponse(tt.frame)
			if err == nil {
				t.Fatal("expected error")
			}
			var codecErr *CodecError
			if !errors.As(err, &codecErr) {
				t.Errorf("expected CodecError, got %T", err)
			}
		})
	}
}

func TestParseBlockAck(t *testing.T) {
	if err := ParseBlockAck(buildBlockAck(CmdWriteBlock, StatusOK, 512), CmdWriteBlock, 512); err != nil {
		t.Errorf("valid ack rejected: %v", err)
	}
	// A status re-poll carries the same ack under the status command echo.
	if err := ParseBlockAck(buildBlockAck(CmdStatus, StatusOK, 512), CmdStatus, 512); err != nil {
		t.Errorf("valid re-polled ack rejected: %v", err)
	}
}

func TestParseBlockAck_Errors(t *testing.T) {
	tests := []struct {
		name   string
		frame  Frame
		cmd    byte
		offset uint32
	}{
		{"offset mismatch", buildBlockAck(CmdWriteBlock, StatusOK, 256), CmdWriteBlock, 512},
		{"bad checksum status", buildBlockAck(CmdWriteBlock, StatusBadChecksum, 512), CmdWriteBlock, 512},
		{"wrong command echo", buildBlockAck(CmdErase, StatusOK, 512), CmdWriteBlock, 512},
		{"short payload", Frame{Command: CmdWriteBlock, Payload: []byte{StatusOK}}, CmdWriteBlock, 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseBlockAck(tt.frame, tt.cmd, tt.offset)
			if err == nil {
				t.Fatal("expected error")
			}
			var codecErr *CodecError
			if !errors.As(err, &codecErr) {
				t.Errorf("expected CodecError, got %T", err)
			}
		})
	}
}

func TestParseEraseAck(t *testing.T) {
	ok := Frame{Command: CmdErase, Payload: []byte{StatusOK}}
	if err := ParseEraseAck(ok, CmdErase); err != nil {
		t.Errorf("valid erase ack rejected: %v", err)
	}

	rejected := Frame{Command: CmdErase, Payload: []byte{StatusWriteFailed}}
	if err := ParseEraseAck(rejected, CmdErase); err == nil {
		t.Error("expected error for failed erase status")
	}

	if err := ParseEraseAck(ok, CmdStatus); err == nil {
		t.Error("expected error for mismatched command echo")
	}
}
