// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package moduline

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// srecRecord is one decoded line of a Motorola S-record file.
type srecRecord struct {
	kind    byte
	address uint32
	data    []byte
}

// parseSRECLine decodes and validates one S-record line. The line checksum
// is the ones' complement of the low byte of the sum of the count, address
// and data bytes.
func parseSRECLine(line string, lineNo int) (srecRecord, error) {
	var rec srecRecord
	if len(line) < 4 || line[0] != 'S' {
		return rec, fmt.Errorf("line %d: not an S-record", lineNo)
	}
	rec.kind = line[1]
	raw, err := hex.DecodeString(line[2:])
	if err != nil {
		return rec, fmt.Errorf("line %d: bad hex: %w", lineNo, err)
	}
	if len(raw) < 2 || int(raw[0]) != len(raw)-1 {
		return rec, fmt.Errorf("line %d: byte count mismatch", lineNo)
	}
	var sum byte
	for _, b := range raw[:len(raw)-1] {
		sum += b
	}
	if ^sum != raw[len(raw)-1] {
		return rec, fmt.Errorf("line %d: checksum mismatch", lineNo)
	}
	var addrLen int
	switch rec.kind {
	case '0', '1', '5', '9':
		addrLen = 2
	case '2', '6', '8':
		addrLen = 3
	case '3', '7':
		addrLen = 4
	default:
		return rec, fmt.Errorf("line %d: unknown record type S%c", lineNo, rec.kind)
	}
	body := raw[1 : len(raw)-1]
	if len(body) < addrLen {
		return rec, fmt.Errorf("line %d: record too short", lineNo)
	}
	for _, b := range body[:addrLen] {
		rec.address = rec.address<<8 | uint32(b)
	}
	rec.data = body[addrLen:]
	return rec, nil
}

// ParseSREC reads a Motorola S-record stream and flattens its S1/S2/S3 data
// records into one contiguous image. The returned base is the address of
// the first data byte; gaps between records are filled with 0xFF, which is
// the erased state of the module flash.
func ParseSREC(r io.Reader) (base uint32, image []byte, err error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	haveBase := false
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := parseSRECLine(line, lineNo)
		if err != nil {
			return 0, nil, err
		}
		switch rec.kind {
		case '1', '2', '3':
		default:
			// header, count and termination records carry no image data
			continue
		}
		if !haveBase {
			base = rec.address
			haveBase = true
		}
		if rec.address < base {
			return 0, nil, fmt.Errorf("line %d: address %#x below image base %#x", lineNo, rec.address, base)
		}
		offset := int(rec.address - base)
		if need := offset + len(rec.data); need > len(image) {
			grown := make([]byte, need)
			copy(grown, image)
			for i := len(image); i < offset; i++ {
				grown[i] = 0xFF
			}
			image = grown
		}
		copy(image[offset:], rec.data)
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, err
	}
	if !haveBase {
		return 0, nil, fmt.Errorf("no data records")
	}
	return base, image, nil
}
