// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package bootproto

// Checksum computes the CRC-16-CCITT over the given data. It is used both
// for frame integrity and for the per-block checksums exchanged during
// verification.
func Checksum(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
