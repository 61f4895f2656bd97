// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

// Package moduline models GOcontroll Moduline controllers and the modules
// plugged into them: controller detection, slot wiring tables, firmware
// version bookkeeping, firmware image loading and the on-disk module
// inventory.
package moduline

import (
	"fmt"
	"strconv"
	"strings"
)

// Version identifies a module firmware build. The first four bytes are the
// hardware id (module type and revision), the last three the software
// version. Firmware files are named after their version, e.g.
// 20-10-1-5-0-0-9.srec.
type Version [7]byte

// blankSoftware is the software version a module reports when its
// application area has been erased but not reprogrammed.
var blankSoftware = [3]byte{255, 255, 255}

// ParseVersion parses a version from a firmware filename such as
// 20-10-1-5-0-0-9.srec. The extension is optional. Missing trailing fields
// are zero; more than seven fields or a non-numeric field is an error.
func ParseVersion(name string) (Version, error) {
	var v Version
	base := name
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		return v, fmt.Errorf("empty version in %q", name)
	}
	parts := strings.Split(base, "-")
	if len(parts) > len(v) {
		return v, fmt.Errorf("too many version fields in %q", name)
	}
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return v, fmt.Errorf("invalid version field %q in %q", part, name)
		}
		v[i] = byte(n)
	}
	return v, nil
}

// String returns the dashed form, e.g. 20-10-1-5-0-0-9.
func (v Version) String() string {
	return fmt.Sprintf("%d-%d-%d-%d-%d-%d-%d", v[0], v[1], v[2], v[3], v[4], v[5], v[6])
}

// Filename returns the firmware filename for this version.
func (v Version) Filename() string {
	return v.String() + ".srec"
}

// Hardware returns the hardware id part of the version.
func (v Version) Hardware() [4]byte {
	return [4]byte{v[0], v[1], v[2], v[3]}
}

// Software returns the software part of the version.
func (v Version) Software() [3]byte {
	return [3]byte{v[4], v[5], v[6]}
}

// Blank reports whether the software version is the erased-flash sentinel
// (255.255.255), meaning the module has a bootloader but no application.
func (v Version) Blank() bool {
	return v.Software() == blankSoftware
}

// softwareLess compares software versions lexicographically.
func softwareLess(a, b [3]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// SelectUpdate picks the firmware a module with the installed version
// should be updated to. A candidate must match the installed hardware id,
// must not be the blank sentinel, and must be newer than the installed
// software (a blank module accepts anything). The newest matching candidate
// wins. The second return is false when no update applies.
func SelectUpdate(installed Version, available []Version) (Version, bool) {
	var best Version
	found := false
	for _, candidate := range available {
		if candidate.Hardware() != installed.Hardware() || candidate.Blank() {
			continue
		}
		if !installed.Blank() && !softwareLess(installed.Software(), candidate.Software()) {
			continue
		}
		if !found || softwareLess(best.Software(), candidate.Software()) {
			best = candidate
			found = true
		}
	}
	return best, found
}

// TypeName returns the product name encoded in the hardware id, or
// "unknown module" for hardware this tool does not know.
func (v Version) TypeName() string {
	hw := v.Hardware()
	switch hw[1] {
	case 10:
		switch hw[2] {
		case 1:
			return "6 Channel Input module"
		case 2:
			return "10 Channel Input module"
		case 3:
			return "4-20mA Input module"
		}
	case 20:
		switch hw[2] {
		case 1:
			return "2 Channel Output module"
		case 2:
			return "6 Channel Output module"
		case 3:
			return "10 Channel Output module"
		}
	case 30:
		if hw[2] == 3 {
			return "ANLEG IR module"
		}
	case 40:
		if hw[2] == 1 {
			return "ANLEG RTC Control module"
		}
	}
	return "unknown module"
}

// Describe returns a human-readable one-liner for a module in a slot, e.g.
// "slot 3: 6 Channel Input module version 5 sw: 0.1.2".
func (v Version) Describe(slot int) string {
	name := v.TypeName()
	if name == "unknown module" {
		return fmt.Sprintf("slot %d: unknown: %s", slot, v)
	}
	sw := v.Software()
	return fmt.Sprintf("slot %d: %s version %d sw: %d.%d.%d", slot, name, v[3], sw[0], sw[1], sw[2])
}
