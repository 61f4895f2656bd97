// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package moduline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultFirmwareDir is where module firmware images are installed.
// Override with the GOCONTROLL_FIRMWARE_DIR environment variable.
const DefaultFirmwareDir = "/lib/firmware/gocontroll"

// FirmwareDir returns the firmware directory, honoring the environment
// override.
func FirmwareDir() string {
	if dir := os.Getenv("GOCONTROLL_FIRMWARE_DIR"); dir != "" {
		return dir
	}
	return DefaultFirmwareDir
}

// Firmware is a flattened module firmware image ready to be flashed.
type Firmware struct {
	Version Version
	Base    uint32
	Data    []byte
}

// LoadFirmware reads and flattens the S-record file at path. The version is
// taken from the filename.
func LoadFirmware(path string) (*Firmware, error) {
	version, err := ParseVersion(filepath.Base(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	base, image, err := ParseSREC(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &Firmware{Version: version, Base: base, Data: image}, nil
}

// ScanFirmwareDir lists the firmware versions available in dir, sorted by
// hardware id then software version. Files that are not parseable firmware
// names are skipped.
func ScanFirmwareDir(dir string) ([]Version, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var versions []Version
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".srec") {
			continue
		}
		v, err := ParseVersion(entry.Name())
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		if versions[i].Hardware() != versions[j].Hardware() {
			return versions[i].String() < versions[j].String()
		}
		return softwareLess(versions[i].Software(), versions[j].Software())
	})
	return versions, nil
}
