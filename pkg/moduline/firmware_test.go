// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package moduline

import (
	"os"
	"path/filepath"
	"testing"
)

// ============================================================================
// Firmware Loading Tests
// ============================================================================

func TestLoadFirmware(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "20-10-1-5-0-0-9.srec")
	if err := os.WriteFile(path, []byte(sampleSREC), 0o644); err != nil {
		t.Fatal(err)
	}

	fw, err := LoadFirmware(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fw.Version != (Version{20, 10, 1, 5, 0, 0, 9}) {
		t.Errorf("version = %v", fw.Version)
	}
	if fw.Base != 0x1000 {
		t.Errorf("base = %#x", fw.Base)
	}
	if len(fw.Data) != 8 {
		t.Errorf("image length = %d, want 8", len(fw.Data))
	}
}

func TestLoadFirmwareBadName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-version-at-all-x.srec")
	if err := os.WriteFile(path, []byte(sampleSREC), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFirmware(path); err == nil {
		t.Error("expected error for unparseable filename")
	}
}

func TestScanFirmwareDir(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"20-10-1-5-0-0-9.srec",
		"20-10-1-5-0-0-2.srec",
		"20-20-2-1-0-1-0.srec",
		"README.txt",     // not firmware
		"garbage-x.srec", // unparseable
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sampleSREC), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	versions, err := ScanFirmwareDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("got %d versions, want 3: %v", len(versions), versions)
	}
	// same hardware sorts by software version
	if !softwareLess(versions[0].Software(), versions[1].Software()) &&
		versions[0].Hardware() == versions[1].Hardware() {
		t.Errorf("versions not sorted: %v", versions)
	}
}
