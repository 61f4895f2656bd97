// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package moduline

import (
	"testing"
)

// ============================================================================
// Version Parsing Tests
// ============================================================================

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Version
		wantErr bool
	}{
		{
			name: "full filename",
			in:   "20-10-1-5-0-0-9.srec",
			want: Version{20, 10, 1, 5, 0, 0, 9},
		},
		{
			name: "no extension",
			in:   "20-10-1-5-0-0-9",
			want: Version{20, 10, 1, 5, 0, 0, 9},
		},
		{
			name: "short form zero fills",
			in:   "20-10-1-5.srec",
			want: Version{20, 10, 1, 5, 0, 0, 0},
		},
		{
			name:    "too many fields",
			in:      "20-10-1-5-0-0-9-3.srec",
			wantErr: true,
		},
		{
			name:    "non numeric field",
			in:      "20-10-x-5-0-0-9.srec",
			wantErr: true,
		},
		{
			name:    "field out of range",
			in:      "20-10-1-5-0-0-300.srec",
			wantErr: true,
		},
		{
			name:    "empty",
			in:      ".srec",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersionRoundTrip(t *testing.T) {
	v := Version{20, 10, 1, 5, 0, 0, 9}
	got, err := ParseVersion(v.Filename())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != v {
		t.Errorf("round trip got %v, want %v", got, v)
	}
}

func TestVersionBlank(t *testing.T) {
	if !(Version{20, 10, 1, 5, 255, 255, 255}).Blank() {
		t.Error("erased sentinel not reported blank")
	}
	if (Version{20, 10, 1, 5, 0, 0, 9}).Blank() {
		t.Error("programmed version reported blank")
	}
}

// ============================================================================
// Update Selection Tests
// ============================================================================

func TestSelectUpdate(t *testing.T) {
	installed := Version{20, 10, 1, 5, 0, 0, 3}
	available := []Version{
		{20, 10, 1, 5, 0, 0, 2}, // older
		{20, 10, 1, 5, 0, 0, 7},
		{20, 10, 1, 5, 0, 0, 9}, // newest match
		{20, 20, 1, 5, 0, 2, 0}, // different hardware
	}

	tests := []struct {
		name      string
		installed Version
		available []Version
		want      Version
		wantOK    bool
	}{
		{
			name:      "newest matching candidate wins",
			installed: installed,
			available: available,
			want:      Version{20, 10, 1, 5, 0, 0, 9},
			wantOK:    true,
		},
		{
			name:      "already newest",
			installed: Version{20, 10, 1, 5, 0, 0, 9},
			available: available,
			wantOK:    false,
		},
		{
			name:      "same version is not an update",
			installed: Version{20, 10, 1, 5, 0, 0, 9},
			available: []Version{{20, 10, 1, 5, 0, 0, 9}},
			wantOK:    false,
		},
		{
			name:      "no hardware match",
			installed: Version{30, 30, 3, 1, 0, 0, 1},
			available: available,
			wantOK:    false,
		},
		{
			name:      "blank module accepts any software",
			installed: Version{20, 10, 1, 5, 255, 255, 255},
			available: []Version{{20, 10, 1, 5, 0, 0, 2}},
			want:      Version{20, 10, 1, 5, 0, 0, 2},
			wantOK:    true,
		},
		{
			name:      "blank candidate never selected",
			installed: installed,
			available: []Version{{20, 10, 1, 5, 255, 255, 255}},
			wantOK:    false,
		},
		{
			name:      "empty candidates",
			installed: installed,
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectUpdate(tt.installed, tt.available)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		version Version
		want    string
	}{
		{Version{20, 10, 1, 5, 0, 0, 9}, "6 Channel Input module"},
		{Version{20, 10, 2, 1, 0, 0, 1}, "10 Channel Input module"},
		{Version{20, 10, 3, 1, 0, 0, 1}, "4-20mA Input module"},
		{Version{20, 20, 1, 1, 0, 0, 1}, "2 Channel Output module"},
		{Version{20, 20, 2, 1, 0, 0, 1}, "6 Channel Output module"},
		{Version{20, 20, 3, 1, 0, 0, 1}, "10 Channel Output module"},
		{Version{20, 30, 3, 1, 0, 0, 1}, "ANLEG IR module"},
		{Version{20, 40, 1, 1, 0, 0, 1}, "ANLEG RTC Control module"},
		{Version{20, 99, 1, 1, 0, 0, 1}, "unknown module"},
	}

	for _, tt := range tests {
		if got := tt.version.TypeName(); got != tt.want {
			t.Errorf("%v: got %q, want %q", tt.version, got, tt.want)
		}
	}
}
