// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package moduline

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// DefaultInventoryPath is where the scanned module inventory is persisted.
// Override with the GOCONTROLL_INVENTORY environment variable.
const DefaultInventoryPath = "/usr/lib/gocontroll/modules.cbor"

// InventoryPath returns the inventory file path, honoring the environment
// override.
func InventoryPath() string {
	if path := os.Getenv("GOCONTROLL_INVENTORY"); path != "" {
		return path
	}
	return DefaultInventoryPath
}

// Module is one inventory entry: what a scan found in a slot.
type Module struct {
	Slot         int       `cbor:"slot"`
	Version      Version   `cbor:"version"`
	Manufacturer uint32    `cbor:"manufacturer"`
	QRFront      uint32    `cbor:"qr_front"`
	QRBack       uint32    `cbor:"qr_back"`
	ScannedAt    time.Time `cbor:"scanned_at"`
}

// Inventory is the set of modules discovered on the controller, keyed by
// slot.
type Inventory struct {
	modules map[int]Module
}

// NewInventory returns an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{modules: make(map[int]Module)}
}

// Put records or replaces the entry for a slot.
func (inv *Inventory) Put(m Module) {
	inv.modules[m.Slot] = m
}

// Get returns the entry for a slot, if any.
func (inv *Inventory) Get(slot int) (Module, bool) {
	m, ok := inv.modules[slot]
	return m, ok
}

// Modules returns all entries in slot order.
func (inv *Inventory) Modules() []Module {
	out := make([]Module, 0, len(inv.modules))
	for _, m := range inv.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// LoadInventory reads the inventory file at path. A missing file is not an
// error; it yields an empty inventory.
func LoadInventory(path string) (*Inventory, error) {
	inv := NewInventory()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return inv, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Module
	if err := cbor.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	for _, m := range entries {
		inv.Put(m)
	}
	return inv, nil
}

// Save writes the inventory to path, creating parent directories as needed.
// The file is written to a temporary name first and renamed into place so a
// crash mid-write cannot corrupt it.
func (inv *Inventory) Save(path string) error {
	raw, err := cbor.Marshal(inv.Modules())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
