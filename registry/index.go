// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/mtconnect-go/mtcagent/event"
)

const indexFileName = "devices.idx"

// deviceIndexEntry is the persisted name mapping for one device: enough to
// resolve device and data item names after a restart, before configuration
// has re-registered the device models.
type deviceIndexEntry struct {
	UUID  string            `cbor:"1,keyasint"`
	Name  string            `cbor:"2,keyasint"`
	Items map[string]string `cbor:"3,keyasint"` // data item id -> name
}

// saveIndex persists the name indices. Failures are advisory: the index
// only accelerates restart, it is rebuilt as devices are re-added.
func (r *Registry) saveIndex() {
	if r.indexPath == "" {
		return
	}
	entries := make([]deviceIndexEntry, 0, len(r.devices))
	for uuid, d := range r.devices {
		e := deviceIndexEntry{UUID: uuid, Name: d.Name, Items: make(map[string]string)}
		for name, id := range r.idByName[uuid] {
			e.Items[id] = name
		}
		entries = append(entries, e)
	}
	data, err := cbor.Marshal(entries)
	if err != nil {
		r.listener.OnBufferFault(event.BufferFault{Path: r.indexPath, Err: err})
		return
	}
	tmp := r.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		r.listener.OnBufferFault(event.BufferFault{Path: r.indexPath, Err: err})
		return
	}
	if err := os.Rename(tmp, r.indexPath); err != nil {
		r.listener.OnBufferFault(event.BufferFault{Path: r.indexPath, Err: err})
	}
}

// loadIndex reloads the persisted name mappings. A corrupt index is
// dropped with a fault event and rebuilt over time.
func (r *Registry) loadIndex() {
	data, err := os.ReadFile(r.indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			r.listener.OnBufferFault(event.BufferFault{Path: r.indexPath, Err: err})
		}
		return
	}
	var entries []deviceIndexEntry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		r.listener.OnBufferFault(event.BufferFault{Path: r.indexPath, Err: err})
		return
	}
	for _, e := range entries {
		r.recoveredNames[e.UUID] = e.Name
	}
}

// DeviceName resolves a device uuid to its name, consulting live devices
// first and then the persisted index. Lets recovered observations be
// grouped by device name before the device model is re-registered.
func (r *Registry) DeviceName(uuid string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.devices[uuid]; ok {
		return d.Name, true
	}
	name, ok := r.recoveredNames[uuid]
	return name, ok
}

// indexPathFor returns the index file path under dir, or empty when the
// registry is not persistent.
func indexPathFor(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, indexFileName)
}

// ResetIndex removes the persisted index file.
func (r *Registry) ResetIndex() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.recoveredNames)
	if r.indexPath == "" {
		return nil
	}
	err := os.Remove(r.indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
