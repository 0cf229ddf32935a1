// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/model"
)

const assetFileName = "assets.dat"

// AssetBuffer is a bounded store of asset documents keyed by asset ID.
// Storing an existing ID replaces the document and moves it to the
// most-recent position; overflow evicts the oldest entry. Removal is a
// soft delete: removed assets stay retrievable until evicted.
type AssetBuffer struct {
	mu       sync.Mutex
	size     int
	order    []string // asset IDs, oldest first
	byID     map[string]model.Asset
	path     string // empty in memory-only mode
	dirty    bool
	listener event.Listener
}

// NewAssetBuffer builds the asset store, reloading the durable snapshot
// when cfg.Durable is set. A corrupt snapshot is dropped with a fault
// event; the agent starts with an empty asset store.
func NewAssetBuffer(cfg Config, listener event.Listener) (*AssetBuffer, error) {
	if listener == nil {
		listener = event.NopListener{}
	}
	b := &AssetBuffer{
		size:     cfg.AssetSize,
		byID:     make(map[string]model.Asset),
		listener: listener,
	}
	if cfg.Durable {
		if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create buffer directory: %w", err)
		}
		b.path = filepath.Join(cfg.Directory, assetFileName)
		b.load()
	}
	return b, nil
}

func (b *AssetBuffer) load() {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			b.listener.OnBufferFault(event.BufferFault{Path: b.path, Err: err})
		}
		return
	}
	var assets []model.Asset
	if err := decodeFrame(data, &assets); err != nil {
		b.listener.OnBufferFault(event.BufferFault{Path: b.path, Err: err})
		return
	}
	for _, a := range assets {
		b.order = append(b.order, a.AssetID)
		b.byID[a.AssetID] = a
	}
}

// Store inserts or replaces an asset, returning whether a prior document
// with the same ID was replaced.
func (b *AssetBuffer) Store(asset model.Asset) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, replaced := b.byID[asset.AssetID]
	if replaced {
		b.removeFromOrderLocked(asset.AssetID)
	}
	b.order = append(b.order, asset.AssetID)
	b.byID[asset.AssetID] = asset

	for len(b.order) > b.size {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.byID, oldest)
	}
	b.dirty = true
	return replaced
}

// Asset returns the stored document for an ID.
func (b *AssetBuffer) Asset(assetID string) (model.Asset, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.byID[assetID]
	return a, ok
}

// Assets returns stored documents most recent first, filtered by type and
// device when given. Removed assets are excluded unless includeRemoved is
// set. count <= 0 means no limit.
func (b *AssetBuffer) Assets(assetType, deviceUUID string, includeRemoved bool, count int) []model.Asset {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []model.Asset
	for i := len(b.order) - 1; i >= 0; i-- {
		a := b.byID[b.order[i]]
		if assetType != "" && a.Type != assetType {
			continue
		}
		if deviceUUID != "" && a.DeviceUUID != deviceUUID {
			continue
		}
		if a.Removed && !includeRemoved {
			continue
		}
		out = append(out, a)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}

// Remove marks an asset removed. The document stays stored until evicted.
func (b *AssetBuffer) Remove(assetID string, timestamp time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.byID[assetID]
	if !ok || a.Removed {
		return false
	}
	a.Removed = true
	a.Timestamp = timestamp
	b.byID[assetID] = a
	b.dirty = true
	return true
}

// RemoveAll marks every asset of the given type removed, returning the
// number affected. An empty type matches all assets.
func (b *AssetBuffer) RemoveAll(assetType string, timestamp time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int
	for id, a := range b.byID {
		if a.Removed || (assetType != "" && a.Type != assetType) {
			continue
		}
		a.Removed = true
		a.Timestamp = timestamp
		b.byID[id] = a
		n++
	}
	if n > 0 {
		b.dirty = true
	}
	return n
}

// Count returns the number of stored assets, excluding removed ones unless
// includeRemoved is set.
func (b *AssetBuffer) Count(includeRemoved bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if includeRemoved {
		return len(b.byID)
	}
	var n int
	for _, a := range b.byID {
		if !a.Removed {
			n++
		}
	}
	return n
}

// Size returns the configured capacity.
func (b *AssetBuffer) Size() int {
	return b.size
}

// Flush writes the durable snapshot when the store changed since the last
// call. Failures are reported and retried on the next cycle.
func (b *AssetBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.path == "" || !b.dirty {
		return
	}
	assets := make([]model.Asset, 0, len(b.order))
	for _, id := range b.order {
		assets = append(assets, b.byID[id])
	}
	data, err := encodeFrame(assets)
	if err != nil {
		b.listener.OnBufferFault(event.BufferFault{Path: b.path, Err: err})
		return
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		b.listener.OnBufferFault(event.BufferFault{Path: b.path, Err: err})
		return
	}
	if err := os.Rename(tmp, b.path); err != nil {
		b.listener.OnBufferFault(event.BufferFault{Path: b.path, Err: err})
		return
	}
	b.dirty = false
}

// Reset discards all assets and the durable snapshot.
func (b *AssetBuffer) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.order = nil
	clear(b.byID)
	b.dirty = false
	if b.path == "" {
		return nil
	}
	err := os.Remove(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (b *AssetBuffer) removeFromOrderLocked(assetID string) {
	for i, id := range b.order {
		if id == assetID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}
