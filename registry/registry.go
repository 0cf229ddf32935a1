// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the validated device topology and its lookup
// indices. Devices are immutable once added except for replace-in-place,
// which preserves data item IDs so observation history stays valid.
package registry

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/model"
)

// NotFoundError reports an unresolvable device or data item key. Distinct
// from an empty result: the caller named something that does not exist.
type NotFoundError struct {
	Kind string // "device" or "dataItem"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// Registry is the validated Device -> Component -> DataItem topology with
// id/name/uuid lookup indices.
type Registry struct {
	mu         sync.RWMutex
	devices    map[string]*model.Device             // by uuid
	uuidByName map[string]string                    // device name -> uuid
	items      map[string]map[string]model.DataItem // device uuid -> data item id -> item
	idByName   map[string]map[string]string         // device uuid -> data item name -> id
	changeTime time.Time
	validate   *validator.Validate
	listener   event.Listener

	indexPath      string
	recoveredNames map[string]string // device uuid -> name, from the index file
}

// New builds a registry. When dir is non-empty the id/name index is
// persisted there and reloaded on startup for fast restart lookups.
func New(dir string, listener event.Listener) *Registry {
	if listener == nil {
		listener = event.NopListener{}
	}
	r := &Registry{
		devices:        make(map[string]*model.Device),
		uuidByName:     make(map[string]string),
		items:          make(map[string]map[string]model.DataItem),
		idByName:       make(map[string]map[string]string),
		validate:       validator.New(),
		listener:       listener,
		indexPath:      indexPathFor(dir),
		recoveredNames: make(map[string]string),
	}
	if r.indexPath != "" {
		r.loadIndex()
	}
	return r
}

// Add validates and registers a device, replacing any existing device with
// the same uuid. Invalid sub-elements are dropped with an event; valid
// siblings are still added. Only a device failing validation at the root is
// rejected outright.
func (r *Registry) Add(device *model.Device) (*model.Device, error) {
	if device == nil {
		return nil, fmt.Errorf("device must not be nil")
	}
	if err := r.validate.Struct(device); err != nil {
		return nil, fmt.Errorf("invalid device %q: %w", device.UUID, err)
	}

	clean := r.sanitize(device)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Data item IDs are unique across the whole model, except that a
	// replaced device keeps its own IDs.
	for uuid, items := range r.items {
		if uuid == clean.UUID {
			continue
		}
		for id := range items {
			if _, clash := itemIndex(clean)[id]; clash {
				return nil, fmt.Errorf("data item id %q already registered on device %q", id, uuid)
			}
		}
	}

	_, replaced := r.devices[clean.UUID]
	if replaced {
		delete(r.uuidByName, r.devices[clean.UUID].Name)
	}

	r.devices[clean.UUID] = clean
	r.uuidByName[clean.Name] = clean.UUID
	r.items[clean.UUID] = itemIndex(clean)
	names := make(map[string]string)
	clean.EachDataItem(func(di *model.DataItem) {
		if di.Name != "" {
			names[di.Name] = di.ID
		}
	})
	r.idByName[clean.UUID] = names
	r.changeTime = time.Now().UTC()
	r.saveIndex()

	r.listener.OnDeviceAdded(event.DeviceAdded{UUID: clean.UUID, Name: clean.Name, Replaced: replaced})
	return clean, nil
}

// sanitize walks the device tree dropping sub-elements that fail
// validation, emitting an InvalidModel event for each.
func (r *Registry) sanitize(device *model.Device) *model.Device {
	clean := *device
	clean.Components = r.sanitizeComponents(device.UUID, device.Components)
	clean.Compositions = r.sanitizeCompositions(device.UUID, device.Compositions)
	clean.DataItems = r.sanitizeDataItems(device.UUID, device.DataItems)
	return &clean
}

func (r *Registry) sanitizeComponents(deviceUUID string, in []model.Component) []model.Component {
	var out []model.Component
	for _, c := range in {
		if err := r.validate.StructPartial(&c, "ID", "Type"); err != nil {
			r.listener.OnInvalidModel(event.InvalidModel{
				DeviceUUID: deviceUUID, Kind: "component", ID: c.ID, Reason: err.Error(),
			})
			continue
		}
		c.Components = r.sanitizeComponents(deviceUUID, c.Components)
		c.Compositions = r.sanitizeCompositions(deviceUUID, c.Compositions)
		c.DataItems = r.sanitizeDataItems(deviceUUID, c.DataItems)
		out = append(out, c)
	}
	return out
}

func (r *Registry) sanitizeCompositions(deviceUUID string, in []model.Composition) []model.Composition {
	var out []model.Composition
	for _, c := range in {
		if err := r.validate.StructPartial(&c, "ID", "Type"); err != nil {
			r.listener.OnInvalidModel(event.InvalidModel{
				DeviceUUID: deviceUUID, Kind: "composition", ID: c.ID, Reason: err.Error(),
			})
			continue
		}
		c.DataItems = r.sanitizeDataItems(deviceUUID, c.DataItems)
		out = append(out, c)
	}
	return out
}

func (r *Registry) sanitizeDataItems(deviceUUID string, in []model.DataItem) []model.DataItem {
	var out []model.DataItem
	for _, di := range in {
		if di.Representation == "" {
			di.Representation = model.RepresentationValue
		}
		if err := r.validate.Struct(&di); err != nil {
			r.listener.OnInvalidModel(event.InvalidModel{
				DeviceUUID: deviceUUID, Kind: "dataItem", ID: di.ID, Reason: err.Error(),
			})
			continue
		}
		out = append(out, di)
	}
	return out
}

func itemIndex(device *model.Device) map[string]model.DataItem {
	idx := make(map[string]model.DataItem)
	device.EachDataItem(func(di *model.DataItem) {
		idx[di.ID] = *di
	})
	return idx
}

// Device resolves a device by uuid or name.
func (r *Registry) Device(key string) (*model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deviceLocked(key)
}

func (r *Registry) deviceLocked(key string) (*model.Device, error) {
	if d, ok := r.devices[key]; ok {
		return d, nil
	}
	if uuid, ok := r.uuidByName[key]; ok {
		return r.devices[uuid], nil
	}
	return nil, &NotFoundError{Kind: "device", Key: key}
}

// Devices returns all registered devices sorted by name.
func (r *Registry) Devices() []*model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DataItem resolves a data item by id or name within a device resolved by
// uuid or name.
func (r *Registry) DataItem(deviceKey, itemKey string) (*model.Device, model.DataItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, err := r.deviceLocked(deviceKey)
	if err != nil {
		return nil, model.DataItem{}, err
	}
	items := r.items[device.UUID]
	if di, ok := items[itemKey]; ok {
		return device, di, nil
	}
	if id, ok := r.idByName[device.UUID][itemKey]; ok {
		return device, items[id], nil
	}
	return nil, model.DataItem{}, &NotFoundError{Kind: "dataItem", Key: itemKey}
}

// DataItems returns every data item of a device, sorted by id.
func (r *Registry) DataItems(deviceUUID string) []model.DataItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := r.items[deviceUUID]
	out := make([]model.DataItem, 0, len(items))
	for _, di := range items {
		out = append(out, di)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChangeTime returns when the device model last changed.
func (r *Registry) ChangeTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changeTime
}
