// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker orchestrates the agent core: it accepts observations,
// assets, and device models, applies validation and de-duplication,
// sequences accepted records into the buffers, and answers the
// probe/current/sample/assets queries.
package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mtconnect-go/mtcagent/buffer"
	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/model"
	"github.com/mtconnect-go/mtcagent/registry"
	"github.com/mtconnect-go/mtcagent/sequence"
)

// Options carries the identity reported in response document headers.
type Options struct {
	Version string
	Sender  string
}

// Agent composes the registry, the buffers, and the current-state index
// behind the ingestion and query surfaces.
type Agent struct {
	// mu serializes the accept path (dedup check + append) so concurrent
	// ingestion callers cannot interleave the de-duplication decision with
	// the append it guards. Queries do not take this lock.
	mu sync.Mutex

	registry     *registry.Registry
	observations *buffer.ObservationBuffer
	assets       *buffer.AssetBuffer
	index        *buffer.CurrentStateIndex
	info         *sequence.InformationFile
	listener     event.Listener
	validate     *validator.Validate
	opts         Options
}

func New(
	reg *registry.Registry,
	observations *buffer.ObservationBuffer,
	assets *buffer.AssetBuffer,
	index *buffer.CurrentStateIndex,
	info *sequence.InformationFile,
	listener event.Listener,
	opts Options,
) *Agent {
	if listener == nil {
		listener = event.NopListener{}
	}
	return &Agent{
		registry:     reg,
		observations: observations,
		assets:       assets,
		index:        index,
		info:         info,
		listener:     listener,
		validate:     validator.New(),
		opts:         opts,
	}
}

// ObservationInput is one inbound value before resolution and sequencing.
// DataItemKey may be a data item id or name.
type ObservationInput struct {
	DataItemKey string
	Timestamp   time.Time
	Value       model.Value
	Condition   model.Condition
}

// AddDevice validates and registers a device model, replacing any existing
// device with the same uuid. When initializeDataItems is set, every data
// item without a known state is transitioned to UNAVAILABLE through the
// normal sequenced path so consumers see the initial state in history.
func (a *Agent) AddDevice(device *model.Device, initializeDataItems bool) error {
	added, err := a.registry.Add(device)
	if err != nil {
		return err
	}
	if err := a.info.TouchDeviceModel(a.registry.ChangeTime()); err != nil {
		a.listener.OnBufferFault(event.BufferFault{Err: err})
	}

	if !initializeDataItems {
		return nil
	}
	now := time.Now().UTC()
	added.EachDataItem(func(di *model.DataItem) {
		if a.hasState(di) {
			return
		}
		a.accept(unavailableObservation(added.UUID, *di, now))
	})
	return nil
}

func (a *Agent) hasState(di *model.DataItem) bool {
	if di.Category == model.CategoryCondition {
		return len(a.index.ActiveConditions(di.ID)) > 0
	}
	_, ok := a.index.Latest(di.ID)
	return ok
}

// AddObservation resolves the device and data item keys, validates the
// input, and sequences the observation. Returns false when the keys do not
// resolve or validation rejects the value; failures are reported through
// the listener, never as errors, so ingestion of subsequent items is
// unaffected.
//
// Identical consecutive values for the same SAMPLE or EVENT data item are
// de-duplicated: the second call consumes no sequence number and appends
// nothing. Conditions are always appended since multiple simultaneous
// conditions are meaningful.
func (a *Agent) AddObservation(deviceKey string, in ObservationInput) bool {
	device, di, err := a.registry.DataItem(deviceKey, in.DataItemKey)
	if err != nil {
		a.listener.OnInvalidObservation(event.InvalidObservation{
			DeviceKey: deviceKey, DataItemKey: in.DataItemKey, Reason: err.Error(),
		})
		return false
	}

	obs, err := buildObservation(device.UUID, di, in)
	if err != nil {
		a.listener.OnInvalidObservation(event.InvalidObservation{
			DeviceKey: deviceKey, DataItemKey: in.DataItemKey, Reason: err.Error(),
		})
		return false
	}

	a.mu.Lock()
	if obs.Category != model.CategoryCondition {
		if current, ok := a.index.ChangeID(obs.DataItemID); ok && current == obs.ChangeID {
			a.mu.Unlock()
			return true // duplicate value, at most once per distinct value
		}
	}
	seq := a.observations.Append(obs)
	a.mu.Unlock()

	a.listener.OnObservationAdded(event.ObservationAdded{
		DeviceUUID: obs.DeviceUUID,
		DataItemID: obs.DataItemID,
		Category:   string(obs.Category),
		Sequence:   seq,
	})
	return true
}

// AddConditionObservation ingests a condition transition for a CONDITION
// data item.
func (a *Agent) AddConditionObservation(deviceKey, dataItemKey string, timestamp time.Time, cond model.Condition) bool {
	return a.AddObservation(deviceKey, ObservationInput{
		DataItemKey: dataItemKey,
		Timestamp:   timestamp,
		Condition:   cond,
	})
}

// AddObservations ingests a batch, returning the number accepted. A
// rejected item never aborts the rest of the batch.
func (a *Agent) AddObservations(deviceKey string, ins []ObservationInput) int {
	var accepted int
	for _, in := range ins {
		if a.AddObservation(deviceKey, in) {
			accepted++
		}
	}
	return accepted
}

// accept sequences a pre-built observation, bypassing key resolution and
// validation. Used for the agent's own transitions (initialization,
// unavailability).
func (a *Agent) accept(obs model.Observation) uint64 {
	a.mu.Lock()
	seq := a.observations.Append(obs)
	a.mu.Unlock()
	a.listener.OnObservationAdded(event.ObservationAdded{
		DeviceUUID: obs.DeviceUUID,
		DataItemID: obs.DataItemID,
		Category:   string(obs.Category),
		Sequence:   seq,
	})
	return seq
}

// SetUnavailable transitions every data item that is not already
// UNAVAILABLE back to UNAVAILABLE, producing a new sequenced observation
// for each so consumers see the disconnect in history. Invoked on adapter
// disconnect.
func (a *Agent) SetUnavailable(timestamp time.Time) {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	for _, device := range a.registry.Devices() {
		device.EachDataItem(func(di *model.DataItem) {
			if a.isUnavailable(di) {
				return
			}
			a.accept(unavailableObservation(device.UUID, *di, timestamp))
		})
	}
}

func (a *Agent) isUnavailable(di *model.DataItem) bool {
	if di.Category == model.CategoryCondition {
		active := a.index.ActiveConditions(di.ID)
		return len(active) == 1 && active[0].Condition.Level == model.ConditionUnavailable
	}
	obs, ok := a.index.Latest(di.ID)
	return ok && obs.Value.IsUnavailable()
}

func unavailableObservation(deviceUUID string, di model.DataItem, ts time.Time) model.Observation {
	obs := model.Observation{
		DeviceUUID: deviceUUID,
		DataItemID: di.ID,
		Timestamp:  ts,
		Category:   di.Category,
	}
	if di.Category == model.CategoryCondition {
		obs.Condition = model.Condition{Level: model.ConditionUnavailable}
	} else {
		obs.Value = model.Value{
			Representation: model.RepresentationValue,
			Scalar:         model.Unavailable,
		}
	}
	obs.ChangeID = changeID(&obs)
	return obs
}

// AddAsset validates and stores an asset document, replacing any prior
// asset with the same ID. Returns false on validation failure, reported
// through the listener.
func (a *Agent) AddAsset(deviceKey string, asset model.Asset) bool {
	if deviceKey != "" {
		device, err := a.registry.Device(deviceKey)
		if err != nil {
			a.listener.OnInvalidAsset(event.InvalidAsset{AssetID: asset.AssetID, Reason: err.Error()})
			return false
		}
		asset.DeviceUUID = device.UUID
	}
	if asset.Timestamp.IsZero() {
		asset.Timestamp = time.Now().UTC()
	}
	if err := a.validate.Struct(&asset); err != nil {
		a.listener.OnInvalidAsset(event.InvalidAsset{
			AssetID: asset.AssetID,
			Reason:  fmt.Sprintf("invalid asset: %v", err),
		})
		return false
	}

	replaced := a.assets.Store(asset)
	a.listener.OnAssetAdded(event.AssetAdded{
		AssetID:    asset.AssetID,
		Type:       asset.Type,
		DeviceUUID: asset.DeviceUUID,
		Replaced:   replaced,
	})
	return true
}

// RemoveAsset marks an asset removed. Soft delete: the document stays
// retrievable with removed=true until evicted.
func (a *Agent) RemoveAsset(assetID string, timestamp time.Time) bool {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	return a.assets.Remove(assetID, timestamp)
}

// RemoveAllAssets marks every asset of the given type removed, returning
// the number affected.
func (a *Agent) RemoveAllAssets(assetType string, timestamp time.Time) int {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	return a.assets.RemoveAll(assetType, timestamp)
}

// Window reports the retained sequence bounds of the observation buffer.
func (a *Agent) Window() model.SequenceWindow {
	return a.observations.Window()
}

// Reset clears all persisted and in-memory state: buffers, index, agent
// information, and the registry index file.
func (a *Agent) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.observations.Reset(); err != nil {
		return err
	}
	if err := a.assets.Reset(); err != nil {
		return err
	}
	a.index.Reset()
	if err := a.registry.ResetIndex(); err != nil {
		return err
	}
	return a.info.Reset()
}
