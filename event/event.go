// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the structured notifications the agent core emits.
// The core never formats log lines or touches a metrics registry itself;
// the orchestration layer subscribes listeners that translate events into
// zap logs and prometheus counters.
package event

import "time"

// ObservationAdded is emitted after an observation is accepted, sequenced,
// and visible to queries.
type ObservationAdded struct {
	DeviceUUID string
	DataItemID string
	Category   string
	Sequence   uint64
}

// InvalidObservation is emitted when ingestion rejects an observation.
type InvalidObservation struct {
	DeviceKey   string
	DataItemKey string
	Reason      string
}

// AssetAdded is emitted after an asset is stored or replaced.
type AssetAdded struct {
	AssetID    string
	Type       string
	DeviceUUID string
	Replaced   bool
}

// InvalidAsset is emitted when an asset is rejected.
type InvalidAsset struct {
	AssetID string
	Reason  string
}

// DeviceAdded is emitted when a device model is registered or replaced.
type DeviceAdded struct {
	UUID     string
	Name     string
	Replaced bool
}

// InvalidModel is emitted when a sub-element of a device model fails
// validation and is dropped. Kind is "component", "composition", or
// "dataItem".
type InvalidModel struct {
	DeviceUUID string
	Kind       string
	ID         string
	Reason     string
}

// RetentionCompleted is emitted after the observation buffer evicts its
// oldest records, carrying the evicted sequence range.
type RetentionCompleted struct {
	From    uint64
	To      uint64
	Evicted int
}

// BufferFault is emitted when a durable read or write fails. The buffer
// degrades to in-memory behavior; the fault is advisory.
type BufferFault struct {
	Path string
	Err  error
}

// StreamClosed is emitted when a streaming delivery loop terminates, with
// Err set when the termination was caused by a sink failure.
type StreamClosed struct {
	Duration time.Duration
	Chunks   uint64
	Err      error
}

// Listener receives core events. Implementations must be safe for
// concurrent use; ingestion, queries, and streaming loops all emit.
type Listener interface {
	OnObservationAdded(ObservationAdded)
	OnInvalidObservation(InvalidObservation)
	OnAssetAdded(AssetAdded)
	OnInvalidAsset(InvalidAsset)
	OnDeviceAdded(DeviceAdded)
	OnInvalidModel(InvalidModel)
	OnRetentionCompleted(RetentionCompleted)
	OnBufferFault(BufferFault)
	OnStreamClosed(StreamClosed)
}

// NopListener discards all events.
type NopListener struct{}

var _ Listener = NopListener{}

func (NopListener) OnObservationAdded(ObservationAdded)     {}
func (NopListener) OnInvalidObservation(InvalidObservation) {}
func (NopListener) OnAssetAdded(AssetAdded)                 {}
func (NopListener) OnInvalidAsset(InvalidAsset)             {}
func (NopListener) OnDeviceAdded(DeviceAdded)               {}
func (NopListener) OnInvalidModel(InvalidModel)             {}
func (NopListener) OnRetentionCompleted(RetentionCompleted) {}
func (NopListener) OnBufferFault(BufferFault)               {}
func (NopListener) OnStreamClosed(StreamClosed)             {}

// Multi fans events out to every listener in order.
type Multi []Listener

var _ Listener = Multi{}

func (m Multi) OnObservationAdded(e ObservationAdded) {
	for _, l := range m {
		l.OnObservationAdded(e)
	}
}

func (m Multi) OnInvalidObservation(e InvalidObservation) {
	for _, l := range m {
		l.OnInvalidObservation(e)
	}
}

func (m Multi) OnAssetAdded(e AssetAdded) {
	for _, l := range m {
		l.OnAssetAdded(e)
	}
}

func (m Multi) OnInvalidAsset(e InvalidAsset) {
	for _, l := range m {
		l.OnInvalidAsset(e)
	}
}

func (m Multi) OnDeviceAdded(e DeviceAdded) {
	for _, l := range m {
		l.OnDeviceAdded(e)
	}
}

func (m Multi) OnInvalidModel(e InvalidModel) {
	for _, l := range m {
		l.OnInvalidModel(e)
	}
}

func (m Multi) OnRetentionCompleted(e RetentionCompleted) {
	for _, l := range m {
		l.OnRetentionCompleted(e)
	}
}

func (m Multi) OnBufferFault(e BufferFault) {
	for _, l := range m {
		l.OnBufferFault(e)
	}
}

func (m Multi) OnStreamClosed(e StreamClosed) {
	for _, l := range m {
		l.OnStreamClosed(e)
	}
}
