// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"sort"
	"time"

	"github.com/mtconnect-go/mtcagent/buffer"
	"github.com/mtconnect-go/mtcagent/model"
)

// Header builds the document header common to every response. The sequence
// window is captured in one call so First/Last/Next are mutually consistent.
func (a *Agent) Header() model.Header {
	info := a.info.Information()
	w := a.observations.Window()
	return model.Header{
		InstanceID:            info.InstanceID,
		Version:               a.opts.Version,
		Sender:                a.opts.Sender,
		CreationTime:          time.Now().UTC(),
		BufferSize:            uint64(a.observations.Len()),
		AssetBufferSize:       uint64(a.assets.Size()),
		AssetCount:            uint64(a.assets.Count(false)),
		FirstSequence:         w.First,
		LastSequence:          w.Last,
		NextSequence:          w.Next,
		DeviceModelChangeTime: info.DeviceModelChangeTime,
	}
}

// GetDevicesResponseDocument answers a probe request. An empty deviceKey
// returns every registered device.
func (a *Agent) GetDevicesResponseDocument(deviceKey string) (*model.DevicesDocument, error) {
	var devices []*model.Device
	if deviceKey == "" {
		devices = a.registry.Devices()
	} else {
		device, err := a.registry.Device(deviceKey)
		if err != nil {
			return nil, err
		}
		devices = []*model.Device{device}
	}

	doc := &model.DevicesDocument{
		Header:  a.Header(),
		Devices: make([]model.Device, 0, len(devices)),
	}
	for _, d := range devices {
		doc.Devices = append(doc.Devices, *d)
	}
	return doc, nil
}

// GetCurrentResponseDocument answers a current request: the latest
// observation per data item plus the active condition sets. When at is
// non-zero the state is reconstructed as of that sequence by replaying the
// retained history, so a client can pin a consistent snapshot.
func (a *Agent) GetCurrentResponseDocument(deviceKey string, at uint64) (*model.StreamsDocument, error) {
	var filter []string
	if deviceKey != "" {
		device, err := a.registry.Device(deviceKey)
		if err != nil {
			return nil, err
		}
		items := a.registry.DataItems(device.UUID)
		if len(items) == 0 {
			return &model.StreamsDocument{Header: a.Header()}, nil
		}
		filter = make([]string, 0, len(items))
		for _, di := range items {
			filter = append(filter, di.ID)
		}
	}

	index := a.index
	if at != 0 {
		w := a.observations.Window()
		if at < w.First || at > w.Last {
			return nil, &buffer.RangeError{From: at, Window: w}
		}
		replay := buffer.NewCurrentStateIndex()
		err := a.observations.Scan(w.First, at, func(obs model.Observation) bool {
			replay.Update(obs)
			return true
		})
		if err != nil {
			return nil, err
		}
		index = replay
	}

	doc := &model.StreamsDocument{
		Header:  a.Header(),
		Streams: a.groupByDevice(index.Snapshot(filter)),
	}
	return doc, nil
}

// GetSampleResponseDocument answers a sample request: up to count retained
// observations with sequence in [from, to], ascending. from == 0 starts at
// the oldest retained record; to == 0 means no upper bound. The header's
// NextSequence is the resume position: one past the last returned record
// when count truncated the scan, otherwise the buffer's next sequence.
func (a *Agent) GetSampleResponseDocument(deviceKey string, from, to uint64, count int) (*model.StreamsDocument, error) {
	var deviceUUID string
	if deviceKey != "" {
		device, err := a.registry.Device(deviceKey)
		if err != nil {
			return nil, err
		}
		deviceUUID = device.UUID
	}

	if from == 0 {
		from = a.observations.Window().First
	}

	var out []model.Observation
	err := a.observations.Scan(from, to, func(obs model.Observation) bool {
		if deviceUUID != "" && obs.DeviceUUID != deviceUUID {
			return true
		}
		out = append(out, obs)
		return count <= 0 || len(out) < count
	})
	if err != nil {
		return nil, err
	}

	doc := &model.StreamsDocument{
		Header:  a.Header(),
		Streams: a.groupByDevice(out),
	}
	if count > 0 && len(out) == count {
		doc.Header.NextSequence = out[len(out)-1].Sequence + 1
	}
	return doc, nil
}

// GetAssetsResponseDocument answers an assets listing, most recent first.
// Empty assetType and deviceKey mean no filter; count <= 0 means no limit.
func (a *Agent) GetAssetsResponseDocument(assetType, deviceKey string, includeRemoved bool, count int) (*model.AssetsDocument, error) {
	var deviceUUID string
	if deviceKey != "" {
		device, err := a.registry.Device(deviceKey)
		if err != nil {
			return nil, err
		}
		deviceUUID = device.UUID
	}
	return &model.AssetsDocument{
		Header: a.Header(),
		Assets: a.assets.Assets(assetType, deviceUUID, includeRemoved, count),
	}, nil
}

// GetAssetResponseDocument answers a lookup of one asset by ID. Removed
// assets are still returned, flagged removed.
func (a *Agent) GetAssetResponseDocument(assetID string) (*model.AssetsDocument, error) {
	asset, ok := a.assets.Asset(assetID)
	if !ok {
		return nil, &buffer.AssetNotFoundError{AssetID: assetID}
	}
	return &model.AssetsDocument{
		Header: a.Header(),
		Assets: []model.Asset{asset},
	}, nil
}

// groupByDevice partitions observations into per-device streams sorted by
// device name, preserving ascending sequence order within each stream.
// Observations for devices no longer registered fall back to uuid naming so
// recovered history is never silently dropped.
func (a *Agent) groupByDevice(observations []model.Observation) []model.DeviceStream {
	byUUID := make(map[string]*model.DeviceStream)
	var order []string
	for _, obs := range observations {
		stream, ok := byUUID[obs.DeviceUUID]
		if !ok {
			name, found := a.registry.DeviceName(obs.DeviceUUID)
			if !found {
				name = obs.DeviceUUID
			}
			stream = &model.DeviceStream{Name: name, UUID: obs.DeviceUUID}
			byUUID[obs.DeviceUUID] = stream
			order = append(order, obs.DeviceUUID)
		}
		stream.Observations = append(stream.Observations, obs)
	}

	out := make([]model.DeviceStream, 0, len(order))
	for _, uuid := range order {
		out = append(out, *byUUID[uuid])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
