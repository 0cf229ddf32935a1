// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/xml"
	"time"
)

// Header precedes every response document. The sequence window fields are
// only meaningful on streams documents; the asset fields only on devices
// and assets documents.
type Header struct {
	InstanceID            int64     `json:"instanceId" xml:"instanceId,attr"`
	Version               string    `json:"version" xml:"version,attr"`
	Sender                string    `json:"sender" xml:"sender,attr"`
	CreationTime          time.Time `json:"creationTime" xml:"creationTime,attr"`
	BufferSize            uint64    `json:"bufferSize" xml:"bufferSize,attr"`
	AssetBufferSize       uint64    `json:"assetBufferSize,omitempty" xml:"assetBufferSize,attr,omitempty"`
	AssetCount            uint64    `json:"assetCount,omitempty" xml:"assetCount,attr,omitempty"`
	FirstSequence         uint64    `json:"firstSequence,omitempty" xml:"firstSequence,attr,omitempty"`
	LastSequence          uint64    `json:"lastSequence,omitempty" xml:"lastSequence,attr,omitempty"`
	NextSequence          uint64    `json:"nextSequence,omitempty" xml:"nextSequence,attr,omitempty"`
	DeviceModelChangeTime time.Time `json:"deviceModelChangeTime,omitempty" xml:"deviceModelChangeTime,attr,omitempty"`
}

// DevicesDocument answers a probe request with the full or filtered
// device topology.
type DevicesDocument struct {
	XMLName xml.Name `json:"-" xml:"MTConnectDevices"`
	Header  Header   `json:"header" xml:"Header"`
	Devices []Device `json:"devices" xml:"Devices>Device"`
}

// DeviceStream groups the observations of one device inside a streams
// document, ordered ascending by sequence.
type DeviceStream struct {
	Name         string        `json:"name" xml:"name,attr"`
	UUID         string        `json:"uuid" xml:"uuid,attr"`
	Observations []Observation `json:"observations" xml:"Observations>Observation"`
}

// StreamsDocument answers current and sample requests.
type StreamsDocument struct {
	XMLName xml.Name       `json:"-" xml:"MTConnectStreams"`
	Header  Header         `json:"header" xml:"Header"`
	Streams []DeviceStream `json:"streams" xml:"Streams>DeviceStream"`
}

// ObservationCount returns the total observations across all device streams.
func (d *StreamsDocument) ObservationCount() int {
	var n int
	for i := range d.Streams {
		n += len(d.Streams[i].Observations)
	}
	return n
}

// AssetsDocument answers asset requests.
type AssetsDocument struct {
	XMLName xml.Name `json:"-" xml:"MTConnectAssets"`
	Header  Header   `json:"header" xml:"Header"`
	Assets  []Asset  `json:"assets" xml:"Assets>Asset"`
}

// Error codes reported in error documents.
const (
	ErrorCodeOutOfRange     = "OUT_OF_RANGE"
	ErrorCodeNoDevice       = "NO_DEVICE"
	ErrorCodeAssetNotFound  = "ASSET_NOT_FOUND"
	ErrorCodeInvalidRequest = "INVALID_REQUEST"
	ErrorCodeInternal       = "INTERNAL_ERROR"
)

// Error is one protocol-level failure inside an error document.
type Error struct {
	Code    string `json:"errorCode" xml:"errorCode,attr"`
	Message string `json:"message" xml:",chardata"`
}

// ErrorDocument reports protocol-level failures to the caller.
type ErrorDocument struct {
	XMLName xml.Name `json:"-" xml:"MTConnectError"`
	Header  Header   `json:"header" xml:"Header"`
	Errors  []Error  `json:"errors" xml:"Errors>Error"`
}
