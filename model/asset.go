// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// Asset is a self-contained document independent of the streaming
// observation model, such as a cutting tool definition. Content holds the
// raw document body in the encoding it was received in.
type Asset struct {
	AssetID    string    `json:"assetId" xml:"assetId,attr" cbor:"1,keyasint" validate:"required"`
	Type       string    `json:"type" xml:"type,attr" cbor:"2,keyasint" validate:"required"`
	DeviceUUID string    `json:"deviceUuid,omitempty" xml:"deviceUuid,attr,omitempty" cbor:"3,keyasint,omitempty"`
	Timestamp  time.Time `json:"timestamp" xml:"timestamp,attr" cbor:"4,keyasint"`
	Removed    bool      `json:"removed,omitempty" xml:"removed,attr,omitempty" cbor:"5,keyasint,omitempty"`
	Content    []byte    `json:"content,omitempty" xml:",innerxml" cbor:"6,keyasint,omitempty"`
}
