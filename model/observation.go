// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// Category classifies a data item and the observations made against it.
type Category string

const (
	CategorySample    Category = "SAMPLE"
	CategoryEvent     Category = "EVENT"
	CategoryCondition Category = "CONDITION"
)

// Representation describes the shape of an observation's value.
type Representation string

const (
	RepresentationValue      Representation = "VALUE"
	RepresentationDataSet    Representation = "DATA_SET"
	RepresentationTable      Representation = "TABLE"
	RepresentationTimeSeries Representation = "TIME_SERIES"
)

// ConditionLevel is the severity of a condition observation.
type ConditionLevel string

const (
	ConditionNormal      ConditionLevel = "NORMAL"
	ConditionWarning     ConditionLevel = "WARNING"
	ConditionFault       ConditionLevel = "FAULT"
	ConditionUnavailable ConditionLevel = "UNAVAILABLE"
)

// Unavailable is the reserved value reported for a data item whose source
// is not currently producing data.
const Unavailable = "UNAVAILABLE"

// Cell is a single keyed value inside a table entry.
type Cell struct {
	Key   string `json:"key" xml:"key,attr" cbor:"1,keyasint"`
	Value string `json:"value" xml:",chardata" cbor:"2,keyasint"`
}

// Entry is one keyed element of a DATA_SET or TABLE value. For tables the
// Cells slice carries the row; for data sets Value carries the scalar.
// Removed marks a key deleted from the set.
type Entry struct {
	Key     string `json:"key" xml:"key,attr" cbor:"1,keyasint"`
	Value   string `json:"value,omitempty" xml:",chardata" cbor:"2,keyasint,omitempty"`
	Cells   []Cell `json:"cells,omitempty" xml:"Cell,omitempty" cbor:"3,keyasint,omitempty"`
	Removed bool   `json:"removed,omitempty" xml:"removed,attr,omitempty" cbor:"4,keyasint,omitempty"`
}

// Value is the tagged union over the closed set of observation shapes. The
// Representation field selects which member is meaningful: Scalar for VALUE,
// Entries for DATA_SET and TABLE, Series (plus Rate) for TIME_SERIES.
type Value struct {
	Representation Representation `json:"representation" xml:"representation,attr" cbor:"1,keyasint"`
	Scalar         string         `json:"scalar,omitempty" xml:"Scalar,omitempty" cbor:"2,keyasint,omitempty"`
	Entries        []Entry        `json:"entries,omitempty" xml:"Entry,omitempty" cbor:"3,keyasint,omitempty"`
	Series         []float64      `json:"series,omitempty" xml:"Series>V,omitempty" cbor:"4,keyasint,omitempty"`
	Rate           float64        `json:"rate,omitempty" xml:"sampleRate,attr,omitempty" cbor:"5,keyasint,omitempty"`
}

// IsUnavailable reports whether the value is the reserved UNAVAILABLE marker.
func (v Value) IsUnavailable() bool {
	return v.Representation == RepresentationValue && v.Scalar == Unavailable
}

// Condition carries the fields meaningful only for CONDITION observations.
// A data item may hold several simultaneously active conditions keyed by
// NativeCode.
type Condition struct {
	Level          ConditionLevel `json:"level,omitempty" xml:"level,attr,omitempty" cbor:"1,keyasint,omitempty"`
	NativeCode     string         `json:"nativeCode,omitempty" xml:"nativeCode,attr,omitempty" cbor:"2,keyasint,omitempty"`
	NativeSeverity string         `json:"nativeSeverity,omitempty" xml:"nativeSeverity,attr,omitempty" cbor:"3,keyasint,omitempty"`
	Qualifier      string         `json:"qualifier,omitempty" xml:"qualifier,attr,omitempty" cbor:"4,keyasint,omitempty"`
	Message        string         `json:"message,omitempty" xml:",chardata" cbor:"5,keyasint,omitempty"`
}

// Observation is a single sequenced value for one data item at one instant.
// Once a sequence number has been assigned the observation is immutable;
// the buffer and the current-state index share the same record.
type Observation struct {
	Sequence   uint64    `json:"sequence" xml:"sequence,attr" cbor:"1,keyasint"`
	DeviceUUID string    `json:"deviceUuid" xml:"deviceUuid,attr" cbor:"2,keyasint"`
	DataItemID string    `json:"dataItemId" xml:"dataItemId,attr" cbor:"3,keyasint"`
	Timestamp  time.Time `json:"timestamp" xml:"timestamp,attr" cbor:"4,keyasint"`
	Category   Category  `json:"category" xml:"category,attr" cbor:"5,keyasint"`
	Value      Value     `json:"value" xml:"Value" cbor:"6,keyasint"`
	Condition  Condition `json:"condition,omitempty" xml:"Condition,omitempty" cbor:"7,keyasint,omitempty"`

	// ChangeID is the content hash of Value (and Condition for condition
	// observations) used for ingestion de-duplication. Not serialized to
	// response documents.
	ChangeID string `json:"-" xml:"-" cbor:"8,keyasint,omitempty"`
}

// IsCondition reports whether the observation carries condition semantics.
func (o Observation) IsCondition() bool {
	return o.Category == CategoryCondition
}

// SequenceWindow is the retained range of the observation buffer, reported
// in every response document header. From any window, requests may ask for
// sequences in [First, Last+1].
type SequenceWindow struct {
	First uint64 `json:"firstSequence"`
	Last  uint64 `json:"lastSequence"`
	Next  uint64 `json:"nextSequence"`
}
