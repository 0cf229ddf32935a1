// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package model

// DataItem is a named, typed measurement or event point on a device. IDs are
// unique across the whole device model so observation history stays valid
// when a device definition is replaced in place.
type DataItem struct {
	ID             string         `json:"id" xml:"id,attr" cbor:"1,keyasint" validate:"required"`
	Name           string         `json:"name,omitempty" xml:"name,attr,omitempty" cbor:"2,keyasint,omitempty"`
	Type           string         `json:"type" xml:"type,attr" cbor:"3,keyasint" validate:"required"`
	SubType        string         `json:"subType,omitempty" xml:"subType,attr,omitempty" cbor:"4,keyasint,omitempty"`
	Category       Category       `json:"category" xml:"category,attr" cbor:"5,keyasint" validate:"required,oneof=SAMPLE EVENT CONDITION"`
	Representation Representation `json:"representation,omitempty" xml:"representation,attr,omitempty" cbor:"6,keyasint,omitempty"`
	Units          string         `json:"units,omitempty" xml:"units,attr,omitempty" cbor:"7,keyasint,omitempty"`
}

// Composition is a non-recursive grouping of data items under a component.
type Composition struct {
	ID        string     `json:"id" xml:"id,attr" validate:"required"`
	Name      string     `json:"name,omitempty" xml:"name,attr,omitempty"`
	Type      string     `json:"type" xml:"type,attr" validate:"required"`
	DataItems []DataItem `json:"dataItems,omitempty" xml:"DataItems>DataItem,omitempty"`
}

// Component is one node of a device's recursive structure tree.
type Component struct {
	ID           string        `json:"id" xml:"id,attr" validate:"required"`
	Name         string        `json:"name,omitempty" xml:"name,attr,omitempty"`
	Type         string        `json:"type" xml:"type,attr" validate:"required"`
	Components   []Component   `json:"components,omitempty" xml:"Components>Component,omitempty"`
	Compositions []Composition `json:"compositions,omitempty" xml:"Compositions>Composition,omitempty"`
	DataItems    []DataItem    `json:"dataItems,omitempty" xml:"DataItems>DataItem,omitempty"`
}

// Device is the root of a piece of equipment's topology. Immutable once
// registered except for replace-in-place on configuration reload.
type Device struct {
	ID           string        `json:"id" xml:"id,attr" validate:"required"`
	Name         string        `json:"name" xml:"name,attr" validate:"required"`
	UUID         string        `json:"uuid" xml:"uuid,attr" validate:"required"`
	Description  string        `json:"description,omitempty" xml:"Description,omitempty"`
	Components   []Component   `json:"components,omitempty" xml:"Components>Component,omitempty"`
	Compositions []Composition `json:"compositions,omitempty" xml:"Compositions>Composition,omitempty"`
	DataItems    []DataItem    `json:"dataItems,omitempty" xml:"DataItems>DataItem,omitempty"`
}

// EachDataItem walks the device tree depth-first, visiting every data item
// on the device itself, its compositions, and all nested components.
func (d *Device) EachDataItem(fn func(*DataItem)) {
	for i := range d.DataItems {
		fn(&d.DataItems[i])
	}
	for i := range d.Compositions {
		eachCompositionItem(&d.Compositions[i], fn)
	}
	for i := range d.Components {
		eachComponentItem(&d.Components[i], fn)
	}
}

func eachComponentItem(c *Component, fn func(*DataItem)) {
	for i := range c.DataItems {
		fn(&c.DataItems[i])
	}
	for i := range c.Compositions {
		eachCompositionItem(&c.Compositions[i], fn)
	}
	for i := range c.Components {
		eachComponentItem(&c.Components[i], fn)
	}
}

func eachCompositionItem(c *Composition, fn func(*DataItem)) {
	for i := range c.DataItems {
		fn(&c.DataItems[i])
	}
}
