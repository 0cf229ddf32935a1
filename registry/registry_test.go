// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/model"
)

type modelCaptureListener struct {
	event.NopListener
	mu      sync.Mutex
	invalid []event.InvalidModel
	added   []event.DeviceAdded
}

func (m *modelCaptureListener) OnInvalidModel(e event.InvalidModel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalid = append(m.invalid, e)
}

func (m *modelCaptureListener) OnDeviceAdded(e event.DeviceAdded) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, e)
}

func millDevice() *model.Device {
	return &model.Device{
		ID:   "d1",
		Name: "mill-1",
		UUID: "uuid-mill-1",
		DataItems: []model.DataItem{
			{ID: "avail", Name: "availability", Type: "AVAILABILITY", Category: model.CategoryEvent},
		},
		Components: []model.Component{
			{
				ID:   "c1",
				Name: "controller",
				Type: "Controller",
				DataItems: []model.DataItem{
					{ID: "mode", Name: "mode", Type: "CONTROLLER_MODE", Category: model.CategoryEvent},
					{ID: "Xpos", Name: "Xposition", Type: "POSITION", Category: model.CategorySample},
				},
			},
		},
	}
}

func TestAddAndLookup(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	r := New("", event.NopListener{})

	_, err := r.Add(millDevice())
	require.NoError(err)

	byUUID, err := r.Device("uuid-mill-1")
	require.NoError(err)
	byName, err := r.Device("mill-1")
	require.NoError(err)
	assert.Same(byUUID, byName)

	_, err = r.Device("missing")
	var notFound *NotFoundError
	assert.ErrorAs(err, &notFound)
	assert.Equal("device", notFound.Kind)
}

func TestAddRejectsInvalidRoot(t *testing.T) {
	assert := assert.New(t)
	r := New("", event.NopListener{})

	_, err := r.Add(&model.Device{ID: "d1", Name: "mill-1"}) // missing uuid
	assert.Error(err)
	_, err = r.Add(nil)
	assert.Error(err)
	assert.Empty(r.Devices())
}

func TestAddDropsInvalidSubElements(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	listener := new(modelCaptureListener)
	r := New("", listener)

	device := millDevice()
	device.Components = append(device.Components, model.Component{
		// missing type, must be dropped
		ID: "bad",
		DataItems: []model.DataItem{
			{ID: "orphan", Type: "POSITION", Category: model.CategorySample},
		},
	})
	device.DataItems = append(device.DataItems, model.DataItem{
		ID: "badItem", Type: "POSITION", Category: "BOGUS",
	})

	added, err := r.Add(device)
	require.NoError(err, "valid siblings survive an invalid sub-element")

	assert.Len(added.Components, 1)
	assert.Len(r.DataItems("uuid-mill-1"), 3)
	assert.Len(listener.invalid, 2)
}

func TestDataItemLookupByIDAndName(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	r := New("", event.NopListener{})
	_, err := r.Add(millDevice())
	require.NoError(err)

	_, byID, err := r.DataItem("uuid-mill-1", "Xpos")
	require.NoError(err)
	_, byName, err := r.DataItem("mill-1", "Xposition")
	require.NoError(err)
	assert.Equal(byID.ID, byName.ID)

	_, _, err = r.DataItem("mill-1", "missing")
	var notFound *NotFoundError
	assert.ErrorAs(err, &notFound)
	assert.Equal("dataItem", notFound.Kind)
}

func TestReplaceByUUID(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	listener := new(modelCaptureListener)
	r := New("", listener)

	_, err := r.Add(millDevice())
	require.NoError(err)
	before := r.ChangeTime()

	replacement := millDevice()
	replacement.Name = "mill-renamed"
	replacement.Components[0].DataItems = replacement.Components[0].DataItems[:1]
	_, err = r.Add(replacement)
	require.NoError(err)

	assert.Len(r.Devices(), 1)
	_, err = r.Device("mill-renamed")
	assert.NoError(err)
	_, err = r.Device("mill-1")
	assert.Error(err, "the old name no longer resolves")
	assert.Len(r.DataItems("uuid-mill-1"), 2)
	assert.False(r.ChangeTime().Before(before))
	assert.True(listener.added[1].Replaced)
}

func TestCrossDeviceDataItemIDClash(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	r := New("", event.NopListener{})
	_, err := r.Add(millDevice())
	require.NoError(err)

	other := millDevice()
	other.UUID = "uuid-mill-2"
	other.Name = "mill-2"
	_, err = r.Add(other)
	assert.Error(err, "data item ids are unique across the whole model")
	assert.Len(r.Devices(), 1)
}

func TestDevicesSortedByName(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	r := New("", event.NopListener{})

	b := millDevice()
	b.UUID, b.Name, b.ID = "uuid-b", "bravo", "db"
	b.DataItems[0].ID = "availB"
	b.Components = nil
	require.NoError(addOK(r, b))

	a := millDevice()
	a.UUID, a.Name, a.ID = "uuid-a", "alpha", "da"
	a.DataItems[0].ID = "availA"
	a.Components = nil
	require.NoError(addOK(r, a))

	devices := r.Devices()
	assert.Equal("alpha", devices[0].Name)
	assert.Equal("bravo", devices[1].Name)
}

func addOK(r *Registry, d *model.Device) error {
	_, err := r.Add(d)
	return err
}

func TestPersistedIndexSurvivesRestart(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	dir := t.TempDir()

	r := New(dir, event.NopListener{})
	_, err := r.Add(millDevice())
	require.NoError(err)

	// A fresh registry with no devices still resolves the persisted name.
	recovered := New(dir, event.NopListener{})
	name, ok := recovered.DeviceName("uuid-mill-1")
	assert.True(ok)
	assert.Equal("mill-1", name)

	require.NoError(recovered.ResetIndex())
	again := New(dir, event.NopListener{})
	_, ok = again.DeviceName("uuid-mill-1")
	assert.False(ok)
}
