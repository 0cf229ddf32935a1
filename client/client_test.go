// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtconnect-go/mtcagent/model"
)

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		Name           string
		Input          Config
		ExpectedErr    error
		ExpectedClient *http.Client
	}{
		{
			Name:        "no address",
			Input:       Config{},
			ExpectedErr: ErrAddressEmpty,
		},
		{
			Name:           "defaults applied",
			Input:          Config{Address: "http://agent:5000"},
			ExpectedClient: http.DefaultClient,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			assert := assert.New(t)
			c, err := New(testCase.Input, nil)
			if testCase.ExpectedErr != nil {
				assert.ErrorIs(err, testCase.ExpectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(testCase.ExpectedClient, c.client)
			assert.NotNil(c.logger)
		})
	}
}

func newAgentStub(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	c, err := New(Config{Address: server.URL}, nil)
	require.NoError(t, err)
	return c
}

func TestProbe(t *testing.T) {
	assert := assert.New(t)
	c := newAgentStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/mill-1/probe", r.URL.Path)
		assert.Equal("json", r.URL.Query().Get("format"), "responses are always requested as json")
		json.NewEncoder(w).Encode(model.DevicesDocument{
			Header:  model.Header{InstanceID: 42},
			Devices: []model.Device{{ID: "d1", Name: "mill-1", UUID: "u1"}},
		})
	})

	doc, err := c.Probe(context.Background(), "mill-1")
	require.NoError(t, err)
	assert.Equal(int64(42), doc.Header.InstanceID)
	assert.Len(doc.Devices, 1)
}

func TestCurrent(t *testing.T) {
	assert := assert.New(t)
	c := newAgentStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/current", r.URL.Path)
		assert.Equal("77", r.URL.Query().Get("at"))
		json.NewEncoder(w).Encode(model.StreamsDocument{Header: model.Header{NextSequence: 78}})
	})

	doc, err := c.Current(context.Background(), "", 77)
	require.NoError(t, err)
	assert.Equal(uint64(78), doc.Header.NextSequence)
}

func TestSample(t *testing.T) {
	assert := assert.New(t)
	c := newAgentStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/mill-1/sample", r.URL.Path)
		q := r.URL.Query()
		assert.Equal("5", q.Get("from"))
		assert.Equal("9", q.Get("to"))
		assert.Equal("3", q.Get("count"))
		json.NewEncoder(w).Encode(model.StreamsDocument{
			Streams: []model.DeviceStream{{
				Name:         "mill-1",
				Observations: []model.Observation{{Sequence: 5}, {Sequence: 6}},
			}},
		})
	})

	doc, err := c.Sample(context.Background(), SampleQuery{Device: "mill-1", From: 5, To: 9, Count: 3})
	require.NoError(t, err)
	assert.Equal(2, doc.ObservationCount())
}

func TestAssets(t *testing.T) {
	assert := assert.New(t)
	c := newAgentStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/assets", r.URL.Path)
		q := r.URL.Query()
		assert.Equal("CuttingTool", q.Get("type"))
		assert.Equal("true", q.Get("removed"))
		json.NewEncoder(w).Encode(model.AssetsDocument{
			Assets: []model.Asset{{AssetID: "T1", Type: "CuttingTool"}},
		})
	})

	doc, err := c.Assets(context.Background(), AssetsQuery{Type: "CuttingTool", IncludeRemoved: true})
	require.NoError(t, err)
	assert.Len(doc.Assets, 1)
}

func TestAsset(t *testing.T) {
	assert := assert.New(t)
	c := newAgentStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/asset/T1", r.URL.Path)
		json.NewEncoder(w).Encode(model.AssetsDocument{Assets: []model.Asset{{AssetID: "T1"}}})
	})

	doc, err := c.Asset(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal("T1", doc.Assets[0].AssetID)
}

func TestNonSuccessResponse(t *testing.T) {
	assert := assert.New(t)
	c := newAgentStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Probe(context.Background(), "nope")
	assert.ErrorIs(err, errNonSuccessResponse)
}

func TestBadResponsePayload(t *testing.T) {
	assert := assert.New(t)
	c := newAgentStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})

	_, err := c.Probe(context.Background(), "")
	assert.ErrorIs(err, errJSONUnmarshal)
}

func TestRequestFailure(t *testing.T) {
	assert := assert.New(t)
	c, err := New(Config{Address: "http://127.0.0.1:0"}, nil)
	require.NoError(t, err)

	_, err = c.Probe(context.Background(), "")
	assert.ErrorIs(err, errDoRequestFailure)
}
