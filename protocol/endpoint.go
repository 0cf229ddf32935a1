// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol is the HTTP surface of the agent: go-kit endpoints and
// transport codecs for the probe, current, sample, and asset queries, the
// streaming variants, and the ingestion endpoints.
package protocol

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"

	"github.com/mtconnect-go/mtcagent/broker"
	"github.com/mtconnect-go/mtcagent/model"
)

// Broker is the agent surface the protocol layer consumes.
type Broker interface {
	GetDevicesResponseDocument(deviceKey string) (*model.DevicesDocument, error)
	GetCurrentResponseDocument(deviceKey string, at uint64) (*model.StreamsDocument, error)
	GetSampleResponseDocument(deviceKey string, from, to uint64, count int) (*model.StreamsDocument, error)
	GetAssetsResponseDocument(assetType, deviceKey string, includeRemoved bool, count int) (*model.AssetsDocument, error)
	GetAssetResponseDocument(assetID string) (*model.AssetsDocument, error)

	AddObservation(deviceKey string, in broker.ObservationInput) bool
	AddAsset(deviceKey string, asset model.Asset) bool
	RemoveAsset(assetID string, timestamp time.Time) bool
	RemoveAllAssets(assetType string, timestamp time.Time) int

	Header() model.Header
}

func newProbeEndpoint(b Broker) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*probeRequest)
		doc, err := b.GetDevicesResponseDocument(r.device)
		if err != nil {
			return nil, err
		}
		return &documentResponse{doc: doc, opts: r.opts}, nil
	}
}

func newCurrentEndpoint(b Broker) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*currentRequest)
		doc, err := b.GetCurrentResponseDocument(r.device, r.at)
		if err != nil {
			return nil, err
		}
		return &documentResponse{doc: doc, opts: r.opts}, nil
	}
}

func newSampleEndpoint(b Broker) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*sampleRequest)
		doc, err := b.GetSampleResponseDocument(r.device, r.from, r.to, r.count)
		if err != nil {
			return nil, err
		}
		return &documentResponse{doc: doc, opts: r.opts}, nil
	}
}

func newAssetsEndpoint(b Broker) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*assetsRequest)
		doc, err := b.GetAssetsResponseDocument(r.assetType, r.device, r.removed, r.count)
		if err != nil {
			return nil, err
		}
		return &documentResponse{doc: doc, opts: r.opts}, nil
	}
}

func newAssetEndpoint(b Broker) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*assetRequest)
		doc, err := b.GetAssetResponseDocument(r.assetID)
		if err != nil {
			return nil, err
		}
		return &documentResponse{doc: doc, opts: r.opts}, nil
	}
}

func newPutObservationEndpoint(b Broker) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*putObservationRequest)
		if !b.AddObservation(r.device, r.input) {
			return nil, &InvalidRequestError{Reason: "observation rejected"}
		}
		return &acceptedResponse{Accepted: 1}, nil
	}
}

func newPutAssetEndpoint(b Broker) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*putAssetRequest)
		if !b.AddAsset(r.device, r.asset) {
			return nil, &InvalidRequestError{Reason: "asset rejected"}
		}
		return &acceptedResponse{Accepted: 1}, nil
	}
}

func newDeleteAssetEndpoint(b Broker) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*deleteAssetRequest)
		if !b.RemoveAsset(r.assetID, time.Now().UTC()) {
			return nil, &InvalidRequestError{Reason: "asset not stored or already removed"}
		}
		return &acceptedResponse{Accepted: 1}, nil
	}
}

func newDeleteAllAssetsEndpoint(b Broker) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*deleteAllAssetsRequest)
		n := b.RemoveAllAssets(r.assetType, time.Now().UTC())
		return &acceptedResponse{Accepted: n}, nil
	}
}
