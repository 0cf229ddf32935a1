// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
)

// defaultSampleCount bounds a sample response when the request names no
// count, matching the stock agent default.
const defaultSampleCount = 100

type Handler http.Handler

func newProbeHandler(t *transport) Handler {
	return kithttp.NewServer(
		newProbeEndpoint(t.broker),
		t.decodeProbeRequest,
		t.encodeDocumentResponse,
		kithttp.ServerBefore(captureFormat),
		kithttp.ServerErrorEncoder(t.encodeError),
	)
}

// newCurrentHandler answers current requests, handing connections with an
// interval parameter to the streaming loop instead of the one-shot endpoint.
func newCurrentHandler(t *transport, s *streamer) Handler {
	oneShot := kithttp.NewServer(
		newCurrentEndpoint(t.broker),
		t.decodeCurrentRequest,
		t.encodeDocumentResponse,
		kithttp.ServerBefore(captureFormat),
		kithttp.ServerErrorEncoder(t.encodeError),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has(intervalParam) {
			s.serveCurrent(w, r)
			return
		}
		oneShot.ServeHTTP(w, r)
	})
}

// newSampleHandler answers sample requests, with the same streaming
// dispatch as current.
func newSampleHandler(t *transport, s *streamer) Handler {
	oneShot := kithttp.NewServer(
		newSampleEndpoint(t.broker),
		t.decodeSampleRequest,
		t.encodeDocumentResponse,
		kithttp.ServerBefore(captureFormat),
		kithttp.ServerErrorEncoder(t.encodeError),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has(intervalParam) {
			s.serveSample(w, r)
			return
		}
		oneShot.ServeHTTP(w, r)
	})
}

func newAssetsHandler(t *transport) Handler {
	return kithttp.NewServer(
		newAssetsEndpoint(t.broker),
		t.decodeAssetsRequest,
		t.encodeDocumentResponse,
		kithttp.ServerBefore(captureFormat),
		kithttp.ServerErrorEncoder(t.encodeError),
	)
}

func newAssetHandler(t *transport) Handler {
	return kithttp.NewServer(
		newAssetEndpoint(t.broker),
		t.decodeAssetRequest,
		t.encodeDocumentResponse,
		kithttp.ServerBefore(captureFormat),
		kithttp.ServerErrorEncoder(t.encodeError),
	)
}

func newPutObservationHandler(t *transport) Handler {
	return kithttp.NewServer(
		newPutObservationEndpoint(t.broker),
		t.decodePutObservationRequest,
		encodeAcceptedResponse,
		kithttp.ServerBefore(captureFormat),
		kithttp.ServerErrorEncoder(t.encodeError),
	)
}

func newPutAssetHandler(t *transport) Handler {
	return kithttp.NewServer(
		newPutAssetEndpoint(t.broker),
		t.decodePutAssetRequest,
		encodeAcceptedResponse,
		kithttp.ServerBefore(captureFormat),
		kithttp.ServerErrorEncoder(t.encodeError),
	)
}

func newDeleteAssetHandler(t *transport) Handler {
	return kithttp.NewServer(
		newDeleteAssetEndpoint(t.broker),
		t.decodeDeleteAssetRequest,
		encodeAcceptedResponse,
		kithttp.ServerBefore(captureFormat),
		kithttp.ServerErrorEncoder(t.encodeError),
	)
}

func newDeleteAllAssetsHandler(t *transport) Handler {
	return kithttp.NewServer(
		newDeleteAllAssetsEndpoint(t.broker),
		t.decodeDeleteAllAssetsRequest,
		encodeAcceptedResponse,
		kithttp.ServerBefore(captureFormat),
		kithttp.ServerErrorEncoder(t.encodeError),
	)
}
