// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/mtconnect-go/mtcagent/broker"
	"github.com/mtconnect-go/mtcagent/buffer"
	"github.com/mtconnect-go/mtcagent/format"
	"github.com/mtconnect-go/mtcagent/model"
	"github.com/mtconnect-go/mtcagent/registry"
)

// request URL path keys
const (
	deviceVarKey   = "device"
	dataItemVarKey = "dataItem"
	assetIDVarKey  = "assetId"
)

// query parameter keys
const (
	formatParam    = "format"
	prettyParam    = "pretty"
	atParam        = "at"
	fromParam      = "from"
	toParam        = "to"
	countParam     = "count"
	removedParam   = "removed"
	typeParam      = "type"
	valueParam     = "value"
	timestampParam = "timestamp"
	intervalParam  = "interval"
	heartbeatParam = "heartbeat"
)

// InvalidRequestError reports a request the transport layer could not
// decode or the broker refused.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

func (e *InvalidRequestError) StatusCode() int {
	return http.StatusBadRequest
}

// queryOptions is the formatting selection common to every query.
type queryOptions struct {
	format string
	pretty bool
}

type probeRequest struct {
	device string
	opts   queryOptions
}

type currentRequest struct {
	device string
	at     uint64
	opts   queryOptions
}

type sampleRequest struct {
	device string
	from   uint64
	to     uint64
	count  int
	opts   queryOptions
}

type assetsRequest struct {
	assetType string
	device    string
	removed   bool
	count     int
	opts      queryOptions
}

type assetRequest struct {
	assetID string
	opts    queryOptions
}

type putObservationRequest struct {
	device string
	input  broker.ObservationInput
}

type putAssetRequest struct {
	device string
	asset  model.Asset
}

type deleteAssetRequest struct {
	assetID string
}

type deleteAllAssetsRequest struct {
	assetType string
}

// documentResponse pairs a response document with the formatting the
// request selected, so the encoder can render it without re-reading the
// request.
type documentResponse struct {
	doc  any
	opts queryOptions
}

// acceptedResponse acknowledges an ingestion request.
type acceptedResponse struct {
	Accepted int `json:"accepted"`
}

// transport owns the go-kit codecs. The format registry is consulted at
// decode time so an unknown format fails before the endpoint runs.
type transport struct {
	broker  Broker
	formats *format.Registry
}

func (t *transport) decodeOptions(r *http.Request) (queryOptions, error) {
	opts := queryOptions{
		format: r.URL.Query().Get(formatParam),
		pretty: r.URL.Query().Get(prettyParam) == "true",
	}
	if opts.format == "" {
		opts.format = acceptedFormat(t.formats, r.Header.Get("Accept"))
	}
	if _, err := t.formats.Lookup(opts.format); err != nil {
		return queryOptions{}, err
	}
	return opts, nil
}

// acceptedFormat maps an Accept header onto a registered formatter key.
// Wildcard and unmatched media types fall through to the default formatter.
func acceptedFormat(formats *format.Registry, accept string) string {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if f, ok := formats.LookupMediaType(mediaType); ok {
			return f.Key()
		}
	}
	return ""
}

func (t *transport) decodeProbeRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	opts, err := t.decodeOptions(r)
	if err != nil {
		return nil, err
	}
	return &probeRequest{device: mux.Vars(r)[deviceVarKey], opts: opts}, nil
}

func (t *transport) decodeCurrentRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	opts, err := t.decodeOptions(r)
	if err != nil {
		return nil, err
	}
	at, err := queryUint64(r, atParam)
	if err != nil {
		return nil, err
	}
	return &currentRequest{device: mux.Vars(r)[deviceVarKey], at: at, opts: opts}, nil
}

func (t *transport) decodeSampleRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	opts, err := t.decodeOptions(r)
	if err != nil {
		return nil, err
	}
	from, err := queryUint64(r, fromParam)
	if err != nil {
		return nil, err
	}
	to, err := queryUint64(r, toParam)
	if err != nil {
		return nil, err
	}
	count, err := queryCount(r, defaultSampleCount)
	if err != nil {
		return nil, err
	}
	return &sampleRequest{
		device: mux.Vars(r)[deviceVarKey],
		from:   from,
		to:     to,
		count:  count,
		opts:   opts,
	}, nil
}

func (t *transport) decodeAssetsRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	opts, err := t.decodeOptions(r)
	if err != nil {
		return nil, err
	}
	count, err := queryCount(r, 0)
	if err != nil {
		return nil, err
	}
	return &assetsRequest{
		assetType: r.URL.Query().Get(typeParam),
		device:    r.URL.Query().Get(deviceVarKey),
		removed:   r.URL.Query().Get(removedParam) == "true",
		count:     count,
		opts:      opts,
	}, nil
}

func (t *transport) decodeAssetRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	opts, err := t.decodeOptions(r)
	if err != nil {
		return nil, err
	}
	assetID, ok := mux.Vars(r)[assetIDVarKey]
	if !ok {
		return nil, &InvalidRequestError{Reason: "{assetId} URL path parameter missing"}
	}
	return &assetRequest{assetID: assetID, opts: opts}, nil
}

func (t *transport) decodePutObservationRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	vars := mux.Vars(r)
	dataItem, ok := vars[dataItemVarKey]
	if !ok {
		return nil, &InvalidRequestError{Reason: "{dataItem} URL path parameter missing"}
	}
	ts, err := queryTimestamp(r)
	if err != nil {
		return nil, err
	}

	q := r.URL.Query()
	input := broker.ObservationInput{
		DataItemKey: dataItem,
		Timestamp:   ts,
		Value: model.Value{
			Representation: model.RepresentationValue,
			Scalar:         q.Get(valueParam),
		},
		Condition: model.Condition{
			Level:          model.ConditionLevel(q.Get("level")),
			NativeCode:     q.Get("nativeCode"),
			NativeSeverity: q.Get("nativeSeverity"),
			Qualifier:      q.Get("qualifier"),
			Message:        q.Get("message"),
		},
	}
	return &putObservationRequest{device: vars[deviceVarKey], input: input}, nil
}

func (t *transport) decodePutAssetRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	assetID, ok := mux.Vars(r)[assetIDVarKey]
	if !ok {
		return nil, &InvalidRequestError{Reason: "{assetId} URL path parameter missing"}
	}
	ts, err := queryTimestamp(r)
	if err != nil {
		return nil, err
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &InvalidRequestError{Reason: "failed to read body"}
	}
	if len(content) == 0 {
		return nil, &InvalidRequestError{Reason: "asset body must not be empty"}
	}
	return &putAssetRequest{
		device: r.URL.Query().Get(deviceVarKey),
		asset: model.Asset{
			AssetID:   assetID,
			Type:      r.URL.Query().Get(typeParam),
			Timestamp: ts,
			Content:   content,
		},
	}, nil
}

func (t *transport) decodeDeleteAssetRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	assetID, ok := mux.Vars(r)[assetIDVarKey]
	if !ok {
		return nil, &InvalidRequestError{Reason: "{assetId} URL path parameter missing"}
	}
	return &deleteAssetRequest{assetID: assetID}, nil
}

func (t *transport) decodeDeleteAllAssetsRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	return &deleteAllAssetsRequest{assetType: r.URL.Query().Get(typeParam)}, nil
}

func (t *transport) encodeDocumentResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	resp, ok := response.(*documentResponse)
	if !ok {
		return errors.New("casting error due to middleware wiring mistake")
	}
	formatter, err := t.formats.Lookup(resp.opts.format)
	if err != nil {
		return err
	}
	payload, err := formatter.Format(resp.doc, format.Options{Pretty: resp.opts.pretty})
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", formatter.MediaType())
	_, err = w.Write(payload)
	return err
}

func encodeAcceptedResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	resp, ok := response.(*acceptedResponse)
	if !ok {
		return errors.New("casting error due to middleware wiring mistake")
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

// encodeError renders protocol failures as MTConnect error documents in the
// request's selected format, falling back to the default format when the
// selection itself was the problem.
func (t *transport) encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	doc := &model.ErrorDocument{
		Header: t.broker.Header(),
		Errors: []model.Error{{Code: errorCode(err), Message: err.Error()}},
	}

	key, _ := ctx.Value(formatContextKey{}).(string)
	formatter, lookupErr := t.formats.Lookup(key)
	if lookupErr != nil {
		formatter, _ = t.formats.Lookup("")
	}

	payload, fmtErr := formatter.Format(doc, format.Options{})
	if fmtErr != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", formatter.MediaType())
	w.WriteHeader(statusCode(err))
	w.Write(payload)
}

// formatContextKey carries the request's format selection into the error
// encoder, which otherwise has no access to the request.
type formatContextKey struct{}

func captureFormat(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, formatContextKey{}, r.URL.Query().Get(formatParam))
}

func statusCode(err error) int {
	var unknownFormat *format.UnknownFormatError
	if errors.As(err, &unknownFormat) {
		return http.StatusBadRequest
	}
	if sc, ok := err.(kithttp.StatusCoder); ok {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	var (
		rangeErr      *buffer.RangeError
		assetNotFound *buffer.AssetNotFoundError
		notFound      *registry.NotFoundError
		unknownFormat *format.UnknownFormatError
		invalid       *InvalidRequestError
	)
	switch {
	case errors.As(err, &rangeErr):
		return model.ErrorCodeOutOfRange
	case errors.As(err, &assetNotFound):
		return model.ErrorCodeAssetNotFound
	case errors.As(err, &notFound):
		if notFound.Kind == "device" {
			return model.ErrorCodeNoDevice
		}
		return model.ErrorCodeInvalidRequest
	case errors.As(err, &unknownFormat), errors.As(err, &invalid):
		return model.ErrorCodeInvalidRequest
	default:
		return model.ErrorCodeInternal
	}
}

func queryUint64(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := cast.ToUint64E(raw)
	if err != nil {
		return 0, &InvalidRequestError{Reason: fmt.Sprintf("%s must be a non-negative integer", name)}
	}
	return v, nil
}

func queryCount(r *http.Request, defaultCount int) (int, error) {
	raw := r.URL.Query().Get(countParam)
	if raw == "" {
		return defaultCount, nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil || v < 0 {
		return 0, &InvalidRequestError{Reason: "count must be a non-negative integer"}
	}
	return v, nil
}

func queryTimestamp(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get(timestampParam)
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, &InvalidRequestError{Reason: "timestamp must be RFC 3339"}
	}
	return ts, nil
}
