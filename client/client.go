// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is a Go consumer of the agent's HTTP surface: one-shot
// probe, current, sample, and asset queries, plus a polling listener that
// follows the sequence space and delivers new observations on an interval.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/mtconnect-go/mtcagent/model"
)

var (
	ErrAddressEmpty = errors.New("agent address is required")

	errNonSuccessResponse = errors.New("agent responded with a non-success status code")
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
)

const (
	errWrappedFmt    = "%w: %s"
	errStatusCodeFmt = "%w: received status %v"
)

// Config contains config data for the client that will be used to make
// requests to an agent.
type Config struct {
	// Address is the agent URL (i.e. http://example-agent:5000).
	Address string

	// HTTPClient refers to the client that will be used to send requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Client makes requests to one agent. Responses are requested and decoded
// as JSON.
type Client struct {
	client    *http.Client
	baseURL   string
	logger    *zap.Logger
	getLogger func(context.Context) *zap.Logger
}

// SampleQuery carries the optional parameters of a sample request.
type SampleQuery struct {
	Device string
	From   uint64
	To     uint64
	Count  int
}

// AssetsQuery carries the optional parameters of an assets listing.
type AssetsQuery struct {
	Type           string
	Device         string
	IncludeRemoved bool
	Count          int
}

// New creates a Client for the agent at config.Address.
func New(config Config, getLogger func(context.Context) *zap.Logger) (*Client, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	if getLogger == nil {
		getLogger = sallust.Get
	}
	return &Client{
		client:    config.HTTPClient,
		baseURL:   config.Address,
		logger:    config.Logger,
		getLogger: getLogger,
	}, nil
}

// Probe fetches the device topology. An empty device fetches every device.
func (c *Client) Probe(ctx context.Context, device string) (*model.DevicesDocument, error) {
	path := "/probe"
	if device != "" {
		path = "/" + url.PathEscape(device) + "/probe"
	}
	var doc model.DevicesDocument
	if err := c.get(ctx, path, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Current fetches the latest state snapshot. at == 0 means the live state.
func (c *Client) Current(ctx context.Context, device string, at uint64) (*model.StreamsDocument, error) {
	path := "/current"
	if device != "" {
		path = "/" + url.PathEscape(device) + "/current"
	}
	params := url.Values{}
	if at > 0 {
		params.Set("at", strconv.FormatUint(at, 10))
	}
	var doc model.StreamsDocument
	if err := c.get(ctx, path, params, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Sample fetches observation history by sequence range.
func (c *Client) Sample(ctx context.Context, query SampleQuery) (*model.StreamsDocument, error) {
	path := "/sample"
	if query.Device != "" {
		path = "/" + url.PathEscape(query.Device) + "/sample"
	}
	params := url.Values{}
	if query.From > 0 {
		params.Set("from", strconv.FormatUint(query.From, 10))
	}
	if query.To > 0 {
		params.Set("to", strconv.FormatUint(query.To, 10))
	}
	if query.Count > 0 {
		params.Set("count", strconv.Itoa(query.Count))
	}
	var doc model.StreamsDocument
	if err := c.get(ctx, path, params, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Assets fetches stored asset documents, most recent first.
func (c *Client) Assets(ctx context.Context, query AssetsQuery) (*model.AssetsDocument, error) {
	params := url.Values{}
	if query.Type != "" {
		params.Set("type", query.Type)
	}
	if query.Device != "" {
		params.Set("device", query.Device)
	}
	if query.IncludeRemoved {
		params.Set("removed", "true")
	}
	if query.Count > 0 {
		params.Set("count", strconv.Itoa(query.Count))
	}
	var doc model.AssetsDocument
	if err := c.get(ctx, "/assets", params, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Asset fetches one asset document by ID.
func (c *Client) Asset(ctx context.Context, assetID string) (*model.AssetsDocument, error) {
	var doc model.AssetsDocument
	if err := c.get(ctx, "/asset/"+url.PathEscape(assetID), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("format", "json")

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	resp, err := c.client.Do(r)
	if err != nil {
		return fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		l := c.getLogger(ctx)
		if l == nil {
			l = c.logger
		}
		l.Error("agent responded with non-200 response",
			zap.String("path", path), zap.Int("code", resp.StatusCode))
		return fmt.Errorf(errStatusCodeFmt, errNonSuccessResponse, resp.StatusCode)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf(errWrappedFmt, errJSONUnmarshal, err.Error())
	}
	return nil
}

func validateConfig(config *Config) error {
	if config.Address == "" {
		return ErrAddressEmpty
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return nil
}
