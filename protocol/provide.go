// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"go.uber.org/fx"

	"github.com/mtconnect-go/mtcagent/broker"
	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/format"
)

type transportIn struct {
	fx.In
	Agent   *broker.Agent
	Formats *format.Registry
}

type streamerIn struct {
	fx.In
	Agent    *broker.Agent
	Formats  *format.Registry
	Config   StreamConfig
	Listener event.Listener
}

// ProvideHandlers fetches all dependencies and builds the named HTTP
// handlers the router mounts.
func ProvideHandlers() fx.Option {
	return fx.Provide(
		newFormatRegistry,
		newTransport,
		newStreamer,

		fx.Annotated{
			Name:   "probe_handler",
			Target: newProbeHandler,
		},
		fx.Annotated{
			Name:   "current_handler",
			Target: newCurrentHandler,
		},
		fx.Annotated{
			Name:   "sample_handler",
			Target: newSampleHandler,
		},
		fx.Annotated{
			Name:   "assets_handler",
			Target: newAssetsHandler,
		},
		fx.Annotated{
			Name:   "asset_handler",
			Target: newAssetHandler,
		},
		fx.Annotated{
			Name:   "observation_put_handler",
			Target: newPutObservationHandler,
		},
		fx.Annotated{
			Name:   "asset_put_handler",
			Target: newPutAssetHandler,
		},
		fx.Annotated{
			Name:   "asset_delete_handler",
			Target: newDeleteAssetHandler,
		},
		fx.Annotated{
			Name:   "assets_delete_handler",
			Target: newDeleteAllAssetsHandler,
		},
	)
}

// newFormatRegistry registers the wire encodings. XML first: it is the
// MTConnect default when a request names no format.
func newFormatRegistry() *format.Registry {
	return format.NewRegistry(format.XML{}, format.JSON{})
}

func newTransport(in transportIn) *transport {
	return &transport{broker: in.Agent, formats: in.Formats}
}

func newStreamer(in streamerIn) *streamer {
	return &streamer{
		broker:   in.Agent,
		formats:  in.Formats,
		config:   in.Config,
		listener: in.Listener,
	}
}
