// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mtconnect-go/mtcagent/protocol"
)

const (
	metricsPath = "/metrics"
	healthPath  = "/health"
)

type PrimaryHandlersIn struct {
	fx.In
	Probe           protocol.Handler `name:"probe_handler"`
	Current         protocol.Handler `name:"current_handler"`
	Sample          protocol.Handler `name:"sample_handler"`
	Assets          protocol.Handler `name:"assets_handler"`
	Asset           protocol.Handler `name:"asset_handler"`
	PutObservation  protocol.Handler `name:"observation_put_handler"`
	PutAsset        protocol.Handler `name:"asset_put_handler"`
	DeleteAsset     protocol.Handler `name:"asset_delete_handler"`
	DeleteAllAssets protocol.Handler `name:"assets_delete_handler"`
}

type PrimaryRoutesIn struct {
	fx.In
	LC       fx.Lifecycle
	Logger   *zap.Logger
	Servers  ServersConfig
	Metrics  touchhttp.ServerInstrumenter `name:"servers.primary.metrics"`
	Handlers PrimaryHandlersIn
}

type HealthRoutesIn struct {
	fx.In
	LC      fx.Lifecycle
	Logger  *zap.Logger
	Servers ServersConfig
	Metrics touchhttp.ServerInstrumenter `name:"servers.health.metrics"`
}

type MetricsRoutesIn struct {
	fx.In
	LC      fx.Lifecycle
	Logger  *zap.Logger
	Servers ServersConfig
	Handler http.Handler `name:"metrics_handler"`
}

// provideServerMetrics builds the per-server HTTP instrumenters.
func provideServerMetrics() fx.Option {
	return fx.Provide(
		fx.Annotated{
			Name: "servers.primary.metrics",
			Target: touchhttp.ServerBundle{}.NewInstrumenter(
				touchhttp.ServerLabel, "primary",
			),
		},
		fx.Annotated{
			Name: "servers.health.metrics",
			Target: touchhttp.ServerBundle{}.NewInstrumenter(
				touchhttp.ServerLabel, "health",
			),
		},
	)
}

// BuildPrimaryRoutes mounts the MTConnect protocol surface. Fixed paths are
// registered before the {device}-prefixed variants so names like "probe"
// cannot shadow them.
func BuildPrimaryRoutes(in PrimaryRoutesIn) {
	router := mux.NewRouter()

	router.Handle("/probe", in.Handlers.Probe).Methods(http.MethodGet)
	router.Handle("/current", in.Handlers.Current).Methods(http.MethodGet)
	router.Handle("/sample", in.Handlers.Sample).Methods(http.MethodGet)
	router.Handle("/assets", in.Handlers.Assets).Methods(http.MethodGet)
	router.Handle("/assets", in.Handlers.DeleteAllAssets).Methods(http.MethodDelete)
	router.Handle("/asset/{assetId}", in.Handlers.Asset).Methods(http.MethodGet)
	router.Handle("/asset/{assetId}", in.Handlers.PutAsset).Methods(http.MethodPut, http.MethodPost)
	router.Handle("/asset/{assetId}", in.Handlers.DeleteAsset).Methods(http.MethodDelete)
	router.Handle("/observation/{device}/{dataItem}", in.Handlers.PutObservation).Methods(http.MethodPut, http.MethodPost)
	router.Handle("/{device}/probe", in.Handlers.Probe).Methods(http.MethodGet)
	router.Handle("/{device}/current", in.Handlers.Current).Methods(http.MethodGet)
	router.Handle("/{device}/sample", in.Handlers.Sample).Methods(http.MethodGet)
	router.Handle("/{device}", in.Handlers.Probe).Methods(http.MethodGet)

	chain := alice.New(recovery.Middleware(recovery.WithStatusCode(555)))
	startServer(in.LC, in.Logger, "primary", in.Servers.Primary, in.Metrics.Then(chain.Then(router)))
}

// BuildMetricsRoutes mounts the prometheus scrape endpoint.
func BuildMetricsRoutes(in MetricsRoutesIn) {
	router := mux.NewRouter()
	router.Handle(metricsPath, in.Handler).Methods(http.MethodGet)
	startServer(in.LC, in.Logger, "metrics", in.Servers.Metrics, router)
}

// BuildHealthRoutes mounts the liveness probe.
func BuildHealthRoutes(in HealthRoutesIn) {
	router := mux.NewRouter()
	router.Handle(healthPath, httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	startServer(in.LC, in.Logger, "health", in.Servers.Health, in.Metrics.Then(router))
}
