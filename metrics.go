// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

type metricsHandlerIn struct {
	fx.In
	Gatherer prometheus.Gatherer
}

type metricsHandlerOut struct {
	fx.Out
	Handler http.Handler `name:"metrics_handler"`
}

// newMetricsHandler exposes the touchstone-managed registry for scraping.
func newMetricsHandler(in metricsHandlerIn) metricsHandlerOut {
	return metricsHandlerOut{
		Handler: promhttp.HandlerFor(in.Gatherer, promhttp.HandlerOpts{}),
	}
}
