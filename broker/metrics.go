// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"

	"github.com/mtconnect-go/mtcagent/event"
)

// Names
const (
	ObservationsAcceptedCounter = "observations_accepted_total"
	ObservationsRejectedCounter = "observations_rejected_total"
	AssetsStoredCounter         = "assets_stored_total"
	AssetsRejectedCounter       = "assets_rejected_total"
	DevicesAddedCounter         = "devices_added_total"
	BufferEvictionsCounter      = "buffer_evictions_total"
	BufferFaultsCounter         = "buffer_faults_total"
	StreamsClosedCounter        = "streams_closed_total"
)

// Labels
const (
	CategoryLabel = "category"
	OutcomeLabel  = "outcome"
)

// Label Values
const (
	SuccessOutcome = "success"
	FailureOutcome = "failure"
)

// ProvideMetrics returns the metrics relevant to this package.
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: ObservationsAcceptedCounter,
				Help: "Counter for observations accepted into the buffer, by category.",
			},
			CategoryLabel,
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: ObservationsRejectedCounter,
				Help: "Counter for observations rejected by key resolution or validation.",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: AssetsStoredCounter,
				Help: "Counter for asset documents stored or replaced.",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: AssetsRejectedCounter,
				Help: "Counter for asset documents rejected by validation.",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: DevicesAddedCounter,
				Help: "Counter for device models registered or replaced.",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: BufferEvictionsCounter,
				Help: "Counter for retention sweeps that evicted the oldest records.",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: BufferFaultsCounter,
				Help: "Counter for durable read/write faults reported by the buffers.",
			},
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: StreamsClosedCounter,
				Help: "Counter for closed streaming connections and their outcomes.",
			},
			OutcomeLabel,
		),
	)
}

type Measures struct {
	fx.In
	ObservationsAccepted *prometheus.CounterVec `name:"observations_accepted_total"`
	ObservationsRejected prometheus.Counter     `name:"observations_rejected_total"`
	AssetsStored         prometheus.Counter     `name:"assets_stored_total"`
	AssetsRejected       prometheus.Counter     `name:"assets_rejected_total"`
	DevicesAdded         prometheus.Counter     `name:"devices_added_total"`
	BufferEvictions      prometheus.Counter     `name:"buffer_evictions_total"`
	BufferFaults         prometheus.Counter     `name:"buffer_faults_total"`
	StreamsClosed        *prometheus.CounterVec `name:"streams_closed_total"`
}

// MetricsListener translates core events into prometheus counters. Events
// it has no counter for fall through to the embedded no-op methods.
type MetricsListener struct {
	event.NopListener
	measures Measures
}

func NewMetricsListener(measures Measures) *MetricsListener {
	return &MetricsListener{measures: measures}
}

var _ event.Listener = (*MetricsListener)(nil)

func (m *MetricsListener) OnObservationAdded(e event.ObservationAdded) {
	m.measures.ObservationsAccepted.With(prometheus.Labels{CategoryLabel: e.Category}).Inc()
}

func (m *MetricsListener) OnInvalidObservation(event.InvalidObservation) {
	m.measures.ObservationsRejected.Inc()
}

func (m *MetricsListener) OnAssetAdded(event.AssetAdded) {
	m.measures.AssetsStored.Inc()
}

func (m *MetricsListener) OnInvalidAsset(event.InvalidAsset) {
	m.measures.AssetsRejected.Inc()
}

func (m *MetricsListener) OnDeviceAdded(event.DeviceAdded) {
	m.measures.DevicesAdded.Inc()
}

func (m *MetricsListener) OnRetentionCompleted(event.RetentionCompleted) {
	m.measures.BufferEvictions.Inc()
}

func (m *MetricsListener) OnBufferFault(event.BufferFault) {
	m.measures.BufferFaults.Inc()
}

func (m *MetricsListener) OnStreamClosed(e event.StreamClosed) {
	outcome := SuccessOutcome
	if e.Err != nil {
		outcome = FailureOutcome
	}
	m.measures.StreamsClosed.With(prometheus.Labels{OutcomeLabel: outcome}).Inc()
}
