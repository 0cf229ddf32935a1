// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mtconnect-go/mtcagent/buffer"
	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/registry"
	"github.com/mtconnect-go/mtcagent/sequence"
)

type ListenerIn struct {
	fx.In
	Measures Measures
	Logger   *zap.Logger
}

type AgentIn struct {
	fx.In
	Registry     *registry.Registry
	Observations *buffer.ObservationBuffer
	Assets       *buffer.AssetBuffer
	Index        *buffer.CurrentStateIndex
	Information  *sequence.InformationFile
	Listener     event.Listener
	Options      Options
}

// Provide wires the event listener, the device registry, and the agent
// orchestrator into the application container.
func Provide() fx.Option {
	return fx.Options(
		ProvideMetrics(),
		fx.Provide(
			SetupListener,
			SetupRegistry,
			SetupAgent,
		),
	)
}

// SetupListener fans core events out to the structured log and the metrics
// counters.
func SetupListener(in ListenerIn) event.Listener {
	return event.Multi{
		event.ZapListener{Logger: in.Logger},
		NewMetricsListener(in.Measures),
	}
}

// SetupRegistry builds the device registry. The name index is persisted
// only when the buffers are durable; a memory-only agent has nothing to
// recover observations for.
func SetupRegistry(cfg buffer.Config, listener event.Listener) *registry.Registry {
	dir := ""
	if cfg.Durable {
		dir = cfg.Directory
	}
	return registry.New(dir, listener)
}

// SetupAgent builds the agent orchestrator.
func SetupAgent(in AgentIn) *Agent {
	return New(
		in.Registry,
		in.Observations,
		in.Assets,
		in.Index,
		in.Information,
		in.Listener,
		in.Options,
	)
}
