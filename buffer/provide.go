// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/sequence"
)

// Config sizes the buffers and selects the durability mode.
type Config struct {
	// Size is the observation buffer capacity in records.
	Size int `validate:"gte=1"`

	// AssetSize is the asset buffer capacity in documents.
	AssetSize int `validate:"gte=1"`

	// Durable enables file-backed persistence under Directory.
	Durable bool

	// Directory holds agent state: the information record, observation
	// pages, and the asset snapshot.
	Directory string

	// PageSize is the number of records per durable page file. Must not
	// exceed Size so retention always has a sealed page to evict.
	PageSize int `validate:"gte=1,ltefield=Size"`

	// FlushInterval is the cadence of the background flush loop.
	FlushInterval time.Duration `validate:"gt=0"`
}

// DefaultConfig mirrors the stock MTConnect agent sizing.
func DefaultConfig() Config {
	return Config{
		Size:          131072,
		AssetSize:     1024,
		Directory:     "data",
		PageSize:      8192,
		FlushInterval: 10 * time.Second,
	}
}

type SetupIn struct {
	fx.In
	Config   Config
	Listener event.Listener
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

type BuffersOut struct {
	fx.Out
	Information  *sequence.InformationFile
	Observations *ObservationBuffer
	Assets       *AssetBuffer
	Index        *CurrentStateIndex
}

// Provide wires the buffers, the agent information record, and the
// background flush loop into the application container.
func Provide() fx.Option {
	return fx.Provide(SetupBuffers)
}

// SetupBuffers loads persisted state, rebuilds the current-state index from
// the replayed observation log, and binds the flush loop to the app
// lifecycle. Durable flushes run asynchronously relative to appends so
// ingestion latency is never coupled to disk I/O.
func SetupBuffers(in SetupIn) (BuffersOut, error) {
	info, err := sequence.LoadInformation(in.Config.Directory)
	if err != nil {
		return BuffersOut{}, err
	}

	if in.Config.Durable {
		in.Logger.Info("using durable observation buffer",
			zap.String("directory", in.Config.Directory),
			zap.Int("size", in.Config.Size),
			zap.Int("pageSize", in.Config.PageSize))
	} else {
		in.Logger.Info("using in-memory observation buffer",
			zap.Int("size", in.Config.Size))
	}

	index := NewCurrentStateIndex()
	observations, err := NewObservationBuffer(in.Config, info.Information().Sequence, index, in.Listener)
	if err != nil {
		return BuffersOut{}, err
	}
	assets, err := NewAssetBuffer(in.Config, in.Listener)
	if err != nil {
		return BuffersOut{}, err
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	flush := func() {
		observations.Flush()
		assets.Flush()
		if err := info.Checkpoint(observations.LastSequence()); err != nil {
			in.Listener.OnBufferFault(event.BufferFault{Path: in.Config.Directory, Err: err})
		}
	}
	in.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(stopped)
				ticker := time.NewTicker(in.Config.FlushInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						flush()
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			close(done)
			<-stopped
			flush()
			return nil
		},
	})

	return BuffersOut{
		Information:  info,
		Observations: observations,
		Assets:       assets,
		Index:        index,
	}, nil
}
