// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream implements the long-poll delivery loop behind streaming
// current and sample requests: interval polling, heartbeats on idle
// connections, and multipart chunk framing.
package stream

import (
	"context"
	"time"

	"github.com/mtconnect-go/mtcagent/event"
)

// Chunk is one formatted payload produced by a poll. Empty marks a poll
// that found no new data; the payload is still valid and is what a
// heartbeat emits.
type Chunk struct {
	Payload      []byte
	ContentType  string
	NextSequence uint64
	Empty        bool
}

// Poller produces the next chunk for a stream. from is the first sequence
// the client has not seen yet; the returned chunk's NextSequence becomes
// the from of the following poll. A poller for a current stream ignores
// from and snapshots every tick.
type Poller func(ctx context.Context, from uint64) (Chunk, error)

// Sink receives framed chunks. Writes must be synchronous: a blocked or
// failed write is how the engine learns the client is gone.
type Sink interface {
	WriteChunk(payload []byte, contentType string) error
}

// Engine drives one open streaming connection. Each connection owns one
// Engine; no state is shared between streams.
type Engine struct {
	interval  time.Duration
	heartbeat time.Duration
	poll      Poller
	sink      Sink
	listener  event.Listener
}

func NewEngine(interval, heartbeat time.Duration, poll Poller, sink Sink, listener event.Listener) *Engine {
	if listener == nil {
		listener = event.NopListener{}
	}
	return &Engine{
		interval:  interval,
		heartbeat: heartbeat,
		poll:      poll,
		sink:      sink,
		listener:  listener,
	}
}

// Run polls until ctx is cancelled or the sink fails, emitting a chunk
// whenever a poll finds new data and a heartbeat when the connection has
// been idle for the heartbeat duration. Cancellation is also observed
// during the inter-tick delay, so stop latency is bounded by one interval.
// Delivery is at most once per tick: a missed tick is recovered by the next
// poll's sequence range, never replayed.
//
// The returned error is nil on cancellation; a poll or sink failure is
// returned and also reported through the listener.
func (e *Engine) Run(ctx context.Context, from uint64) error {
	var (
		start    = time.Now()
		chunks   uint64
		lastEmit = time.Now()
		err      error
	)
	defer func() {
		e.listener.OnStreamClosed(event.StreamClosed{
			Duration: time.Since(start),
			Chunks:   chunks,
			Err:      err,
		})
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		var chunk Chunk
		chunk, err = e.poll(ctx, from)
		if err != nil {
			return err
		}

		if chunk.Empty && time.Since(lastEmit) < e.heartbeat {
			continue
		}
		if err = e.sink.WriteChunk(chunk.Payload, chunk.ContentType); err != nil {
			return err
		}
		chunks++
		lastEmit = time.Now()
		if !chunk.Empty {
			from = chunk.NextSequence
		}
	}
}
