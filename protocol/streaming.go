// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/format"
	"github.com/mtconnect-go/mtcagent/stream"
)

// StreamConfig bounds the streaming parameters clients may request.
type StreamConfig struct {
	// MinInterval floors the polling interval so a client cannot turn the
	// agent into a busy loop.
	MinInterval time.Duration

	// DefaultHeartbeat is used when a streaming request names no heartbeat.
	DefaultHeartbeat time.Duration
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		MinInterval:      10 * time.Millisecond,
		DefaultHeartbeat: 10 * time.Second,
	}
}

// streamer serves the interval variants of current and sample. Each
// connection runs its own delivery engine on the request goroutine until
// the client disconnects or the write path fails.
type streamer struct {
	broker   Broker
	formats  *format.Registry
	config   StreamConfig
	listener event.Listener
}

type streamParams struct {
	device    string
	interval  time.Duration
	heartbeat time.Duration
	from      uint64
	count     int
	formatter format.Formatter
	opts      format.Options
}

func (s *streamer) decodeParams(r *http.Request) (streamParams, error) {
	q := r.URL.Query()

	interval, err := queryMillis(r, intervalParam, 0)
	if err != nil {
		return streamParams{}, err
	}
	if interval <= 0 {
		return streamParams{}, &InvalidRequestError{Reason: "interval must be a positive number of milliseconds"}
	}
	if interval < s.config.MinInterval {
		interval = s.config.MinInterval
	}

	heartbeat, err := queryMillis(r, heartbeatParam, s.config.DefaultHeartbeat)
	if err != nil {
		return streamParams{}, err
	}
	if heartbeat <= 0 {
		return streamParams{}, &InvalidRequestError{Reason: "heartbeat must be a positive number of milliseconds"}
	}

	from, err := queryUint64(r, fromParam)
	if err != nil {
		return streamParams{}, err
	}
	count, err := queryCount(r, defaultSampleCount)
	if err != nil {
		return streamParams{}, err
	}

	formatter, err := s.formats.Lookup(q.Get(formatParam))
	if err != nil {
		return streamParams{}, err
	}

	return streamParams{
		device:    mux.Vars(r)[deviceVarKey],
		interval:  interval,
		heartbeat: heartbeat,
		from:      from,
		count:     count,
		formatter: formatter,
		opts:      format.Options{Pretty: q.Get(prettyParam) == "true"},
	}, nil
}

// serveSample streams new observations as they arrive, advancing through
// the sequence space chunk by chunk.
func (s *streamer) serveSample(w http.ResponseWriter, r *http.Request) {
	params, err := s.decodeParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	poll := func(ctx context.Context, from uint64) (stream.Chunk, error) {
		doc, err := s.broker.GetSampleResponseDocument(params.device, from, 0, params.count)
		if err != nil {
			return stream.Chunk{}, err
		}
		payload, err := params.formatter.Format(doc, params.opts)
		if err != nil {
			return stream.Chunk{}, err
		}
		return stream.Chunk{
			Payload:      payload,
			ContentType:  params.formatter.MediaType(),
			NextSequence: doc.Header.NextSequence,
			Empty:        doc.ObservationCount() == 0,
		}, nil
	}

	s.run(w, r, poll, params.interval, params.heartbeat, params.from)
}

// serveCurrent streams a state snapshot every tick. Snapshots always count
// as data, so the heartbeat never fires for a current stream.
func (s *streamer) serveCurrent(w http.ResponseWriter, r *http.Request) {
	params, err := s.decodeParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	poll := func(ctx context.Context, from uint64) (stream.Chunk, error) {
		doc, err := s.broker.GetCurrentResponseDocument(params.device, 0)
		if err != nil {
			return stream.Chunk{}, err
		}
		payload, err := params.formatter.Format(doc, params.opts)
		if err != nil {
			return stream.Chunk{}, err
		}
		return stream.Chunk{
			Payload:     payload,
			ContentType: params.formatter.MediaType(),
		}, nil
	}

	s.run(w, r, poll, params.interval, params.heartbeat, 0)
}

func (s *streamer) run(w http.ResponseWriter, r *http.Request, poll stream.Poller, interval, heartbeat time.Duration, from uint64) {
	sink := stream.NewMultipartSink(w)
	engine := stream.NewEngine(interval, heartbeat, poll, sink, s.listener)

	// Errors past this point have already been reported through the
	// listener; the multipart response has no clean way to carry them.
	_ = engine.Run(r.Context(), from)
}

// writeError reports a failure detected before the stream started, while a
// conventional response is still possible.
func (s *streamer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	t := &transport{broker: s.broker, formats: s.formats}
	t.encodeError(captureFormat(r.Context(), r), err, w)
}

func queryMillis(r *http.Request, name string, defaultValue time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	ms, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, &InvalidRequestError{Reason: fmt.Sprintf("%s must be a number of milliseconds", name)}
	}
	return time.Duration(ms) * time.Millisecond, nil
}
