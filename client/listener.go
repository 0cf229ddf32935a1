// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mtconnect-go/mtcagent/model"
)

// Errors that can be returned by this package. Since some of these errors
// are returned wrapped, it is safest to use errors.Is() to check for them.
var (
	ErrListenerNotStopped = errors.New("listener is either running or starting")
	ErrListenerNotRunning = errors.New("listener is either stopped or stopping")
	ErrNoListenerProvided = errors.New("no listener provided")
	ErrNoSamplerProvided  = errors.New("no sampler provided")
	ErrNilMeasures        = errors.New("measures cannot be nil")
)

// listening states
const (
	stopped int32 = iota
	running
	transitioning
)

const defaultPullInterval = time.Second * 5

// Listener receives batches of new observations as the poller advances
// through the agent's sequence space.
type Listener interface {
	Update(observations []model.Observation)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func([]model.Observation)

func (f ListenerFunc) Update(observations []model.Observation) {
	f(observations)
}

// Sampler is the read surface the poller consumes, satisfied by *Client.
type Sampler interface {
	Sample(ctx context.Context, query SampleQuery) (*model.StreamsDocument, error)
}

// ListenerClientConfig contains config data to enable polling for new
// observations.
type ListenerClientConfig struct {
	// Listener receives each batch of new observations.
	Listener Listener

	// Device restricts polling to one device.
	// (Optional). By default all devices are followed.
	Device string

	// PullInterval is how often the listener polls for updates.
	// (Optional). Defaults to 5 seconds.
	PullInterval time.Duration

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// ListenerClient polls an agent's sample surface on an interval, tracking
// the next sequence between polls so each observation is delivered once. A
// restarted agent is detected by its new instance ID and the cursor resets.
type ListenerClient struct {
	observer *observerConfig
	logger   *zap.Logger
	sampler  Sampler

	device     string
	next       uint64
	instanceID int64
}

type observerConfig struct {
	listener     Listener
	ticker       *time.Ticker
	pullInterval time.Duration
	measures     *Measures
	shutdown     chan struct{}
	state        int32
}

func NewListenerClient(config ListenerClientConfig, measures *Measures, sampler Sampler) (*ListenerClient, error) {
	if err := validateListenerConfig(&config); err != nil {
		return nil, err
	}
	if measures == nil {
		return nil, ErrNilMeasures
	}
	if sampler == nil {
		return nil, ErrNoSamplerProvided
	}
	return &ListenerClient{
		observer: &observerConfig{
			listener:     config.Listener,
			ticker:       time.NewTicker(config.PullInterval),
			pullInterval: config.PullInterval,
			measures:     measures,
			shutdown:     make(chan struct{}),
		},
		logger:  config.Logger,
		sampler: sampler,
		device:  config.Device,
	}, nil
}

// Start begins polling for updates on an interval. If a listener process is
// already in progress, calling Start() is a NoOp. If you want to restart
// the current listener process, call Stop() first.
func (c *ListenerClient) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.observer.state, stopped, transitioning) {
		c.logger.Error("Start called when a listener was not in stopped state", zap.Error(ErrListenerNotStopped))
		return ErrListenerNotStopped
	}

	c.observer.ticker.Reset(c.observer.pullInterval)
	go func() {
		for {
			select {
			case <-c.observer.shutdown:
				return
			case <-c.observer.ticker.C:
				outcome := SuccessOutcome
				if err := c.poll(context.Background()); err != nil {
					outcome = FailureOutcome
					c.logger.Error("failed to poll for new observations", zap.Error(err))
				}
				c.observer.measures.Polls.With(prometheus.Labels{
					OutcomeLabel: outcome}).Add(1)
			}
		}
	}()

	atomic.SwapInt32(&c.observer.state, running)
	return nil
}

func (c *ListenerClient) poll(ctx context.Context) error {
	doc, err := c.sampler.Sample(ctx, SampleQuery{Device: c.device, From: c.next})
	if err != nil {
		// An out-of-range cursor means the agent's window moved past us;
		// restart from the oldest retained record.
		c.next = 0
		return err
	}

	if c.instanceID != 0 && doc.Header.InstanceID != c.instanceID {
		c.logger.Info("agent restarted, sequence space reset",
			zap.Int64("instanceId", doc.Header.InstanceID))
	}
	c.instanceID = doc.Header.InstanceID
	c.next = doc.Header.NextSequence

	var batch []model.Observation
	for _, s := range doc.Streams {
		batch = append(batch, s.Observations...)
	}
	if len(batch) > 0 {
		c.observer.listener.Update(batch)
	}
	return nil
}

// Stop requests the current listener process to stop and waits for its
// goroutine to complete. Calling Stop() when a listener is not running (or
// while one is getting stopped) returns an error.
func (c *ListenerClient) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.observer.state, running, transitioning) {
		c.logger.Error("Stop called when a listener was not in running state", zap.Error(ErrListenerNotRunning))
		return ErrListenerNotRunning
	}

	c.observer.ticker.Stop()
	c.observer.shutdown <- struct{}{}
	atomic.SwapInt32(&c.observer.state, stopped)
	return nil
}

func validateListenerConfig(config *ListenerClientConfig) error {
	if config.Listener == nil {
		return ErrNoListenerProvided
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.PullInterval == 0 {
		config.PullInterval = defaultPullInterval
	}
	return nil
}
