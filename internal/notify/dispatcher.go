// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/authkeep/authkeep/pkg/errutil"
)

// DefaultSendTimeout bounds a single background delivery.
const DefaultSendTimeout = 30 * time.Second

// Delivery outcomes reported to a Recorder.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Recorder receives delivery outcomes, typically for metrics.
type Recorder interface {
	RecordNotification(result string)
}

// Dispatcher sends messages in the background. Notify never blocks on the
// sink and never reports delivery failures to the caller; they are logged.
type Dispatcher struct {
	sink     Sink
	logger   *slog.Logger
	timeout  time.Duration
	recorder Recorder

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithSendTimeout bounds each delivery attempt including retries.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithRecorder reports delivery outcomes.
func WithRecorder(recorder Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = recorder
	}
}

// NewDispatcher creates a Dispatcher around sink.
func NewDispatcher(sink Sink, opts ...DispatcherOption) (*Dispatcher, error) {
	if sink == nil {
		return nil, oops.Errorf("sink is required")
	}
	d := &Dispatcher{
		sink:    sink,
		logger:  slog.New(slog.DiscardHandler),
		timeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Notify queues msg for delivery and returns immediately.
// The send outlives ctx cancellation but keeps its values (trace ids).
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.WarnContext(ctx, "notification dropped, dispatcher closed", "to", msg.To)
		d.record(ResultDropped)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	sendCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(sendCtx, d.timeout)
		defer cancel()

		if err := d.sink.Send(ctx, msg); err != nil {
			errutil.LogError(d.logger, "notification delivery failed", err)
			d.record(ResultFailed)
			return
		}
		d.logger.DebugContext(ctx, "notification delivered", "to", msg.To, "subject", msg.Subject)
		d.record(ResultSent)
	}()
}

// Close stops accepting messages and waits for in-flight deliveries
// until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("NOTIFY_DRAIN_TIMEOUT").
			With("operation", "wait for in-flight notifications").
			Wrap(ctx.Err())
	}
}

func (d *Dispatcher) record(result string) {
	if d.recorder != nil {
		d.recorder.RecordNotification(result)
	}
}
