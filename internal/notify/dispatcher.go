// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accountd/pkg/errutil"
)

// Delivery outcomes passed to a Recorder.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Recorder counts delivery outcomes.
type Recorder interface {
	RecordNotification(template, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordNotification(string, string) {}

// ErrDispatcherClosed is returned by Close when called twice.
var ErrDispatcherClosed = oops.Code("NOTIFY_DISPATCHER_CLOSED").Errorf("dispatcher already closed")

// Dispatcher sends messages asynchronously through a bounded queue and a
// fixed pool of workers. Send never blocks and never returns a delivery error.
type Dispatcher struct {
	next        Notifier
	queue       chan Message
	sendTimeout time.Duration
	logger      *slog.Logger
	recorder    Recorder

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// base parents every delivery and is cancelled when Close gives up.
	base   context.Context
	cancel context.CancelFunc
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger. Defaults to slog.Default().
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithNotificationRecorder sets the outcome recorder.
func WithNotificationRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// NewDispatcher starts workers delivering through next.
func NewDispatcher(next Notifier, workers, queueSize int, sendTimeout time.Duration, opts ...DispatcherOption) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		next:        next,
		queue:       make(chan Message, queueSize),
		sendTimeout: sendTimeout,
		logger:      slog.Default(),
		recorder:    nopRecorder{},
	}
	d.base, d.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(workers)
	for range workers {
		go d.work()
	}
	return d
}

// Send enqueues msg and returns immediately. A full queue or a closed
// dispatcher drops the message.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, msg, "dispatcher closed")
		return nil
	}
	select {
	case d.queue <- msg:
	default:
		d.drop(ctx, msg, "queue full")
	}
	return nil
}

// Close stops accepting messages and waits for queued ones to be delivered.
// When ctx ends first, in-flight sends are cancelled and workers abandon the
// remaining queue.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		pending := len(d.queue)
		d.cancel()
		<-done
		return oops.Code("NOTIFY_DRAIN_TIMEOUT").With("pending", pending).Wrap(ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		if d.base.Err() != nil {
			d.recorder.RecordNotification(msg.Template, ResultDropped)
			continue
		}
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx := d.base
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	if err := d.next.Send(ctx, msg); err != nil {
		d.recorder.RecordNotification(msg.Template, ResultFailed)
		errutil.LogError(d.logger, "notification delivery failed", err)
		return
	}
	d.recorder.RecordNotification(msg.Template, ResultSent)
	d.logger.Debug("notification delivered", "template", msg.Template)
}

func (d *Dispatcher) drop(ctx context.Context, msg Message, reason string) {
	d.recorder.RecordNotification(msg.Template, ResultDropped)
	d.logger.WarnContext(ctx, "notification dropped", "template", msg.Template, "reason", reason)
}
