// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package notify renders account notifications and delivers them
// asynchronously through a Mailer.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/portfolioapp/authcore/internal/auth"
	"github.com/portfolioapp/authcore/internal/observability"
	"github.com/portfolioapp/authcore/pkg/errutil"
)

// Dispatcher defaults.
const (
	DefaultWorkers    = 2
	DefaultQueueSize  = 256
	DefaultMaxRetries = 3
	DefaultBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff = 10 * time.Second
)

// Delivery outcomes recorded in metrics.
const (
	outcomeSent    = "sent"
	outcomeFailed  = "failed"
	outcomeDropped = "dropped"
)

// ErrQueueFull is returned when a notification is dropped because the
// delivery queue is at capacity.
var ErrQueueFull = oops.Code("NOTIFY_QUEUE_FULL").Errorf("notification queue is full")

// ErrClosed is returned for submissions after Close.
var ErrClosed = oops.Code("NOTIFY_CLOSED").Errorf("notification dispatcher is closed")

// DispatcherConfig tunes the worker pool and retry policy.
type DispatcherConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return c
}

// Dispatcher implements auth.Notifier. Messages are queued and sent by a
// fixed pool of workers; a full queue drops the message rather than block.
type Dispatcher struct {
	mailer   Mailer
	composer *Composer
	cfg      DispatcherConfig
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ auth.Notifier = (*Dispatcher)(nil)

// NewDispatcher starts a Dispatcher. Call Close to stop its workers.
func NewDispatcher(mailer Mailer, composer *Composer, cfg DispatcherConfig, logger *slog.Logger) (*Dispatcher, error) {
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if composer == nil {
		return nil, oops.Errorf("composer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		mailer:   mailer,
		composer: composer,
		cfg:      cfg,
		logger:   logger,
		queue:    make(chan Message, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	for range cfg.Workers {
		d.wg.Add(1)
		go d.worker()
	}
	return d, nil
}

// NotifyVerification queues the email-verification message.
func (d *Dispatcher) NotifyVerification(ctx context.Context, email, token string) error {
	return d.submit(ctx, d.composer.Verification(email, token))
}

// NotifyPasswordReset queues the password-reset message.
func (d *Dispatcher) NotifyPasswordReset(ctx context.Context, email, token string) error {
	return d.submit(ctx, d.composer.PasswordReset(email, token))
}

// NotifyWelcome queues the welcome message.
func (d *Dispatcher) NotifyWelcome(ctx context.Context, email, fullName string) error {
	return d.submit(ctx, d.composer.Welcome(email, fullName))
}

func (d *Dispatcher) submit(ctx context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- msg:
		return nil
	default:
		observability.RecordNotification(string(msg.Kind), outcomeDropped)
		d.logger.WarnContext(ctx, "notification dropped",
			"kind", string(msg.Kind),
			"queue_size", d.cfg.QueueSize,
		)
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	b := retry.NewExponential(d.cfg.Backoff)
	b = retry.WithCappedDuration(d.cfg.MaxBackoff, b)
	b = retry.WithMaxRetries(d.cfg.MaxRetries, b)

	attempts := 0
	err := retry.Do(d.ctx, b, func(ctx context.Context) error {
		attempts++
		if err := d.mailer.Send(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		observability.RecordNotification(string(msg.Kind), outcomeFailed)
		errutil.LogErrorContext(d.ctx, d.logger, slog.LevelError, "notification delivery failed", err,
			"kind", string(msg.Kind),
			"attempts", attempts,
		)
		return
	}
	observability.RecordNotification(string(msg.Kind), outcomeSent)
}

// Close stops accepting notifications and waits for queued ones to be
// delivered. If ctx ends first, in-flight retries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
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
		d.cancel()
		<-done
		return oops.Code("NOTIFY_CLOSE_TIMEOUT").Wrap(ctx.Err())
	}
}
