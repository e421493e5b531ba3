// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package access provides the role-based access-control core for warden.
//
// A fixed catalog of six roles is stored as bindings in a transactional
// key-value store:
//   - single-holder roles map to one identity: Admin, EmergencyAdmin,
//     RewardsAdmin, OperationsAdmin, PauseAdmin
//   - EmergencyPauseAdmin maps to a set of identities
//
// Admin passes every role check. Admin and EmergencyAdmin change hands only
// through a delayed transfer: commit, wait TransferDelay seconds, apply.
//
// Every Controller and Service call runs in exactly one store transaction. A
// failing call leaves no trace in storage and publishes no events.
package access

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/warden/internal/ledger"
	"github.com/holomush/warden/internal/store"
)

var tracer = otel.Tracer("warden/access")

// Controller is the access-control facade. It holds no role state: each call
// reads the latest committed state from the store.
type Controller struct {
	store  store.Store
	clock  ledger.Clock
	logger *slog.Logger
	sink   EventSink
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for mutations and denied checks.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventSink sets where committed events are published.
// The default sink logs them.
func WithEventSink(sink EventSink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// NewController creates a Controller over st. A nil clock uses the system clock.
func NewController(st store.Store, clock ledger.Clock, opts ...Option) *Controller {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	c := &Controller{
		store:  st,
		clock:  clock,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sink == nil {
		c.sink = LogSink{Logger: c.logger}
	}
	return c
}

// update runs fn in one read-write transaction and publishes its events once
// the transaction has committed.
func (c *Controller) update(ctx context.Context, op string, fn func(ctx context.Context, s *state) error, attrs ...attribute.KeyValue) (err error) {
	ctx, span := tracer.Start(ctx, "access."+op, trace.WithAttributes(attrs...))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var events []Event
	err = c.store.Update(ctx, func(tx store.Tx) error {
		// A retried transaction starts over with a fresh state.
		s := &state{tx: tx, now: c.clock.Now}
		if err := fn(ctx, s); err != nil {
			return err
		}
		events = s.events
		return nil
	})
	if err != nil {
		return err
	}

	c.publish(ctx, events)
	return nil
}

// view runs fn in one read-only transaction.
func (c *Controller) view(ctx context.Context, op string, fn func(ctx context.Context, s *state) error, attrs ...attribute.KeyValue) (err error) {
	ctx, span := tracer.Start(ctx, "access."+op, trace.WithAttributes(attrs...))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return c.store.View(ctx, func(tx store.Tx) error {
		return fn(ctx, &state{tx: tx, now: c.clock.Now})
	})
}

func (c *Controller) publish(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	at := time.Now().UTC()
	for i := range events {
		events[i].ID = newEventID(at)
		events[i].At = at
	}
	recordEvents(events)
	c.sink.Publish(ctx, events)
}

func roleAttr(r Role) attribute.KeyValue {
	return attribute.String("access.role", r.String())
}
