// Package audit ships entity change events to an audit sink through an actor,
// so writers never block on the sink.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// Event describes one change to a storefront entity.
type Event struct {
	Service  string
	Action   string
	Entity   string
	EntityID string
	Data     map[string]interface{}
	At       time.Time
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// LogSink writes events to a logger. It stands in when no audit store is
// configured.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Write(_ context.Context, e Event) error {
	s.Logger.Info("Audit event",
		zap.String("service", e.Service),
		zap.String("action", e.Action),
		zap.String("entity", e.Entity),
		zap.String("entity_id", e.EntityID),
		zap.Any("data", e.Data),
		zap.Time("at", e.At))
	return nil
}

// Messages
type flushRequest struct{}

type flushResponse struct{}

// sinkActor writes events to the sink in arrival order.
type sinkActor struct {
	sink    Sink
	timeout time.Duration
	logger  *zap.Logger
}

func (a *sinkActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Event:
		wctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.sink.Write(wctx, *msg)
		cancel()
		if err != nil {
			a.logger.Error("Failed to write audit event",
				zap.String("action", msg.Action),
				zap.String("entity", msg.Entity),
				zap.String("entity_id", msg.EntityID),
				zap.Error(err))
		}

	case *flushRequest:
		ctx.Respond(&flushResponse{})

	case *actor.Started:
		a.logger.Debug("Audit actor started")

	case *actor.Stopped:
		a.logger.Debug("Audit actor stopped")
	}
}

// Dispatcher is the entry point used by the store.
type Dispatcher struct {
	system  *actor.ActorSystem
	pid     *actor.PID
	service string
	logger  *zap.Logger
}

// NewDispatcher spawns the audit actor in front of sink.
func NewDispatcher(service string, sink Sink, logger *zap.Logger) (*Dispatcher, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &sinkActor{sink: sink, timeout: 5 * time.Second, logger: logger.Named("audit-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "audit-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn audit actor: %w", err)
	}

	return &Dispatcher{
		system:  system,
		pid:     pid,
		service: service,
		logger:  logger,
	}, nil
}

// Record queues e for the sink. Missing service and timestamp are filled in.
func (d *Dispatcher) Record(e Event) {
	if e.Service == "" {
		e.Service = d.service
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	d.system.Root.Send(d.pid, &e)
}

// Flush waits until every event recorded before the call has been handed to the sink.
func (d *Dispatcher) Flush(timeout time.Duration) error {
	if _, err := d.system.Root.RequestFuture(d.pid, &flushRequest{}, timeout).Result(); err != nil {
		return fmt.Errorf("failed to flush audit events: %w", err)
	}
	return nil
}

// Close drains the mailbox and stops the actor.
func (d *Dispatcher) Close(timeout time.Duration) error {
	if err := d.Flush(timeout); err != nil {
		d.logger.Warn("Audit flush on close failed", zap.Error(err))
	}
	return d.system.Root.PoisonFuture(d.pid).Wait()
}
