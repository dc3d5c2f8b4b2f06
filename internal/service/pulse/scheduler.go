// Package pulse drives one coordination link on a timer: every tick runs a
// pulse transaction, publishes its events and hands the resulting instruction
// to the local processor.
package pulse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	"github.com/alanyang/shard-coordinator/internal/domain/event"
	"github.com/alanyang/shard-coordinator/internal/metrics"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
	porteventbus "github.com/alanyang/shard-coordinator/internal/port/eventbus"
	"github.com/alanyang/shard-coordinator/internal/service/coordination"
)

const (
	tracerName   = "github.com/alanyang/shard-coordinator/internal/service/pulse"
	leaveTimeout = 10 * time.Second
)

// Processor consumes instructions. Apply must return quickly; long work
// belongs on the processor's own goroutines.
type Processor interface {
	Apply(ctx context.Context, inst coordination.Instruction)
}

type Option func(*Scheduler)

func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = tracer }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

type Scheduler struct {
	link      *coordination.Link
	store     portagent.Store
	bus       porteventbus.EventBus
	processor Processor
	logger    *slog.Logger

	clock   func() time.Time
	tracer  trace.Tracer
	metrics *metrics.Metrics

	nudge     chan struct{}
	lastState domainagent.State
}

func NewScheduler(link *coordination.Link, store portagent.Store, bus porteventbus.EventBus, processor Processor, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		link:      link,
		store:     store,
		bus:       bus,
		processor: processor,
		logger:    logger.With("link", link.Name(), "type", link.Type()),
		clock:     time.Now,
		tracer:    otel.Tracer(tracerName),
		nudge:     make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run pulses until ctx is cancelled, then leaves the cluster. Pulse failures
// are logged and retried on the next tick, never sooner.
func (s *Scheduler) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe(ctx, event.ChannelAgent, s.onEvent)
	if err != nil {
		s.logger.Warn("agent events unavailable, pulsing on the timer only", "error", err)
	} else {
		defer sub.Unsubscribe()
	}

	for {
		delay := s.link.PulseInterval()
		inst, err := s.PulseOnce(ctx)
		switch {
		case err == nil:
			delay = inst.Delay
		case ctx.Err() == nil:
			s.logger.Error("pulse failed", "error", err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.leave()
		case <-timer.C:
		case <-s.nudge:
			timer.Stop()
		}
	}
}

// PulseOnce runs one pulse transaction. On error the processor is told to
// suspend: the lease was not renewed and peers may reap this agent.
func (s *Scheduler) PulseOnce(ctx context.Context) (coordination.Instruction, error) {
	agentType := string(s.link.Type())
	ctx, span := s.tracer.Start(ctx, "pulse",
		trace.WithAttributes(
			attribute.String("shard_coord.agent.type", agentType),
			attribute.String("shard_coord.agent.name", s.link.Name()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := time.Now()
	var inst coordination.Instruction
	err := s.store.InTx(ctx, func(ctx context.Context, repo portagent.Repository) error {
		var err error
		inst, err = s.link.Pulse(ctx, repo, s.clock())
		return err
	})
	if err != nil {
		s.metrics.ObservePulse(agentType, "error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.apply(ctx, coordination.Instruction{State: domainagent.StateSuspended})
		return coordination.Instruction{}, err
	}
	s.metrics.ObservePulse(agentType, "ok", time.Since(start))

	span.SetAttributes(
		attribute.String("shard_coord.agent.id", inst.Self.ID.String()),
		attribute.String("shard_coord.state", string(inst.State)),
		attribute.Int("shard_coord.cluster.size", inst.Cluster.Size()),
	)
	if inst.Assignment != nil {
		span.SetAttributes(attribute.String("shard_coord.assignment", inst.Assignment.String()))
	}
	span.SetStatus(codes.Ok, "")

	s.record(agentType, inst)
	s.publish(ctx, inst.Events)
	s.apply(ctx, inst)
	return inst, nil
}

func (s *Scheduler) record(agentType string, inst coordination.Instruction) {
	if inst.State != s.lastState {
		s.metrics.Transition(agentType, string(inst.State))
		s.lastState = inst.State
	}
	s.metrics.ClusterMembers(agentType, inst.Cluster.Size())

	reaped := 0
	for _, e := range inst.Events {
		if e.Type == event.TypeAgentReaped {
			reaped++
		}
	}
	s.metrics.Reaped(reaped)
}

func (s *Scheduler) publish(ctx context.Context, events []event.Event) {
	for _, e := range events {
		if err := s.bus.Publish(ctx, e); err != nil {
			s.logger.WarnContext(ctx, "failed to publish agent event", "event", e.Type, "agent_id", e.EntityID, "error", err)
		}
	}
}

func (s *Scheduler) apply(ctx context.Context, inst coordination.Instruction) {
	if s.processor != nil {
		s.processor.Apply(ctx, inst)
	}
}

// onEvent triggers an early pulse when another agent joins or leaves.
func (s *Scheduler) onEvent(_ context.Context, e event.Event) {
	if !e.Type.IsMembershipChange() {
		return
	}
	if ref, ok := s.link.SelfReference(); ok && ref.ID == e.SourceID {
		return
	}
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

func (s *Scheduler) leave() error {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()

	s.apply(ctx, coordination.Instruction{State: domainagent.StateSuspended})

	var events []event.Event
	err := s.store.InTx(ctx, func(ctx context.Context, repo portagent.Repository) error {
		var err error
		events, err = s.link.Leave(ctx, repo)
		return err
	})
	if err != nil {
		return fmt.Errorf("leaving cluster: %w", err)
	}
	s.publish(ctx, events)
	return nil
}
