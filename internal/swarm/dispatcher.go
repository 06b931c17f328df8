package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/eternal/internal/logging"
)

// Dispatcher runs one task per sub-question and aggregates the outcomes.
type Dispatcher struct {
	defaultSource Source
	sources       map[string]Source
	maxParallel   int
	logger        *logging.Logger
	tracer        trace.Tracer
	metrics       *Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSource registers an additional source selectable through the
// "source" preference.
func WithSource(s Source) Option {
	return func(d *Dispatcher) { d.sources[s.Name()] = s }
}

// WithMaxParallel bounds the number of tasks in flight. Zero or less means
// unbounded.
func WithMaxParallel(n int) Option {
	return func(d *Dispatcher) { d.maxParallel = n }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = l.Named("swarm") }
}

// WithTracer sets the tracer used for swarm spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// NewDispatcher creates a dispatcher whose tasks use def unless the request
// preferences name another registered source.
func NewDispatcher(def Source, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		defaultSource: def,
		sources:       map[string]Source{def.Name(): def},
		logger:        logging.NewNop(),
		tracer:        otel.Tracer("eternal/swarm"),
		metrics:       NewMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SourceFor resolves the source for prefs, falling back to the default.
func (d *Dispatcher) SourceFor(prefs Preferences) Source {
	if name := prefs.SourceName(); name != "" {
		if s, ok := d.sources[name]; ok {
			return s
		}
	}
	return d.defaultSource
}

// Tasks builds one task per sub-question, in order.
func (d *Dispatcher) Tasks(subQuestions []string, prefs Preferences) []Task {
	src := d.SourceFor(prefs)
	tasks := make([]Task, len(subQuestions))
	for i, q := range subQuestions {
		tasks[i] = Task{ID: uuid.NewString(), Index: i, Query: q, Source: src}
	}
	return tasks
}

// Fetch runs every sub-question concurrently and waits for all of them.
// It never returns an error: failed tasks are logged and dropped, and if
// nothing succeeded the result holds the sentinel record.
func (d *Dispatcher) Fetch(ctx context.Context, subQuestions []string, prefs Preferences) Result {
	ctx, span := d.tracer.Start(ctx, "swarm.Fetch")
	defer span.End()

	start := time.Now()
	tasks := d.Tasks(subQuestions, prefs)
	outcomes := d.Run(ctx, tasks)
	result := Aggregate(outcomes)

	for _, o := range outcomes {
		if !o.Success() {
			d.logger.Warn(ctx, "swarm task failed",
				zap.String("task_id", o.Task.ID),
				zap.Int("index", o.Task.Index),
				zap.String("source", o.Task.Source.Name()),
				zap.Error(o.Err))
		}
	}
	if result.Succeeded == 0 {
		d.logger.Warn(ctx, "all swarm tasks failed", zap.Int("tasks", result.Total))
	}

	elapsed := time.Since(start)
	d.metrics.RecordFetch(elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("swarm.tasks", result.Total),
		attribute.Int("swarm.succeeded", result.Succeeded),
		attribute.String("swarm.reputation", string(result.Reputation)),
	)
	d.logger.Debug(ctx, "swarm returned",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("tasks", result.Total),
		zap.Duration("duration", elapsed))
	return result
}

// Run executes tasks concurrently and returns their outcomes indexed like
// tasks. Every task reaches an outcome; one task failing or panicking does
// not affect the others.
func (d *Dispatcher) Run(ctx context.Context, tasks []Task) []Outcome {
	outcomes := make([]Outcome, len(tasks))

	var g errgroup.Group
	if d.maxParallel > 0 {
		g.SetLimit(d.maxParallel)
	}
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = d.runTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (d *Dispatcher) runTask(ctx context.Context, task Task) (out Outcome) {
	out.Task = task
	source := task.Source.Name()

	ctx, span := d.tracer.Start(ctx, "swarm.task",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.Int("task.index", task.Index),
			attribute.String("task.source", source),
		))
	start := time.Now()

	defer func() {
		outcome := "success"
		if r := recover(); r != nil {
			out.Record = Record{}
			out.Err = fmt.Errorf("task panicked: %v", r)
			outcome = "panic"
		} else if out.Err != nil {
			outcome = "failure"
		}
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, outcome)
		}
		d.metrics.RecordTask(source, outcome, time.Since(start).Seconds())
		span.End()
	}()

	rec, err := task.Source.Fetch(ctx, task.Query)
	if err != nil {
		out.Err = err
		return out
	}
	if rec.Query == "" {
		rec.Query = task.Query
	}
	if rec.Source == "" {
		rec.Source = source
	}
	out.Record = rec
	return out
}

// Aggregate folds outcomes into a Result, keeping successes in outcome
// order. The reputation is ReputationMixed whenever at least one task
// succeeded.
func Aggregate(outcomes []Outcome) Result {
	res := Result{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Success() {
			res.Records = append(res.Records, o.Record)
		}
	}
	res.Succeeded = len(res.Records)
	if res.Succeeded == 0 {
		res.Records = []Record{{Source: SentinelSource, Content: SentinelContent}}
		res.Reputation = ReputationNone
		return res
	}
	res.Reputation = ReputationMixed
	return res
}
