package gatekeeper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eternal/internal/logging"
	"github.com/fyrsmithlabs/eternal/internal/secrets"
	"github.com/fyrsmithlabs/eternal/internal/swarm"
)

// Config configures the standard three-phase pipeline.
type Config struct {
	SentrySignatures    []string
	InterrogatorMarkers []string
	// Redactor, if set, is applied by Guardian.
	Redactor *secrets.Redactor
}

// Pipeline runs phases in order with short-circuit on rejection.
type Pipeline struct {
	phases  []Phase
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l.Named("gatekeeper") }
}

// WithTracer sets the tracer used for gatekeeper spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// New builds the Sentry, Interrogator, Guardian pipeline.
func New(cfg Config, opts ...Option) *Pipeline {
	return NewPipeline([]Phase{
		NewSentry(cfg.SentrySignatures...),
		NewInterrogator(cfg.InterrogatorMarkers...),
		NewGuardian(cfg.Redactor),
	}, opts...)
}

// NewPipeline builds a pipeline over arbitrary phases.
func NewPipeline(phases []Phase, opts ...Option) *Pipeline {
	p := &Pipeline{
		phases:  phases,
		logger:  logging.NewNop(),
		tracer:  otel.Tracer("eternal/gatekeeper"),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Phases returns the phase names in evaluation order.
func (p *Pipeline) Phases() []PhaseName {
	names := make([]PhaseName, len(p.phases))
	for i, ph := range p.phases {
		names[i] = ph.Name()
	}
	return names
}

// Evaluate runs content through every phase until one rejects. Each phase
// sees the content as left by the previous one.
func (p *Pipeline) Evaluate(ctx context.Context, content *string) Verdict {
	if len(p.phases) == 0 {
		return pass("", content, "")
	}
	current := content
	var last Verdict
	redactions := 0
	for _, ph := range p.phases {
		v := ph.Evaluate(ctx, current)
		p.metrics.RecordVerdict(ph.Name(), v.Approved)
		if !v.Approved {
			return v
		}
		redactions += v.Redactions
		// Absent content stays absent for the next phase.
		if current != nil {
			c := v.Content
			current = &c
		}
		last = v
	}
	last.Content = ""
	if current != nil {
		last.Content = *current
	}
	last.Redactions = redactions
	return last
}

// Scan gates every record in order. The first rejected record rejects the
// whole scan; otherwise the verdict carries the sanitized records.
// reputation is recorded but does not change the outcome.
func (p *Pipeline) Scan(ctx context.Context, records []swarm.Record, reputation swarm.Reputation) Verdict {
	ctx, span := p.tracer.Start(ctx, "gatekeeper.Scan",
		trace.WithAttributes(
			attribute.Int("gatekeeper.records", len(records)),
			attribute.String("gatekeeper.reputation", string(reputation)),
		))
	defer span.End()

	sanitized := make([]swarm.Record, 0, len(records))
	redactions := 0
	for i, rec := range records {
		content := rec.Content
		v := p.Evaluate(ctx, &content)
		if !v.Approved {
			v.Index = i
			span.SetAttributes(
				attribute.Bool("gatekeeper.approved", false),
				attribute.String("gatekeeper.phase", string(v.Phase)),
				attribute.Int("gatekeeper.index", i),
			)
			p.logger.Warn(ctx, "gatekeeper rejected content",
				zap.String("phase", string(v.Phase)),
				zap.String("reason", v.Reason),
				zap.String("record_source", rec.Source),
				zap.Int("index", i),
				zap.String("reputation", string(reputation)))
			return v
		}
		redactions += v.Redactions
		rec.Content = v.Content
		sanitized = append(sanitized, rec)
	}

	span.SetAttributes(
		attribute.Bool("gatekeeper.approved", true),
		attribute.Int("gatekeeper.redactions", redactions),
	)
	if redactions > 0 {
		p.logger.Info(ctx, "gatekeeper redacted credentials", zap.Int("redactions", redactions))
	}
	p.logger.Debug(ctx, "gatekeeper approved content",
		zap.Int("records", len(sanitized)),
		zap.String("reputation", string(reputation)))

	return Verdict{
		Approved:   true,
		Phase:      PhaseGuardian,
		Reason:     "All security phases passed.",
		Records:    sanitized,
		Index:      -1,
		Redactions: redactions,
	}
}
