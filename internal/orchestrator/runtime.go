package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eternal/internal/archive"
	"github.com/fyrsmithlabs/eternal/internal/expander"
	"github.com/fyrsmithlabs/eternal/internal/factfinder"
	"github.com/fyrsmithlabs/eternal/internal/gatekeeper"
	"github.com/fyrsmithlabs/eternal/internal/logging"
	"github.com/fyrsmithlabs/eternal/internal/swarm"
	"github.com/fyrsmithlabs/eternal/internal/synthesis"
)

// Archive is the answer cache.
type Archive interface {
	Lookup(ctx context.Context, prompt string) (*archive.Entry, bool, error)
	Put(ctx context.Context, prompt string, resp archive.Response, source string, keywords []string) error
	Close() error
}

// Fetcher fans sub-questions out to the swarm.
type Fetcher interface {
	Fetch(ctx context.Context, subQuestions []string, prefs swarm.Preferences) swarm.Result
}

// Gate admits or rejects fetched records.
type Gate interface {
	Scan(ctx context.Context, records []swarm.Record, reputation swarm.Reputation) gatekeeper.Verdict
}

// Consolidator turns gated content into verified information.
type Consolidator interface {
	Consolidate(content string) string
}

// Enricher attaches an image to an answer.
type Enricher interface {
	ImageFor(ctx context.Context, prompt, answer string) *string
}

// Deps are the collaborators of a Runtime. Archive, Dispatcher and
// Gatekeeper are required.
type Deps struct {
	Archive    Archive
	Dispatcher Fetcher
	Gatekeeper Gate

	// Expand decomposes a prompt. Defaults to expander.Expand.
	Expand      func(prompt string) []string
	FactChecker Consolidator

	// NewSynthesizer builds the synthesis client on first use.
	NewSynthesizer func() (synthesis.Synthesizer, error)
	Enricher       Enricher
	Researcher     factfinder.Researcher

	// Shutdown hooks run by Close after the archive is closed.
	Shutdown []func(context.Context) error

	Logger *logging.Logger
	Tracer trace.Tracer
}

// Runtime holds the per-process state shared by all requests.
type Runtime struct {
	archive     Archive
	dispatcher  Fetcher
	gate        Gate
	expand      func(string) []string
	factChecker Consolidator
	enricher    Enricher
	researcher  factfinder.Researcher
	shutdown    []func(context.Context) error

	newSynth  func() (synthesis.Synthesizer, error)
	synthOnce sync.Once
	synth     synthesis.Synthesizer
	synthErr  error

	closeOnce sync.Once
	closeErr  error

	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// NewRuntime validates deps and builds a Runtime.
func NewRuntime(ctx context.Context, deps Deps) (*Runtime, error) {
	if deps.Archive == nil {
		return nil, errors.New("orchestrator: archive is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("orchestrator: dispatcher is required")
	}
	if deps.Gatekeeper == nil {
		return nil, errors.New("orchestrator: gatekeeper is required")
	}

	r := &Runtime{
		archive:     deps.Archive,
		dispatcher:  deps.Dispatcher,
		gate:        deps.Gatekeeper,
		expand:      deps.Expand,
		factChecker: deps.FactChecker,
		enricher:    deps.Enricher,
		researcher:  deps.Researcher,
		shutdown:    deps.Shutdown,
		newSynth:    deps.NewSynthesizer,
		logger:      deps.Logger,
		tracer:      deps.Tracer,
		metrics:     NewMetrics(),
	}
	if r.expand == nil {
		r.expand = expander.Expand
	}
	if r.factChecker == nil {
		r.factChecker = synthesis.FactChecker{}
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	r.logger = r.logger.Named("orchestrator")
	if r.tracer == nil {
		r.tracer = otel.Tracer("eternal/orchestrator")
	}

	r.logger.Info(ctx, "runtime initialized",
		zap.Bool("synthesis", r.newSynth != nil),
		zap.Bool("enrichment", r.enricher != nil),
		zap.Bool("research", r.researcher != nil))
	return r, nil
}

// synthesizer returns the synthesis client, building it on first call.
func (r *Runtime) synthesizer(ctx context.Context) (synthesis.Synthesizer, error) {
	r.synthOnce.Do(func() {
		if r.newSynth == nil {
			r.synthErr = synthesis.ErrNotConfigured
			return
		}
		r.synth, r.synthErr = r.newSynth()
		if r.synthErr != nil {
			r.logger.Error(ctx, "synthesis client unavailable", zap.Error(r.synthErr))
		}
	})
	return r.synth, r.synthErr
}

// Close closes the archive and runs the shutdown hooks. It is safe to call
// more than once; later calls return the first result.
func (r *Runtime) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		var errs []error
		if err := r.archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
		for _, fn := range r.shutdown {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		r.closeErr = errors.Join(errs...)
		r.logger.Info(ctx, "runtime closed")
	})
	return r.closeErr
}
