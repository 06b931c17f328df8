// Package factfinder implements the specialist research agent behind the
// "own_system" mode. The agent queries a web search and an encyclopedia
// summary for the task and renders both into a plain-text report.
package factfinder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/eternal/internal/logging"
)

// ErrNoFacts is returned when every lookup failed.
var ErrNoFacts = errors.New("no facts found")

// SearchResult is one web search hit.
type SearchResult struct {
	Title string
	Body  string
}

// WebSearcher runs a web search.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Encyclopedia returns a short summary for a topic.
type Encyclopedia interface {
	Summary(ctx context.Context, topic string) (string, error)
}

// Researcher produces a research report for a task.
type Researcher interface {
	Run(ctx context.Context, task string) (string, error)
}

// Agent is the FactFinder research agent.
type Agent struct {
	web    WebSearcher
	wiki   Encyclopedia
	logger *logging.Logger
	tracer trace.Tracer
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Agent) { a.logger = l.Named("factfinder") }
}

// WithTracer sets the tracer used for agent spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) { a.tracer = t }
}

// New creates an Agent. Either lookup may be nil, in which case it is
// reported as unavailable.
func New(web WebSearcher, wiki Encyclopedia, opts ...Option) *Agent {
	a := &Agent{
		web:    web,
		wiki:   wiki,
		logger: logging.NewNop(),
		tracer: otel.Tracer("eternal/factfinder"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run researches task. Both lookups run concurrently; a failed lookup is
// logged and left out of the report. Run fails only when both fail.
func (a *Agent) Run(ctx context.Context, task string) (string, error) {
	ctx, span := a.tracer.Start(ctx, "factfinder.Run")
	defer span.End()

	var (
		results         []SearchResult
		summary         string
		webErr, wikiErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		if a.web == nil {
			webErr = errors.New("web search not configured")
			return nil
		}
		results, webErr = a.web.Search(ctx, task)
		return nil
	})
	g.Go(func() error {
		if a.wiki == nil {
			wikiErr = errors.New("encyclopedia not configured")
			return nil
		}
		summary, wikiErr = a.wiki.Summary(ctx, task)
		return nil
	})
	_ = g.Wait()

	if webErr != nil {
		a.logger.Warn(ctx, "web search failed", zap.String("task", task), zap.Error(webErr))
	}
	if wikiErr != nil {
		a.logger.Warn(ctx, "encyclopedia lookup failed", zap.String("task", task), zap.Error(wikiErr))
	}
	span.SetAttributes(
		attribute.Int("factfinder.web_results", len(results)),
		attribute.Bool("factfinder.summary", wikiErr == nil),
	)

	if webErr != nil && wikiErr != nil {
		err := fmt.Errorf("%w: web: %v; wikipedia: %v", ErrNoFacts, webErr, wikiErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no facts")
		return "", err
	}
	if wikiErr != nil {
		summary = "No summary available."
	}
	return Report(task, summary, results), nil
}

// Report renders the research report.
func Report(task, summary string, results []SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- FactFinder Report for '%s' ---\n\n", task)
	b.WriteString("== Wikipedia Summary ==\n")
	b.WriteString(summary)
	b.WriteString("\n\n== Web Search Results ==\n")
	if len(results) == 0 {
		b.WriteString("No web results found.\n")
		return b.String()
	}
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "No Title"
		}
		body := r.Body
		if body == "" {
			body = "No snippet"
		}
		fmt.Fprintf(&b, "%d. %s\n   - %s\n", i+1, title, body)
	}
	return b.String()
}
