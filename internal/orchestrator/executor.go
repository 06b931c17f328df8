package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eternal/internal/archive"
	"github.com/fyrsmithlabs/eternal/internal/logging"
	"github.com/fyrsmithlabs/eternal/internal/swarm"
	"github.com/fyrsmithlabs/eternal/internal/synthesis"
)

// Handle runs req through the pipeline for its mode.
func (r *Runtime) Handle(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Response{}, ErrEmptyPrompt
	}
	mode := req.Mode
	if mode == "" {
		mode = ModePowerful
	}
	if req.CustomAPIKey != "" {
		ctx = synthesis.WithAPIKey(ctx, req.CustomAPIKey)
	}
	ctx = logging.WithMode(ctx, string(mode))

	ctx, span := r.tracer.Start(ctx, "orchestrator.Handle",
		trace.WithAttributes(attribute.String("orchestrator.mode", string(mode))))
	defer span.End()
	start := time.Now()

	var (
		resp Response
		err  error
	)
	if mode == ModeOwnSystem {
		resp = r.handleOwnSystem(ctx, req)
	} else {
		resp, err = r.handlePowerful(ctx, req)
	}
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		r.metrics.RecordRequest(mode, "error", elapsed.Seconds())
		r.logger.Error(ctx, "request failed",
			logging.Prompt("prompt", req.Prompt, 80),
			zap.Error(err))
		return resp, err
	}

	span.SetAttributes(
		attribute.String("orchestrator.state", string(resp.State())),
		attribute.String("orchestrator.model", resp.ModelUsed),
	)
	r.metrics.RecordRequest(mode, resp.State(), elapsed.Seconds())
	r.logger.Info(ctx, "request handled",
		zap.String("state", string(resp.State())),
		zap.String("model_used", resp.ModelUsed),
		zap.Duration("duration", elapsed))
	return resp, nil
}

// run tracks the states one request visits.
type run struct {
	r    *Runtime
	path []State
}

// step enters state s and starts its span. The caller ends the span.
func (x *run) step(ctx context.Context, s State) (context.Context, trace.Span) {
	x.path = append(x.path, s)
	return x.r.tracer.Start(ctx, "orchestrator."+string(s))
}

// finish enters a terminal state.
func (x *run) finish(ctx context.Context, s State, answer Answer, model, diagnostic string) Response {
	_, span := x.step(ctx, s)
	span.End()
	return Response{Answer: answer, ModelUsed: model, DiagnosticReport: diagnostic, Path: x.path}
}

func (r *Runtime) handlePowerful(ctx context.Context, req Request) (Response, error) {
	x := &run{r: r}
	ctx = logging.WithArchiveID(ctx, archive.IDFor(req.Prompt))

	sctx, span := x.step(ctx, StateArchiveLookup)
	entry, hit, err := r.archive.Lookup(sctx, req.Prompt)
	span.End()
	if err != nil {
		return Response{Path: x.path}, fmt.Errorf("archive lookup: %w", err)
	}
	if hit {
		answer := Answer{Text: entry.Response.Text, ImageURL: entry.Response.ImageURL}
		return x.finish(ctx, StateCacheHit, answer, ModelArchive, DiagnosticHit), nil
	}

	_, span = x.step(ctx, StateExpand)
	subQuestions := r.expand(req.Prompt)
	span.SetAttributes(attribute.Int("orchestrator.sub_questions", len(subQuestions)))
	span.End()

	sctx, span = x.step(ctx, StateFetch)
	result := r.dispatcher.Fetch(sctx, subQuestions, req.Preferences)
	span.End()

	sctx, span = x.step(ctx, StateGate)
	verdict := r.gate.Scan(sctx, result.Records, result.Reputation)
	span.End()
	if !verdict.Approved {
		answer := Answer{Text: RefusalMessage, Plain: true}
		diagnostic := fmt.Sprintf("%s: %s", verdict.Summary(), verdict.Reason)
		return x.finish(ctx, StateRejected, answer, ModelBlocked, diagnostic), nil
	}

	diagnostic := fmt.Sprintf("Live generation via swarm (%d/%d sources, %s).",
		result.Succeeded, result.Total, result.Reputation)

	sctx, span = x.step(ctx, StateSynthesize)
	information := r.factChecker.Consolidate(swarm.Result{Records: verdict.Records}.Text())
	text, err := r.synthesize(sctx, synthesis.BuildPrompt(req.Prompt, information))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	if err != nil {
		r.logger.Warn(ctx, "synthesis failed, returning degraded answer", zap.Error(err))
		answer := Answer{Text: synthesis.DegradedAnswer}
		return x.finish(ctx, StateDegraded, answer, ModelNone,
			fmt.Sprintf("%s Synthesis failed. Reason: %v", diagnostic, err)), nil
	}

	var image *string
	if r.enricher != nil {
		sctx, span = x.step(ctx, StateEnrich)
		image = r.enricher.ImageFor(sctx, req.Prompt, text)
		span.SetAttributes(attribute.Bool("orchestrator.image", image != nil))
		span.End()
	}

	sctx, span = x.step(ctx, StatePersist)
	err = r.archive.Put(sctx, req.Prompt, archive.Response{Text: text, ImageURL: image},
		archive.SourceLiveGeneration, Keywords(req.Prompt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
	}
	span.End()
	if err != nil {
		return Response{Path: x.path}, fmt.Errorf("archive answer: %w", err)
	}

	answer := Answer{Text: text, ImageURL: image}
	return x.finish(ctx, StateDone, answer, ModelPowerful, diagnostic), nil
}

func (r *Runtime) handleOwnSystem(ctx context.Context, req Request) Response {
	x := &run{r: r}

	sctx, span := x.step(ctx, StateResearch)
	report, err := r.research(sctx, req.Prompt)
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	if err != nil {
		r.logger.Warn(ctx, "agent swarm failed", zap.Error(err))
		answer := Answer{Text: fmt.Sprintf("I'm sorry, the Agent Swarm encountered an error: %v", err), Plain: true}
		return x.finish(ctx, StateDegraded, answer, ModelNone,
			fmt.Sprintf("Agent Swarm execution failed. Reason: %v", err))
	}

	sctx, span = x.step(ctx, StateSynthesize)
	text, err := r.synthesize(sctx, synthesis.BuildReportPrompt(req.Prompt, report))
	span.End()
	if err != nil {
		r.logger.Warn(ctx, "report synthesis failed, returning raw report", zap.Error(err))
		return x.finish(ctx, StateDegraded, Answer{Text: report, Plain: true}, ModelOwnSystem,
			fmt.Sprintf("Agent swarm report returned unsynthesized. Reason: %v", err))
	}
	return x.finish(ctx, StateDone, Answer{Text: text, Plain: true}, ModelOwnSystem, DiagnosticOwnDone)
}

func (r *Runtime) synthesize(ctx context.Context, prompt string) (string, error) {
	s, err := r.synthesizer(ctx)
	if err != nil {
		return "", err
	}
	return s.Complete(ctx, prompt)
}

// research runs the research agent, converting a panic into an error.
func (r *Runtime) research(ctx context.Context, task string) (report string, err error) {
	if r.researcher == nil {
		return "", errors.New("research agent not configured")
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("research agent panicked: %v", p)
		}
	}()
	return r.researcher.Run(ctx, task)
}
