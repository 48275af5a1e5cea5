// Package pipeline drives one diagram-to-code request through analysis,
// retrieval, generation and validation as an explicit state machine with a
// bounded regeneration budget.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dpolishuk/sketch2code/internal/coder"
	"github.com/dpolishuk/sketch2code/internal/logger"
	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/dpolishuk/sketch2code/internal/vision"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxAttempts = 3

// Retriever finds reference snippets. It never fails; an empty result is valid.
type Retriever interface {
	Retrieve(ctx context.Context, analysis *models.DiagramAnalysis, query string) models.RetrievalResult
}

// Validator compares an artifact with the diagram it was generated from.
type Validator interface {
	Validate(ctx context.Context, analysis *models.DiagramAnalysis, artifact *models.GeneratedArtifact) models.ValidationReport
}

type Config struct {
	MaxAttempts   int
	MaxImageBytes int
}

type Orchestrator struct {
	analyzer  vision.Analyzer
	retriever Retriever
	coder     coder.Coder
	validator Validator
	cfg       Config
	sink      EventSink
	tracer    trace.Tracer
	logger    *slog.Logger
	newID     func() string
}

type Option func(*Orchestrator)

func WithEventSink(sink EventSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

func New(analyzer vision.Analyzer, retriever Retriever, c coder.Coder, validator Validator, cfg Config, opts ...Option) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	o := &Orchestrator{
		analyzer:  analyzer,
		retriever: retriever,
		coder:     c,
		validator: validator,
		cfg:       cfg,
		tracer:    otel.Tracer("github.com/dpolishuk/sketch2code/internal/pipeline"),
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		o.sink = NewSlogSink(o.logger)
	}
	return o
}

type Request struct {
	Query string
	Image []byte
}

// Result is the outcome of a session. On FAILED it carries whatever the
// session produced before the failure.
type Result struct {
	SessionID string
	Status    State
	Reply     string
	Analysis  *models.DiagramAnalysis
	Retrieval models.RetrievalResult
	Artifact  *models.GeneratedArtifact
	Report    *models.ValidationReport
	Attempts  int
	Warning   string
	History   []Attempt
}

// Run executes one session to a terminal state. The error is a
// *models.PipelineError when the session ends in FAILED and nil otherwise.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	sess := NewSession(o.newID(), o.cfg.MaxAttempts)
	sess.Query = req.Query

	ctx = logger.WithSessionID(ctx, sess.ID)
	ctx, span := o.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.Int("pipeline.max_attempts", sess.MaxAttempts),
	))
	defer span.End()

	for !sess.State.Terminal() {
		o.step(ctx, sess, req)
	}

	span.SetAttributes(
		attribute.String("pipeline.status", string(sess.State)),
		attribute.Int("pipeline.attempts", sess.Attempt),
	)
	if sess.Err != nil {
		span.RecordError(sess.Err)
		span.SetStatus(codes.Error, sess.Err.Error())
	}
	return o.result(sess), sess.Err
}

// step performs the work of the current state and moves the session on.
// Cancellation is observed here, between collaborator calls.
func (o *Orchestrator) step(ctx context.Context, sess *Session, req Request) {
	if sess.State != StateInit {
		if err := ctx.Err(); err != nil {
			o.fail(ctx, sess, models.Canceled(sess.State.Stage(), err))
			return
		}
	}

	switch sess.State {
	case StateInit:
		img, err := o.validateInput(req)
		if err != nil {
			o.fail(ctx, sess, err)
			return
		}
		sess.Image = img
		o.move(ctx, sess, StateAnalyzing)

	case StateAnalyzing:
		stageCtx, span := o.startStage(ctx, sess)
		analysis, err := o.analyzer.Analyze(stageCtx, sess.Image, sess.Query)
		endStage(span, err)
		if err != nil {
			o.fail(ctx, sess, asPipelineError(ctx, err, sess.State.Stage(), models.KindAnalysis, "diagram could not be analyzed"))
			return
		}
		sess.Analysis = analysis
		o.move(ctx, sess, StateRetrieving,
			slog.Int("entities", len(analysis.Entities)),
			slog.Int("relations", len(analysis.Relations)),
			slog.Int("dropped_relations", len(analysis.DroppedRelations)))

	case StateRetrieving:
		stageCtx, span := o.startStage(ctx, sess)
		sess.Retrieval = o.retriever.Retrieve(stageCtx, sess.Analysis, sess.Query)
		endStage(span, nil)
		sess.Attempt = 1
		o.move(ctx, sess, StateGenerating, slog.Int("snippets", sess.Retrieval.Len()))

	case StateGenerating:
		stageCtx, span := o.startStage(ctx, sess)
		artifact, err := o.coder.Generate(stageCtx, coder.Input{
			Analysis:    sess.Analysis,
			Retrieval:   sess.Retrieval,
			Query:       sess.Query,
			PriorReport: sess.LastReport,
			Attempt:     sess.Attempt,
		})
		endStage(span, err)
		if err != nil {
			o.fail(ctx, sess, asPipelineError(ctx, err, sess.State.Stage(), models.KindGeneration, "code generation failed"))
			return
		}
		sess.Artifact = artifact
		o.move(ctx, sess, StateValidating, slog.Int("files", len(artifact.Files)))

	case StateValidating:
		started := time.Now()
		stageCtx, span := o.startStage(ctx, sess)
		report := o.validator.Validate(stageCtx, sess.Analysis, sess.Artifact)
		endStage(span, nil)
		sess.recordAttempt(report, time.Since(started))

		detail := []slog.Attr{
			slog.String("verdict", string(report.Verdict)),
			slog.Int("blocking", len(report.Blocking())),
			slog.Int("discrepancies", len(report.Discrepancies)),
		}
		switch {
		case report.Passed():
			o.move(ctx, sess, StatePassed, detail...)
		case sess.Attempt < sess.MaxAttempts:
			sess.Attempt++
			o.move(ctx, sess, StateGenerating, detail...)
		default:
			o.move(ctx, sess, StateExhausted, detail...)
		}

	default:
		o.fail(ctx, sess, fmt.Errorf("%w: no handler for state %s", ErrIllegalTransition, sess.State))
	}
}

func (o *Orchestrator) validateInput(req Request) (models.Image, error) {
	if strings.TrimSpace(req.Query) == "" {
		return models.Image{}, models.InvalidInput("query must not be empty")
	}
	if len(req.Image) == 0 {
		return models.Image{}, models.InvalidInput("image is required")
	}
	if o.cfg.MaxImageBytes > 0 && len(req.Image) > o.cfg.MaxImageBytes {
		return models.Image{}, models.InvalidInput(fmt.Sprintf("image exceeds %d bytes", o.cfg.MaxImageBytes))
	}
	img, err := vision.DecodeImage(req.Image)
	if err != nil {
		pe := models.InvalidInput("image is not a decodable PNG, JPEG or GIF")
		pe.Err = err
		return models.Image{}, pe
	}
	return img, nil
}

// move advances the session and reports the transition.
func (o *Orchestrator) move(ctx context.Context, sess *Session, to State, detail ...slog.Attr) {
	from := sess.State
	if err := sess.advance(to); err != nil {
		// a broken table is a programming error; end the session rather than loop
		sess.Err = err
		sess.State = StateFailed
		o.logger.ErrorContext(ctx, "pipeline state machine violated", "error", err)
		return
	}

	ev := Event{
		SessionID: sess.ID,
		From:      from,
		To:        to,
		Attempt:   sess.Attempt,
		Stage:     from.Stage(),
		Detail:    detail,
		At:        time.Now(),
	}
	o.sink.Emit(ctx, ev)

	attrs := []attribute.KeyValue{
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
		attribute.Int("attempt", sess.Attempt),
	}
	for _, a := range detail {
		attrs = append(attrs, attribute.String(a.Key, a.Value.String()))
	}
	trace.SpanFromContext(ctx).AddEvent("transition", trace.WithAttributes(attrs...))
}

func (o *Orchestrator) fail(ctx context.Context, sess *Session, err error) {
	sess.Err = err
	detail := []slog.Attr{slog.String("error", err.Error())}
	var pe *models.PipelineError
	if errors.As(err, &pe) {
		detail = append(detail, slog.String("kind", string(pe.Kind)), slog.String("reason", pe.Reason))
	}
	o.move(ctx, sess, StateFailed, detail...)
}

func (o *Orchestrator) startStage(ctx context.Context, sess *Session) (context.Context, trace.Span) {
	stage := sess.State.Stage()
	ctx = logger.WithStage(ctx, stage)
	return o.tracer.Start(ctx, "pipeline."+stage, trace.WithAttributes(
		attribute.Int("attempt", sess.Attempt),
	))
}

func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// asPipelineError keeps typed stage errors and classifies anything else.
func asPipelineError(ctx context.Context, err error, stage string, kind models.ErrorKind, reason string) error {
	var pe *models.PipelineError
	if errors.As(err, &pe) {
		return err
	}
	if ctx.Err() != nil {
		return models.Canceled(stage, err)
	}
	var out *models.PipelineError
	if kind == models.KindAnalysis {
		out = models.AnalysisFailure(reason, err)
	} else {
		out = models.GenerationFailure(reason, err)
	}
	out.Stage = stage
	return out
}

func (o *Orchestrator) result(sess *Session) *Result {
	res := &Result{
		SessionID: sess.ID,
		Status:    sess.State,
		Analysis:  sess.Analysis,
		Retrieval: sess.Retrieval,
		Artifact:  sess.Artifact,
		Report:    sess.LastReport,
		Attempts:  sess.Attempt,
		History:   sess.History,
	}
	res.Reply = composeReply(sess.Analysis, sess.Artifact)
	if sess.State == StateExhausted {
		res.Warning = fmt.Sprintf(
			"generated code still has %d blocking discrepancies after %d attempts; returning the last artifact",
			len(sess.LastReport.Blocking()), sess.Attempt)
	}
	return res
}

func composeReply(analysis *models.DiagramAnalysis, artifact *models.GeneratedArtifact) string {
	var parts []string
	if analysis != nil && analysis.ReplyDraft != "" {
		parts = append(parts, analysis.ReplyDraft)
	}
	if artifact != nil && artifact.Summary != "" {
		parts = append(parts, artifact.Summary)
	}
	return strings.Join(parts, "\n\n")
}
