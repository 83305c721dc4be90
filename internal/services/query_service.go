package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/unifyiq/unifyiq/internal/metrics"
	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/plan"
	"github.com/unifyiq/unifyiq/internal/planner"
	"github.com/unifyiq/unifyiq/internal/responder"
	"github.com/unifyiq/unifyiq/internal/utils"
)

var tracer = otel.Tracer("unifyiq/services")

// DatasetStore holds the served dataset snapshot.
type DatasetStore interface {
	Snapshot() *models.Dataset
	Reload(ctx context.Context) (*models.Dataset, error)
}

// PlanSelector turns a question into a plan.
type PlanSelector interface {
	Plan(ctx context.Context, question string) (planner.Result, error)
}

// PlanExecutor runs a plan against a dataset.
type PlanExecutor interface {
	Execute(ctx context.Context, p plan.Plan, ds *models.Dataset) (models.Table, []string, error)
}

// ReloadStats summarises a freshly built dataset.
type ReloadStats struct {
	Accounts       int    `json:"accounts"`
	Issues         int    `json:"issues"`
	Orphans        int    `json:"orphans"`
	Rejections     int    `json:"rejections"`
	SourceAccounts int    `json:"source_accounts"`
	SourceIssues   int    `json:"source_issues"`
	BuiltAt        string `json:"built_at"`
	DurationMs     int64  `json:"duration_ms"`
}

// QueryService answers questions over the unified dataset.
type QueryService struct {
	logger    *slog.Logger
	store     DatasetStore
	selector  PlanSelector
	executor  PlanExecutor
	latencies *utils.LatencyTracker
	newID     func() string
}

// NewQueryService constructs the query facade.
func NewQueryService(logger *slog.Logger, store DatasetStore, selector PlanSelector, executor PlanExecutor) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		logger:    logger,
		store:     store,
		selector:  selector,
		executor:  executor,
		latencies: utils.NewLatencyTracker(1024),
		newID:     func() string { return uuid.NewString() },
	}
}

// Ask plans, executes and packages one question. Questions no planner understands
// come back as a refusal envelope with a nil error.
func (s *QueryService) Ask(ctx context.Context, req models.QueryRequest) (responder.Envelope, error) {
	queryID := s.newID()
	ctx, span := tracer.Start(ctx, "QueryService.Ask")
	defer span.End()
	span.SetAttributes(attribute.String("unifyiq.query_id", queryID))

	start := time.Now()
	env, plannerName, err := s.ask(ctx, queryID, req)
	duration := time.Since(start)

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil && (utils.IsValidation(err) || utils.IsStructural(err)):
		outcome = metrics.OutcomeInvalid
	case err != nil:
		outcome = metrics.OutcomeError
	case env.Intent == responder.IntentUnsupported:
		outcome = metrics.OutcomeUnsupported
	}
	metrics.ObserveQuery(duration, plannerName, outcome)
	span.SetAttributes(
		attribute.String("unifyiq.planner", plannerName),
		attribute.String("unifyiq.outcome", outcome),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("query failed",
			slog.String("query_id", queryID),
			slog.String("planner", plannerName),
			slog.Any("error", err),
		)
		return responder.Envelope{}, err
	}

	env.Meta.DurationMs = duration.Milliseconds()
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("query latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}
	s.logger.Debug("query answered",
		slog.String("query_id", queryID),
		slog.String("intent", env.Intent),
		slog.Int("rows", env.Meta.RowCount),
		slog.Duration("duration", duration),
	)
	return env, nil
}

func (s *QueryService) ask(ctx context.Context, queryID string, req models.QueryRequest) (responder.Envelope, string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return responder.Envelope{}, "", utils.NewValidationError("question", "question cannot be empty")
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	switch format {
	case "", models.FormatJSON, models.FormatCSV:
	default:
		return responder.Envelope{}, "", utils.NewValidationError("format", "unsupported format %q", req.Format)
	}
	if s.selector == nil || s.executor == nil || s.store == nil {
		return responder.Envelope{}, "", &utils.ConfigurationError{Msg: "query service not configured"}
	}

	ds := s.store.Snapshot()
	if ds == nil {
		return responder.Envelope{}, "", utils.ErrDatasetNotLoaded
	}
	meta := responder.Meta{
		QueryID:        queryID,
		Orphans:        len(ds.Orphans),
		DatasetBuiltAt: ds.BuiltAt.UTC().Format(time.RFC3339),
		Format:         format,
	}

	res, err := s.selector.Plan(ctx, question)
	meta.Planner = res.Planner
	if err != nil {
		if utils.IsUnsupported(err) {
			s.logger.Info("question not supported", slog.String("query_id", queryID), slog.Any("reason", err))
			return responder.Refuse(question, res.Warnings, meta), res.Planner, nil
		}
		return responder.Envelope{}, res.Planner, err
	}

	p := res.Plan
	if format != "" {
		p.Format = format
	}
	table, warnings, err := s.executor.Execute(ctx, p, ds)
	if err != nil {
		return responder.Envelope{}, res.Planner, err
	}

	env, err := responder.Respond(question, p, table, append(res.Warnings, warnings...), meta)
	if err != nil {
		return responder.Envelope{}, res.Planner, err
	}
	return env, res.Planner, nil
}

// Reload rebuilds the dataset from the sources. A failed reload keeps the previous snapshot.
func (s *QueryService) Reload(ctx context.Context) (ReloadStats, error) {
	if s.store == nil {
		return ReloadStats{}, &utils.ConfigurationError{Msg: "dataset store not configured"}
	}
	ctx, span := tracer.Start(ctx, "QueryService.Reload")
	defer span.End()

	start := time.Now()
	ds, err := s.store.Reload(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ReloadStats{}, err
	}
	if ds == nil {
		return ReloadStats{}, errors.New("reload returned no dataset")
	}
	return ReloadStats{
		Accounts:       len(ds.Accounts),
		Issues:         ds.IssueCount(),
		Orphans:        len(ds.Orphans),
		Rejections:     len(ds.Rejections),
		SourceAccounts: ds.SourceAccounts,
		SourceIssues:   ds.SourceIssues,
		BuiltAt:        ds.BuiltAt.UTC().Format(time.RFC3339),
		DurationMs:     time.Since(start).Milliseconds(),
	}, nil
}

// LatencyP95 returns the current p95 query latency.
func (s *QueryService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
