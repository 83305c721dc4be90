// Package engine runs validated query plans against the unified dataset.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unifyiq/unifyiq/internal/insights"
	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/plan"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// Executor walks plan steps over a dataset snapshot. It holds no per-query state.
type Executor struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option customises an Executor.
type Option func(*Executor)

// WithClock overrides the clock used when a renewal window has no as_of date.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor constructs an executor.
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute validates p and runs it. Validation failures return ValidationError or
// StructuralExecutionError before any step runs.
func (e *Executor) Execute(ctx context.Context, p plan.Plan, ds *models.Dataset) (models.Table, []string, error) {
	prog, err := plan.Compile(p)
	if err != nil {
		return nil, nil, err
	}
	return e.Run(ctx, prog, ds)
}

// Run executes a compiled program. The dataset is only read.
func (e *Executor) Run(ctx context.Context, prog plan.Program, ds *models.Dataset) (models.Table, []string, error) {
	if ds == nil {
		return nil, nil, utils.ErrDatasetNotLoaded
	}

	var table models.Table
	for i, step := range prog.Steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		var err error
		table, err = e.runStep(i, step, table, ds)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		if len(table) == 0 {
			predicate := plan.Describe(prog.Plan.Steps[i])
			e.logger.Debug("plan produced no rows", slog.Int("step", i), slog.String("predicate", predicate))
			return models.Table{}, []string{"no rows matched " + predicate}, nil
		}
	}
	return table, nil, nil
}

func (e *Executor) runStep(i int, step plan.CompiledStep, table models.Table, ds *models.Dataset) (models.Table, error) {
	switch args := step.Args.(type) {
	case insights.TopRevenueArgs:
		return insights.TopRevenue(insights.All(ds), args)
	case insights.RenewalsArgs:
		if args.AsOf.IsZero() {
			args.AsOf = e.now()
		}
		return insights.RenewalsWithin(insights.All(ds), args)
	case insights.ThresholdArgs:
		return insights.ThresholdCritical(insights.All(ds), args)
	case insights.AccountsArgs:
		return insights.Accounts(insights.All(ds), args)
	case insights.GroupArgs:
		return insights.GroupBy(e.subject(i, table, ds), args)
	case insights.SummaryArgs:
		row, err := insights.Summary(e.subject(i, table, ds), len(ds.Orphans), args)
		if err != nil {
			return nil, err
		}
		return models.Table{row}, nil
	case plan.WhereArgs:
		return filterRows(table, func(r *models.Row) bool { return matchWhere(r, args) }), nil
	case plan.RangeArgs:
		return filterRows(table, func(r *models.Row) bool { return inRange(r, args) }), nil
	case plan.OrderArgs:
		return orderRows(table, args), nil
	case plan.LimitArgs:
		if len(table) > args.N {
			return table[:args.N], nil
		}
		return table, nil
	}
	return nil, &utils.StructuralExecutionError{Step: i, Msg: fmt.Sprintf("no executor for %s operation %q", step.Kind, step.Op)}
}

// subject returns the accounts a group or aggregate step works on: every account
// when it opens the plan, otherwise the accounts behind the current rows.
func (e *Executor) subject(i int, table models.Table, ds *models.Dataset) []*models.UnifiedAccount {
	if i == 0 {
		return insights.All(ds)
	}
	return table.Accounts()
}
