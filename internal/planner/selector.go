package planner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/unifyiq/unifyiq/internal/metrics"
	"github.com/unifyiq/unifyiq/internal/plan"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// FallbackWarning is attached to responses planned by the rules after an LLM failure.
const FallbackWarning = "LLM planning failed. Fallback used."

// Result is a chosen plan with the planner that produced it.
type Result struct {
	Plan     plan.Plan
	Planner  string
	Warnings []string
}

// Selector tries the LLM planner once, bounded by a timeout, and falls back to the rules
// on any upstream failure. Without an LLM planner it goes straight to the rules.
type Selector struct {
	llm     Planner
	rules   Planner
	timeout time.Duration
	logger  *slog.Logger
}

// NewSelector builds a selector. Pass a nil llm planner when no API key is configured.
func NewSelector(llm, rules Planner, timeout time.Duration, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Selector{llm: llm, rules: rules, timeout: timeout, logger: logger}
}

// Plan returns a plan, or an UnsupportedIntentError / ValidationError for questions
// no strategy can answer. Upstream LLM failures never escape.
func (s *Selector) Plan(ctx context.Context, question string) (Result, error) {
	var warnings []string
	if s.llm != nil {
		llmCtx, cancel := context.WithTimeout(ctx, s.timeout)
		p, err := s.llm.Plan(llmCtx, question)
		cancel()
		switch {
		case err == nil:
			return Result{Plan: p, Planner: NameLLM}, nil
		case utils.IsUnsupported(err):
			return Result{Planner: NameLLM}, err
		default:
			reason := "error"
			var upstream *utils.UpstreamPlannerError
			if errors.As(err, &upstream) {
				reason = upstream.Reason
			}
			metrics.IncPlannerFallback(reason)
			s.logger.Warn("llm planning failed, using rules", slog.String("reason", reason), slog.Any("error", err))
			warnings = append(warnings, FallbackWarning)
		}
	}

	p, err := s.rules.Plan(ctx, question)
	if err != nil {
		return Result{Planner: NameRules, Warnings: warnings}, err
	}
	return Result{Plan: p, Planner: NameRules, Warnings: warnings}, nil
}
