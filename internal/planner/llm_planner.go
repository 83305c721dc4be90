package planner

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/unifyiq/unifyiq/internal/llm"
	"github.com/unifyiq/unifyiq/internal/plan"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// LLMPlanner asks a language model for a plan and holds its answer to the same schema
// as every other plan. Failures come back as UpstreamPlannerError.
type LLMPlanner struct {
	completer     llm.Completer
	vocab         *Vocabulary
	minConfidence float64
	logger        *slog.Logger
}

// NewLLMPlanner constructs an LLM planner. Plans below minConfidence are treated as unsupported.
func NewLLMPlanner(completer llm.Completer, vocab *Vocabulary, minConfidence float64, logger *slog.Logger) *LLMPlanner {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlanner{completer: completer, vocab: vocab, minConfidence: minConfidence, logger: logger}
}

// Plan implements Planner.
func (p *LLMPlanner) Plan(ctx context.Context, question string) (plan.Plan, error) {
	if strings.TrimSpace(question) == "" {
		return plan.Plan{}, &utils.UnsupportedIntentError{Question: question, Reason: "empty question"}
	}
	if term := p.vocab.OutOfScopeTerm(question); term != "" {
		return plan.Plan{}, &utils.UnsupportedIntentError{Question: question, Reason: "out of scope: " + term}
	}
	if p.completer == nil {
		return plan.Plan{}, &utils.UpstreamPlannerError{Reason: "no completer configured"}
	}

	text, err := p.completer.Complete(ctx, BuildPrompt(question))
	if err != nil {
		reason := "transport"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		return plan.Plan{}, &utils.UpstreamPlannerError{Reason: reason, Err: err}
	}

	raw, ok := extractJSON(text)
	if !ok {
		return plan.Plan{}, &utils.UpstreamPlannerError{Reason: "malformed", Err: errors.New("no JSON object in model output")}
	}
	candidate, err := plan.Decode([]byte(raw))
	if err != nil {
		return plan.Plan{}, &utils.UpstreamPlannerError{Reason: "malformed", Err: err}
	}
	if len(candidate.Steps) == 0 {
		return plan.Plan{}, &utils.UnsupportedIntentError{Question: question, Reason: "model declined"}
	}
	canonical, err := plan.Canonical(candidate)
	if err != nil {
		return plan.Plan{}, &utils.UpstreamPlannerError{Reason: "invalid", Err: err}
	}
	if conf := canonical.ConfidenceOr(1); conf < p.minConfidence {
		p.logger.Debug("llm plan below confidence floor", slog.Float64("confidence", conf), slog.Float64("floor", p.minConfidence))
		return plan.Plan{}, &utils.UnsupportedIntentError{Question: question, Reason: "low confidence"}
	}
	return canonical, nil
}

// extractJSON returns the first balanced JSON object in s, skipping code fences and prose.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
