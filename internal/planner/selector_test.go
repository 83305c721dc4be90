package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifyiq/unifyiq/internal/plan"
	"github.com/unifyiq/unifyiq/internal/utils"
)

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSelectorFallsBackToRules(t *testing.T) {
	const question = "accounts with at least 3 p1"
	rules := NewRulePlanner(nil, nil)
	want, err := rules.Plan(context.Background(), question)
	require.NoError(t, err)

	failures := map[string]*LLMPlanner{
		"transport": NewLLMPlanner(&fakeCompleter{err: errors.New("503")}, nil, 0, nil),
		"malformed": NewLLMPlanner(&fakeCompleter{reply: "not json"}, nil, 0, nil),
		"invalid":   NewLLMPlanner(&fakeCompleter{reply: `{"steps":[{"kind":"filter","op":"where"}]}`}, nil, 0, nil),
		"timeout":   NewLLMPlanner(blockingCompleter{}, nil, 0, nil),
	}
	for name, llmPlanner := range failures {
		t.Run(name, func(t *testing.T) {
			sel := NewSelector(llmPlanner, rules, 20*time.Millisecond, nil)
			res, err := sel.Plan(context.Background(), question)
			require.NoError(t, err)
			assert.Equal(t, NameRules, res.Planner)
			assert.Equal(t, []string{FallbackWarning}, res.Warnings)
			if diff := cmp.Diff(want, res.Plan); diff != "" {
				t.Fatalf("fallback plan differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectorPrefersLLM(t *testing.T) {
	fake := &fakeCompleter{reply: `{"steps":[{"kind":"fetch","op":"top-revenue","params":{"n":3}}],"confidence":0.9}`}
	sel := NewSelector(NewLLMPlanner(fake, nil, 0.5, nil), NewRulePlanner(nil, nil), time.Second, nil)
	res, err := sel.Plan(context.Background(), "biggest three customers")
	require.NoError(t, err)
	assert.Equal(t, NameLLM, res.Planner)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, plan.OpTopRevenue, res.Plan.Intent())
}

func TestSelectorWithoutLLM(t *testing.T) {
	sel := NewSelector(nil, NewRulePlanner(nil, nil), 0, nil)
	res, err := sel.Plan(context.Background(), "top 10 accounts")
	require.NoError(t, err)
	assert.Equal(t, NameRules, res.Planner)
	assert.Empty(t, res.Warnings)
}

func TestSelectorUnsupportedFromBothStrategies(t *testing.T) {
	fake := &fakeCompleter{reply: `{"steps":[],"confidence":0}`}
	for _, sel := range []*Selector{
		NewSelector(NewLLMPlanner(fake, nil, 0.5, nil), NewRulePlanner(nil, nil), time.Second, nil),
		NewSelector(nil, NewRulePlanner(nil, nil), time.Second, nil),
	} {
		res, err := sel.Plan(context.Background(), "What's our churn rate by cohort?")
		assert.True(t, utils.IsUnsupported(err), "got %v", err)
		assert.Empty(t, res.Warnings)
	}
}
