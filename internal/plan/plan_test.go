package plan

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifyiq/unifyiq/internal/insights"
	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode([]byte(`{"steps":[{"kind":"fetch","op":"top-revenue"}],"sql":"drop table"}`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"steps":[]} {"steps":[]}`))
	require.Error(t, err)

	p, err := Decode([]byte(`{"steps":[{"kind":"fetch","op":"top-revenue","params":{"n":5}}],"confidence":0.9}`))
	require.NoError(t, err)
	assert.Equal(t, 0.9, p.ConfidenceOr(0))
	assert.Equal(t, OpTopRevenue, p.Intent())
}

func TestCompileAppliesDefaults(t *testing.T) {
	prog, err := Compile(Plan{Steps: []Step{{Kind: KindFetch, Op: OpThresholdCritical}}})
	require.NoError(t, err)
	args, ok := prog.Steps[0].Args.(insights.ThresholdArgs)
	require.True(t, ok)
	assert.Equal(t, 3, args.MinCount)
	assert.Equal(t, models.PriorityP1, args.Priority)
	assert.Equal(t, models.StatusOpen, args.Status)

	want := map[string]any{"min_count": 3.0, "priority": "P1", "status": "open"}
	if diff := cmp.Diff(want, prog.Plan.Steps[0].Params); diff != "" {
		t.Fatalf("canonical params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, models.FormatJSON, prog.Plan.Format)
}

func TestCanonicalIsStableAcrossEncodings(t *testing.T) {
	built := Plan{Steps: []Step{{
		Kind: KindGroup, Op: OpGroupBy,
		Params: map[string]any{
			"dimension": "Region",
			"metric":    "open_p1",
			"filters": map[string]any{
				"issue_types": []string{"Bug"},
				"priority":    map[string]any{"priority": "p1"},
			},
		},
	}}}
	decoded, err := Decode([]byte(`{"steps":[{"kind":"group","op":"group-by","params":{
		"dimension":"region","metric":"open_p1",
		"filters":{"issue_types":["bug"],"priority":{"priority":"P1","min_count":1,"status":"open"}}}}]}`))
	require.NoError(t, err)

	a, err := Canonical(built)
	require.NoError(t, err)
	b, err := Canonical(decoded)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("canonical plans differ (-built +decoded):\n%s", diff)
	}

	again, err := Canonical(a)
	require.NoError(t, err)
	assert.Equal(t, a, again, "canonical form is a fixed point")
}

func TestCompileValidationErrorsNameTheField(t *testing.T) {
	cases := []struct {
		name  string
		step  Step
		field string
	}{
		{"n too large", Step{Kind: KindFetch, Op: OpTopRevenue, Params: map[string]any{"n": 5000}}, "n"},
		{"n fractional", Step{Kind: KindFetch, Op: OpTopRevenue, Params: map[string]any{"n": 2.5}}, "n"},
		{"unknown param", Step{Kind: KindFetch, Op: OpTopRevenue, Params: map[string]any{"limit": 5}}, "limit"},
		{"window", Step{Kind: KindFetch, Op: OpRenewalsWithin, Params: map[string]any{"window_days": 0}}, "window_days"},
		{"as_of", Step{Kind: KindFetch, Op: OpRenewalsWithin, Params: map[string]any{"as_of": "tomorrow"}}, "as_of"},
		{"max below min", Step{Kind: KindFetch, Op: OpThresholdCritical, Params: map[string]any{"min_count": 4, "max_count": 2}}, "max_count"},
		{"priority", Step{Kind: KindFetch, Op: OpThresholdCritical, Params: map[string]any{"priority": "P9"}}, "priority"},
		{"dimension", Step{Kind: KindGroup, Op: OpGroupBy, Params: map[string]any{"dimension": "country"}}, "dimension"},
		{"arr range", Step{Kind: KindFetch, Op: OpAccounts, Params: map[string]any{"filters": map[string]any{"arr_min": 300000, "arr_max": 100000}}}, "arr_min"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(Plan{Steps: []Step{tc.step}})
			var verr *utils.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCompileRangeLowAboveHigh(t *testing.T) {
	_, err := Compile(Plan{Steps: []Step{
		{Kind: KindFetch, Op: OpAccounts},
		{Kind: KindFilter, Op: OpRange, Params: map[string]any{"field": "ARR", "low": 300000, "high": 100000}},
	}})
	assert.True(t, utils.IsValidation(err))
}

func TestCompileStructuralErrors(t *testing.T) {
	cases := map[string][]Step{
		"unknown kind": {{Kind: "join", Op: "inner"}},
		"unknown op":   {{Kind: KindFetch, Op: "churn-rate"}},
		"filter first": {{Kind: KindFilter, Op: OpWhere, Params: map[string]any{"field": "Region", "op": "=", "value": "NA"}}},
		"late fetch":   {{Kind: KindFetch, Op: OpAccounts}, {Kind: KindFetch, Op: OpAccounts}},
		"aggregate not last": {
			{Kind: KindAggregate, Op: OpSummary},
			{Kind: KindLimit, Op: OpLimit, Params: map[string]any{"n": 1}},
		},
		"group twice": {
			{Kind: KindGroup, Op: OpGroupBy, Params: map[string]any{"dimension": "region"}},
			{Kind: KindGroup, Op: OpGroupBy, Params: map[string]any{"dimension": "stage"}},
		},
	}
	for name, steps := range cases {
		_, err := Compile(Plan{Steps: steps})
		assert.True(t, utils.IsStructural(err), "%s: got %v", name, err)
	}
}

func TestCompileRejectsEmptyPlanAndBadFormat(t *testing.T) {
	_, err := Compile(Plan{})
	assert.True(t, utils.IsValidation(err))

	_, err = Compile(Plan{Steps: []Step{{Kind: KindFetch, Op: OpAccounts}}, Format: "xml"})
	assert.True(t, utils.IsValidation(err))
}

func TestOpsAndDescribe(t *testing.T) {
	assert.Equal(t, []string{OpRange, OpWhere}, Ops(KindFilter))
	assert.Equal(t, `where {"field":"Region","op":"=","value":"NA"}`,
		Describe(Step{Kind: KindFilter, Op: OpWhere, Params: map[string]any{"field": "Region", "op": "=", "value": "NA"}}))
}
