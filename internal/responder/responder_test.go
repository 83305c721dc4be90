package responder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifyiq/unifyiq/internal/insights"
	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/plan"
)

func canonical(t *testing.T, steps ...plan.Step) plan.Plan {
	t.Helper()
	p, err := plan.Canonical(plan.Plan{Steps: steps})
	require.NoError(t, err)
	return p
}

func accountRow(id, name string, arr float64) *models.Row {
	return models.NewRow().Set(insights.FieldAccountID, id).Set(insights.FieldAccountName, name).Set(insights.FieldARR, arr)
}

func TestRespondTopRevenue(t *testing.T) {
	p := canonical(t, plan.Step{Kind: plan.KindFetch, Op: plan.OpTopRevenue, Params: map[string]any{"n": 2}})
	table := models.Table{accountRow("A1", "Acme", 300000), accountRow("A5", "Epsilon", 250000)}

	env, err := Respond("top 2 accounts", p, table, nil, Meta{QueryID: "q-1", Planner: "rules"})
	require.NoError(t, err)
	assert.Equal(t, plan.OpTopRevenue, env.Intent)
	assert.Equal(t, []string{}, env.Warnings)
	assert.Contains(t, env.Answer, "Top 2 accounts by ARR; highest is Acme at $")
	assert.Equal(t, 2, env.Meta.RowCount)
	assert.Equal(t, models.FormatJSON, env.Meta.Format)
	assert.Equal(t, "q-1", env.Meta.QueryID)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"result":[{"AccountID":"A1","AccountName":"Acme","ARR":300000}`)
}

func TestRespondEmptyTable(t *testing.T) {
	p := canonical(t, plan.Step{Kind: plan.KindFetch, Op: plan.OpAccounts})
	env, err := Respond("accounts named zz", p, nil, []string{"no rows matched accounts"}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, EmptyAnswer, env.Answer)
	assert.Equal(t, models.Table{}, env.Result)
	assert.Equal(t, []string{"no rows matched accounts"}, env.Warnings)
}

func TestRespondCSV(t *testing.T) {
	p := canonical(t, plan.Step{Kind: plan.KindFetch, Op: plan.OpAccounts})
	p.Format = models.FormatCSV
	env, err := Respond("download accounts", p, models.Table{accountRow("A1", "Acme", 1.5)}, nil, Meta{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", env.ContentType)
	assert.Equal(t, "AccountID,AccountName,ARR\nA1,Acme,1.5\n", env.Result)
	assert.Equal(t, "Found 1 account: Acme (A1).", env.Answer)
}

func TestRefuse(t *testing.T) {
	env := Refuse("what's our churn rate", []string{"LLM planning failed. Fallback used."}, Meta{QueryID: "q-2"})
	assert.Equal(t, RefusalAnswer, env.Answer)
	assert.Equal(t, models.Table{}, env.Result)
	assert.Nil(t, env.Plan)
	assert.Equal(t, []string{"LLM planning failed. Fallback used.", RefusalWarning}, env.Warnings)
	assert.Equal(t, 0, env.Meta.RowCount)
}

func TestAnswerTemplates(t *testing.T) {
	tests := []struct {
		name  string
		plan  plan.Plan
		table models.Table
		want  string
	}{
		{
			name:  "threshold",
			plan:  canonical(t, plan.Step{Kind: plan.KindFetch, Op: plan.OpThresholdCritical, Params: map[string]any{"min_count": 3}}),
			table: models.Table{accountRow("A3", "Gamma", 1), accountRow("A1", "Acme", 1)},
			want:  "2 accounts have at least 3 open P1 issues.",
		},
		{
			name:  "threshold range",
			plan:  canonical(t, plan.Step{Kind: plan.KindFetch, Op: plan.OpThresholdCritical, Params: map[string]any{"min_count": 2, "max_count": 4, "priority": "p2"}}),
			table: models.Table{accountRow("A3", "Gamma", 1)},
			want:  "1 account has at least 2 and at most 4 open P2 issues.",
		},
		{
			name: "renewals",
			plan: canonical(t, plan.Step{Kind: plan.KindFetch, Op: plan.OpRenewalsWithin, Params: map[string]any{"window_days": 30}}),
			table: models.Table{
				accountRow("A1", "Acme", 1).Set(insights.FieldRenewalDate, "2025-05-11"),
				accountRow("A2", "Beta", 1).Set(insights.FieldRenewalDate, "2025-05-31"),
			},
			want: "2 accounts renew within 30 days; next is Acme on 2025-05-11.",
		},
		{
			name: "group",
			plan: canonical(t, plan.Step{Kind: plan.KindGroup, Op: plan.OpGroupBy, Params: map[string]any{"dimension": "region"}}),
			table: models.Table{
				models.NewRow().Set("group", "NA").Set("metric", "count").Set("value", 2).Set("accounts", 2),
				models.NewRow().Set("group", "EMEA").Set("metric", "count").Set("value", 1).Set("accounts", 1),
			},
			want: "2 region groups by count; largest is NA with 2.",
		},
		{
			name: "filtered chain uses fetch intent",
			plan: canonical(t,
				plan.Step{Kind: plan.KindFetch, Op: plan.OpAccounts},
				plan.Step{Kind: plan.KindLimit, Op: plan.OpLimit, Params: map[string]any{"n": 5}},
			),
			table: models.Table{accountRow("A1", "Acme", 1), accountRow("A2", "Beta", 1)},
			want:  "Found 2 accounts.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Answer(tc.plan, tc.table))
		})
	}
}
