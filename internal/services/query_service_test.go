package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/unifyiq/unifyiq/internal/engine"
	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/plan"
	"github.com/unifyiq/unifyiq/internal/planner"
	"github.com/unifyiq/unifyiq/internal/responder"
	"github.com/unifyiq/unifyiq/internal/unify"
	"github.com/unifyiq/unifyiq/internal/utils"
)

var builtAt = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

type storeStub struct {
	ds        *models.Dataset
	reloadErr error
	reloads   int
}

func (s *storeStub) Snapshot() *models.Dataset { return s.ds }

func (s *storeStub) Reload(ctx context.Context) (*models.Dataset, error) {
	s.reloads++
	if s.reloadErr != nil {
		return nil, s.reloadErr
	}
	return s.ds, nil
}

type selectorStub struct {
	res planner.Result
	err error
}

func (s selectorStub) Plan(ctx context.Context, question string) (planner.Result, error) {
	return s.res, s.err
}

func dataset(t *testing.T) *models.Dataset {
	t.Helper()
	accounts := []models.Account{
		{ID: "A1", Name: "Acme", ARR: 300000, Region: "NA"},
		{ID: "A2", Name: "Beta", ARR: 150000, Region: "EMEA"},
		{ID: "A3", Name: "Gamma", ARR: 90000, Region: "NA"},
	}
	issues := []models.Issue{
		{ID: "J1", LinkKey: "A1", Priority: models.PriorityP1, Status: models.StatusOpen, Type: "bug"},
		{ID: "J2", LinkKey: "ZZ", Priority: models.PriorityP2, Status: models.StatusOpen, Type: "bug"},
	}
	res, err := unify.Unify(accounts, issues, unify.Options{})
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	return &models.Dataset{Accounts: res.Accounts, Orphans: res.Orphans, BuiltAt: builtAt, SourceAccounts: 3, SourceIssues: 2}
}

func newService(t *testing.T, store DatasetStore) *QueryService {
	t.Helper()
	selector := planner.NewSelector(nil, planner.NewRulePlanner(nil, nil), time.Second, nil)
	svc := NewQueryService(nil, store, selector, engine.NewExecutor(nil))
	svc.newID = func() string { return "q-1" }
	return svc
}

func TestAskTopRevenue(t *testing.T) {
	svc := newService(t, &storeStub{ds: dataset(t)})

	env, err := svc.Ask(context.Background(), models.QueryRequest{Question: "top 2 accounts by revenue"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Intent != plan.OpTopRevenue {
		t.Fatalf("expected top revenue intent, got %q", env.Intent)
	}
	if env.Meta.RowCount != 2 || env.Meta.QueryID != "q-1" || env.Meta.Planner != planner.NameRules {
		t.Fatalf("unexpected meta: %+v", env.Meta)
	}
	if env.Meta.Orphans != 1 {
		t.Fatalf("expected 1 orphan, got %d", env.Meta.Orphans)
	}
	if env.Meta.DatasetBuiltAt != "2025-05-01T00:00:00Z" {
		t.Fatalf("unexpected build time %q", env.Meta.DatasetBuiltAt)
	}
	if !strings.Contains(env.Answer, "Acme") {
		t.Fatalf("expected Acme in answer, got %q", env.Answer)
	}
}

func TestAskHowManySummarisesThresholdAccounts(t *testing.T) {
	svc := newService(t, &storeStub{ds: dataset(t)})

	env, err := svc.Ask(context.Background(), models.QueryRequest{Question: "how many accounts have at least 1 p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Intent != plan.OpSummary || len(env.Plan.Steps) != 2 {
		t.Fatalf("expected threshold then summary, got %+v", env.Plan)
	}
	table, ok := env.Result.(models.Table)
	if !ok || len(table) != 1 {
		t.Fatalf("expected one summary row, got %#v", env.Result)
	}
	if got, _ := table[0].Get("total_accounts"); got != 1 {
		t.Fatalf("expected only Acme to be summarised, got %v", got)
	}
}

func TestAskCSVOverridesPlanFormat(t *testing.T) {
	svc := newService(t, &storeStub{ds: dataset(t)})

	env, err := svc.Ask(context.Background(), models.QueryRequest{Question: "top 2 accounts by revenue", Format: "CSV"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, ok := env.Result.(string)
	if !ok {
		t.Fatalf("expected csv document, got %T", env.Result)
	}
	if env.ContentType != "text/csv" || !strings.HasPrefix(doc, "AccountID,") {
		t.Fatalf("unexpected csv envelope: %q %q", env.ContentType, doc)
	}
}

func TestAskUnsupportedReturnsRefusal(t *testing.T) {
	svc := newService(t, &storeStub{ds: dataset(t)})

	env, err := svc.Ask(context.Background(), models.QueryRequest{Question: "What is our churn rate?"})
	if err != nil {
		t.Fatalf("refusal should not be an error: %v", err)
	}
	if env.Intent != responder.IntentUnsupported || env.Answer != responder.RefusalAnswer {
		t.Fatalf("unexpected refusal: %+v", env)
	}
	if len(env.Warnings) != 1 || env.Warnings[0] != responder.RefusalWarning {
		t.Fatalf("unexpected warnings: %v", env.Warnings)
	}
}

func TestAskKeepsFallbackWarningOnRefusal(t *testing.T) {
	sel := selectorStub{
		res: planner.Result{Planner: planner.NameRules, Warnings: []string{planner.FallbackWarning}},
		err: &utils.UnsupportedIntentError{Question: "x"},
	}
	svc := NewQueryService(nil, &storeStub{ds: dataset(t)}, sel, engine.NewExecutor(nil))

	env, err := svc.Ask(context.Background(), models.QueryRequest{Question: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{planner.FallbackWarning, responder.RefusalWarning}
	if strings.Join(env.Warnings, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %v, got %v", want, env.Warnings)
	}
}

func TestAskValidation(t *testing.T) {
	svc := newService(t, &storeStub{ds: dataset(t)})

	cases := []models.QueryRequest{
		{Question: "   "},
		{Question: "top 2 accounts by revenue", Format: "xml"},
	}
	for _, req := range cases {
		if _, err := svc.Ask(context.Background(), req); !utils.IsValidation(err) {
			t.Fatalf("request %+v: expected validation error, got %v", req, err)
		}
	}
}

func TestAskBeforeFirstLoad(t *testing.T) {
	svc := newService(t, &storeStub{})

	_, err := svc.Ask(context.Background(), models.QueryRequest{Question: "top 2 accounts by revenue"})
	if !errors.Is(err, utils.ErrDatasetNotLoaded) {
		t.Fatalf("expected dataset not loaded, got %v", err)
	}
}

func TestAskSurfacesStructuralErrors(t *testing.T) {
	sel := selectorStub{res: planner.Result{
		Planner: planner.NameLLM,
		Plan: plan.Plan{Steps: []plan.Step{
			{Kind: plan.KindLimit, Op: plan.OpLimit, Params: map[string]any{"n": 1}},
		}},
	}}
	svc := NewQueryService(nil, &storeStub{ds: dataset(t)}, sel, engine.NewExecutor(nil))

	_, err := svc.Ask(context.Background(), models.QueryRequest{Question: "limit"})
	if err == nil || !(utils.IsStructural(err) || utils.IsValidation(err)) {
		t.Fatalf("expected plan error, got %v", err)
	}
}

func TestReloadStats(t *testing.T) {
	store := &storeStub{ds: dataset(t)}
	svc := newService(t, store)

	stats, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.reloads != 1 {
		t.Fatalf("expected one reload, got %d", store.reloads)
	}
	if stats.Accounts != 3 || stats.Issues != 2 || stats.Orphans != 1 || stats.SourceIssues != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestReloadFailure(t *testing.T) {
	store := &storeStub{reloadErr: errors.New("source down")}
	svc := newService(t, store)

	if _, err := svc.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload error")
	}
}

func TestLatencyP95AfterQueries(t *testing.T) {
	svc := newService(t, &storeStub{ds: dataset(t)})
	for i := 0; i < 3; i++ {
		if _, err := svc.Ask(context.Background(), models.QueryRequest{Question: "top 2 accounts by revenue"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if svc.latencies.Count() != 3 {
		t.Fatalf("expected 3 samples, got %d", svc.latencies.Count())
	}
}
